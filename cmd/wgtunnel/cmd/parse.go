package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/plexsphere/wgtunnel/internal/wgconf"
)

var parseUAPI bool

var parseCmd = &cobra.Command{
	Use:   "parse <file>",
	Short: "Validate a wg-quick configuration",
	Long: "Parse and validate a wg-quick configuration file and print it in canonical form.\n" +
		"With --uapi the backend settings string is printed instead.",
	Args: cobra.ExactArgs(1),
	RunE: runParse,
}

func init() {
	parseCmd.Flags().BoolVar(&parseUAPI, "uapi", false, "print the backend settings string")
	rootCmd.AddCommand(parseCmd)
}

func runParse(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("wgtunnel parse: %w", err)
	}
	name := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))

	parser := wgconf.NewParser(setupLogger(cmd.ErrOrStderr(), logLevel))
	cfg, err := parser.Parse(string(data), name)
	if err != nil {
		return fmt.Errorf("wgtunnel parse: %w", err)
	}

	if parseUAPI {
		fmt.Fprint(cmd.OutOrStdout(), cfg.UAPIConfig())
		return nil
	}
	fmt.Fprint(cmd.OutOrStdout(), cfg.WgQuickConfig())
	return nil
}
