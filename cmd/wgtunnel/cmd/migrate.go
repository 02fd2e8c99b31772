package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/plexsphere/wgtunnel/internal/archive"
	"github.com/plexsphere/wgtunnel/internal/legacy"
)

var (
	migrateSave bool
	migrateName string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate <record>",
	Short: "Migrate a legacy tunnel record",
	Long: "Convert a tunnel record written by an older release (binary or XML\n" +
		"property list) and print it in canonical wg-quick form. With --save the\n" +
		"record is added to the tunnel store and migrated there.",
	Args: cobra.ExactArgs(1),
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateSave, "save", false, "add the migrated tunnel to the store")
	migrateCmd.Flags().StringVar(&migrateName, "name", "", "tunnel name (default: the record's name, then the file name)")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("wgtunnel migrate: %w", err)
	}
	cfg, err := legacy.Migrate(data)
	if err != nil {
		return fmt.Errorf("wgtunnel migrate: %w", err)
	}

	name := migrateName
	if name == "" {
		name = cfg.Name
	}
	if name == "" {
		name = archive.SanitizeName(strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0])))
	}

	if !migrateSave {
		fmt.Fprint(cmd.OutOrStdout(), cfg.WgQuickConfig())
		return nil
	}

	a, err := openApp(cmd)
	if err != nil {
		return fmt.Errorf("wgtunnel migrate: %w", err)
	}
	defer a.Close()

	t, err := a.store.AddLegacy(cmd.Context(), name, data)
	if err != nil {
		return fmt.Errorf("wgtunnel migrate: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", t.Name)
	return nil
}
