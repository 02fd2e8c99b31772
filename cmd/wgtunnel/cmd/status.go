package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/plexsphere/wgtunnel/internal/nodeapi"
)

var statusCmd = &cobra.Command{
	Use:   "status [name]",
	Short: "Show tunnels running under `wgtunnel up`",
	Long: "Query the control socket of a running `wgtunnel up` and print the\n" +
		"runtime state of its tunnels, or of the named tunnel only.",
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Apply stored edits to running tunnels now",
	Long: "Ask a running `wgtunnel up` over its control socket to reconcile\n" +
		"its tunnels with the store immediately.",
	Args: cobra.NoArgs,
	RunE: runReload,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(reloadCmd)
}

// controlClient returns a client for the control socket named in the
// config file.
func controlClient(cmd *cobra.Command) (*nodeapi.Client, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if cfg.API.Disabled {
		return nil, errors.New("control socket is disabled in the config file")
	}
	return nodeapi.NewClient(cfg.API.SocketPath), nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	client, err := controlClient(cmd)
	if err != nil {
		return fmt.Errorf("wgtunnel status: %w", err)
	}

	var list []nodeapi.TunnelStatus
	if len(args) == 1 {
		st, err := client.Tunnel(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("wgtunnel status: %s: %w", args[0], err)
		}
		list = append(list, *st)
	} else {
		list, err = client.Tunnels(cmd.Context())
		if err != nil {
			return fmt.Errorf("wgtunnel status: %w", err)
		}
	}

	w := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(w, "no tunnels running")
		return nil
	}
	now := time.Now()
	for i, st := range list {
		if i > 0 {
			fmt.Fprintln(w)
		}
		printStatus(w, st, now)
	}
	return nil
}

func runReload(cmd *cobra.Command, _ []string) error {
	client, err := controlClient(cmd)
	if err != nil {
		return fmt.Errorf("wgtunnel reload: %w", err)
	}
	if err := client.Reconcile(cmd.Context()); err != nil {
		return fmt.Errorf("wgtunnel reload: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "reconcile triggered")
	return nil
}
