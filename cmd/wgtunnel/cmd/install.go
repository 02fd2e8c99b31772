package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plexsphere/wgtunnel/internal/packaging"
)

var purge bool

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install wgtunnel as a systemd service",
	Long: "Install the wgtunnel binary, a default config file and the\n" +
		"wgtunnel@.service template unit. Enable tunnels with `wgtunnel enable`.",
	Args: cobra.NoArgs,
	RunE: runInstall,
}

var enableCmd = &cobra.Command{
	Use:   "enable <name>",
	Short: "Start a tunnel at boot",
	Long:  "Enable and start the wgtunnel@<name> service instance.",
	Args:  cobra.ExactArgs(1),
	RunE:  runEnable,
}

var disableCmd = &cobra.Command{
	Use:   "disable <name>",
	Short: "Stop starting a tunnel at boot",
	Long:  "Stop and disable the wgtunnel@<name> service instance.",
	Args:  cobra.ExactArgs(1),
	RunE:  runDisable,
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the wgtunnel systemd service",
	Args:  cobra.NoArgs,
	RunE:  runUninstall,
}

func init() {
	uninstallCmd.Flags().BoolVar(&purge, "purge", false, "also remove data and config directories")
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(enableCmd)
	rootCmd.AddCommand(disableCmd)
	rootCmd.AddCommand(uninstallCmd)
}

func newInstaller(cmd *cobra.Command) *packaging.Installer {
	cfg := packaging.InstallConfig{DataDir: dataDir}
	logger := setupLogger(cmd.ErrOrStderr(), logLevel)
	return packaging.NewInstaller(cfg, packaging.NewSystemctl(), packaging.IsRoot, logger)
}

func runInstall(cmd *cobra.Command, _ []string) error {
	if err := newInstaller(cmd).Install(); err != nil {
		return fmt.Errorf("wgtunnel install: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "wgtunnel installed successfully")
	return nil
}

func runEnable(cmd *cobra.Command, args []string) error {
	if err := newInstaller(cmd).EnableTunnel(args[0]); err != nil {
		return fmt.Errorf("wgtunnel enable: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "enabled %s\n", args[0])
	return nil
}

func runDisable(cmd *cobra.Command, args []string) error {
	if err := newInstaller(cmd).DisableTunnel(args[0]); err != nil {
		return fmt.Errorf("wgtunnel disable: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "disabled %s\n", args[0])
	return nil
}

func runUninstall(cmd *cobra.Command, _ []string) error {
	// Tunnel names are only needed to stop their instances; an unreadable
	// store still allows removing the service.
	var names []string
	if a, err := openApp(cmd); err == nil {
		names, _ = a.manager.Names(cmd.Context())
		a.Close()
	}

	if err := newInstaller(cmd).Uninstall(names, purge); err != nil {
		return fmt.Errorf("wgtunnel uninstall: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "wgtunnel uninstalled successfully")
	return nil
}
