package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/plexsphere/wgtunnel/internal/archive"
	"github.com/plexsphere/wgtunnel/internal/wgconf"
)

var importCmd = &cobra.Command{
	Use:   "import <file>...",
	Short: "Import tunnels",
	Long: "Import tunnels from .conf files or zip archives of .conf files.\n" +
		"Tunnels are named after their files; clashing names get a numeric suffix.\n" +
		"A file that fails to import does not stop the others.",
	Args: cobra.MinimumNArgs(1),
	RunE: runImport,
}

var exportCmd = &cobra.Command{
	Use:   "export <zip>",
	Short: "Export all tunnels to a zip archive",
	Long:  "Write every stored tunnel as <name>.conf into a zip archive.",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored tunnels",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var removeCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a stored tunnel",
	Long:  "Remove a stored tunnel together with its key material.",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemove,
}

var renameCmd = &cobra.Command{
	Use:   "rename <name> <new-name>",
	Short: "Rename a stored tunnel",
	Args:  cobra.ExactArgs(2),
	RunE:  runRename,
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete orphaned key material",
	Long:  "Delete keystore entries that no stored tunnel references.",
	Args:  cobra.NoArgs,
	RunE:  runPrune,
}

func init() {
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(setCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return fmt.Errorf("wgtunnel import: %w", err)
	}
	defer a.Close()

	ctx := cmd.Context()
	taken, err := a.manager.Names(ctx)
	if err != nil {
		return fmt.Errorf("wgtunnel import: %w", err)
	}

	importer := archive.NewImporter(wgconf.NewParser(a.logger), a.logger)
	results := a.manager.Import(ctx, importer.ImportFiles(args, taken))

	w := cmd.OutOrStdout()
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(w, "failed   %s: %v\n", r.Source, r.Err)
			continue
		}
		fmt.Fprintf(w, "imported %s as %s\n", r.Source, r.Config.Name)
	}
	if failed > 0 {
		return fmt.Errorf("wgtunnel import: %d of %d failed", failed, len(results))
	}
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return fmt.Errorf("wgtunnel export: %w", err)
	}
	defer a.Close()

	n, err := a.manager.Export(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("wgtunnel export: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "exported %d tunnels to %s\n", n, args[0])
	return nil
}

func runList(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return fmt.Errorf("wgtunnel list: %w", err)
	}
	defer a.Close()

	list, err := a.manager.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("wgtunnel list: %w", err)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tPUBLIC KEY\tPEERS")
	for _, t := range list {
		if t.Config == nil {
			fmt.Fprintf(tw, "%s\t(no configuration)\t-\n", t.Name)
			continue
		}
		pub, err := t.Config.PublicKey()
		if err != nil {
			return fmt.Errorf("wgtunnel list: %s: %w", t.Name, err)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\n", t.Name, pub, len(t.Config.Peers))
	}
	return tw.Flush()
}

func runRemove(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return fmt.Errorf("wgtunnel remove: %w", err)
	}
	defer a.Close()

	if err := a.manager.Remove(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("wgtunnel remove: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
	return nil
}

func runRename(cmd *cobra.Command, args []string) error {
	if err := wgconf.ValidateName(args[1]); err != nil {
		return fmt.Errorf("wgtunnel rename: %w", err)
	}

	a, err := openApp(cmd)
	if err != nil {
		return fmt.Errorf("wgtunnel rename: %w", err)
	}
	defer a.Close()

	ctx := cmd.Context()
	cfg, err := a.manager.Configuration(ctx, args[0])
	if err != nil {
		return fmt.Errorf("wgtunnel rename: %w", err)
	}
	renamed := cfg.Copy()
	renamed.Name = args[1]
	if _, err := a.manager.Update(ctx, args[0], renamed); err != nil {
		return fmt.Errorf("wgtunnel rename: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "renamed %s to %s\n", args[0], args[1])
	return nil
}

func runPrune(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return fmt.Errorf("wgtunnel prune: %w", err)
	}
	defer a.Close()

	n, err := a.store.PruneSecrets(cmd.Context())
	if err != nil {
		return fmt.Errorf("wgtunnel prune: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "pruned %d orphaned keys\n", n)
	return nil
}

var setCmd = &cobra.Command{
	Use:   "set <name> <file>",
	Short: "Replace a stored tunnel's configuration",
	Long: "Replace the configuration of a stored tunnel with the contents of a\n" +
		"wg-quick file. A running `wgtunnel up` picks the change up on its next\n" +
		"reconciliation cycle or on SIGHUP.",
	Args: cobra.ExactArgs(2),
	RunE: runSet,
}

func runSet(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("wgtunnel set: %w", err)
	}

	a, err := openApp(cmd)
	if err != nil {
		return fmt.Errorf("wgtunnel set: %w", err)
	}
	defer a.Close()

	cfg, err := wgconf.NewParser(a.logger).Parse(string(data), args[0])
	if err != nil {
		return fmt.Errorf("wgtunnel set: %w", err)
	}
	if _, err := a.manager.Update(cmd.Context(), args[0], cfg); err != nil {
		return fmt.Errorf("wgtunnel set: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "updated %s\n", args[0])
	return nil
}
