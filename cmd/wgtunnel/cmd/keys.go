package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/plexsphere/wgtunnel/internal/wgconf"
)

var genkeyCmd = &cobra.Command{
	Use:   "genkey",
	Short: "Generate a private key",
	Long:  "Generate a new WireGuard private key and print it in base64.",
	Args:  cobra.NoArgs,
	RunE:  runGenkey,
}

var pubkeyCmd = &cobra.Command{
	Use:   "pubkey",
	Short: "Derive a public key",
	Long:  "Read a base64 private key from stdin and print the matching public key.",
	Args:  cobra.NoArgs,
	RunE:  runPubkey,
}

func init() {
	rootCmd.AddCommand(genkeyCmd)
	rootCmd.AddCommand(pubkeyCmd)
}

func runGenkey(cmd *cobra.Command, _ []string) error {
	k, err := wgconf.GeneratePrivateKey()
	if err != nil {
		return fmt.Errorf("wgtunnel genkey: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), k.String())
	return nil
}

func runPubkey(cmd *cobra.Command, _ []string) error {
	in, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), 1024))
	if err != nil {
		return fmt.Errorf("wgtunnel pubkey: read stdin: %w", err)
	}
	priv, err := wgconf.ParseKey(strings.TrimSpace(string(in)))
	if err != nil {
		return fmt.Errorf("wgtunnel pubkey: %w", err)
	}
	pub, err := wgconf.PublicKey(priv)
	if err != nil {
		return fmt.Errorf("wgtunnel pubkey: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), pub.String())
	return nil
}
