package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/plexsphere/wgtunnel/internal/nodeapi"
)

var (
	showUAPI    bool
	showRuntime bool
)

var showCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a stored tunnel",
	Long: "Print a stored tunnel in canonical wg-quick form.\n" +
		"With --uapi the backend settings string is printed instead.\n" +
		"With --runtime the tunnel is brought up, its runtime state is read\n" +
		"from the backend and printed, and the tunnel is taken down again.",
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	showCmd.Flags().BoolVar(&showUAPI, "uapi", false, "print the backend settings string")
	showCmd.Flags().BoolVar(&showRuntime, "runtime", false, "print the runtime state reported by the backend")
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return fmt.Errorf("wgtunnel show: %w", err)
	}
	defer a.Close()

	ctx := cmd.Context()
	name := args[0]
	cfg, err := a.manager.Configuration(ctx, name)
	if err != nil {
		return fmt.Errorf("wgtunnel show: %w", err)
	}

	w := cmd.OutOrStdout()
	switch {
	case showRuntime:
		if err := a.manager.Activate(ctx, name); err != nil {
			return fmt.Errorf("wgtunnel show: %w", err)
		}
		status, err := a.manager.Status(ctx, name)
		if err != nil {
			return fmt.Errorf("wgtunnel show: %w", err)
		}
		printStatus(w, nodeapi.NewTunnelStatus(status), time.Now())
	case showUAPI:
		fmt.Fprint(w, cfg.UAPIConfig())
	default:
		fmt.Fprint(w, cfg.WgQuickConfig())
	}
	return nil
}

// printStatus writes runtime state in the layout of `wg show`.
func printStatus(w io.Writer, status nodeapi.TunnelStatus, now time.Time) {
	fmt.Fprintf(w, "interface: %s\n", status.Name)
	if status.PublicKey != "" {
		fmt.Fprintf(w, "  public key: %s\n", status.PublicKey)
	}
	if status.ListenPort != 0 {
		fmt.Fprintf(w, "  listening port: %d\n", status.ListenPort)
	}

	for _, p := range status.Peers {
		fmt.Fprintf(w, "\npeer: %s\n", p.PublicKey)
		if p.Endpoint != "" {
			fmt.Fprintf(w, "  endpoint: %s\n", p.Endpoint)
		}
		if len(p.AllowedIPs) > 0 {
			fmt.Fprintf(w, "  allowed ips: %s\n", strings.Join(p.AllowedIPs, ", "))
		}
		if p.Stats == nil {
			continue
		}
		if p.Stats.LatestHandshake.IsZero() {
			fmt.Fprintln(w, "  latest handshake: never")
		} else {
			fmt.Fprintf(w, "  latest handshake: %s ago\n", now.Sub(p.Stats.LatestHandshake).Truncate(time.Second))
		}
		fmt.Fprintf(w, "  transfer: %d B received, %d B sent\n", p.Stats.RxBytes, p.Stats.TxBytes)
		if p.PersistentKeepalive != 0 {
			fmt.Fprintf(w, "  persistent keepalive: every %ds\n", p.PersistentKeepalive)
		}
	}
}
