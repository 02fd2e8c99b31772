package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plexsphere/wgtunnel/internal/qrcode"
)

var (
	qrPNG  string
	qrSize int
)

var qrCmd = &cobra.Command{
	Use:   "qr <name>",
	Short: "Render a tunnel as a QR code",
	Long: "Render a stored tunnel's wg-quick text as a QR code on the terminal,\n" +
		"or as a PNG image with --png.",
	Args: cobra.ExactArgs(1),
	RunE: runQR,
}

func init() {
	qrCmd.Flags().StringVar(&qrPNG, "png", "", "write a PNG image to this path")
	qrCmd.Flags().IntVar(&qrSize, "size", qrcode.DefaultSize, "PNG edge length in pixels")
	rootCmd.AddCommand(qrCmd)
}

func runQR(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return fmt.Errorf("wgtunnel qr: %w", err)
	}
	defer a.Close()

	cfg, err := a.manager.Configuration(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("wgtunnel qr: %w", err)
	}

	if qrPNG != "" {
		if err := qrcode.WritePNGFile(qrPNG, cfg, qrSize); err != nil {
			return fmt.Errorf("wgtunnel qr: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", qrPNG)
		return nil
	}

	out, err := qrcode.Terminal(cfg)
	if err != nil {
		return fmt.Errorf("wgtunnel qr: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}
