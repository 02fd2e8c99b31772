// Package qrcode renders tunnel configurations as QR codes for scanning
// into mobile clients.
package qrcode

import (
	"bytes"
	"fmt"
	"image/color"
	"image/png"
	"io"
	"path/filepath"
	"strings"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"

	"github.com/plexsphere/wgtunnel/internal/fsutil"
	"github.com/plexsphere/wgtunnel/internal/wgconf"
)

// DefaultSize is the default PNG edge length in pixels.
const DefaultSize = 512

// quietZone is the blank border, in modules, around terminal output.
const quietZone = 2

// Encode returns the QR code of the canonical text of cfg.
func Encode(cfg *wgconf.TunnelConfiguration) (barcode.Barcode, error) {
	code, err := qr.Encode(cfg.WgQuickConfig(), qr.M, qr.Auto)
	if err != nil {
		return nil, fmt.Errorf("qrcode: encode: %w", err)
	}
	return code, nil
}

// WritePNG writes a size x size PNG of the QR code of cfg to w.
func WritePNG(w io.Writer, cfg *wgconf.TunnelConfiguration, size int) error {
	code, err := Encode(cfg)
	if err != nil {
		return err
	}
	if size <= 0 {
		size = DefaultSize
	}
	scaled, err := barcode.Scale(code, size, size)
	if err != nil {
		return fmt.Errorf("qrcode: scale: %w", err)
	}
	if err := png.Encode(w, scaled); err != nil {
		return fmt.Errorf("qrcode: png: %w", err)
	}
	return nil
}

// WritePNGFile writes the PNG to path with owner-only permissions. The
// image carries the private key.
func WritePNGFile(path string, cfg *wgconf.TunnelConfiguration, size int) error {
	var buf bytes.Buffer
	if err := WritePNG(&buf, cfg, size); err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(filepath.Dir(path), filepath.Base(path), buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("qrcode: write %s: %w", path, err)
	}
	return nil
}

// Terminal renders the QR code of cfg with Unicode half blocks, two
// modules per character row, dark modules drawn in the foreground colour.
func Terminal(cfg *wgconf.TunnelConfiguration) (string, error) {
	code, err := Encode(cfg)
	if err != nil {
		return "", err
	}
	return renderHalfBlocks(code), nil
}

func renderHalfBlocks(code barcode.Barcode) string {
	b := code.Bounds()
	width := b.Dx() + 2*quietZone
	height := b.Dy() + 2*quietZone

	dark := func(x, y int) bool {
		x -= quietZone
		y -= quietZone
		if x < 0 || y < 0 || x >= b.Dx() || y >= b.Dy() {
			return false
		}
		g := color.GrayModel.Convert(code.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
		return g.Y < 128
	}

	var sb strings.Builder
	for y := 0; y < height; y += 2 {
		for x := 0; x < width; x++ {
			top, bottom := dark(x, y), dark(x, y+1)
			switch {
			case top && bottom:
				sb.WriteString("█")
			case top:
				sb.WriteString("▀")
			case bottom:
				sb.WriteString("▄")
			default:
				sb.WriteByte(' ')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
