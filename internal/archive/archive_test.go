package archive

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"

	"github.com/plexsphere/wgtunnel/internal/wgconf"
)

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nopWriter{}, nil))
}

const confA = "[Interface]\n" +
	"PrivateKey = YWFhYWFhYWFhYWFhYWFhYWFhYWFhYWFhYWFhYWFhYWE=\n" +
	"Address = 10.0.0.2/32\n" +
	"\n[Peer]\n" +
	"PublicKey = YmJiYmJiYmJiYmJiYmJiYmJiYmJiYmJiYmJiYmJiYmI=\n" +
	"AllowedIPs = 0.0.0.0/0\n"

func parse(t *testing.T, text, name string) *wgconf.TunnelConfiguration {
	t.Helper()
	cfg, err := wgconf.Parse(text, name)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return cfg
}

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return buf.Bytes()
}

func TestExportReadZip_RoundTrip(t *testing.T) {
	cfgs := []*wgconf.TunnelConfiguration{parse(t, confA, "zeta"), parse(t, confA, "alpha")}

	var buf bytes.Buffer
	if err := Export(&buf, cfgs); err != nil {
		t.Fatalf("Export() error: %v", err)
	}

	entries, err := ReadZip(bytes.NewReader(buf.Bytes()), int64(buf.Len()), "out.zip")
	if err != nil {
		t.Fatalf("ReadZip() error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Name != "alpha" || entries[1].Name != "zeta" {
		t.Errorf("entry order = %s, %s; want alpha, zeta", entries[0].Name, entries[1].Name)
	}
	if string(entries[0].Text) != cfgs[1].WgQuickConfig() {
		t.Errorf("entry text =\n%s", entries[0].Text)
	}
	if entries[0].Source != "out.zip:alpha.conf" {
		t.Errorf("Source = %q", entries[0].Source)
	}
}

func TestExport_Errors(t *testing.T) {
	var buf bytes.Buffer
	if err := Export(&buf, []*wgconf.TunnelConfiguration{parse(t, confA, "")}); err == nil {
		t.Error("Export() accepted an unnamed tunnel")
	}
	dup := []*wgconf.TunnelConfiguration{parse(t, confA, "a"), parse(t, confA, "a")}
	if err := Export(&buf, dup); err == nil {
		t.Error("Export() accepted duplicate names")
	}
}

func TestExportFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "backup.zip")
	if err := ExportFile(p, []*wgconf.TunnelConfiguration{parse(t, confA, "office")}); err != nil {
		t.Fatalf("ExportFile() error: %v", err)
	}
	st, err := os.Stat(p)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if st.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600", st.Mode().Perm())
	}
	entries, err := ReadFile(p)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "office" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestReadZip_SkipsNoise(t *testing.T) {
	data := buildZip(t, map[string]string{
		"dir/home.CONF":            confA,
		"__MACOSX/dir/._home.conf": "junk",
		".hidden.conf":             "junk",
		"README.txt":               "hello",
	})
	entries, err := ReadZip(bytes.NewReader(data), int64(len(data)), "in.zip")
	if err != nil {
		t.Fatalf("ReadZip() error: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "home" {
		t.Fatalf("entries = %+v, want single home", entries)
	}
}

func TestReadZip_NoConfigs(t *testing.T) {
	data := buildZip(t, map[string]string{"README.txt": "hello"})
	if _, err := ReadZip(bytes.NewReader(data), int64(len(data)), "in.zip"); !errors.Is(err, ErrNoConfigs) {
		t.Errorf("ReadZip() error = %v, want ErrNoConfigs", err)
	}
}

func TestReadZip_Garbage(t *testing.T) {
	data := []byte("not a zip")
	if _, err := ReadZip(bytes.NewReader(data), int64(len(data)), "x.zip"); err == nil {
		t.Error("ReadZip(garbage) = nil error")
	}
}

func TestReadZip_EntryTooLarge(t *testing.T) {
	data := buildZip(t, map[string]string{"big.conf": strings.Repeat("#", MaxEntrySize+1)})
	if _, err := ReadZip(bytes.NewReader(data), int64(len(data)), "x.zip"); !errors.Is(err, ErrEntryTooLarge) {
		t.Errorf("ReadZip() error = %v, want ErrEntryTooLarge", err)
	}
}

func TestReadFile_Unsupported(t *testing.T) {
	p := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(p, []byte("x"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := ReadFile(p); !errors.Is(err, ErrUnsupportedFile) {
		t.Errorf("ReadFile() error = %v, want ErrUnsupportedFile", err)
	}
}
