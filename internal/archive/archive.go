// Package archive reads and writes tunnel configurations as .conf files
// and zip archives of .conf files.
package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/plexsphere/wgtunnel/internal/fsutil"
	"github.com/plexsphere/wgtunnel/internal/wgconf"
)

// MaxEntrySize caps the uncompressed size of one configuration file.
const MaxEntrySize = 1 << 20

// ConfExt is the file extension of wg-quick configuration files.
const ConfExt = ".conf"

var (
	// ErrUnsupportedFile is returned for files that are neither .conf nor .zip.
	ErrUnsupportedFile = errors.New("archive: unsupported file type")
	// ErrNoConfigs is returned for a zip archive without .conf entries.
	ErrNoConfigs = errors.New("archive: no configuration files in archive")
	// ErrEntryTooLarge is returned for entries larger than MaxEntrySize.
	ErrEntryTooLarge = errors.New("archive: entry too large")
)

// Entry is one configuration file read from disk or from an archive.
type Entry struct {
	// Source identifies where the entry came from, for reporting.
	Source string
	// Name is the file name without directory or extension.
	Name string
	Text []byte
}

// Export writes cfgs to w as a zip archive with one <name>.conf entry per
// tunnel, sorted by name.
func Export(w io.Writer, cfgs []*wgconf.TunnelConfiguration) error {
	sorted := make([]*wgconf.TunnelConfiguration, len(cfgs))
	copy(sorted, cfgs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	seen := make(map[string]bool, len(sorted))
	zw := zip.NewWriter(w)
	now := time.Now()
	for _, cfg := range sorted {
		if cfg.Name == "" {
			return errors.New("archive: export: tunnel without a name")
		}
		if seen[cfg.Name] {
			return fmt.Errorf("archive: export: duplicate tunnel name %q", cfg.Name)
		}
		seen[cfg.Name] = true

		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     cfg.Name + ConfExt,
			Method:   zip.Deflate,
			Modified: now,
		})
		if err != nil {
			return fmt.Errorf("archive: export %s: %w", cfg.Name, err)
		}
		if _, err := io.WriteString(fw, cfg.WgQuickConfig()); err != nil {
			return fmt.Errorf("archive: export %s: %w", cfg.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("archive: export: %w", err)
	}
	return nil
}

// ExportFile writes the archive to path atomically with owner-only
// permissions.
func ExportFile(p string, cfgs []*wgconf.TunnelConfiguration) error {
	var buf bytes.Buffer
	if err := Export(&buf, cfgs); err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(filepath.Dir(p), filepath.Base(p), buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("archive: export: %w", err)
	}
	return nil
}

// ReadZip returns the .conf entries of a zip archive. Directories, hidden
// files and other extensions are skipped.
func ReadZip(r io.ReaderAt, size int64, source string) ([]Entry, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("archive: open zip %s: %w", source, err)
	}

	var entries []Entry
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		base := path.Base(f.Name)
		if strings.HasPrefix(base, ".") || strings.HasPrefix(f.Name, "__MACOSX/") {
			continue
		}
		if !strings.EqualFold(path.Ext(base), ConfExt) {
			continue
		}
		text, err := readEntry(f)
		if err != nil {
			return nil, fmt.Errorf("archive: read %s in %s: %w", f.Name, source, err)
		}
		entries = append(entries, Entry{
			Source: source + ":" + f.Name,
			Name:   strings.TrimSuffix(base, path.Ext(base)),
			Text:   text,
		})
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoConfigs, source)
	}
	return entries, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	if f.UncompressedSize64 > MaxEntrySize {
		return nil, ErrEntryTooLarge
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	text, err := io.ReadAll(io.LimitReader(rc, MaxEntrySize+1))
	if err != nil {
		return nil, err
	}
	if len(text) > MaxEntrySize {
		return nil, ErrEntryTooLarge
	}
	return text, nil
}

// ReadFile returns the entries of a .conf or .zip file.
func ReadFile(p string) ([]Entry, error) {
	switch strings.ToLower(filepath.Ext(p)) {
	case ConfExt:
		f, err := os.Open(p)
		if err != nil {
			return nil, fmt.Errorf("archive: %w", err)
		}
		defer f.Close()
		text, err := io.ReadAll(io.LimitReader(f, MaxEntrySize+1))
		if err != nil {
			return nil, fmt.Errorf("archive: read %s: %w", p, err)
		}
		if len(text) > MaxEntrySize {
			return nil, fmt.Errorf("%w: %s", ErrEntryTooLarge, p)
		}
		base := filepath.Base(p)
		return []Entry{{
			Source: p,
			Name:   strings.TrimSuffix(base, filepath.Ext(base)),
			Text:   text,
		}}, nil

	case ".zip":
		f, err := os.Open(p)
		if err != nil {
			return nil, fmt.Errorf("archive: %w", err)
		}
		defer f.Close()
		st, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("archive: %w", err)
		}
		return ReadZip(f, st.Size(), p)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, p)
}
