package archive

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/plexsphere/wgtunnel/internal/wgconf"
)

// maxNameLen matches the interface name limit enforced by wgconf.ValidateName.
const maxNameLen = 15

// fallbackName is used when nothing of a file name survives sanitizing.
const fallbackName = "tunnel"

// Result is the outcome of importing one configuration file. Exactly one
// of Config and Err is set.
type Result struct {
	Source string
	Config *wgconf.TunnelConfiguration
	Err    error
}

// Importer parses entries into named configurations.
type Importer struct {
	parser *wgconf.Parser
	logger *slog.Logger
}

// NewImporter creates an Importer.
func NewImporter(parser *wgconf.Parser, logger *slog.Logger) *Importer {
	return &Importer{parser: parser, logger: logger}
}

// Import parses entries in order. Each configuration is named after its
// file, made unique against taken and against earlier entries of the same
// batch. A failing entry is reported in its Result and does not stop the
// batch.
func (im *Importer) Import(entries []Entry, taken []string) []Result {
	used := usedNames(taken)
	results := make([]Result, 0, len(entries))
	for _, e := range entries {
		results = append(results, im.importEntry(e, used))
	}
	return results
}

// ImportFiles reads and imports each path in order. A file that cannot be
// read yields one failed Result and the remaining files are still
// processed.
func (im *Importer) ImportFiles(paths []string, taken []string) []Result {
	used := usedNames(taken)
	var results []Result
	for _, p := range paths {
		entries, err := ReadFile(p)
		if err != nil {
			im.logger.Warn("import failed",
				"component", "archive",
				"source", p,
				"error", err,
			)
			results = append(results, Result{Source: p, Err: err})
			continue
		}
		for _, e := range entries {
			results = append(results, im.importEntry(e, used))
		}
	}
	return results
}

func (im *Importer) importEntry(e Entry, used map[string]bool) Result {
	name := UniqueName(SanitizeName(e.Name), used)
	cfg, err := im.parser.Parse(string(e.Text), name)
	if err != nil {
		im.logger.Warn("import failed",
			"component", "archive",
			"source", e.Source,
			"error", err,
		)
		return Result{Source: e.Source, Err: fmt.Errorf("archive: import %s: %w", e.Source, err)}
	}
	used[name] = true
	return Result{Source: e.Source, Config: cfg}
}

func usedNames(taken []string) map[string]bool {
	used := make(map[string]bool, len(taken))
	for _, n := range taken {
		used[n] = true
	}
	return used
}

// SanitizeName maps a file name onto the tunnel name alphabet, dropping
// other characters and truncating to the interface name limit.
func SanitizeName(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case strings.ContainsRune("_=+.-", r):
			b.WriteRune(r)
		}
		if b.Len() == maxNameLen {
			break
		}
	}
	if b.Len() == 0 {
		return fallbackName
	}
	return b.String()
}

// UniqueName returns name, or name with a numeric suffix, such that the
// result is not in used.
func UniqueName(name string, used map[string]bool) string {
	if !used[name] {
		return name
	}
	for i := 2; ; i++ {
		suffix := fmt.Sprintf("-%d", i)
		base := name
		if len(base)+len(suffix) > maxNameLen {
			base = base[:maxNameLen-len(suffix)]
		}
		if candidate := base + suffix; !used[candidate] {
			return candidate
		}
	}
}
