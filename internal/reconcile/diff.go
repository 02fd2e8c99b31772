package reconcile

import (
	"sort"

	"github.com/plexsphere/wgtunnel/internal/wgconf"
)

// DriftKind classifies how a running tunnel differs from its stored state.
type DriftKind int

const (
	// DriftChanged means the stored configuration was edited.
	DriftChanged DriftKind = iota
	// DriftRemoved means the tunnel is no longer stored under its name.
	DriftRemoved
)

func (k DriftKind) String() string {
	switch k {
	case DriftChanged:
		return "changed"
	case DriftRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Drift is one running tunnel whose stored state differs.
type Drift struct {
	Name string
	Kind DriftKind
	// Desired is the stored configuration for DriftChanged, nil otherwise.
	Desired *wgconf.TunnelConfiguration
}

// ComputeDiff compares running configurations against the stored ones,
// keyed by tunnel name. A name missing from desired has been removed. A
// name present in desired with a nil configuration could not be loaded and
// is left alone. The result is sorted by name.
func ComputeDiff(desired, running map[string]*wgconf.TunnelConfiguration) []Drift {
	var drifts []Drift
	for name, cur := range running {
		want, ok := desired[name]
		switch {
		case !ok:
			drifts = append(drifts, Drift{Name: name, Kind: DriftRemoved})
		case want == nil:
		case !want.Equal(cur):
			drifts = append(drifts, Drift{Name: name, Kind: DriftChanged, Desired: want})
		}
	}
	sort.Slice(drifts, func(i, j int) bool { return drifts[i].Name < drifts[j].Name })
	return drifts
}
