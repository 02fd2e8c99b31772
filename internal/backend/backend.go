// Package backend drives tunnel backends. A Backend accepts the settings
// string rendered by wgconf and reports its runtime state in the same
// key=value protocol.
package backend

import (
	"context"
	"net/netip"

	"github.com/plexsphere/wgtunnel/internal/wgconf"
)

// Backend is a running tunnel implementation.
type Backend interface {
	// Start brings the tunnel up under interfaceName with settings applied.
	Start(ctx context.Context, interfaceName, settings string) error
	// Set applies settings to a running tunnel.
	Set(ctx context.Context, settings string) error
	// Get returns the runtime dump of a running tunnel.
	Get(ctx context.Context) (string, error)
	// Stop tears the tunnel down. Stopping a stopped backend returns nil.
	Stop() error
}

// Network is the interface-level state the settings string does not carry.
type Network struct {
	Addresses []netip.Prefix
	DNS       []netip.Addr
	MTU       int
}

// Factory creates a Backend for the given network settings.
type Factory func(n Network) (Backend, error)

// NetworkFor extracts the network settings of iface. A missing MTU falls
// back to defaultMTU.
func NetworkFor(iface wgconf.InterfaceConfiguration, defaultMTU int) Network {
	n := Network{MTU: defaultMTU}
	if iface.MTU != nil && *iface.MTU > 0 {
		n.MTU = int(*iface.MTU)
	}
	for _, a := range iface.Addresses {
		n.Addresses = append(n.Addresses, a.Prefix())
	}
	n.DNS = append(n.DNS, iface.DNS...)
	return n
}

// Equal reports whether two network settings are identical.
func (n Network) Equal(o Network) bool {
	if n.MTU != o.MTU || len(n.Addresses) != len(o.Addresses) || len(n.DNS) != len(o.DNS) {
		return false
	}
	for i := range n.Addresses {
		if n.Addresses[i] != o.Addresses[i] {
			return false
		}
	}
	for i := range n.DNS {
		if n.DNS[i] != o.DNS[i] {
			return false
		}
	}
	return true
}
