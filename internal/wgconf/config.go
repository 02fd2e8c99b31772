package wgconf

import (
	"fmt"
	"net/netip"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// MaxNameLength is the longest permitted tunnel name.
const MaxNameLength = 15

var namePattern = regexp.MustCompile(`^[a-zA-Z0-9_=+.-]{1,15}$`)

// TunnelConfiguration is the complete configuration of one tunnel: a single
// interface and an ordered list of peers. Treat values as immutable; edits
// should produce a new configuration via Copy.
type TunnelConfiguration struct {
	Name      string
	Interface InterfaceConfiguration
	Peers     []PeerConfiguration
}

// InterfaceConfiguration is the [Interface] section.
type InterfaceConfiguration struct {
	PrivateKey Key
	ListenPort *uint16
	MTU        *uint16
	Addresses  []IPAddressRange
	DNS        []netip.Addr
	DNSSearch  []string
}

// PeerConfiguration is a [Peer] section.
type PeerConfiguration struct {
	PublicKey           Key
	PresharedKey        *Key
	AllowedIPs          []IPAddressRange
	Endpoint            *Endpoint
	PersistentKeepalive *uint16

	// Stats is observed runtime state filled in from a backend dump.
	Stats *PeerStats
}

// PeerStats holds transfer counters and the latest handshake of a peer.
type PeerStats struct {
	RxBytes       uint64
	TxBytes       uint64
	LastHandshake time.Time
}

// NewTunnelConfiguration assembles a configuration and checks that peer
// public keys are unique.
func NewTunnelConfiguration(name string, iface InterfaceConfiguration, peers []PeerConfiguration) (*TunnelConfiguration, error) {
	c := &TunnelConfiguration{Name: name, Interface: iface, Peers: peers}
	if i, ok := duplicatePeer(peers); ok {
		return nil, &ParseError{Kind: ErrDuplicatePeerPublicKey, Field: "PublicKey", Err: fmt.Errorf("peer %d repeats key %s", i+1, peers[i].PublicKey)}
	}
	return c, nil
}

// Validate checks the name and the configuration invariants.
func (c *TunnelConfiguration) Validate() error {
	if c.Name != "" {
		if err := ValidateName(c.Name); err != nil {
			return err
		}
	}
	if isZeroKey(c.Interface.PrivateKey) {
		return &ParseError{Kind: ErrInvalidInterface, Field: "PrivateKey", Err: fmt.Errorf("private key is empty")}
	}
	for i, p := range c.Peers {
		if isZeroKey(p.PublicKey) {
			return &ParseError{Kind: ErrInvalidPeer, Field: "PublicKey", Err: fmt.Errorf("peer %d has an empty public key", i+1)}
		}
	}
	if i, ok := duplicatePeer(c.Peers); ok {
		return &ParseError{Kind: ErrDuplicatePeerPublicKey, Field: "PublicKey", Err: fmt.Errorf("peer %d repeats key %s", i+1, c.Peers[i].PublicKey)}
	}
	return nil
}

// ValidateName checks a tunnel name: 1-15 characters of [a-zA-Z0-9_=+.-].
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func duplicatePeer(peers []PeerConfiguration) (int, bool) {
	seen := make(map[Key]struct{}, len(peers))
	for i, p := range peers {
		if _, ok := seen[p.PublicKey]; ok {
			return i, true
		}
		seen[p.PublicKey] = struct{}{}
	}
	return 0, false
}

// PublicKey derives the interface public key.
func (c *TunnelConfiguration) PublicKey() (Key, error) {
	return PublicKey(c.Interface.PrivateKey)
}

// Peer returns the peer with the given public key.
func (c *TunnelConfiguration) Peer(k Key) (PeerConfiguration, bool) {
	for _, p := range c.Peers {
		if p.PublicKey == k {
			return p, true
		}
	}
	return PeerConfiguration{}, false
}

// Copy returns a deep copy of c. The result aliases no memory with c.
func (c *TunnelConfiguration) Copy() *TunnelConfiguration {
	res := *c
	res.Interface = c.Interface.Copy()
	if c.Peers != nil {
		res.Peers = make([]PeerConfiguration, len(c.Peers))
		for i, p := range c.Peers {
			res.Peers[i] = p.Copy()
		}
	}
	return &res
}

// Copy returns a deep copy of the interface.
func (i InterfaceConfiguration) Copy() InterfaceConfiguration {
	res := i
	res.ListenPort = copyUint16(i.ListenPort)
	res.MTU = copyUint16(i.MTU)
	res.Addresses = slices.Clone(i.Addresses)
	res.DNS = slices.Clone(i.DNS)
	res.DNSSearch = slices.Clone(i.DNSSearch)
	return res
}

// Copy returns a deep copy of the peer.
func (p PeerConfiguration) Copy() PeerConfiguration {
	res := p
	if p.PresharedKey != nil {
		k := *p.PresharedKey
		res.PresharedKey = &k
	}
	res.AllowedIPs = slices.Clone(p.AllowedIPs)
	if p.Endpoint != nil {
		e := *p.Endpoint
		res.Endpoint = &e
	}
	res.PersistentKeepalive = copyUint16(p.PersistentKeepalive)
	if p.Stats != nil {
		s := *p.Stats
		res.Stats = &s
	}
	return res
}

// Equal reports whether c and o describe the same configuration. Runtime
// stats are not compared.
func (c *TunnelConfiguration) Equal(o *TunnelConfiguration) bool {
	if c == nil || o == nil {
		return c == o
	}
	if c.Name != o.Name || !c.Interface.Equal(o.Interface) || len(c.Peers) != len(o.Peers) {
		return false
	}
	for i := range c.Peers {
		if !c.Peers[i].Equal(o.Peers[i]) {
			return false
		}
	}
	return true
}

// Equal compares two interfaces. Address, DNS and search domain order is
// significant.
func (i InterfaceConfiguration) Equal(o InterfaceConfiguration) bool {
	return i.PrivateKey == o.PrivateKey &&
		equalUint16(i.ListenPort, o.ListenPort) &&
		equalUint16(i.MTU, o.MTU) &&
		slices.Equal(i.Addresses, o.Addresses) &&
		slices.Equal(i.DNS, o.DNS) &&
		slices.Equal(i.DNSSearch, o.DNSSearch)
}

// Equal compares two peers. AllowedIPs are compared as a set.
func (p PeerConfiguration) Equal(o PeerConfiguration) bool {
	if p.PublicKey != o.PublicKey || !equalUint16(p.PersistentKeepalive, o.PersistentKeepalive) {
		return false
	}
	if (p.PresharedKey == nil) != (o.PresharedKey == nil) || (p.PresharedKey != nil && *p.PresharedKey != *o.PresharedKey) {
		return false
	}
	if (p.Endpoint == nil) != (o.Endpoint == nil) || (p.Endpoint != nil && *p.Endpoint != *o.Endpoint) {
		return false
	}
	return sameRangeSet(p.AllowedIPs, o.AllowedIPs)
}

func sameRangeSet(a, b []IPAddressRange) bool {
	set := make(map[IPAddressRange]struct{}, len(a))
	for _, r := range a {
		set[r] = struct{}{}
	}
	other := make(map[IPAddressRange]struct{}, len(b))
	for _, r := range b {
		if _, ok := set[r]; !ok {
			return false
		}
		other[r] = struct{}{}
	}
	return len(set) == len(other)
}

func equalUint16(a, b *uint16) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func copyUint16(v *uint16) *uint16 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Uint16 returns a pointer to v, for filling optional fields.
func Uint16(v uint16) *uint16 {
	return &v
}

func isSearchDomain(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '.', r == '_':
		default:
			return false
		}
	}
	if strings.HasPrefix(s, ".") || strings.Contains(s, "..") {
		return false
	}
	_, ok := dns.IsDomainName(s)
	return ok
}
