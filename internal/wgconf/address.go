package wgconf

import (
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
)

// Family is the address family of an IPAddressRange.
type Family uint8

const (
	V4 Family = iota + 1
	V6
)

// MaxPrefix returns the widest prefix length for the family, or 0 for a
// value that is neither V4 nor V6.
func (f Family) MaxPrefix() uint8 {
	switch f {
	case V4:
		return 32
	case V6:
		return 128
	}
	return 0
}

// String returns "v4" or "v6".
func (f Family) String() string {
	switch f {
	case V4:
		return "v4"
	case V6:
		return "v6"
	}
	return "family(" + strconv.Itoa(int(f)) + ")"
}

func familyOf(addr netip.Addr) Family {
	if addr.Is4() {
		return V4
	}
	return V6
}

// IPAddressRange is an IP address together with a prefix length. The zero
// value is not a valid range; use ParseIPAddressRange or NewIPAddressRange.
type IPAddressRange struct {
	addr netip.Addr
	bits uint8
}

// NewIPAddressRange builds a range from addr and bits. The prefix length is
// clamped to the family maximum.
func NewIPAddressRange(addr netip.Addr, bits int) (IPAddressRange, error) {
	if !addr.IsValid() {
		return IPAddressRange{}, fmt.Errorf("invalid address")
	}
	if bits < 0 {
		return IPAddressRange{}, fmt.Errorf("negative prefix length %d", bits)
	}
	max := familyOf(addr).MaxPrefix()
	if bits > int(max) {
		bits = int(max)
	}
	return IPAddressRange{addr: addr, bits: uint8(bits)}, nil
}

// ParseIPAddressRange parses "address/prefix". The prefix segment is
// mandatory; a prefix wider than the family allows is clamped.
func ParseIPAddressRange(s string) (IPAddressRange, error) {
	s = strings.TrimSpace(s)
	i := strings.LastIndexByte(s, '/')
	if i < 0 {
		return IPAddressRange{}, fmt.Errorf("address range %q has no prefix length", s)
	}
	addr, err := netip.ParseAddr(s[:i])
	if err != nil {
		return IPAddressRange{}, fmt.Errorf("address range %q: %w", s, err)
	}
	bits, err := strconv.ParseUint(s[i+1:], 10, 8)
	if err != nil {
		return IPAddressRange{}, fmt.Errorf("address range %q: invalid prefix length", s)
	}
	return NewIPAddressRange(addr, int(bits))
}

// MustParseIPAddressRange is like ParseIPAddressRange but panics on error.
func MustParseIPAddressRange(s string) IPAddressRange {
	r, err := ParseIPAddressRange(s)
	if err != nil {
		panic(err)
	}
	return r
}

// Addr returns the address part of the range.
func (r IPAddressRange) Addr() netip.Addr { return r.addr }

// Bits returns the prefix length.
func (r IPAddressRange) Bits() uint8 { return r.bits }

// Family reports whether the range is IPv4 or IPv6.
func (r IPAddressRange) Family() Family { return familyOf(r.addr) }

// IsValid reports whether r was built by a constructor.
func (r IPAddressRange) IsValid() bool { return r.addr.IsValid() }

// Prefix returns r as a netip.Prefix without masking host bits.
func (r IPAddressRange) Prefix() netip.Prefix {
	return netip.PrefixFrom(r.addr, int(r.bits))
}

// IPNet returns r as a masked net.IPNet.
func (r IPAddressRange) IPNet() net.IPNet {
	p := r.Prefix().Masked()
	return net.IPNet{
		IP:   net.IP(p.Addr().AsSlice()),
		Mask: net.CIDRMask(int(r.bits), int(r.Family().MaxPrefix())),
	}
}

// String renders "address/prefix".
func (r IPAddressRange) String() string {
	return r.addr.String() + "/" + strconv.Itoa(int(r.bits))
}

func parseAddressRangeList(value string) ([]IPAddressRange, error) {
	var out []IPAddressRange
	for _, item := range splitList(value) {
		r, err := ParseIPAddressRange(item)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func joinAddressRanges(ranges []IPAddressRange) string {
	parts := make([]string, len(ranges))
	for i, r := range ranges {
		parts[i] = r.String()
	}
	return strings.Join(parts, ", ")
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
