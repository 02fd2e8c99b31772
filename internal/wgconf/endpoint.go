package wgconf

import (
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
)

// Endpoint is a peer's remote address: a hostname or IP literal and a port.
type Endpoint struct {
	Host string
	Port uint16
}

// ParseEndpoint parses "host:port", "ipv4:port" or "[ipv6]:port".
// IPv6 literals must be bracketed.
func ParseEndpoint(s string) (Endpoint, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Endpoint{}, fmt.Errorf("empty endpoint")
	}

	var host, port string
	if strings.HasPrefix(s, "[") {
		end := strings.IndexByte(s, ']')
		if end < 0 || end+1 >= len(s) || s[end+1] != ':' {
			return Endpoint{}, fmt.Errorf("endpoint %q: malformed bracketed host", s)
		}
		host, port = s[1:end], s[end+2:]
		addr, err := netip.ParseAddr(host)
		if err != nil || !addr.Is6() {
			return Endpoint{}, fmt.Errorf("endpoint %q: bracketed host is not an IPv6 address", s)
		}
	} else {
		i := strings.LastIndexByte(s, ':')
		if i < 0 {
			return Endpoint{}, fmt.Errorf("endpoint %q has no port", s)
		}
		host, port = s[:i], s[i+1:]
		if strings.ContainsAny(host, ":[]") {
			return Endpoint{}, fmt.Errorf("endpoint %q: IPv6 hosts must be bracketed", s)
		}
	}

	if host == "" || strings.ContainsAny(host, " \t/") {
		return Endpoint{}, fmt.Errorf("endpoint %q: invalid host", s)
	}
	p, err := strconv.ParseUint(port, 10, 16)
	if err != nil {
		return Endpoint{}, fmt.Errorf("endpoint %q: invalid port", s)
	}
	return Endpoint{Host: host, Port: uint16(p)}, nil
}

// Addr returns the host as an IP address when it is a literal.
func (e Endpoint) Addr() (netip.Addr, bool) {
	addr, err := netip.ParseAddr(e.Host)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr, true
}

// IsResolved reports whether the host is an IP literal.
func (e Endpoint) IsResolved() bool {
	_, ok := e.Addr()
	return ok
}

// String renders the endpoint, bracketing IPv6 hosts.
func (e Endpoint) String() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(int(e.Port)))
}
