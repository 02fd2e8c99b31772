package resolver

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/miekg/dns"
)

// Exchanger looks up the addresses of one record type for host at server.
type Exchanger interface {
	Lookup(ctx context.Context, server, host string, qtype uint16) ([]netip.Addr, error)
}

// DNSExchanger queries servers directly with the DNS wire protocol.
type DNSExchanger struct {
	Timeout time.Duration
}

// Lookup sends one recursive query. A and AAAA records in the answer
// section are returned; CNAMEs are followed by the upstream server.
func (e *DNSExchanger) Lookup(ctx context.Context, server, host string, qtype uint16) ([]netip.Addr, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("resolver: exchange: %w", err)
	}

	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(host), qtype)
	m.RecursionDesired = true

	c := &dns.Client{Timeout: e.Timeout}
	resp, _, err := c.ExchangeContext(ctx, m, server)
	if err != nil {
		return nil, fmt.Errorf("resolver: exchange %s: %w", server, err)
	}
	if resp.Truncated {
		c.Net = "tcp"
		resp, _, err = c.ExchangeContext(ctx, m, server)
		if err != nil {
			return nil, fmt.Errorf("resolver: exchange %s over tcp: %w", server, err)
		}
	}
	switch resp.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return nil, nil
	default:
		return nil, fmt.Errorf("resolver: exchange %s: %s", server, dns.RcodeToString[resp.Rcode])
	}

	var addrs []netip.Addr
	for _, rr := range resp.Answer {
		var ip []byte
		switch v := rr.(type) {
		case *dns.A:
			ip = v.A.To4()
		case *dns.AAAA:
			ip = v.AAAA.To16()
		default:
			continue
		}
		if a, ok := netip.AddrFromSlice(ip); ok {
			addrs = append(addrs, a)
		}
	}
	return addrs, nil
}
