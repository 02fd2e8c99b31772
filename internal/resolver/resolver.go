package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"

	"github.com/miekg/dns"
	"golang.org/x/sync/errgroup"

	"github.com/plexsphere/wgtunnel/internal/wgconf"
)

// ErrUnresolved is returned when a host has no usable address.
var ErrUnresolved = errors.New("resolver: endpoint could not be resolved")

// EndpointError reports the peer endpoints that failed to resolve.
type EndpointError struct {
	Endpoints []wgconf.Endpoint
	Err       error
}

func (e *EndpointError) Error() string {
	return fmt.Sprintf("resolver: %d endpoint(s) unresolved: %v", len(e.Endpoints), e.Err)
}

func (e *EndpointError) Unwrap() error { return e.Err }

// Resolver resolves hostname endpoints, preferring IPv4.
type Resolver struct {
	exchanger   Exchanger
	servers     []string
	concurrency int
	logger      *slog.Logger
}

// New creates a Resolver. cfg must already have defaults applied.
func New(cfg Config, exchanger Exchanger, logger *slog.Logger) (*Resolver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	servers, err := cfg.servers()
	if err != nil {
		return nil, fmt.Errorf("resolver: servers: %w", err)
	}
	if exchanger == nil {
		exchanger = &DNSExchanger{Timeout: cfg.Timeout}
	}
	return &Resolver{
		exchanger:   exchanger,
		servers:     servers,
		concurrency: cfg.Concurrency,
		logger:      logger,
	}, nil
}

// LookupAddr returns one address for host. IP literals are returned as-is.
// A records are preferred; AAAA is only queried when no A record exists.
func (r *Resolver) LookupAddr(ctx context.Context, host string) (netip.Addr, error) {
	if a, err := netip.ParseAddr(host); err == nil {
		return a.Unmap(), nil
	}
	if !isHostname(host) {
		return netip.Addr{}, fmt.Errorf("%w: invalid host %q", ErrUnresolved, host)
	}

	var lastErr error
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		for _, server := range r.servers {
			addrs, err := r.exchanger.Lookup(ctx, server, host, qtype)
			if err != nil {
				if ctx.Err() != nil {
					return netip.Addr{}, fmt.Errorf("resolver: lookup %s: %w", host, ctx.Err())
				}
				r.logger.Warn("DNS query failed",
					"component", "resolver",
					"server", server,
					"host", host,
					"type", dns.TypeToString[qtype],
					"error", err,
				)
				lastErr = err
				continue
			}
			if len(addrs) > 0 {
				r.logger.Debug("host resolved",
					"component", "resolver",
					"host", host,
					"addr", addrs[0].String(),
				)
				return addrs[0], nil
			}
			// Empty answer: try the next record type.
			break
		}
	}
	if lastErr != nil {
		return netip.Addr{}, fmt.Errorf("%w: %s: %w", ErrUnresolved, host, lastErr)
	}
	return netip.Addr{}, fmt.Errorf("%w: %s: no A or AAAA records", ErrUnresolved, host)
}

// ResolveEndpoint returns ep with its host replaced by an IP address.
func (r *Resolver) ResolveEndpoint(ctx context.Context, ep wgconf.Endpoint) (wgconf.Endpoint, error) {
	if ep.IsResolved() {
		return ep, nil
	}
	addr, err := r.LookupAddr(ctx, ep.Host)
	if err != nil {
		return wgconf.Endpoint{}, err
	}
	return wgconf.Endpoint{Host: addr.String(), Port: ep.Port}, nil
}

// ResolveConfiguration returns a copy of cfg in which every peer endpoint
// is an IP address. Endpoints are resolved concurrently; all failures are
// reported together in an *EndpointError.
func (r *Resolver) ResolveConfiguration(ctx context.Context, cfg *wgconf.TunnelConfiguration) (*wgconf.TunnelConfiguration, error) {
	out := cfg.Copy()
	errs := make([]error, len(out.Peers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i := range out.Peers {
		ep := out.Peers[i].Endpoint
		if ep == nil || ep.IsResolved() {
			continue
		}
		g.Go(func() error {
			resolved, err := r.ResolveEndpoint(gctx, *ep)
			if err != nil {
				errs[i] = err
				return nil
			}
			out.Peers[i].Endpoint = &resolved
			return nil
		})
	}
	_ = g.Wait()

	var failed []wgconf.Endpoint
	var joined []error
	for i, err := range errs {
		if err != nil {
			failed = append(failed, *cfg.Peers[i].Endpoint)
			joined = append(joined, err)
		}
	}
	if len(failed) > 0 {
		return nil, &EndpointError{Endpoints: failed, Err: errors.Join(joined...)}
	}
	return out, nil
}

func isHostname(host string) bool {
	_, ok := dns.IsDomainName(host)
	return ok && host != ""
}
