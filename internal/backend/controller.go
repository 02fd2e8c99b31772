package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/plexsphere/wgtunnel/internal/wgconf"
)

var (
	// ErrActive is returned by Activate on a tunnel that is already up.
	ErrActive = errors.New("backend: tunnel already active")
	// ErrInactive is returned when an operation needs an active tunnel.
	ErrInactive = errors.New("backend: tunnel not active")
)

// EndpointResolver rewrites hostname endpoints to IP addresses.
type EndpointResolver interface {
	ResolveConfiguration(ctx context.Context, cfg *wgconf.TunnelConfiguration) (*wgconf.TunnelConfiguration, error)
}

// Controller owns the backend of one tunnel. Activate, Apply, Deactivate
// and Status are serialized.
type Controller struct {
	name       string
	factory    Factory
	resolver   EndpointResolver
	defaultMTU int
	logger     *slog.Logger

	mu      sync.Mutex
	backend Backend
	config  *wgconf.TunnelConfiguration
	network Network
}

// NewController creates a Controller for the interface called name.
// resolver may be nil when configurations only carry IP endpoints.
func NewController(name string, factory Factory, resolver EndpointResolver, defaultMTU int, logger *slog.Logger) *Controller {
	return &Controller{
		name:       name,
		factory:    factory,
		resolver:   resolver,
		defaultMTU: defaultMTU,
		logger:     logger,
	}
}

// Name returns the interface name.
func (c *Controller) Name() string { return c.name }

// Active reports whether the tunnel is up.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backend != nil
}

// Config returns a copy of the configuration the tunnel was last started
// or updated with, or nil when inactive.
func (c *Controller) Config() *wgconf.TunnelConfiguration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.config == nil {
		return nil
	}
	return c.config.Copy()
}

// Activate brings the tunnel up with cfg.
func (c *Controller) Activate(ctx context.Context, cfg *wgconf.TunnelConfiguration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.backend != nil {
		return ErrActive
	}
	if err := c.start(ctx, cfg); err != nil {
		return fmt.Errorf("backend: activate %s: %w", c.name, err)
	}
	return nil
}

// Apply updates a running tunnel to cfg. Peers are replaced wholesale; a
// change of addresses, DNS or MTU restarts the backend.
func (c *Controller) Apply(ctx context.Context, cfg *wgconf.TunnelConfiguration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.backend == nil {
		return ErrInactive
	}

	network := NetworkFor(cfg.Interface, c.defaultMTU)
	if !network.Equal(c.network) {
		c.logger.Info("network settings changed, restarting tunnel",
			"component", "backend",
			"interface", c.name,
		)
		if err := c.stop(); err != nil {
			return fmt.Errorf("backend: apply %s: %w", c.name, err)
		}
		if err := c.start(ctx, cfg); err != nil {
			return fmt.Errorf("backend: apply %s: %w", c.name, err)
		}
		return nil
	}

	settings, err := c.settings(ctx, cfg)
	if err != nil {
		return fmt.Errorf("backend: apply %s: %w", c.name, err)
	}
	if err := c.backend.Set(ctx, settings); err != nil {
		return fmt.Errorf("backend: apply %s: %w", c.name, err)
	}
	c.config = cfg.Copy()

	c.logger.Info("tunnel updated",
		"component", "backend",
		"interface", c.name,
		"peers", len(cfg.Peers),
	)
	return nil
}

// Deactivate stops the tunnel. Deactivating an inactive tunnel is a no-op.
func (c *Controller) Deactivate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.backend == nil {
		return nil
	}
	if err := c.stop(); err != nil {
		return fmt.Errorf("backend: deactivate %s: %w", c.name, err)
	}
	return nil
}

// Status returns the running configuration with per-peer statistics.
func (c *Controller) Status(ctx context.Context) (*wgconf.TunnelConfiguration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.backend == nil {
		return nil, ErrInactive
	}
	dump, err := c.backend.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("backend: status %s: %w", c.name, err)
	}
	status, err := wgconf.ParseUAPI(dump, c.config)
	if err != nil {
		return nil, fmt.Errorf("backend: status %s: %w", c.name, err)
	}
	return status, nil
}

func (c *Controller) start(ctx context.Context, cfg *wgconf.TunnelConfiguration) error {
	settings, err := c.settings(ctx, cfg)
	if err != nil {
		return err
	}
	network := NetworkFor(cfg.Interface, c.defaultMTU)
	b, err := c.factory(network)
	if err != nil {
		return err
	}
	if err := b.Start(ctx, c.name, settings); err != nil {
		return err
	}

	c.backend = b
	c.config = cfg.Copy()
	c.network = network

	c.logger.Info("tunnel activated",
		"component", "backend",
		"interface", c.name,
		"peers", len(cfg.Peers),
	)
	return nil
}

func (c *Controller) stop() error {
	if err := c.backend.Stop(); err != nil {
		return err
	}
	c.backend = nil
	c.config = nil
	c.network = Network{}

	c.logger.Info("tunnel deactivated",
		"component", "backend",
		"interface", c.name,
	)
	return nil
}

// settings resolves endpoints and renders the backend settings string.
func (c *Controller) settings(ctx context.Context, cfg *wgconf.TunnelConfiguration) (string, error) {
	if c.resolver != nil {
		resolved, err := c.resolver.ResolveConfiguration(ctx, cfg)
		if err != nil {
			return "", err
		}
		cfg = resolved
	}
	return cfg.UAPIConfig(), nil
}
