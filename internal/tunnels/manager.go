// Package tunnels manages stored tunnels and their running backends.
package tunnels

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/plexsphere/wgtunnel/internal/archive"
	"github.com/plexsphere/wgtunnel/internal/backend"
	"github.com/plexsphere/wgtunnel/internal/metrics"
	"github.com/plexsphere/wgtunnel/internal/store"
	"github.com/plexsphere/wgtunnel/internal/wgconf"
)

// ErrNoConfiguration is returned when a tunnel's stored configuration could
// not be recovered.
var ErrNoConfiguration = errors.New("tunnels: tunnel has no usable configuration")

// Store persists tunnels.
type Store interface {
	Add(ctx context.Context, cfg *wgconf.TunnelConfiguration) (*store.Tunnel, error)
	Get(ctx context.Context, name string) (*store.Tunnel, error)
	List(ctx context.Context) ([]*store.Tunnel, error)
	Names(ctx context.Context) ([]string, error)
	Replace(ctx context.Context, name string, cfg *wgconf.TunnelConfiguration) (*store.Tunnel, error)
	Remove(ctx context.Context, name string) error
}

// Manager ties the tunnel store to per-tunnel backend controllers.
type Manager struct {
	store      Store
	factory    backend.Factory
	resolver   backend.EndpointResolver
	defaultMTU int
	logger     *slog.Logger

	mu          sync.Mutex
	controllers map[string]*backend.Controller
}

// NewManager creates a Manager. resolver may be nil.
func NewManager(s Store, factory backend.Factory, resolver backend.EndpointResolver, defaultMTU int, logger *slog.Logger) *Manager {
	return &Manager{
		store:       s,
		factory:     factory,
		resolver:    resolver,
		defaultMTU:  defaultMTU,
		logger:      logger,
		controllers: make(map[string]*backend.Controller),
	}
}

// Create stores a new tunnel.
func (m *Manager) Create(ctx context.Context, cfg *wgconf.TunnelConfiguration) (*store.Tunnel, error) {
	t, err := m.store.Add(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("tunnels: create: %w", err)
	}
	return t, nil
}

// Import stores every successfully parsed result. Results whose
// configuration cannot be stored get their Err set; the batch continues.
// Names are made unique against already stored tunnels by the caller's
// importer; a race with a concurrent add surfaces as a store error.
func (m *Manager) Import(ctx context.Context, results []archive.Result) []archive.Result {
	out := make([]archive.Result, len(results))
	copy(out, results)
	for i := range out {
		if out[i].Err != nil {
			continue
		}
		if _, err := m.store.Add(ctx, out[i].Config); err != nil {
			out[i].Err = fmt.Errorf("tunnels: import %s: %w", out[i].Source, err)
			out[i].Config = nil
			continue
		}
		m.logger.Info("tunnel imported",
			"component", "tunnels",
			"name", out[i].Config.Name,
			"source", out[i].Source,
		)
	}
	return out
}

// Names returns the names of all stored tunnels.
func (m *Manager) Names(ctx context.Context) ([]string, error) {
	return m.store.Names(ctx)
}

// List returns all stored tunnels.
func (m *Manager) List(ctx context.Context) ([]*store.Tunnel, error) {
	return m.store.List(ctx)
}

// Get returns the stored tunnel called name.
func (m *Manager) Get(ctx context.Context, name string) (*store.Tunnel, error) {
	return m.store.Get(ctx, name)
}

// Configuration returns the stored configuration of the tunnel called name.
func (m *Manager) Configuration(ctx context.Context, name string) (*wgconf.TunnelConfiguration, error) {
	t, err := m.store.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	if t.Config == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoConfiguration, name)
	}
	return t.Config, nil
}

// Update replaces the configuration of the tunnel called name. A running
// tunnel is reconfigured in place; a renamed running tunnel is restarted
// under its new name.
func (m *Manager) Update(ctx context.Context, name string, cfg *wgconf.TunnelConfiguration) (*store.Tunnel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.store.Replace(ctx, name, cfg)
	if err != nil {
		return nil, fmt.Errorf("tunnels: update: %w", err)
	}

	ctrl, ok := m.controllers[name]
	if !ok {
		return t, nil
	}
	if cfg.Name == name {
		if err := ctrl.Apply(ctx, cfg); err != nil {
			m.forgetStoppedLocked(name, ctrl)
			return t, fmt.Errorf("tunnels: update: %w", err)
		}
		return t, nil
	}

	if err := ctrl.Deactivate(); err != nil {
		return t, fmt.Errorf("tunnels: update: %w", err)
	}
	delete(m.controllers, name)
	if err := m.activateLocked(ctx, cfg); err != nil {
		return t, fmt.Errorf("tunnels: update: %w", err)
	}
	return t, nil
}

// Remove deactivates and deletes the tunnel called name.
func (m *Manager) Remove(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ctrl, ok := m.controllers[name]; ok {
		if err := ctrl.Deactivate(); err != nil {
			return fmt.Errorf("tunnels: remove: %w", err)
		}
		delete(m.controllers, name)
	}
	if err := m.store.Remove(ctx, name); err != nil {
		return fmt.Errorf("tunnels: remove: %w", err)
	}
	return nil
}

// Activate brings the tunnel called name up.
func (m *Manager) Activate(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.controllers[name]; ok {
		return fmt.Errorf("tunnels: activate %s: %w", name, backend.ErrActive)
	}
	cfg, err := m.Configuration(ctx, name)
	if err != nil {
		return fmt.Errorf("tunnels: activate: %w", err)
	}
	if err := m.activateLocked(ctx, cfg); err != nil {
		return fmt.Errorf("tunnels: activate: %w", err)
	}
	return nil
}

func (m *Manager) activateLocked(ctx context.Context, cfg *wgconf.TunnelConfiguration) error {
	ctrl := backend.NewController(cfg.Name, m.factory, m.resolver, m.defaultMTU, m.logger)
	if err := ctrl.Activate(ctx, cfg); err != nil {
		return err
	}
	m.controllers[cfg.Name] = ctrl
	return nil
}

// Deactivate stops the tunnel called name. Stopping an inactive tunnel is
// a no-op.
func (m *Manager) Deactivate(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctrl, ok := m.controllers[name]
	if !ok {
		return nil
	}
	if err := ctrl.Deactivate(); err != nil {
		return fmt.Errorf("tunnels: deactivate: %w", err)
	}
	delete(m.controllers, name)
	return nil
}

// Active returns the names of running tunnels, sorted.
func (m *Manager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.controllers))
	for n := range m.controllers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Running returns the applied configuration of every running tunnel.
func (m *Manager) Running() map[string]*wgconf.TunnelConfiguration {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]*wgconf.TunnelConfiguration, len(m.controllers))
	for name, ctrl := range m.controllers {
		out[name] = ctrl.Config()
	}
	return out
}

// Apply reconfigures the running tunnel called name without touching the
// store.
func (m *Manager) Apply(ctx context.Context, name string, cfg *wgconf.TunnelConfiguration) error {
	m.mu.Lock()
	ctrl, ok := m.controllers[name]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("tunnels: apply %s: %w", name, backend.ErrInactive)
	}
	if err := ctrl.Apply(ctx, cfg); err != nil {
		m.mu.Lock()
		m.forgetStoppedLocked(name, ctrl)
		m.mu.Unlock()
		return fmt.Errorf("tunnels: apply %s: %w", name, err)
	}
	return nil
}

// forgetStoppedLocked drops ctrl when a failed restart left it inactive, so
// the tunnel can be activated again.
func (m *Manager) forgetStoppedLocked(name string, ctrl *backend.Controller) {
	if ctrl.Active() || m.controllers[name] != ctrl {
		return
	}
	delete(m.controllers, name)
	m.logger.Warn("tunnel stopped after failed restart",
		"component", "tunnels",
		"name", name,
	)
}

// Status returns the runtime state of the running tunnel called name.
func (m *Manager) Status(ctx context.Context, name string) (*wgconf.TunnelConfiguration, error) {
	m.mu.Lock()
	ctrl, ok := m.controllers[name]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("tunnels: status %s: %w", name, backend.ErrInactive)
	}
	return ctrl.Status(ctx)
}

// ReadTunnelStats implements metrics.TunnelStatsReader over all running
// tunnels. A tunnel whose status cannot be read is skipped and reported in
// the returned error.
func (m *Manager) ReadTunnelStats(ctx context.Context) ([]metrics.TunnelStats, error) {
	m.mu.Lock()
	ctrls := make([]*backend.Controller, 0, len(m.controllers))
	for _, c := range m.controllers {
		ctrls = append(ctrls, c)
	}
	m.mu.Unlock()
	sort.Slice(ctrls, func(i, j int) bool { return ctrls[i].Name() < ctrls[j].Name() })

	var stats []metrics.TunnelStats
	var errs []error
	for _, c := range ctrls {
		st, err := c.Status(ctx)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		stats = append(stats, metrics.StatsFromStatus(st)...)
	}
	return stats, errors.Join(errs...)
}

// Export writes all tunnels with a usable configuration to a zip archive
// at path and returns how many were written.
func (m *Manager) Export(ctx context.Context, path string) (int, error) {
	list, err := m.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("tunnels: export: %w", err)
	}
	cfgs := make([]*wgconf.TunnelConfiguration, 0, len(list))
	for _, t := range list {
		if t.Config == nil {
			m.logger.Warn("skipping tunnel without configuration",
				"component", "tunnels",
				"name", t.Name,
			)
			continue
		}
		cfgs = append(cfgs, t.Config)
	}
	if err := archive.ExportFile(path, cfgs); err != nil {
		return 0, fmt.Errorf("tunnels: export: %w", err)
	}
	return len(cfgs), nil
}

// Close deactivates every running tunnel.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for name, ctrl := range m.controllers {
		if err := ctrl.Deactivate(); err != nil {
			errs = append(errs, err)
			continue
		}
		delete(m.controllers, name)
	}
	return errors.Join(errs...)
}
