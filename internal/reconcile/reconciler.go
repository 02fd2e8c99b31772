// Package reconcile keeps running tunnels in line with the tunnel store.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/plexsphere/wgtunnel/internal/store"
	"github.com/plexsphere/wgtunnel/internal/wgconf"
)

// Tunnels is the view of stored and running tunnels the Reconciler needs.
type Tunnels interface {
	// Running returns the configuration of every running tunnel by name.
	Running() map[string]*wgconf.TunnelConfiguration
	// Get returns the stored tunnel called name.
	Get(ctx context.Context, name string) (*store.Tunnel, error)
	// Apply reconfigures the running tunnel called name.
	Apply(ctx context.Context, name string, cfg *wgconf.TunnelConfiguration) error
	// Deactivate stops the running tunnel called name.
	Deactivate(name string) error
}

// Reconciler periodically compares running tunnels against the store and
// applies edits made while they run.
type Reconciler struct {
	tunnels   Tunnels
	cfg       Config
	logger    *slog.Logger
	triggerCh chan struct{}
}

// NewReconciler creates a new Reconciler with the given configuration.
// Config defaults are applied automatically.
func NewReconciler(tunnels Tunnels, cfg Config, logger *slog.Logger) *Reconciler {
	cfg.ApplyDefaults()
	return &Reconciler{
		tunnels:   tunnels,
		cfg:       cfg,
		logger:    logger,
		triggerCh: make(chan struct{}, 1),
	}
}

// TriggerReconcile requests an immediate reconciliation cycle.
// Multiple rapid calls are coalesced; only one extra cycle runs.
func (r *Reconciler) TriggerReconcile() {
	select {
	case r.triggerCh <- struct{}{}:
	default:
	}
}

// Run starts the reconciliation loop. It blocks until ctx is cancelled.
// Cycles run at cfg.Interval or when TriggerReconcile is called.
func (r *Reconciler) Run(ctx context.Context) error {
	if r.tunnels == nil {
		return errors.New("reconcile: tunnels is nil")
	}

	r.logger.Info("reconciler started",
		"component", "reconcile",
		"interval", r.cfg.Interval,
	)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopped", "component", "reconcile")
			return ctx.Err()

		case <-ticker.C:
			r.RunOnce(ctx)

		case <-r.triggerCh:
			r.RunOnce(ctx)
			ticker.Reset(r.cfg.Interval)
		}
	}
}

// RunOnce performs a single cycle and returns the drift it acted on.
func (r *Reconciler) RunOnce(ctx context.Context) []Drift {
	start := time.Now()

	running := r.tunnels.Running()
	desired := make(map[string]*wgconf.TunnelConfiguration, len(running))
	for name := range running {
		t, err := r.tunnels.Get(ctx, name)
		switch {
		case errors.Is(err, store.ErrNotFound):
			continue
		case err != nil:
			if ctx.Err() == nil {
				r.logger.Warn("reading stored tunnel failed",
					"component", "reconcile",
					"name", name,
					"error", err,
				)
			}
			desired[name] = nil
			continue
		}
		if t.Config == nil {
			r.logger.Warn("stored tunnel has no usable configuration, keeping running state",
				"component", "reconcile",
				"name", name,
			)
		}
		desired[name] = t.Config
	}

	drifts := ComputeDiff(desired, running)
	if len(drifts) == 0 {
		r.logger.Debug("no drift detected",
			"component", "reconcile",
			"duration", time.Since(start),
		)
		return nil
	}

	failed := 0
	for _, d := range drifts {
		if err := r.correct(ctx, d); err != nil {
			failed++
			r.logger.Error("correcting drift failed",
				"component", "reconcile",
				"name", d.Name,
				"drift", d.Kind.String(),
				"error", err,
			)
		}
	}

	r.logger.Info("reconciliation cycle completed",
		"component", "reconcile",
		"drift_count", len(drifts),
		"failed", failed,
		"duration", time.Since(start),
	)
	return drifts
}

func (r *Reconciler) correct(ctx context.Context, d Drift) error {
	switch d.Kind {
	case DriftChanged:
		return r.tunnels.Apply(ctx, d.Name, d.Desired)
	case DriftRemoved:
		return r.tunnels.Deactivate(d.Name)
	default:
		return fmt.Errorf("reconcile: unknown drift kind %d", d.Kind)
	}
}
