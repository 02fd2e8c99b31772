package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/plexsphere/wgtunnel/internal/metrics"
	"github.com/plexsphere/wgtunnel/internal/nodeapi"
	"github.com/plexsphere/wgtunnel/internal/reconcile"
)

// drainTimeout is the maximum time for graceful shutdown.
const drainTimeout = 30 * time.Second

var upMetricsAddr string

var upCmd = &cobra.Command{
	Use:   "up <name>...",
	Short: "Bring tunnels up",
	Long: "Bring one or more stored tunnels up and keep them running until\n" +
		"SIGINT or SIGTERM. Edits to the stored tunnels are applied periodically\n" +
		"on SIGHUP and on `wgtunnel reload`. Runtime status is served on the\n" +
		"control socket for `wgtunnel status`, and per-peer metrics are served\n" +
		"for Prometheus, unless either is disabled in the config file.",
	Args: cobra.MinimumNArgs(1),
	RunE: runUp,
}

func init() {
	upCmd.Flags().StringVar(&upMetricsAddr, "metrics-addr", "", "metrics listen address (overrides config, enables metrics)")
	rootCmd.AddCommand(upCmd)
}

func runUp(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return fmt.Errorf("wgtunnel up: %w", err)
	}
	defer a.Close()

	if upMetricsAddr != "" {
		a.cfg.Metrics.Enabled = true
		a.cfg.Metrics.ListenAddr = upMetricsAddr
	}
	logger := a.logger

	logger.Info("starting wgtunnel",
		"version", buildVersion,
		"backend", a.cfg.Backend.Type,
		"tunnels", args,
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	for _, name := range args {
		if err := a.manager.Activate(ctx, name); err != nil {
			return fmt.Errorf("wgtunnel up: %w", err)
		}
	}

	var wg sync.WaitGroup

	reconciler := reconcile.NewReconciler(a.manager, a.cfg.Reconcile, logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := reconciler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("reconciler stopped", "error", err)
		}
	}()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				logger.Info("SIGHUP received, reconciling")
				reconciler.TriggerReconcile()
			}
		}
	}()

	if !a.cfg.API.Disabled {
		srv := nodeapi.NewServer(a.cfg.API, nodeapi.NewHandler(a.manager, reconciler, logger), logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("control socket stopped", "error", err)
			}
		}()
	}

	if a.cfg.Metrics.Enabled {
		collector := metrics.NewTunnelCollectorWithThreshold(a.manager, logger, a.cfg.Metrics.StaleThreshold)
		collector.SetScrapeTimeout(a.cfg.Metrics.ScrapeTimeout)
		srv, err := metrics.NewServer(a.cfg.Metrics, logger, collector)
		if err != nil {
			return fmt.Errorf("wgtunnel up: %w", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down", "reason", ctx.Err())

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(drainTimeout):
		logger.Warn("drain timeout exceeded, forcing exit")
	}

	if err := a.manager.Close(); err != nil {
		return fmt.Errorf("wgtunnel up: %w", err)
	}
	logger.Info("wgtunnel stopped")
	return nil
}
