package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/plexsphere/wgtunnel/internal/wgconf"
)

// DefaultStaleThreshold is the default duration after which a handshake is considered stale.
const DefaultStaleThreshold = 5 * time.Minute

const namespace = "wgtunnel"

// TunnelStats holds tunnel health data for a single peer.
type TunnelStats struct {
	Tunnel            string
	PeerID            string
	Endpoint          string
	LastHandshakeTime time.Time
	RxBytes           uint64
	TxBytes           uint64
}

// TunnelStatsReader abstracts runtime stats retrieval for active tunnels.
type TunnelStatsReader interface {
	ReadTunnelStats(ctx context.Context) ([]TunnelStats, error)
}

// StatsFromStatus flattens a runtime status into per-peer stats. Peers
// without runtime counters are reported with zero values.
func StatsFromStatus(status *wgconf.TunnelConfiguration) []TunnelStats {
	out := make([]TunnelStats, 0, len(status.Peers))
	for _, p := range status.Peers {
		s := TunnelStats{
			Tunnel: status.Name,
			PeerID: p.PublicKey.String(),
		}
		if p.Endpoint != nil {
			s.Endpoint = p.Endpoint.String()
		}
		if p.Stats != nil {
			s.LastHandshakeTime = p.Stats.LastHandshake
			s.RxBytes = p.Stats.RxBytes
			s.TxBytes = p.Stats.TxBytes
		}
		out = append(out, s)
	}
	return out
}

// TunnelCollector implements prometheus.Collector for per-peer tunnel metrics.
type TunnelCollector struct {
	reader         TunnelStatsReader
	logger         *slog.Logger
	staleThreshold time.Duration
	timeout        time.Duration
	now            func() time.Time

	rxBytes       *prometheus.Desc
	txBytes       *prometheus.Desc
	lastHandshake *prometheus.Desc
	stale         *prometheus.Desc
	peers         *prometheus.Desc
	scrapeErrors  prometheus.Counter
}

// NewTunnelCollector creates a new TunnelCollector.
// StaleThreshold defaults to DefaultStaleThreshold (5m).
func NewTunnelCollector(reader TunnelStatsReader, logger *slog.Logger) *TunnelCollector {
	return NewTunnelCollectorWithThreshold(reader, logger, DefaultStaleThreshold)
}

// NewTunnelCollectorWithThreshold creates a TunnelCollector with a custom stale threshold.
func NewTunnelCollectorWithThreshold(reader TunnelStatsReader, logger *slog.Logger, staleThreshold time.Duration) *TunnelCollector {
	if staleThreshold <= 0 {
		staleThreshold = DefaultStaleThreshold
	}
	peerLabels := []string{"tunnel", "public_key", "endpoint"}
	return &TunnelCollector{
		reader:         reader,
		logger:         logger,
		staleThreshold: staleThreshold,
		timeout:        DefaultScrapeTimeout,
		now:            time.Now,
		rxBytes: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "peer", "receive_bytes_total"),
			"Bytes received from the peer.",
			peerLabels, nil,
		),
		txBytes: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "peer", "transmit_bytes_total"),
			"Bytes sent to the peer.",
			peerLabels, nil,
		),
		lastHandshake: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "peer", "last_handshake_seconds"),
			"Unix time of the last completed handshake, 0 if none.",
			peerLabels, nil,
		),
		stale: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "peer", "handshake_stale"),
			"1 if the last handshake is older than the stale threshold.",
			peerLabels, nil,
		),
		peers: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "tunnel", "peers"),
			"Number of peers configured on the tunnel.",
			[]string{"tunnel"}, nil,
		),
		scrapeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scrape_errors_total",
			Help:      "Failed reads of tunnel runtime state.",
		}),
	}
}

// SetScrapeTimeout bounds how long one Collect waits for the reader.
func (c *TunnelCollector) SetScrapeTimeout(d time.Duration) {
	if d > 0 {
		c.timeout = d
	}
}

// Describe implements prometheus.Collector.
func (c *TunnelCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.rxBytes
	ch <- c.txBytes
	ch <- c.lastHandshake
	ch <- c.stale
	ch <- c.peers
	c.scrapeErrors.Describe(ch)
}

// Collect implements prometheus.Collector. Handshakes older than the
// stale threshold are flagged.
func (c *TunnelCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	stats, err := c.reader.ReadTunnelStats(ctx)
	if err != nil {
		c.scrapeErrors.Inc()
		c.logger.Warn("tunnel stats read failed",
			"component", "metrics",
			"error", err,
		)
	}

	now := c.now()
	perTunnel := make(map[string]int)
	for _, s := range stats {
		perTunnel[s.Tunnel]++
		labels := []string{s.Tunnel, s.PeerID, s.Endpoint}

		ch <- prometheus.MustNewConstMetric(c.rxBytes, prometheus.CounterValue, float64(s.RxBytes), labels...)
		ch <- prometheus.MustNewConstMetric(c.txBytes, prometheus.CounterValue, float64(s.TxBytes), labels...)

		var hs, stale float64
		if !s.LastHandshakeTime.IsZero() {
			hs = float64(s.LastHandshakeTime.Unix())
			if now.Sub(s.LastHandshakeTime) > c.staleThreshold {
				stale = 1
			}
		}
		ch <- prometheus.MustNewConstMetric(c.lastHandshake, prometheus.GaugeValue, hs, labels...)
		ch <- prometheus.MustNewConstMetric(c.stale, prometheus.GaugeValue, stale, labels...)
	}
	for tunnel, n := range perTunnel {
		ch <- prometheus.MustNewConstMetric(c.peers, prometheus.GaugeValue, float64(n), tunnel)
	}
	c.scrapeErrors.Collect(ch)
}
