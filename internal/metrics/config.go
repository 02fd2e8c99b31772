// Package metrics exports per-peer tunnel statistics to Prometheus.
package metrics

import (
	"errors"
	"net"
	"strings"
	"time"
)

// DefaultListenAddr is the default address of the scrape endpoint.
const DefaultListenAddr = "127.0.0.1:9586"

// DefaultPath is the default HTTP path of the scrape endpoint.
const DefaultPath = "/metrics"

// DefaultScrapeTimeout bounds how long one scrape may query the backends.
const DefaultScrapeTimeout = 5 * time.Second

// DefaultShutdownTimeout is the default graceful shutdown timeout.
const DefaultShutdownTimeout = 5 * time.Second

// Config holds the configuration for the metrics endpoint.
type Config struct {
	// Enabled controls whether the scrape endpoint is served.
	// Default: true (set by ApplyDefaults).
	Enabled bool `yaml:"enabled"`

	// ListenAddr is the host:port the endpoint listens on.
	ListenAddr string `yaml:"listen_addr"`

	// Path is the HTTP path metrics are served under.
	Path string `yaml:"path"`

	// StaleThreshold is the handshake age after which a peer is reported stale.
	StaleThreshold time.Duration `yaml:"stale_threshold"`

	// ScrapeTimeout bounds one collection.
	ScrapeTimeout time.Duration `yaml:"scrape_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// ApplyDefaults sets default values for zero-valued fields.
// On a zero-valued Config, Enabled defaults to true.
func (c *Config) ApplyDefaults() {
	if c.ListenAddr == "" && c.Path == "" && c.StaleThreshold == 0 && c.ScrapeTimeout == 0 && c.ShutdownTimeout == 0 {
		c.Enabled = true
	}
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.Path == "" {
		c.Path = DefaultPath
	}
	if c.StaleThreshold == 0 {
		c.StaleThreshold = DefaultStaleThreshold
	}
	if c.ScrapeTimeout == 0 {
		c.ScrapeTimeout = DefaultScrapeTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
		return errors.New("metrics: config: ListenAddr must be host:port")
	}
	if !strings.HasPrefix(c.Path, "/") {
		return errors.New("metrics: config: Path must start with /")
	}
	if c.StaleThreshold <= 0 {
		return errors.New("metrics: config: StaleThreshold must be positive")
	}
	if c.ScrapeTimeout <= 0 {
		return errors.New("metrics: config: ScrapeTimeout must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("metrics: config: ShutdownTimeout must be positive")
	}
	return nil
}
