// Package resolver turns hostname peer endpoints into IP endpoints before a
// configuration is handed to a backend.
package resolver

import (
	"errors"
	"net"
	"time"

	"github.com/miekg/dns"
)

// DefaultTimeout is the default per-server query timeout.
const DefaultTimeout = 5 * time.Second

// DefaultConcurrency is the default number of endpoints resolved in parallel.
const DefaultConcurrency = 4

// DefaultResolvConf is read for upstream servers when none are configured.
const DefaultResolvConf = "/etc/resolv.conf"

// Config holds the configuration for endpoint resolution.
type Config struct {
	// Servers is the list of DNS servers (host:port) queried in order.
	// Default: nameservers from ResolvConf.
	Servers []string `yaml:"servers"`

	// ResolvConf is consulted when Servers is empty.
	ResolvConf string `yaml:"resolv_conf"`

	// Timeout is the per-server query timeout.
	Timeout time.Duration `yaml:"timeout"`

	// Concurrency bounds how many endpoints are resolved at once.
	Concurrency int `yaml:"concurrency"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.ResolvConf == "" {
		c.ResolvConf = DefaultResolvConf
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Concurrency == 0 {
		c.Concurrency = DefaultConcurrency
	}
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return errors.New("resolver: config: Timeout must be positive")
	}
	if c.Concurrency < 1 {
		return errors.New("resolver: config: Concurrency must be at least 1")
	}
	for _, s := range c.Servers {
		if _, _, err := net.SplitHostPort(s); err != nil {
			return errors.New("resolver: config: Servers entries must be host:port")
		}
	}
	return nil
}

// servers returns the configured servers, falling back to ResolvConf.
func (c *Config) servers() ([]string, error) {
	if len(c.Servers) > 0 {
		return c.Servers, nil
	}
	cc, err := dns.ClientConfigFromFile(c.ResolvConf)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(cc.Servers))
	for _, s := range cc.Servers {
		out = append(out, net.JoinHostPort(s, cc.Port))
	}
	if len(out) == 0 {
		return nil, errors.New("no nameservers in " + c.ResolvConf)
	}
	return out, nil
}
