// Package config loads the wgtunnel configuration file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/plexsphere/wgtunnel/internal/backend"
	"github.com/plexsphere/wgtunnel/internal/metrics"
	"github.com/plexsphere/wgtunnel/internal/nodeapi"
	"github.com/plexsphere/wgtunnel/internal/reconcile"
	"github.com/plexsphere/wgtunnel/internal/resolver"
	"github.com/plexsphere/wgtunnel/internal/store"
)

const (
	// DefaultLogLevel is the default log level.
	DefaultLogLevel = "info"

	// DefaultDataDir is the default data directory.
	DefaultDataDir = "/var/lib/wgtunnel"
)

// Config is the top-level wgtunnel configuration. It aggregates all
// subsystem configurations and is populated from a YAML file via Parse.
type Config struct {
	// LogLevel is the log level: "debug", "info", "warn", "error".
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	// DataDir holds the tunnel database and keystore.
	// Default: /var/lib/wgtunnel
	DataDir string `yaml:"data_dir"`

	Backend   backend.Config   `yaml:"backend"`
	Resolver  resolver.Config  `yaml:"resolver"`
	Metrics   metrics.Config   `yaml:"metrics"`
	Reconcile reconcile.Config `yaml:"reconcile"`
	Store     store.Config     `yaml:"store"`
	API       nodeapi.Config   `yaml:"api"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}
	c.Backend.ApplyDefaults()
	c.Resolver.ApplyDefaults()
	c.Metrics.ApplyDefaults()
	c.Reconcile.ApplyDefaults()
	c.Store.ApplyDefaults()
	c.API.ApplyDefaults()
}

// Validate checks that required fields are set and values are acceptable.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: invalid log_level %q", c.LogLevel)
	}
	if err := c.Backend.Validate(); err != nil {
		return err
	}
	if err := c.Resolver.Validate(); err != nil {
		return err
	}
	if err := c.Metrics.Validate(); err != nil {
		return err
	}
	if err := c.Reconcile.Validate(); err != nil {
		return err
	}
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if err := c.API.Validate(); err != nil {
		return err
	}
	return nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.ApplyDefaults()
	return &cfg
}

// Parse reads a YAML configuration file and returns a Config.
// It applies defaults and validates the configuration.
func Parse(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
