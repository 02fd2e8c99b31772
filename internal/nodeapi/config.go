package nodeapi

import (
	"errors"
	"path/filepath"
	"time"
)

// Config holds the configuration for the local control socket.
// Config is passed as a constructor argument; no file I/O in this package.
type Config struct {
	// Disabled turns the control socket of `wgtunnel up` off.
	Disabled bool `yaml:"disabled"`

	// SocketPath is the path to the Unix domain socket.
	// Default: /run/wgtunnel/control.sock
	SocketPath string `yaml:"socket_path"`

	// Group owns the socket when it exists. Members of the group may
	// trigger a reconcile; everybody else may only read status.
	// Default: wgtunnel
	Group string `yaml:"group"`

	// ShutdownTimeout is the maximum time to wait for a graceful shutdown.
	// Default: 5s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DefaultSocketPath is the default Unix domain socket path.
const DefaultSocketPath = "/run/wgtunnel/control.sock"

// DefaultGroup is the default socket group.
const DefaultGroup = "wgtunnel"

// DefaultShutdownTimeout is the default graceful shutdown timeout.
const DefaultShutdownTimeout = 5 * time.Second

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.SocketPath == "" {
		c.SocketPath = DefaultSocketPath
	}
	if c.Group == "" {
		c.Group = DefaultGroup
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
}

// Validate checks that required fields are set and values are acceptable.
func (c *Config) Validate() error {
	if !filepath.IsAbs(c.SocketPath) {
		return errors.New("nodeapi: config: SocketPath must be absolute")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("nodeapi: config: ShutdownTimeout must be positive")
	}
	return nil
}
