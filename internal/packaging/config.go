// Package packaging installs wgtunnel as a templated systemd service, one
// instance per tunnel.
package packaging

import (
	"errors"
	"path/filepath"
)

// InstallConfig holds the configuration for installing wgtunnel as a systemd service.
// InstallConfig is passed as a constructor argument; no file I/O in this package.
type InstallConfig struct {
	// BinaryPath is the path to install the wgtunnel binary.
	// Default: /usr/local/bin/wgtunnel
	BinaryPath string

	// ConfigDir is the configuration directory.
	// Default: /etc/wgtunnel
	ConfigDir string

	// DataDir is the data directory.
	// Default: /var/lib/wgtunnel
	DataDir string

	// UnitDir is the directory the unit file is written to.
	// Default: /etc/systemd/system
	UnitDir string

	// ServiceName is the systemd template name; instances are
	// ServiceName@<tunnel>.service.
	// Default: wgtunnel
	ServiceName string
}

// DefaultBinaryPath is the default path to install the wgtunnel binary.
const DefaultBinaryPath = "/usr/local/bin/wgtunnel"

// DefaultConfigDir is the default configuration directory.
const DefaultConfigDir = "/etc/wgtunnel"

// DefaultDataDir is the default data directory.
const DefaultDataDir = "/var/lib/wgtunnel"

// DefaultUnitDir is the default systemd unit directory.
const DefaultUnitDir = "/etc/systemd/system"

// DefaultServiceName is the default systemd template name.
const DefaultServiceName = "wgtunnel"

// ApplyDefaults sets default values for zero-valued fields.
func (c *InstallConfig) ApplyDefaults() {
	if c.BinaryPath == "" {
		c.BinaryPath = DefaultBinaryPath
	}
	if c.ConfigDir == "" {
		c.ConfigDir = DefaultConfigDir
	}
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}
	if c.UnitDir == "" {
		c.UnitDir = DefaultUnitDir
	}
	if c.ServiceName == "" {
		c.ServiceName = DefaultServiceName
	}
}

// Validate checks that required fields are set.
func (c *InstallConfig) Validate() error {
	if c.BinaryPath == "" {
		return errors.New("packaging: config: BinaryPath is required")
	}
	if c.ConfigDir == "" {
		return errors.New("packaging: config: ConfigDir is required")
	}
	if c.DataDir == "" {
		return errors.New("packaging: config: DataDir is required")
	}
	if c.UnitDir == "" {
		return errors.New("packaging: config: UnitDir is required")
	}
	if c.ServiceName == "" {
		return errors.New("packaging: config: ServiceName is required")
	}
	return nil
}

// UnitFilePath returns the path of the template unit file.
func (c *InstallConfig) UnitFilePath() string {
	return filepath.Join(c.UnitDir, c.ServiceName+"@.service")
}

// ConfigPath returns the path of the wgtunnel config file.
func (c *InstallConfig) ConfigPath() string {
	return filepath.Join(c.ConfigDir, "config.yaml")
}

// Instance returns the service name of the unit instance for tunnel.
func (c *InstallConfig) Instance(tunnel string) string {
	return c.ServiceName + "@" + tunnel + ".service"
}
