package store

import (
	"errors"
	"path/filepath"
)

// DefaultDatabase is the default database file name, relative to the data directory.
const DefaultDatabase = "tunnels.db"

// DefaultKeysDir is the default keystore directory, relative to the data directory.
const DefaultKeysDir = "keys"

// Config holds the locations of the tunnel database and keystore.
// Relative paths are resolved against the application data directory.
type Config struct {
	Database string `yaml:"database"`
	KeysDir  string `yaml:"keys_dir"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Database == "" {
		c.Database = DefaultDatabase
	}
	if c.KeysDir == "" {
		c.KeysDir = DefaultKeysDir
	}
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.Database == "" {
		return errors.New("store: config: Database must not be empty")
	}
	if c.KeysDir == "" {
		return errors.New("store: config: KeysDir must not be empty")
	}
	return nil
}

// Paths returns the database path and keystore directory under dataDir.
func (c *Config) Paths(dataDir string) (database, keys string) {
	return resolve(dataDir, c.Database), resolve(dataDir, c.KeysDir)
}

func resolve(dir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}
