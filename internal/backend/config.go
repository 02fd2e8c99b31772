package backend

import (
	"errors"
	"fmt"
	"log/slog"
)

// Backend types.
const (
	TypeUserspace = "userspace"
	TypeKernel    = "kernel"
)

// TUN implementations for the userspace backend.
const (
	TUNNetstack = "netstack"
	TUNSystem   = "tun"
)

// DefaultMTU is used when a configuration carries no MTU.
const DefaultMTU = 1420

// Config holds the backend selection.
type Config struct {
	// Type is TypeUserspace or TypeKernel.
	// Default: TypeUserspace
	Type string `yaml:"type"`

	// TUN selects the userspace packet interface.
	// Default: TUNNetstack
	TUN string `yaml:"tun"`

	// MTU is applied when a tunnel does not set one.
	// Default: 1420
	MTU int `yaml:"mtu"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Type == "" {
		c.Type = TypeUserspace
	}
	if c.TUN == "" {
		c.TUN = TUNNetstack
	}
	if c.MTU == 0 {
		c.MTU = DefaultMTU
	}
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	switch c.Type {
	case TypeUserspace, TypeKernel:
	default:
		return fmt.Errorf("backend: config: unknown Type %q", c.Type)
	}
	switch c.TUN {
	case TUNNetstack, TUNSystem:
	default:
		return fmt.Errorf("backend: config: unknown TUN %q", c.TUN)
	}
	if c.MTU < 576 || c.MTU > 65535 {
		return errors.New("backend: config: MTU must be between 576 and 65535")
	}
	return nil
}

// NewFactory returns the Factory selected by cfg.
func NewFactory(cfg Config, logger *slog.Logger) (Factory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Type == TypeKernel {
		return func(n Network) (Backend, error) {
			k, err := NewKernel(n, logger)
			if err != nil {
				return nil, err
			}
			return k, nil
		}, nil
	}
	newTUN := NetstackTUN
	if cfg.TUN == TUNSystem {
		newTUN = SystemTUN
	}
	return func(n Network) (Backend, error) {
		return NewUserspace(n, newTUN, logger), nil
	}, nil
}
