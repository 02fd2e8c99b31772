package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"sync"

	"golang.zx2c4.com/wireguard/conn"
	"golang.zx2c4.com/wireguard/device"
	"golang.zx2c4.com/wireguard/tun"
	"golang.zx2c4.com/wireguard/tun/netstack"
)

// ErrNotRunning is returned by Set and Get before Start or after Stop.
var ErrNotRunning = errors.New("backend: tunnel is not running")

// TUNFactory creates the packet interface for a userspace tunnel.
type TUNFactory func(name string, n Network) (tun.Device, error)

// NetstackTUN creates an in-process gVisor network stack. It needs no
// privileges and never touches the host routing table.
func NetstackTUN(_ string, n Network) (tun.Device, error) {
	addrs := make([]netip.Addr, 0, len(n.Addresses))
	for _, p := range n.Addresses {
		addrs = append(addrs, p.Addr())
	}
	dev, _, err := netstack.CreateNetTUN(addrs, n.DNS, n.MTU)
	if err != nil {
		return nil, fmt.Errorf("backend: netstack: %w", err)
	}
	return dev, nil
}

// SystemTUN creates a host TUN device named name.
func SystemTUN(name string, n Network) (tun.Device, error) {
	dev, err := tun.CreateTUN(name, n.MTU)
	if err != nil {
		return nil, fmt.Errorf("backend: create tun %s: %w", name, err)
	}
	return dev, nil
}

// Userspace runs the tunnel in-process with wireguard-go.
type Userspace struct {
	network Network
	newTUN  TUNFactory
	logger  *slog.Logger

	mu   sync.Mutex
	name string
	dev  *device.Device
}

// NewUserspace returns a stopped userspace backend.
func NewUserspace(n Network, newTUN TUNFactory, logger *slog.Logger) *Userspace {
	return &Userspace{network: n, newTUN: newTUN, logger: logger}
}

// Start creates the TUN device, applies settings and brings the device up.
func (u *Userspace) Start(ctx context.Context, interfaceName, settings string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("backend: start: %w", err)
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.dev != nil {
		return fmt.Errorf("backend: start: %s already running", u.name)
	}

	tdev, err := u.newTUN(interfaceName, u.network)
	if err != nil {
		return fmt.Errorf("backend: start: %w", err)
	}

	dev := device.NewDevice(tdev, conn.NewDefaultBind(), deviceLogger(u.logger, interfaceName))
	if err := dev.IpcSet(settings); err != nil {
		dev.Close()
		return fmt.Errorf("backend: start: apply settings: %w", err)
	}
	if err := dev.Up(); err != nil {
		dev.Close()
		return fmt.Errorf("backend: start: bring up: %w", err)
	}

	u.name = interfaceName
	u.dev = dev

	u.logger.Info("userspace tunnel started",
		"component", "backend",
		"interface", interfaceName,
		"mtu", u.network.MTU,
	)
	return nil
}

// Set applies settings to the running device.
func (u *Userspace) Set(ctx context.Context, settings string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("backend: set: %w", err)
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.dev == nil {
		return ErrNotRunning
	}
	if err := u.dev.IpcSet(settings); err != nil {
		return fmt.Errorf("backend: set: %w", err)
	}
	return nil
}

// Get returns the device's runtime dump.
func (u *Userspace) Get(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("backend: get: %w", err)
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.dev == nil {
		return "", ErrNotRunning
	}
	dump, err := u.dev.IpcGet()
	if err != nil {
		return "", fmt.Errorf("backend: get: %w", err)
	}
	return dump, nil
}

// Stop closes the device.
func (u *Userspace) Stop() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.dev == nil {
		return nil
	}
	u.dev.Close()
	u.dev = nil

	u.logger.Info("userspace tunnel stopped",
		"component", "backend",
		"interface", u.name,
	)
	return nil
}

// deviceLogger routes wireguard-go's printf logging into slog.
func deviceLogger(logger *slog.Logger, name string) *device.Logger {
	l := logger.With("component", "backend", "interface", name)
	return &device.Logger{
		Verbosef: func(format string, args ...any) {
			l.Debug(fmt.Sprintf(format, args...))
		},
		Errorf: func(format string, args ...any) {
			l.Error(fmt.Sprintf(format, args...))
		},
	}
}
