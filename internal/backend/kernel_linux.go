//go:build linux

package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vishvananda/netlink"
	"golang.zx2c4.com/wireguard/wgctrl"
)

// Kernel drives the in-kernel WireGuard implementation through netlink and
// wgctrl. It requires CAP_NET_ADMIN.
type Kernel struct {
	network Network
	logger  *slog.Logger

	mu   sync.Mutex
	name string
}

// NewKernel returns a stopped kernel backend.
func NewKernel(n Network, logger *slog.Logger) (*Kernel, error) {
	return &Kernel{network: n, logger: logger}, nil
}

// Start creates the link, configures the device, assigns addresses and MTU
// and brings the link up. A partially created link is removed on failure.
func (k *Kernel) Start(ctx context.Context, interfaceName, settings string) (err error) {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("backend: start: %w", err)
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.name != "" {
		return fmt.Errorf("backend: start: %s already running", k.name)
	}

	devCfg, err := deviceConfig(settings)
	if err != nil {
		return fmt.Errorf("backend: start: %w", err)
	}

	la := netlink.NewLinkAttrs()
	la.Name = interfaceName
	link := &netlink.GenericLink{LinkAttrs: la, LinkType: "wireguard"}
	if err := netlink.LinkAdd(link); err != nil {
		return fmt.Errorf("backend: start: create interface: %w", err)
	}
	defer func() {
		if err != nil {
			if delErr := deleteLink(interfaceName); delErr != nil {
				k.logger.Warn("failed to remove interface after start error",
					"component", "backend",
					"interface", interfaceName,
					"error", delErr,
				)
			}
		}
	}()

	client, err := wgctrl.New()
	if err != nil {
		return fmt.Errorf("backend: start: open wgctrl: %w", err)
	}
	defer client.Close()
	if err := client.ConfigureDevice(interfaceName, devCfg); err != nil {
		return fmt.Errorf("backend: start: configure device: %w", err)
	}

	for _, p := range k.network.Addresses {
		addr, err := netlink.ParseAddr(p.String())
		if err != nil {
			return fmt.Errorf("backend: start: parse address %s: %w", p, err)
		}
		if err := netlink.AddrAdd(link, addr); err != nil {
			return fmt.Errorf("backend: start: add address %s: %w", p, err)
		}
	}
	if k.network.MTU > 0 {
		if err := netlink.LinkSetMTU(link, k.network.MTU); err != nil {
			return fmt.Errorf("backend: start: set mtu: %w", err)
		}
	}
	if err := netlink.LinkSetUp(link); err != nil {
		return fmt.Errorf("backend: start: set interface up: %w", err)
	}

	k.name = interfaceName

	k.logger.Info("kernel tunnel started",
		"component", "backend",
		"interface", interfaceName,
		"addresses", len(k.network.Addresses),
		"mtu", k.network.MTU,
	)
	return nil
}

// Set reconfigures the running device.
func (k *Kernel) Set(ctx context.Context, settings string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("backend: set: %w", err)
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.name == "" {
		return ErrNotRunning
	}

	devCfg, err := deviceConfig(settings)
	if err != nil {
		return fmt.Errorf("backend: set: %w", err)
	}
	// A new wgctrl client per call avoids stale netlink sockets.
	client, err := wgctrl.New()
	if err != nil {
		return fmt.Errorf("backend: set: open wgctrl: %w", err)
	}
	defer client.Close()
	if err := client.ConfigureDevice(k.name, devCfg); err != nil {
		return fmt.Errorf("backend: set: configure device: %w", err)
	}
	return nil
}

// Get reads the device state and renders it as a runtime dump.
func (k *Kernel) Get(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("backend: get: %w", err)
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.name == "" {
		return "", ErrNotRunning
	}

	client, err := wgctrl.New()
	if err != nil {
		return "", fmt.Errorf("backend: get: open wgctrl: %w", err)
	}
	defer client.Close()
	dev, err := client.Device(k.name)
	if err != nil {
		return "", fmt.Errorf("backend: get: %w", err)
	}
	return deviceDump(dev), nil
}

// Stop deletes the link.
func (k *Kernel) Stop() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.name == "" {
		return nil
	}
	if err := deleteLink(k.name); err != nil {
		return fmt.Errorf("backend: stop: %w", err)
	}

	k.logger.Info("kernel tunnel stopped",
		"component", "backend",
		"interface", k.name,
	)
	k.name = ""
	return nil
}

// deleteLink removes the named link. A missing link is not an error.
func deleteLink(name string) error {
	link, err := netlink.LinkByName(name)
	if err != nil {
		var notFound netlink.LinkNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	return netlink.LinkDel(link)
}
