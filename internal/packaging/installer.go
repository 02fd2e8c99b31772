package packaging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/plexsphere/wgtunnel/internal/fsutil"
	"github.com/plexsphere/wgtunnel/internal/wgconf"
)

// Installer installs and uninstalls the wgtunnel service and manages its
// per-tunnel instances.
type Installer struct {
	cfg       InstallConfig
	systemctl Systemctl
	isRoot    func() bool
	logger    *slog.Logger
}

// NewInstaller creates a new Installer with defaults applied. isRoot is
// usually IsRoot.
func NewInstaller(cfg InstallConfig, systemctl Systemctl, isRoot func() bool, logger *slog.Logger) *Installer {
	cfg.ApplyDefaults()
	return &Installer{
		cfg:       cfg,
		systemctl: systemctl,
		isRoot:    isRoot,
		logger:    logger.With("component", "packaging"),
	}
}

func (ins *Installer) preflight(op string) error {
	if !ins.isRoot() {
		return fmt.Errorf("packaging: %s requires root privileges", op)
	}
	if !ins.systemctl.Available() {
		return ErrNoSystemd
	}
	return nil
}

// Install installs the binary, a default config and the template unit.
func (ins *Installer) Install() error {
	if err := ins.preflight("install"); err != nil {
		return err
	}

	dirs := []struct {
		path string
		perm os.FileMode
	}{
		{ins.cfg.ConfigDir, 0o755},
		{ins.cfg.DataDir, 0o700},
		{ins.cfg.UnitDir, 0o755},
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d.path, d.perm); err != nil {
			return fmt.Errorf("packaging: create directory %s: %w", d.path, err)
		}
		ins.logger.Info("directory created", "path", d.path, "perm", fmt.Sprintf("%04o", d.perm))
	}

	if err := ins.copyBinary(); err != nil {
		return err
	}

	configPath := ins.cfg.ConfigPath()
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		content := GenerateDefaultConfig(ins.cfg.DataDir)
		if err := fsutil.WriteFileAtomic(ins.cfg.ConfigDir, filepath.Base(configPath), []byte(content), 0o644); err != nil {
			return fmt.Errorf("packaging: write config: %w", err)
		}
		ins.logger.Info("default config written", "path", configPath)
	} else if err == nil {
		ins.logger.Info("existing config preserved", "path", configPath)
	} else {
		return fmt.Errorf("packaging: stat config: %w", err)
	}

	unitPath := ins.cfg.UnitFilePath()
	if err := fsutil.WriteFileAtomic(ins.cfg.UnitDir, filepath.Base(unitPath), []byte(GenerateUnitFile(ins.cfg)), 0o644); err != nil {
		return fmt.Errorf("packaging: write unit file: %w", err)
	}
	ins.logger.Info("unit file written", "path", unitPath)

	if err := ins.systemctl.Reload(); err != nil {
		return fmt.Errorf("packaging: daemon-reload: %w", err)
	}
	ins.logger.Info("systemd daemon reloaded")
	return nil
}

// EnableTunnel enables and starts the service instance for tunnel.
func (ins *Installer) EnableTunnel(tunnel string) error {
	if err := wgconf.ValidateName(tunnel); err != nil {
		return fmt.Errorf("packaging: enable: %w", err)
	}
	if err := ins.preflight("enable"); err != nil {
		return err
	}
	if _, err := os.Stat(ins.cfg.UnitFilePath()); err != nil {
		return fmt.Errorf("packaging: enable %s: service not installed: %w", tunnel, err)
	}

	svc := ins.cfg.Instance(tunnel)
	if err := ins.systemctl.EnableNow(svc); err != nil {
		return fmt.Errorf("packaging: enable %s: %w", tunnel, err)
	}
	if !ins.systemctl.Active(svc) {
		return fmt.Errorf("packaging: enable %s: %s did not stay active", tunnel, svc)
	}
	ins.logger.Info("tunnel service enabled", "service", svc)
	return nil
}

// DisableTunnel stops and disables the service instance for tunnel.
func (ins *Installer) DisableTunnel(tunnel string) error {
	if err := wgconf.ValidateName(tunnel); err != nil {
		return fmt.Errorf("packaging: disable: %w", err)
	}
	if err := ins.preflight("disable"); err != nil {
		return err
	}

	svc := ins.cfg.Instance(tunnel)
	if err := ins.systemctl.DisableNow(svc); err != nil {
		return fmt.Errorf("packaging: disable %s: %w", tunnel, err)
	}
	ins.logger.Info("tunnel service disabled", "service", svc)
	return nil
}

// Uninstall stops the instances of the given tunnels and removes the unit
// file and binary. If purge is true, data and config dirs are also removed.
func (ins *Installer) Uninstall(tunnels []string, purge bool) error {
	if !ins.isRoot() {
		return errors.New("packaging: uninstall requires root privileges")
	}

	unitPath := ins.cfg.UnitFilePath()
	if _, err := os.Stat(unitPath); errors.Is(err, os.ErrNotExist) {
		ins.logger.Info("wgtunnel service is not installed, nothing to do")
		return nil
	}

	// Instances may already be stopped or were never enabled.
	for _, name := range tunnels {
		svc := ins.cfg.Instance(name)
		if err := ins.systemctl.DisableNow(svc); err != nil {
			ins.logger.Info("disable service", "service", svc, "error", err)
		}
	}

	if err := fsutil.RemoveIfExists(unitPath); err != nil {
		return fmt.Errorf("packaging: remove unit file: %w", err)
	}
	ins.logger.Info("unit file removed", "path", unitPath)

	if err := ins.systemctl.Reload(); err != nil {
		return fmt.Errorf("packaging: daemon-reload: %w", err)
	}

	if err := fsutil.RemoveIfExists(ins.cfg.BinaryPath); err != nil {
		return fmt.Errorf("packaging: remove binary: %w", err)
	}
	ins.logger.Info("binary removed", "path", ins.cfg.BinaryPath)

	if purge {
		for _, dir := range []string{ins.cfg.DataDir, ins.cfg.ConfigDir} {
			if err := os.RemoveAll(dir); err != nil {
				return fmt.Errorf("packaging: remove directory %s: %w", dir, err)
			}
			ins.logger.Info("directory removed", "path", dir)
		}
	}
	return nil
}

func (ins *Installer) copyBinary() error {
	srcPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("packaging: resolve executable path: %w", err)
	}
	srcPath, err = filepath.EvalSymlinks(srcPath)
	if err != nil {
		return fmt.Errorf("packaging: resolve symlinks: %w", err)
	}

	dstPath := ins.cfg.BinaryPath
	if srcPath == dstPath {
		ins.logger.Info("binary already at install path, skipping copy", "path", dstPath)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return fmt.Errorf("packaging: create binary directory: %w", err)
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("packaging: open source binary: %w", err)
	}
	defer src.Close()

	dst, err := os.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o755)
	if err != nil {
		return fmt.Errorf("packaging: create destination binary: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("packaging: copy binary: %w", err)
	}

	ins.logger.Info("binary installed", "src", srcPath, "dst", dstPath)
	return nil
}
