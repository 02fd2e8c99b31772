package packaging

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ErrNoSystemd is returned when systemctl cannot be found.
var ErrNoSystemd = errors.New("packaging: systemd is not available")

// Systemctl drives the units of the wgtunnel service. Enabling or disabling
// a unit that is already in the requested state is not an error.
type Systemctl interface {
	Available() bool
	// Reload makes systemd re-read unit files.
	Reload() error
	// EnableNow enables unit at boot and starts it.
	EnableNow(unit string) error
	// DisableNow stops unit and removes it from boot.
	DisableNow(unit string) error
	Active(unit string) bool
}

type execSystemctl struct {
	path string
}

// NewSystemctl returns a Systemctl that runs the systemctl binary found in
// PATH.
func NewSystemctl() Systemctl {
	path, _ := exec.LookPath("systemctl")
	return &execSystemctl{path: path}
}

func (s *execSystemctl) Available() bool { return s.path != "" }

func (s *execSystemctl) Reload() error { return s.run("daemon-reload") }

func (s *execSystemctl) EnableNow(unit string) error { return s.run("enable", "--now", unit) }

func (s *execSystemctl) DisableNow(unit string) error { return s.run("disable", "--now", unit) }

func (s *execSystemctl) Active(unit string) bool {
	if s.path == "" {
		return false
	}
	return exec.Command(s.path, "is-active", "--quiet", unit).Run() == nil
}

func (s *execSystemctl) run(args ...string) error {
	if s.path == "" {
		return ErrNoSystemd
	}
	out, err := exec.Command(s.path, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("packaging: systemctl %s: %w: %s", strings.Join(args, " "), err, bytes.TrimSpace(out))
	}
	return nil
}

// IsRoot reports whether the process runs with effective UID 0.
func IsRoot() bool {
	return os.Geteuid() == 0
}
