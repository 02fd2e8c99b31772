package packaging

import (
	"errors"
	"os"
	"testing"
)

func TestIsRoot(t *testing.T) {
	if got, want := IsRoot(), os.Geteuid() == 0; got != want {
		t.Errorf("IsRoot() = %v, want %v", got, want)
	}
}

func TestExecSystemctl_Missing(t *testing.T) {
	s := &execSystemctl{}
	if s.Available() {
		t.Error("Available() = true without a systemctl path")
	}
	if s.Active("wgtunnel@office.service") {
		t.Error("Active() = true without a systemctl path")
	}
	for name, fn := range map[string]func() error{
		"Reload":     s.Reload,
		"EnableNow":  func() error { return s.EnableNow("wgtunnel@office.service") },
		"DisableNow": func() error { return s.DisableNow("wgtunnel@office.service") },
	} {
		if err := fn(); !errors.Is(err, ErrNoSystemd) {
			t.Errorf("%s() error = %v, want ErrNoSystemd", name, err)
		}
	}
}

func TestExecSystemctl_CommandFailure(t *testing.T) {
	s := &execSystemctl{path: "/bin/false"}
	if _, err := os.Stat(s.path); err != nil {
		t.Skip("/bin/false not present")
	}
	if err := s.EnableNow("wgtunnel@office.service"); err == nil || errors.Is(err, ErrNoSystemd) {
		t.Errorf("EnableNow() error = %v, want command failure", err)
	}
	if s.Active("wgtunnel@office.service") {
		t.Error("Active() = true for a failing command")
	}
}
