package packaging

import (
	"io"
	"log/slog"
)

type mockCall struct {
	Method string
	Unit   string
}

type mockSystemctl struct {
	missing bool
	// failing units exit right after start.
	failing bool
	active  map[string]bool
	errs    map[string]error
	calls   []mockCall
}

func (m *mockSystemctl) call(method, unit string) error {
	m.calls = append(m.calls, mockCall{Method: method, Unit: unit})
	return m.errs[method]
}

// count returns how many times method was called.
func (m *mockSystemctl) count(method string) int {
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

func (m *mockSystemctl) Available() bool         { return !m.missing }
func (m *mockSystemctl) Active(unit string) bool { return m.active[unit] }
func (m *mockSystemctl) Reload() error           { return m.call("Reload", "") }

func (m *mockSystemctl) EnableNow(unit string) error {
	if err := m.call("EnableNow", unit); err != nil {
		return err
	}
	if m.failing {
		return nil
	}
	if m.active == nil {
		m.active = make(map[string]bool)
	}
	m.active[unit] = true
	return nil
}

func (m *mockSystemctl) DisableNow(unit string) error {
	if err := m.call("DisableNow", unit); err != nil {
		return err
	}
	delete(m.active, unit)
	return nil
}

func asRoot() bool    { return true }
func asNonRoot() bool { return false }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
