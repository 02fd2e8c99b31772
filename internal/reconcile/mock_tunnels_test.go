package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/plexsphere/wgtunnel/internal/store"
	"github.com/plexsphere/wgtunnel/internal/wgconf"
)

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nopWriter{}, nil))
}

type mockCall struct {
	Method string
	Args   []interface{}
}

// mockTunnels is a test double for Tunnels.
type mockTunnels struct {
	mu       sync.Mutex
	stored   map[string]*store.Tunnel
	running  map[string]*wgconf.TunnelConfiguration
	getErr   error
	applyErr error
	calls    []mockCall
}

func newMockTunnels() *mockTunnels {
	return &mockTunnels{
		stored:  make(map[string]*store.Tunnel),
		running: make(map[string]*wgconf.TunnelConfiguration),
	}
}

func (m *mockTunnels) Running() map[string]*wgconf.TunnelConfiguration {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]*wgconf.TunnelConfiguration, len(m.running))
	for k, v := range m.running {
		out[k] = v
	}
	return out
}

func (m *mockTunnels) Get(_ context.Context, name string) (*store.Tunnel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, mockCall{Method: "Get", Args: []interface{}{name}})
	if m.getErr != nil {
		return nil, m.getErr
	}
	t, ok := m.stored[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", store.ErrNotFound, name)
	}
	return t, nil
}

func (m *mockTunnels) Apply(_ context.Context, name string, cfg *wgconf.TunnelConfiguration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, mockCall{Method: "Apply", Args: []interface{}{name, cfg}})
	if m.applyErr != nil {
		return m.applyErr
	}
	if _, ok := m.running[name]; !ok {
		return errors.New("not running")
	}
	m.running[name] = cfg
	return nil
}

func (m *mockTunnels) Deactivate(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, mockCall{Method: "Deactivate", Args: []interface{}{name}})
	delete(m.running, name)
	return nil
}

func (m *mockTunnels) callsTo(method string) []mockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []mockCall
	for _, c := range m.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}
