package backend

import (
	"context"
	"log/slog"
	"sync"

	"github.com/plexsphere/wgtunnel/internal/wgconf"
)

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nopWriter{}, nil))
}

// mockCall records a single method invocation on mockBackend.
type mockCall struct {
	Method string
	Args   []interface{}
}

// mockBackend is a test double for Backend.
// It records all calls and supports configurable error returns per method.
type mockBackend struct {
	mu sync.Mutex

	network Network
	calls   []mockCall
	dump    string

	startErr error
	setErr   error
	getErr   error
	stopErr  error
}

func (m *mockBackend) Start(_ context.Context, interfaceName, settings string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, mockCall{Method: "Start", Args: []interface{}{interfaceName, settings}})
	return m.startErr
}

func (m *mockBackend) Set(_ context.Context, settings string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, mockCall{Method: "Set", Args: []interface{}{settings}})
	return m.setErr
}

func (m *mockBackend) Get(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, mockCall{Method: "Get"})
	return m.dump, m.getErr
}

func (m *mockBackend) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, mockCall{Method: "Stop"})
	return m.stopErr
}

func (m *mockBackend) methods() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	for i, c := range m.calls {
		out[i] = c.Method
	}
	return out
}

func (m *mockBackend) lastSettings() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.calls) - 1; i >= 0; i-- {
		switch m.calls[i].Method {
		case "Start":
			return m.calls[i].Args[1].(string)
		case "Set":
			return m.calls[i].Args[0].(string)
		}
	}
	return ""
}

// mockFactory hands out mockBackends and remembers them.
type mockFactory struct {
	mu       sync.Mutex
	backends []*mockBackend
	// prepare, when set, configures each new backend.
	prepare func(*mockBackend)
	err     error
}

func (f *mockFactory) New(n Network) (Backend, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	b := &mockBackend{network: n}
	if f.prepare != nil {
		f.prepare(b)
	}
	f.backends = append(f.backends, b)
	return b, nil
}

func (f *mockFactory) last() *mockBackend {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.backends) == 0 {
		return nil
	}
	return f.backends[len(f.backends)-1]
}

// mockResolver rewrites every hostname endpoint to a fixed address.
type mockResolver struct {
	host string
	err  error
}

func (r *mockResolver) ResolveConfiguration(_ context.Context, cfg *wgconf.TunnelConfiguration) (*wgconf.TunnelConfiguration, error) {
	if r.err != nil {
		return nil, r.err
	}
	out := cfg.Copy()
	for i := range out.Peers {
		if ep := out.Peers[i].Endpoint; ep != nil && !ep.IsResolved() {
			out.Peers[i].Endpoint = &wgconf.Endpoint{Host: r.host, Port: ep.Port}
		}
	}
	return out, nil
}
