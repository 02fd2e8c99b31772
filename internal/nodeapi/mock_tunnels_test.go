package nodeapi

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/plexsphere/wgtunnel/internal/backend"
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

type mockTunnels struct {
	mu       sync.Mutex
	calls    []mockCall
	statuses map[string]*wgconf.TunnelConfiguration
	errs     map[string]error
	order    []string
}

func (m *mockTunnels) record(method string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, mockCall{Method: method, Args: args})
}

func (m *mockTunnels) Active() []string {
	m.record("Active")
	return append([]string(nil), m.order...)
}

func (m *mockTunnels) Status(_ context.Context, name string) (*wgconf.TunnelConfiguration, error) {
	m.record("Status", name)
	if err, ok := m.errs[name]; ok {
		return nil, err
	}
	st, ok := m.statuses[name]
	if !ok {
		return nil, fmt.Errorf("tunnels: status %s: %w", name, backend.ErrInactive)
	}
	return st, nil
}

type mockReconciler struct {
	mu       sync.Mutex
	triggers int
}

func (m *mockReconciler) TriggerReconcile() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.triggers++
}

func (m *mockReconciler) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.triggers
}

// runtimeStatus builds the runtime state the backend would report for name.
func runtimeStatus(t *testing.T, name string, rx uint64) *wgconf.TunnelConfiguration {
	t.Helper()
	dump := "private_key=6161616161616161616161616161616161616161616161616161616161616161\n" +
		"listen_port=51820\n" +
		"public_key=6262626262626262626262626262626262626262626262626262626262626262\n" +
		"preshared_key=6363636363636363636363636363636363636363636363636363636363636363\n" +
		"endpoint=192.0.2.1:51820\n" +
		"persistent_keepalive_interval=25\n" +
		"allowed_ip=10.0.0.0/24\n" +
		fmt.Sprintf("rx_bytes=%d\n", rx) +
		"tx_bytes=200\n" +
		"last_handshake_time_sec=1700000000\n" +
		"last_handshake_time_nsec=0\n"
	st, err := wgconf.ParseUAPI(dump, &wgconf.TunnelConfiguration{Name: name})
	if err != nil {
		t.Fatalf("ParseUAPI: %v", err)
	}
	return st
}

func newTestServer(t *testing.T, tunnels Tunnels, reconciler Reconciler) (*Server, Config) {
	t.Helper()
	cfg := Config{
		SocketPath:      filepath.Join(t.TempDir(), "control.sock"),
		ShutdownTimeout: 2 * time.Second,
	}
	cfg.ApplyDefaults()
	srv := NewServer(cfg, NewHandler(tunnels, reconciler, discardLogger()), discardLogger())
	return srv, cfg
}

// waitForSocket polls until the socket at path accepts connections.
func waitForSocket(t *testing.T, path string, timeout time.Duration) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.Dial("unix", path)
		if err == nil {
			conn.Close()
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}
