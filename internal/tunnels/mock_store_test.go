package tunnels

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/plexsphere/wgtunnel/internal/backend"
	"github.com/plexsphere/wgtunnel/internal/store"
	"github.com/plexsphere/wgtunnel/internal/wgconf"
)

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nopWriter{}, nil))
}

// mockStore is an in-memory Store.
type mockStore struct {
	mu      sync.Mutex
	tunnels map[string]*store.Tunnel
	addErr  error
}

func newMockStore() *mockStore {
	return &mockStore{tunnels: make(map[string]*store.Tunnel)}
}

func (s *mockStore) Add(_ context.Context, cfg *wgconf.TunnelConfiguration) (*store.Tunnel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addErr != nil {
		return nil, s.addErr
	}
	if _, ok := s.tunnels[cfg.Name]; ok {
		return nil, fmt.Errorf("%w: %q", store.ErrNameTaken, cfg.Name)
	}
	t := &store.Tunnel{ID: cfg.Name, Name: cfg.Name, Config: cfg.Copy()}
	s.tunnels[cfg.Name] = t
	return t, nil
}

func (s *mockStore) Get(_ context.Context, name string) (*store.Tunnel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tunnels[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", store.ErrNotFound, name)
	}
	return t, nil
}

func (s *mockStore) List(ctx context.Context) ([]*store.Tunnel, error) {
	names, _ := s.Names(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*store.Tunnel, 0, len(names))
	for _, n := range names {
		out = append(out, s.tunnels[n])
	}
	return out, nil
}

func (s *mockStore) Names(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.tunnels))
	for n := range s.tunnels {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (s *mockStore) Replace(_ context.Context, name string, cfg *wgconf.TunnelConfiguration) (*store.Tunnel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.tunnels[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", store.ErrNotFound, name)
	}
	if _, taken := s.tunnels[cfg.Name]; taken && cfg.Name != name {
		return nil, fmt.Errorf("%w: %q", store.ErrNameTaken, cfg.Name)
	}
	delete(s.tunnels, name)
	t := &store.Tunnel{ID: old.ID, Name: cfg.Name, Config: cfg.Copy()}
	s.tunnels[cfg.Name] = t
	return t, nil
}

func (s *mockStore) Remove(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tunnels[name]; !ok {
		return fmt.Errorf("%w: %q", store.ErrNotFound, name)
	}
	delete(s.tunnels, name)
	return nil
}

// fakeBackend records the settings it was started and updated with and
// echoes them back as its runtime dump.
type fakeBackend struct {
	mu       sync.Mutex
	name     string
	settings string
	running  bool
	network  backend.Network
}

func (b *fakeBackend) Start(_ context.Context, name, settings string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.name, b.settings, b.running = name, settings, true
	return nil
}

func (b *fakeBackend) Set(_ context.Context, settings string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.settings = settings
	return nil
}

func (b *fakeBackend) Get(context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.settings + "rx_bytes=7\n", nil
}

func (b *fakeBackend) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.running = false
	return nil
}

// fakeFactory hands out fakeBackends.
type fakeFactory struct {
	mu       sync.Mutex
	backends []*fakeBackend
	err      error
}

func (f *fakeFactory) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeFactory) New(n backend.Network) (backend.Backend, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	b := &fakeBackend{network: n}
	f.backends = append(f.backends, b)
	return b, nil
}

func (f *fakeFactory) running() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for _, b := range f.backends {
		b.mu.Lock()
		if b.running {
			names = append(names, b.name)
		}
		b.mu.Unlock()
	}
	sort.Strings(names)
	return names
}
