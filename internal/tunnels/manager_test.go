package tunnels

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/plexsphere/wgtunnel/internal/archive"
	"github.com/plexsphere/wgtunnel/internal/backend"
	"github.com/plexsphere/wgtunnel/internal/store"
	"github.com/plexsphere/wgtunnel/internal/wgconf"
)

const baseConfig = "[Interface]\n" +
	"PrivateKey = YWFhYWFhYWFhYWFhYWFhYWFhYWFhYWFhYWFhYWFhYWE=\n" +
	"Address = 10.0.0.2/32\n" +
	"\n[Peer]\n" +
	"PublicKey = YmJiYmJiYmJiYmJiYmJiYmJiYmJiYmJiYmJiYmJiYmI=\n" +
	"AllowedIPs = 0.0.0.0/0\n" +
	"Endpoint = 192.0.2.1:51820\n"

func cfgNamed(t *testing.T, name string) *wgconf.TunnelConfiguration {
	t.Helper()
	cfg, err := wgconf.Parse(baseConfig, name)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return cfg
}

func newTestManager(t *testing.T) (*Manager, *mockStore, *fakeFactory) {
	t.Helper()
	s := newMockStore()
	f := &fakeFactory{}
	m := NewManager(s, f.New, nil, backend.DefaultMTU, discardLogger())
	t.Cleanup(func() { _ = m.Close() })
	return m, s, f
}

func TestManager_ActivateDeactivate(t *testing.T) {
	m, _, f := newTestManager(t)
	ctx := context.Background()

	if _, err := m.Create(ctx, cfgNamed(t, "office")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := m.Activate(ctx, "office"); err != nil {
		t.Fatalf("Activate() error: %v", err)
	}
	if got := m.Active(); len(got) != 1 || got[0] != "office" {
		t.Errorf("Active() = %v", got)
	}
	if got := f.running(); len(got) != 1 || got[0] != "office" {
		t.Errorf("running backends = %v", got)
	}
	if err := m.Activate(ctx, "office"); !errors.Is(err, backend.ErrActive) {
		t.Errorf("second Activate() error = %v, want ErrActive", err)
	}

	if err := m.Deactivate("office"); err != nil {
		t.Fatalf("Deactivate() error: %v", err)
	}
	if len(m.Active()) != 0 || len(f.running()) != 0 {
		t.Error("tunnel still running after Deactivate")
	}
	if err := m.Deactivate("office"); err != nil {
		t.Errorf("Deactivate() on inactive tunnel = %v", err)
	}
}

func TestManager_ActivateErrors(t *testing.T) {
	m, s, _ := newTestManager(t)
	ctx := context.Background()

	if err := m.Activate(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Activate(missing) error = %v, want ErrNotFound", err)
	}

	s.tunnels["broken"] = &store.Tunnel{Name: "broken"}
	if err := m.Activate(ctx, "broken"); !errors.Is(err, ErrNoConfiguration) {
		t.Errorf("Activate(broken) error = %v, want ErrNoConfiguration", err)
	}
}

func TestManager_UpdateRunningTunnel(t *testing.T) {
	m, _, f := newTestManager(t)
	ctx := context.Background()

	if _, err := m.Create(ctx, cfgNamed(t, "office")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := m.Activate(ctx, "office"); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	next := cfgNamed(t, "office")
	next.Peers[0].PersistentKeepalive = wgconf.Uint16(25)
	if _, err := m.Update(ctx, "office", next); err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if len(f.backends) != 1 {
		t.Errorf("backends = %d, want 1 (peers-only change applied in place)", len(f.backends))
	}
	if !strings.Contains(f.backends[0].settings, "persistent_keepalive_interval=25") {
		t.Errorf("settings not updated:\n%s", f.backends[0].settings)
	}
}

func TestManager_RenameRunningTunnel(t *testing.T) {
	m, _, f := newTestManager(t)
	ctx := context.Background()

	if _, err := m.Create(ctx, cfgNamed(t, "office")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := m.Activate(ctx, "office"); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if _, err := m.Update(ctx, "office", cfgNamed(t, "hq")); err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if got := m.Active(); len(got) != 1 || got[0] != "hq" {
		t.Errorf("Active() = %v, want [hq]", got)
	}
	if got := f.running(); len(got) != 1 || got[0] != "hq" {
		t.Errorf("running backends = %v, want [hq]", got)
	}
}

func TestManager_RemoveStopsTunnel(t *testing.T) {
	m, s, f := newTestManager(t)
	ctx := context.Background()

	if _, err := m.Create(ctx, cfgNamed(t, "office")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := m.Activate(ctx, "office"); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if err := m.Remove(ctx, "office"); err != nil {
		t.Fatalf("Remove() error: %v", err)
	}
	if len(f.running()) != 0 {
		t.Error("backend still running after Remove")
	}
	if len(s.tunnels) != 0 {
		t.Error("tunnel still stored after Remove")
	}
}

func TestManager_StatusAndStats(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	if _, err := m.Status(ctx, "office"); !errors.Is(err, backend.ErrInactive) {
		t.Errorf("Status() of inactive tunnel error = %v, want ErrInactive", err)
	}

	for _, n := range []string{"b", "a"} {
		if _, err := m.Create(ctx, cfgNamed(t, n)); err != nil {
			t.Fatalf("Create: %v", err)
		}
		if err := m.Activate(ctx, n); err != nil {
			t.Fatalf("Activate: %v", err)
		}
	}

	st, err := m.Status(ctx, "a")
	if err != nil {
		t.Fatalf("Status() error: %v", err)
	}
	if st.Peers[0].Stats == nil || st.Peers[0].Stats.RxBytes != 7 {
		t.Errorf("stats = %+v", st.Peers[0].Stats)
	}

	stats, err := m.ReadTunnelStats(ctx)
	if err != nil {
		t.Fatalf("ReadTunnelStats() error: %v", err)
	}
	if len(stats) != 2 || stats[0].Tunnel != "a" || stats[1].Tunnel != "b" {
		t.Errorf("stats = %+v", stats)
	}
}

func TestManager_Import(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	parseErr := errors.New("bad file")
	results := m.Import(ctx, []archive.Result{
		{Source: "a.conf", Config: cfgNamed(t, "a")},
		{Source: "bad.conf", Err: parseErr},
		{Source: "dup.conf", Config: cfgNamed(t, "a")},
	})
	if results[0].Err != nil {
		t.Errorf("results[0] error: %v", results[0].Err)
	}
	if !errors.Is(results[1].Err, parseErr) {
		t.Errorf("results[1] error = %v, want parse error preserved", results[1].Err)
	}
	if !errors.Is(results[2].Err, store.ErrNameTaken) || results[2].Config != nil {
		t.Errorf("results[2] = %+v, want ErrNameTaken", results[2])
	}
	if names, _ := m.Names(ctx); len(names) != 1 {
		t.Errorf("stored names = %v, want [a]", names)
	}
}

func TestManager_Export(t *testing.T) {
	m, s, _ := newTestManager(t)
	ctx := context.Background()

	for _, n := range []string{"a", "b"} {
		if _, err := m.Create(ctx, cfgNamed(t, n)); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	s.tunnels["broken"] = &store.Tunnel{Name: "broken"}

	p := filepath.Join(t.TempDir(), "all.zip")
	n, err := m.Export(ctx, p)
	if err != nil {
		t.Fatalf("Export() error: %v", err)
	}
	if n != 2 {
		t.Errorf("Export() = %d, want 2", n)
	}
	entries, err := archive.ReadFile(p)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(entries) != 2 || entries[0].Name != "a" || entries[1].Name != "b" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestManager_RunningAndApply(t *testing.T) {
	m, s, f := newTestManager(t)
	ctx := context.Background()

	if _, err := m.Create(ctx, cfgNamed(t, "office")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := m.Apply(ctx, "office", cfgNamed(t, "office")); !errors.Is(err, backend.ErrInactive) {
		t.Errorf("Apply() on inactive tunnel error = %v, want ErrInactive", err)
	}
	if err := m.Activate(ctx, "office"); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	running := m.Running()
	if cfg, ok := running["office"]; !ok || !cfg.Equal(cfgNamed(t, "office")) {
		t.Fatalf("Running() = %v", running)
	}

	next := cfgNamed(t, "office")
	next.Peers[0].PersistentKeepalive = wgconf.Uint16(15)
	if err := m.Apply(ctx, "office", next); err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if !m.Running()["office"].Equal(next) {
		t.Error("Running() does not reflect applied configuration")
	}
	if !strings.Contains(f.backends[0].settings, "persistent_keepalive_interval=15") {
		t.Errorf("settings not applied:\n%s", f.backends[0].settings)
	}
	if s.tunnels["office"].Config.Equal(next) {
		t.Error("Apply() must not write to the store")
	}
}

func TestManager_ApplyFailedRestartReleasesTunnel(t *testing.T) {
	m, _, f := newTestManager(t)
	ctx := context.Background()

	if _, err := m.Create(ctx, cfgNamed(t, "office")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := m.Activate(ctx, "office"); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	tunErr := errors.New("tun unavailable")
	f.setErr(tunErr)
	next := cfgNamed(t, "office")
	next.Interface.MTU = wgconf.Uint16(1280)
	if err := m.Apply(ctx, "office", next); !errors.Is(err, tunErr) {
		t.Fatalf("Apply() error = %v, want %v", err, tunErr)
	}
	if got := m.Active(); len(got) != 0 {
		t.Errorf("Active() = %v after failed restart, want none", got)
	}
	if _, ok := m.Running()["office"]; ok {
		t.Error("Running() still lists office after failed restart")
	}
	if err := m.Apply(ctx, "office", next); !errors.Is(err, backend.ErrInactive) {
		t.Errorf("second Apply() error = %v, want ErrInactive", err)
	}

	f.setErr(nil)
	if err := m.Activate(ctx, "office"); err != nil {
		t.Fatalf("Activate() after failed restart: %v", err)
	}
	if got := m.Active(); len(got) != 1 || got[0] != "office" {
		t.Errorf("Active() = %v, want [office]", got)
	}
}

func TestManager_UpdateFailedRestartReleasesTunnel(t *testing.T) {
	m, _, f := newTestManager(t)
	ctx := context.Background()

	if _, err := m.Create(ctx, cfgNamed(t, "office")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := m.Activate(ctx, "office"); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	f.setErr(errors.New("tun unavailable"))
	next := cfgNamed(t, "office")
	next.Interface.MTU = wgconf.Uint16(1280)
	if _, err := m.Update(ctx, "office", next); err == nil {
		t.Fatal("Update() with failing restart = nil error")
	}
	if got := m.Active(); len(got) != 0 {
		t.Errorf("Active() = %v after failed restart, want none", got)
	}

	f.setErr(nil)
	if err := m.Activate(ctx, "office"); err != nil {
		t.Errorf("Activate() after failed restart: %v", err)
	}
}
