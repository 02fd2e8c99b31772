package wgconf

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func hexRepeat(b string) string {
	return strings.Repeat(b, 32)
}

func TestUAPIConfig(t *testing.T) {
	want := "replace_peers=true\n" +
		"private_key=" + hexRepeat("61") + "\n" +
		"listen_port=51820\n" +
		"public_key=" + hexRepeat("62") + "\n" +
		"preshared_key=" + hexRepeat("64") + "\n" +
		"endpoint=[2001:db8::1]:51820\n" +
		"persistent_keepalive_interval=25\n" +
		"replace_allowed_ips=true\n" +
		"allowed_ip=0.0.0.0/0\n" +
		"allowed_ip=::/0\n" +
		"public_key=" + hexRepeat("63") + "\n" +
		"endpoint=vpn.example.com:443\n" +
		"replace_allowed_ips=true\n" +
		"allowed_ip=192.168.1.0/24\n"

	if got := fullConfig().UAPIConfig(); got != want {
		t.Errorf("UAPIConfig() =\n%s\nwant\n%s", got, want)
	}
}

func TestParseUAPI_RoundTripsSettings(t *testing.T) {
	cfg := fullConfig()
	parsed, err := ParseUAPI(cfg.UAPIConfig(), cfg)
	if err != nil {
		t.Fatalf("ParseUAPI() error: %v", err)
	}
	if !parsed.Equal(cfg) {
		t.Errorf("ParseUAPI(UAPIConfig()) differs:\n%s\n%s", cfg.WgQuickConfig(), parsed.WgQuickConfig())
	}
}

func TestParseUAPI_RuntimeDump(t *testing.T) {
	dump := "private_key=" + hexRepeat("61") + "\n" +
		"listen_port=51820\n" +
		"fwmark=0\n" +
		"public_key=" + hexRepeat("62") + "\n" +
		"preshared_key=" + hexRepeat("00") + "\n" +
		"protocol_version=1\n" +
		"endpoint=192.0.2.1:51820\n" +
		"last_handshake_time_sec=1700000000\n" +
		"last_handshake_time_nsec=500\n" +
		"tx_bytes=1024\n" +
		"rx_bytes=2048\n" +
		"persistent_keepalive_interval=0\n" +
		"allowed_ip=10.0.0.0/8\n" +
		"errno=0\n" +
		"\n"

	base := &TunnelConfiguration{
		Name: "office",
		Interface: InterfaceConfiguration{
			Addresses: []IPAddressRange{MustParseIPAddressRange("10.0.0.2/32")},
			MTU:       Uint16(1420),
		},
	}

	cfg, err := ParseUAPI(dump, base)
	if err != nil {
		t.Fatalf("ParseUAPI() error: %v", err)
	}
	if cfg.Name != "office" || len(cfg.Interface.Addresses) != 1 || *cfg.Interface.MTU != 1420 {
		t.Errorf("base fields not carried over: %+v", cfg.Interface)
	}
	if cfg.Interface.PrivateKey != mustKey(testPrivateKey) {
		t.Error("private key not decoded")
	}
	if len(cfg.Peers) != 1 {
		t.Fatalf("len(Peers) = %d, want 1", len(cfg.Peers))
	}
	p := cfg.Peers[0]
	if p.PresharedKey != nil {
		t.Error("all-zero preshared key should be treated as absent")
	}
	if p.PersistentKeepalive != nil {
		t.Error("zero keepalive should be treated as absent")
	}
	if p.Stats == nil {
		t.Fatal("Stats = nil")
	}
	if p.Stats.RxBytes != 2048 || p.Stats.TxBytes != 1024 {
		t.Errorf("Stats = %+v, want rx 2048 tx 1024", *p.Stats)
	}
	if !p.Stats.LastHandshake.Equal(time.Unix(1700000000, 500)) {
		t.Errorf("LastHandshake = %v", p.Stats.LastHandshake)
	}
	if base.Interface.PrivateKey != (Key{}) {
		t.Error("ParseUAPI modified base")
	}
}

func TestParseUAPI_Errors(t *testing.T) {
	tests := map[string]string{
		"no equals":       "private_key\n",
		"bad hex":         "private_key=zz\n",
		"unknown key":     "bogus=1\n",
		"unknown peer":    "public_key=" + hexRepeat("62") + "\nbogus=1\n",
		"errno":           "errno=22\n",
		"bad allowed ip":  "public_key=" + hexRepeat("62") + "\nallowed_ip=10.0.0.1\n",
		"duplicate peers": "public_key=" + hexRepeat("62") + "\npublic_key=" + hexRepeat("62") + "\n",
	}
	for name, dump := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseUAPI(dump, nil); err == nil {
				t.Error("ParseUAPI() = nil error")
			}
		})
	}

	_, err := ParseUAPI("bogus=1\n", nil)
	if !errors.Is(err, ErrInvalidUAPI) {
		t.Errorf("error = %v, want ErrInvalidUAPI", err)
	}
}
