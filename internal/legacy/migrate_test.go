package legacy

import (
	"bytes"
	"errors"
	"net/netip"
	"testing"

	"howett.net/plist"

	"github.com/plexsphere/wgtunnel/internal/wgconf"
)

func u64(v uint64) *uint64 { return &v }

func testRecord() *Record {
	return &Record{
		Version: Version,
		Name:    "legacy",
		Interface: InterfaceRecord{
			PrivateKey: bytes.Repeat([]byte{0x61}, 32),
			ListenPort: u64(51820),
			MTU:        u64(1420),
			Addresses: [][]byte{
				{10, 0, 0, 2, 32},
				append(netip.MustParseAddr("fd00::2").AsSlice(), 128),
			},
			DNS: [][]byte{{1, 1, 1, 1}},
		},
		Peers: []PeerRecord{
			{
				PublicKey:           bytes.Repeat([]byte{0x62}, 32),
				PresharedKey:        bytes.Repeat([]byte{0x64}, 32),
				AllowedIPs:          [][]byte{{0, 0, 0, 0, 0}},
				Endpoint:            "demo.wireguard.com:51820",
				PersistentKeepalive: u64(25),
			},
		},
	}
}

func TestMigrate(t *testing.T) {
	for _, format := range []int{plist.BinaryFormat, plist.XMLFormat} {
		data, err := plist.Marshal(testRecord(), format)
		if err != nil {
			t.Fatalf("plist.Marshal: %v", err)
		}

		cfg, err := Migrate(data)
		if err != nil {
			t.Fatalf("Migrate() error: %v", err)
		}

		want := "[Interface]\n" +
			"PrivateKey = YWFhYWFhYWFhYWFhYWFhYWFhYWFhYWFhYWFhYWFhYWE=\n" +
			"ListenPort = 51820\n" +
			"Address = 10.0.0.2/32, fd00::2/128\n" +
			"DNS = 1.1.1.1\n" +
			"MTU = 1420\n" +
			"\n[Peer]\n" +
			"PublicKey = YmJiYmJiYmJiYmJiYmJiYmJiYmJiYmJiYmJiYmJiYmI=\n" +
			"PresharedKey = ZGRkZGRkZGRkZGRkZGRkZGRkZGRkZGRkZGRkZGRkZGQ=\n" +
			"AllowedIPs = 0.0.0.0/0\n" +
			"Endpoint = demo.wireguard.com:51820\n" +
			"PersistentKeepalive = 25\n"
		if got := cfg.WgQuickConfig(); got != want {
			t.Errorf("format %d: migrated config =\n%s\nwant\n%s", format, got, want)
		}
		if cfg.Name != "legacy" {
			t.Errorf("Name = %q, want legacy", cfg.Name)
		}
	}
}

func TestMigrate_UnsupportedVersion(t *testing.T) {
	for _, v := range []int{0, CurrentVersion, 99} {
		rec := testRecord()
		rec.Version = v
		data, err := Encode(rec)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		if _, err := Migrate(data); !errors.Is(err, ErrUnsupportedVersion) {
			t.Errorf("version %d: Migrate() error = %v, want ErrUnsupportedVersion", v, err)
		}
	}
}

func TestMigrate_DecodeFailures(t *testing.T) {
	tests := map[string]func(r *Record){
		"short private key":   func(r *Record) { r.Interface.PrivateKey = []byte{1, 2, 3} },
		"listen port range":   func(r *Record) { r.Interface.ListenPort = u64(70000) },
		"address length":      func(r *Record) { r.Interface.Addresses = [][]byte{{10, 0, 0}} },
		"dns length":          func(r *Record) { r.Interface.DNS = [][]byte{{1, 1}} },
		"public key":          func(r *Record) { r.Peers[0].PublicKey = []byte{1} },
		"preshared key":       func(r *Record) { r.Peers[0].PresharedKey = []byte{1} },
		"allowed ip":          func(r *Record) { r.Peers[0].AllowedIPs = [][]byte{make([]byte, 6)} },
		"endpoint":            func(r *Record) { r.Peers[0].Endpoint = "no-port" },
		"keepalive range":     func(r *Record) { r.Peers[0].PersistentKeepalive = u64(1 << 20) },
		"duplicate peer keys": func(r *Record) { r.Peers = append(r.Peers, r.Peers[0]) },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			rec := testRecord()
			mutate(rec)
			data, err := Encode(rec)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			cfg, err := Migrate(data)
			if !errors.Is(err, ErrDecode) {
				t.Errorf("Migrate() error = %v, want ErrDecode", err)
			}
			if cfg != nil {
				t.Error("Migrate() returned a partial configuration")
			}
		})
	}
}

func TestMigrate_Garbage(t *testing.T) {
	if _, err := Migrate([]byte("definitely not a plist")); err == nil {
		t.Error("Migrate(garbage) = nil error")
	}
}

func TestPeekVersion(t *testing.T) {
	data, err := Encode(testRecord())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	v, err := PeekVersion(data)
	if err != nil {
		t.Fatalf("PeekVersion() error: %v", err)
	}
	if v != Version {
		t.Errorf("PeekVersion() = %d, want %d", v, Version)
	}
}

func TestFromConfiguration_RoundTrip(t *testing.T) {
	want, err := wgconf.Parse("[Interface]\n"+
		"PrivateKey = YWFhYWFhYWFhYWFhYWFhYWFhYWFhYWFhYWFhYWFhYWE=\n"+
		"Address = 10.1.0.1/24\n"+
		"DNS = 9.9.9.9\n"+
		"\n[Peer]\n"+
		"PublicKey = YmJiYmJiYmJiYmJiYmJiYmJiYmJiYmJiYmJiYmJiYmI=\n"+
		"AllowedIPs = 10.1.0.0/16, ::/0\n"+
		"Endpoint = [2001:db8::1]:51820\n", "rt")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	data, err := Encode(FromConfiguration(want))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Migrate(data)
	if err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}
	if !got.Equal(want) {
		t.Errorf("round trip mismatch:\n%s\n%s", want.WgQuickConfig(), got.WgQuickConfig())
	}
}
