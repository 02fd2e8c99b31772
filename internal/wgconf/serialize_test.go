package wgconf

import (
	"net/netip"
	"testing"
)

func fullConfig() *TunnelConfiguration {
	psk := mustKey(testPresharedKey)
	return &TunnelConfiguration{
		Name: "office",
		Interface: InterfaceConfiguration{
			PrivateKey: mustKey(testPrivateKey),
			ListenPort: Uint16(51820),
			MTU:        Uint16(1420),
			Addresses: []IPAddressRange{
				MustParseIPAddressRange("10.0.0.2/32"),
				MustParseIPAddressRange("fd00::2/128"),
			},
			DNS: []netip.Addr{
				netip.MustParseAddr("1.1.1.1"),
				netip.MustParseAddr("2606:4700:4700::1111"),
			},
			DNSSearch: []string{"corp.example"},
		},
		Peers: []PeerConfiguration{
			{
				PublicKey:    mustKey(testPublicKey),
				PresharedKey: &psk,
				AllowedIPs: []IPAddressRange{
					MustParseIPAddressRange("0.0.0.0/0"),
					MustParseIPAddressRange("::/0"),
				},
				Endpoint:            &Endpoint{Host: "2001:db8::1", Port: 51820},
				PersistentKeepalive: Uint16(25),
			},
			{
				PublicKey:  mustKey(testPublicKey2),
				AllowedIPs: []IPAddressRange{MustParseIPAddressRange("192.168.1.0/24")},
				Endpoint:   &Endpoint{Host: "vpn.example.com", Port: 443},
			},
		},
	}
}

func TestWgQuickConfig_Canonical(t *testing.T) {
	want := "[Interface]\n" +
		"PrivateKey = " + testPrivateKey + "\n" +
		"ListenPort = 51820\n" +
		"Address = 10.0.0.2/32, fd00::2/128\n" +
		"DNS = 1.1.1.1, 2606:4700:4700::1111, corp.example\n" +
		"MTU = 1420\n" +
		"\n[Peer]\n" +
		"PublicKey = " + testPublicKey + "\n" +
		"PresharedKey = " + testPresharedKey + "\n" +
		"AllowedIPs = 0.0.0.0/0, ::/0\n" +
		"Endpoint = [2001:db8::1]:51820\n" +
		"PersistentKeepalive = 25\n" +
		"\n[Peer]\n" +
		"PublicKey = " + testPublicKey2 + "\n" +
		"AllowedIPs = 192.168.1.0/24\n" +
		"Endpoint = vpn.example.com:443\n"

	if got := fullConfig().WgQuickConfig(); got != want {
		t.Errorf("WgQuickConfig() =\n%s\nwant\n%s", got, want)
	}
}

func TestWgQuickConfig_MinimalOmitsOptionalFields(t *testing.T) {
	cfg := &TunnelConfiguration{Interface: InterfaceConfiguration{PrivateKey: mustKey(testPrivateKey)}}
	want := "[Interface]\nPrivateKey = " + testPrivateKey + "\n"
	if got := cfg.WgQuickConfig(); got != want {
		t.Errorf("WgQuickConfig() = %q, want %q", got, want)
	}
}

func TestRoundTrip(t *testing.T) {
	configs := map[string]*TunnelConfiguration{
		"full": fullConfig(),
		"minimal": {
			Name:      "min",
			Interface: InterfaceConfiguration{PrivateKey: mustKey(testPrivateKey)},
		},
		"keepalive zero": {
			Name:      "ka",
			Interface: InterfaceConfiguration{PrivateKey: mustKey(testPrivateKey), ListenPort: Uint16(0)},
			Peers: []PeerConfiguration{
				{PublicKey: mustKey(testPublicKey), PersistentKeepalive: Uint16(0)},
			},
		},
	}

	for name, cfg := range configs {
		t.Run(name, func(t *testing.T) {
			text := cfg.WgQuickConfig()
			parsed, err := Parse(text, cfg.Name)
			if err != nil {
				t.Fatalf("Parse() error: %v\n%s", err, text)
			}
			if !parsed.Equal(cfg) {
				t.Errorf("parse(serialize(cfg)) != cfg\n%s\n%s", text, parsed.WgQuickConfig())
			}
			if again := parsed.WgQuickConfig(); again != text {
				t.Errorf("serialization not idempotent:\n%s\n%s", text, again)
			}
		})
	}
}

func TestEqual_AllowedIPsAsSet(t *testing.T) {
	a := fullConfig()
	b := a.Copy()
	ips := b.Peers[0].AllowedIPs
	ips[0], ips[1] = ips[1], ips[0]

	if !a.Equal(b) {
		t.Error("Equal() = false for reordered AllowedIPs")
	}

	b.Interface.Addresses[0], b.Interface.Addresses[1] = b.Interface.Addresses[1], b.Interface.Addresses[0]
	if a.Equal(b) {
		t.Error("Equal() = true for reordered interface addresses")
	}
}

func TestCopy_DoesNotAlias(t *testing.T) {
	a := fullConfig()
	b := a.Copy()

	*b.Interface.ListenPort = 1
	b.Peers[0].Endpoint.Port = 1
	b.Peers[0].AllowedIPs[0] = MustParseIPAddressRange("1.2.3.4/32")
	b.Interface.DNSSearch[0] = "other.example"

	if *a.Interface.ListenPort != 51820 || a.Peers[0].Endpoint.Port != 51820 {
		t.Error("Copy() shares optional fields")
	}
	if a.Peers[0].AllowedIPs[0].String() != "0.0.0.0/0" || a.Interface.DNSSearch[0] != "corp.example" {
		t.Error("Copy() shares slices")
	}
}
