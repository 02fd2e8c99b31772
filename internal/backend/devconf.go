package backend

import (
	"fmt"
	"net"
	"strings"
	"time"

	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"

	"github.com/plexsphere/wgtunnel/internal/wgconf"
)

// deviceConfig translates a settings string into a wgctrl configuration.
// Peers are always replaced wholesale.
func deviceConfig(settings string) (wgtypes.Config, error) {
	cfg, err := wgconf.ParseUAPI(settings, nil)
	if err != nil {
		return wgtypes.Config{}, err
	}

	priv := cfg.Interface.PrivateKey
	out := wgtypes.Config{
		PrivateKey:   &priv,
		ReplacePeers: true,
	}
	if cfg.Interface.ListenPort != nil {
		port := int(*cfg.Interface.ListenPort)
		out.ListenPort = &port
	}

	for _, p := range cfg.Peers {
		pc := wgtypes.PeerConfig{
			PublicKey:         p.PublicKey,
			PresharedKey:      p.PresharedKey,
			ReplaceAllowedIPs: true,
		}
		if p.Endpoint != nil {
			addr, ok := p.Endpoint.Addr()
			if !ok {
				return wgtypes.Config{}, fmt.Errorf("backend: endpoint %s is not an IP address", p.Endpoint)
			}
			pc.Endpoint = &net.UDPAddr{IP: addr.AsSlice(), Port: int(p.Endpoint.Port), Zone: addr.Zone()}
		}
		if p.PersistentKeepalive != nil {
			d := time.Duration(*p.PersistentKeepalive) * time.Second
			pc.PersistentKeepaliveInterval = &d
		}
		for _, r := range p.AllowedIPs {
			pc.AllowedIPs = append(pc.AllowedIPs, r.IPNet())
		}
		out.Peers = append(out.Peers, pc)
	}
	return out, nil
}

// deviceDump renders a wgctrl device in the runtime dump format.
func deviceDump(d *wgtypes.Device) string {
	var b strings.Builder
	var zero wgtypes.Key

	fmt.Fprintf(&b, "private_key=%s\n", wgconf.HexKey(d.PrivateKey))
	fmt.Fprintf(&b, "listen_port=%d\n", d.ListenPort)
	if d.FirewallMark != 0 {
		fmt.Fprintf(&b, "fwmark=%d\n", d.FirewallMark)
	}

	for _, p := range d.Peers {
		fmt.Fprintf(&b, "public_key=%s\n", wgconf.HexKey(p.PublicKey))
		if p.PresharedKey != zero {
			fmt.Fprintf(&b, "preshared_key=%s\n", wgconf.HexKey(p.PresharedKey))
		}
		if p.Endpoint != nil {
			fmt.Fprintf(&b, "endpoint=%s\n", p.Endpoint)
		}
		var sec, nsec int64
		if !p.LastHandshakeTime.IsZero() {
			sec = p.LastHandshakeTime.Unix()
			nsec = int64(p.LastHandshakeTime.Nanosecond())
		}
		fmt.Fprintf(&b, "last_handshake_time_sec=%d\n", sec)
		fmt.Fprintf(&b, "last_handshake_time_nsec=%d\n", nsec)
		fmt.Fprintf(&b, "tx_bytes=%d\n", p.TransmitBytes)
		fmt.Fprintf(&b, "rx_bytes=%d\n", p.ReceiveBytes)
		fmt.Fprintf(&b, "persistent_keepalive_interval=%d\n", int(p.PersistentKeepaliveInterval/time.Second))
		for _, ipn := range p.AllowedIPs {
			fmt.Fprintf(&b, "allowed_ip=%s\n", ipn.String())
		}
	}
	return b.String()
}
