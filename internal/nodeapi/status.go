package nodeapi

import (
	"time"

	"github.com/plexsphere/wgtunnel/internal/wgconf"
)

// TunnelStatus is the runtime state of one tunnel as served on the socket.
// It never carries private or preshared keys.
type TunnelStatus struct {
	Name       string       `json:"name"`
	PublicKey  string       `json:"public_key,omitempty"`
	ListenPort uint16       `json:"listen_port,omitempty"`
	Peers      []PeerStatus `json:"peers"`
}

// PeerStatus is the runtime state of one peer.
type PeerStatus struct {
	PublicKey           string     `json:"public_key"`
	Endpoint            string     `json:"endpoint,omitempty"`
	AllowedIPs          []string   `json:"allowed_ips"`
	PersistentKeepalive uint16     `json:"persistent_keepalive,omitempty"`
	Stats               *PeerStats `json:"stats,omitempty"`
}

// PeerStats holds the counters reported by the backend. A zero
// LatestHandshake means no handshake has completed.
type PeerStats struct {
	LatestHandshake time.Time `json:"latest_handshake"`
	RxBytes         uint64    `json:"rx_bytes"`
	TxBytes         uint64    `json:"tx_bytes"`
}

// NewTunnelStatus converts a runtime configuration into its wire form.
func NewTunnelStatus(cfg *wgconf.TunnelConfiguration) TunnelStatus {
	st := TunnelStatus{
		Name:  cfg.Name,
		Peers: make([]PeerStatus, 0, len(cfg.Peers)),
	}
	if pub, err := cfg.PublicKey(); err == nil {
		st.PublicKey = pub.String()
	}
	if cfg.Interface.ListenPort != nil {
		st.ListenPort = *cfg.Interface.ListenPort
	}
	for _, p := range cfg.Peers {
		ps := PeerStatus{
			PublicKey:  p.PublicKey.String(),
			AllowedIPs: make([]string, 0, len(p.AllowedIPs)),
		}
		if p.Endpoint != nil {
			ps.Endpoint = p.Endpoint.String()
		}
		for _, r := range p.AllowedIPs {
			ps.AllowedIPs = append(ps.AllowedIPs, r.String())
		}
		if p.PersistentKeepalive != nil {
			ps.PersistentKeepalive = *p.PersistentKeepalive
		}
		if p.Stats != nil {
			ps.Stats = &PeerStats{
				LatestHandshake: p.Stats.LastHandshake,
				RxBytes:         p.Stats.RxBytes,
				TxBytes:         p.Stats.TxBytes,
			}
		}
		st.Peers = append(st.Peers, ps)
	}
	return st
}
