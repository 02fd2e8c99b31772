package legacy

import (
	"fmt"
	"math"
	"net/netip"

	"howett.net/plist"

	"github.com/plexsphere/wgtunnel/internal/wgconf"
)

// Migrate decodes a persisted version 1 record into a TunnelConfiguration.
// Any other version yields ErrUnsupportedVersion; an unreadable field yields
// ErrDecode and nothing is returned.
func Migrate(data []byte) (*wgconf.TunnelConfiguration, error) {
	v, err := PeekVersion(data)
	if err != nil {
		return nil, err
	}
	if v != Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}

	var rec Record
	if _, err := plist.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: record: %v", ErrDecode, err)
	}
	return rec.Migrate()
}

// Migrate converts the record into the current model.
func (r *Record) Migrate() (*wgconf.TunnelConfiguration, error) {
	if r.Version != Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, r.Version)
	}

	iface, err := r.Interface.migrate()
	if err != nil {
		return nil, err
	}

	peers := make([]wgconf.PeerConfiguration, 0, len(r.Peers))
	for i, p := range r.Peers {
		peer, err := p.migrate()
		if err != nil {
			return nil, fmt.Errorf("peer %d: %w", i+1, err)
		}
		peers = append(peers, peer)
	}

	cfg, err := wgconf.NewTunnelConfiguration(r.Name, iface, peers)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return cfg, nil
}

func (r InterfaceRecord) migrate() (wgconf.InterfaceConfiguration, error) {
	var iface wgconf.InterfaceConfiguration

	key, err := decodeKey("privateKey", r.PrivateKey)
	if err != nil {
		return iface, err
	}
	iface.PrivateKey = key

	if iface.ListenPort, err = decodeUint16("listenPort", r.ListenPort); err != nil {
		return iface, err
	}
	if iface.MTU, err = decodeUint16("mtu", r.MTU); err != nil {
		return iface, err
	}

	for _, raw := range r.Addresses {
		ar, err := decodeAddressRange("addresses", raw)
		if err != nil {
			return iface, err
		}
		iface.Addresses = append(iface.Addresses, ar)
	}

	for _, raw := range r.DNS {
		addr, ok := netip.AddrFromSlice(raw)
		if !ok {
			return iface, fieldError("dns", "address is %d bytes", len(raw))
		}
		iface.DNS = append(iface.DNS, addr)
	}

	return iface, nil
}

func (r PeerRecord) migrate() (wgconf.PeerConfiguration, error) {
	var peer wgconf.PeerConfiguration

	key, err := decodeKey("publicKey", r.PublicKey)
	if err != nil {
		return peer, err
	}
	peer.PublicKey = key

	if len(r.PresharedKey) > 0 {
		psk, err := decodeKey("preSharedKey", r.PresharedKey)
		if err != nil {
			return peer, err
		}
		peer.PresharedKey = &psk
	}

	for _, raw := range r.AllowedIPs {
		ar, err := decodeAddressRange("allowedIPs", raw)
		if err != nil {
			return peer, err
		}
		peer.AllowedIPs = append(peer.AllowedIPs, ar)
	}

	if r.Endpoint != "" {
		ep, err := wgconf.ParseEndpoint(r.Endpoint)
		if err != nil {
			return peer, fieldError("endpoint", "%v", err)
		}
		peer.Endpoint = &ep
	}

	if peer.PersistentKeepalive, err = decodeUint16("persistentKeepAlive", r.PersistentKeepalive); err != nil {
		return peer, err
	}

	return peer, nil
}

func decodeKey(field string, raw []byte) (wgconf.Key, error) {
	if len(raw) != wgconf.KeyLen {
		return wgconf.Key{}, fieldError(field, "key is %d bytes, want %d", len(raw), wgconf.KeyLen)
	}
	var k wgconf.Key
	copy(k[:], raw)
	return k, nil
}

// decodeAddressRange reads 4 or 16 address bytes followed by a prefix byte.
func decodeAddressRange(field string, raw []byte) (wgconf.IPAddressRange, error) {
	if len(raw) != net4Len+1 && len(raw) != net6Len+1 {
		return wgconf.IPAddressRange{}, fieldError(field, "address range is %d bytes", len(raw))
	}
	addr, _ := netip.AddrFromSlice(raw[:len(raw)-1])
	ar, err := wgconf.NewIPAddressRange(addr, int(raw[len(raw)-1]))
	if err != nil {
		return wgconf.IPAddressRange{}, fieldError(field, "%v", err)
	}
	return ar, nil
}

const (
	net4Len = 4
	net6Len = 16
)

func decodeUint16(field string, v *uint64) (*uint16, error) {
	if v == nil {
		return nil, nil
	}
	if *v > math.MaxUint16 {
		return nil, fieldError(field, "value %d out of range", *v)
	}
	return wgconf.Uint16(uint16(*v)), nil
}

func fieldError(field, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrDecode, field, fmt.Sprintf(format, args...))
}

// FromConfiguration builds a version 1 record from cfg. Search domains have
// no legacy representation and are dropped.
func FromConfiguration(cfg *wgconf.TunnelConfiguration) *Record {
	r := &Record{Version: Version, Name: cfg.Name}
	r.Interface.PrivateKey = append([]byte(nil), cfg.Interface.PrivateKey[:]...)
	r.Interface.ListenPort = widen(cfg.Interface.ListenPort)
	r.Interface.MTU = widen(cfg.Interface.MTU)
	for _, a := range cfg.Interface.Addresses {
		r.Interface.Addresses = append(r.Interface.Addresses, encodeAddressRange(a))
	}
	for _, d := range cfg.Interface.DNS {
		r.Interface.DNS = append(r.Interface.DNS, d.AsSlice())
	}
	for _, p := range cfg.Peers {
		pr := PeerRecord{
			PublicKey:           append([]byte(nil), p.PublicKey[:]...),
			PersistentKeepalive: widen(p.PersistentKeepalive),
		}
		if p.PresharedKey != nil {
			pr.PresharedKey = append([]byte(nil), p.PresharedKey[:]...)
		}
		for _, a := range p.AllowedIPs {
			pr.AllowedIPs = append(pr.AllowedIPs, encodeAddressRange(a))
		}
		if p.Endpoint != nil {
			pr.Endpoint = p.Endpoint.String()
		}
		r.Peers = append(r.Peers, pr)
	}
	return r
}

func encodeAddressRange(a wgconf.IPAddressRange) []byte {
	return append(a.Addr().AsSlice(), a.Bits())
}

func widen(v *uint16) *uint64 {
	if v == nil {
		return nil
	}
	w := uint64(*v)
	return &w
}
