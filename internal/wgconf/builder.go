package wgconf

import (
	"errors"
	"fmt"
	"net/netip"
	"strconv"
)

var (
	interfaceKeys = map[AttributeKey]bool{
		KeyPrivateKey: true,
		KeyListenPort: true,
		KeyAddress:    true,
		KeyDNS:        true,
		KeyMTU:        true,
	}
	peerKeys = map[AttributeKey]bool{
		KeyPublicKey:           true,
		KeyPresharedKey:        true,
		KeyAllowedIPs:          true,
		KeyEndpoint:            true,
		KeyPersistentKeepalive: true,
	}
)

var errMissing = errors.New("missing")

// checkSectionKeys rejects attributes that belong to the other section.
// Keys are visited in declaration order so the reported field is stable.
func checkSectionKeys(attrs map[AttributeKey]string, allowed map[AttributeKey]bool, fail func(AttributeKey, error) error, section string) error {
	for k := KeyAddress; k <= KeyPublicKey; k++ {
		if _, ok := attrs[k]; ok && !allowed[k] {
			return fail(k, fmt.Errorf("not valid in [%s]", section))
		}
	}
	return nil
}

func buildInterface(attrs map[AttributeKey]string, line int) (InterfaceConfiguration, error) {
	fail := func(k AttributeKey, err error) error {
		return &ParseError{Kind: ErrInvalidInterface, Line: line, Field: k.String(), Err: err}
	}

	var iface InterfaceConfiguration
	if err := checkSectionKeys(attrs, interfaceKeys, fail, "Interface"); err != nil {
		return iface, err
	}

	raw, ok := attrs[KeyPrivateKey]
	if !ok {
		return iface, fail(KeyPrivateKey, errMissing)
	}
	key, err := ParseKey(raw)
	if err != nil {
		return iface, fail(KeyPrivateKey, err)
	}
	iface.PrivateKey = key

	if raw, ok := attrs[KeyListenPort]; ok {
		port, err := parseUint16(raw)
		if err != nil {
			return iface, fail(KeyListenPort, err)
		}
		iface.ListenPort = &port
	}

	if raw, ok := attrs[KeyAddress]; ok {
		addrs, err := parseAddressRangeList(raw)
		if err != nil {
			return iface, fail(KeyAddress, err)
		}
		iface.Addresses = addrs
	}

	if raw, ok := attrs[KeyDNS]; ok {
		for _, item := range splitList(raw) {
			if addr, err := netip.ParseAddr(item); err == nil {
				iface.DNS = append(iface.DNS, addr)
				continue
			}
			if !isSearchDomain(item) {
				return iface, fail(KeyDNS, fmt.Errorf("%q is neither an address nor a domain", item))
			}
			iface.DNSSearch = append(iface.DNSSearch, item)
		}
	}

	if raw, ok := attrs[KeyMTU]; ok {
		mtu, err := parseUint16(raw)
		if err != nil {
			return iface, fail(KeyMTU, err)
		}
		iface.MTU = &mtu
	}

	return iface, nil
}

func buildPeer(attrs map[AttributeKey]string, line int) (PeerConfiguration, error) {
	fail := func(k AttributeKey, err error) error {
		return &ParseError{Kind: ErrInvalidPeer, Line: line, Field: k.String(), Err: err}
	}

	var peer PeerConfiguration
	if err := checkSectionKeys(attrs, peerKeys, fail, "Peer"); err != nil {
		return peer, err
	}

	raw, ok := attrs[KeyPublicKey]
	if !ok {
		return peer, fail(KeyPublicKey, errMissing)
	}
	key, err := ParseKey(raw)
	if err != nil {
		return peer, fail(KeyPublicKey, err)
	}
	peer.PublicKey = key

	if raw, ok := attrs[KeyPresharedKey]; ok {
		psk, err := ParseKey(raw)
		if err != nil {
			return peer, fail(KeyPresharedKey, err)
		}
		peer.PresharedKey = &psk
	}

	if raw, ok := attrs[KeyAllowedIPs]; ok {
		ranges, err := parseAddressRangeList(raw)
		if err != nil {
			return peer, fail(KeyAllowedIPs, err)
		}
		peer.AllowedIPs = ranges
	}

	if raw, ok := attrs[KeyEndpoint]; ok {
		ep, err := ParseEndpoint(raw)
		if err != nil {
			return peer, fail(KeyEndpoint, err)
		}
		peer.Endpoint = &ep
	}

	if raw, ok := attrs[KeyPersistentKeepalive]; ok {
		ka, err := parseUint16(raw)
		if err != nil {
			return peer, fail(KeyPersistentKeepalive, err)
		}
		peer.PersistentKeepalive = &ka
	}

	return peer, nil
}

func parseUint16(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("%q is not an unsigned 16-bit integer", s)
	}
	return uint16(v), nil
}
