package wgconf

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// UAPIConfig renders the settings string handed to the tunnel backend.
// Keys are hex encoded and peers are replaced wholesale. Endpoints are
// rendered as stored; resolve hostnames beforehand if the backend needs
// literal addresses.
func (c *TunnelConfiguration) UAPIConfig() string {
	var b strings.Builder

	b.WriteString("replace_peers=true\n")
	fmt.Fprintf(&b, "private_key=%s\n", HexKey(c.Interface.PrivateKey))
	if c.Interface.ListenPort != nil {
		fmt.Fprintf(&b, "listen_port=%d\n", *c.Interface.ListenPort)
	}

	for _, peer := range c.Peers {
		fmt.Fprintf(&b, "public_key=%s\n", HexKey(peer.PublicKey))
		if peer.PresharedKey != nil {
			fmt.Fprintf(&b, "preshared_key=%s\n", HexKey(*peer.PresharedKey))
		}
		if peer.Endpoint != nil {
			fmt.Fprintf(&b, "endpoint=%s\n", peer.Endpoint)
		}
		if peer.PersistentKeepalive != nil {
			fmt.Fprintf(&b, "persistent_keepalive_interval=%d\n", *peer.PersistentKeepalive)
		}
		b.WriteString("replace_allowed_ips=true\n")
		for _, r := range peer.AllowedIPs {
			fmt.Fprintf(&b, "allowed_ip=%s\n", r)
		}
	}

	return b.String()
}

// ParseUAPI reads a backend settings string or runtime dump. Interface
// fields that the protocol does not carry (name, addresses, DNS, MTU) and a
// missing private key or listen port are taken from base, which may be nil.
// Runtime counters populate PeerConfiguration.Stats.
func ParseUAPI(dump string, base *TunnelConfiguration) (*TunnelConfiguration, error) {
	cfg := &TunnelConfiguration{}
	if base != nil {
		cfg.Name = base.Name
		cfg.Interface = base.Interface.Copy()
	}

	fail := func(lineNo int, key string, err error) error {
		return &ParseError{Kind: ErrInvalidUAPI, Line: lineNo, Field: key, Err: err}
	}

	var peer *PeerConfiguration
	var hsSec, hsNsec int64
	finishPeer := func() {
		if peer == nil {
			return
		}
		if hsSec != 0 || hsNsec != 0 {
			ensureStats(peer).LastHandshake = time.Unix(hsSec, hsNsec)
		}
		cfg.Peers = append(cfg.Peers, *peer)
		peer, hsSec, hsNsec = nil, 0, 0
	}

	scanner := bufio.NewScanner(strings.NewReader(dump))
	scanner.Buffer(make([]byte, 0, 4096), maxLineLength)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" {
			break
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			return nil, fail(lineNo, "", fmt.Errorf("line has no '='"))
		}

		if key == "public_key" {
			finishPeer()
			k, err := ParseHexKey(value)
			if err != nil {
				return nil, fail(lineNo, key, err)
			}
			peer = &PeerConfiguration{PublicKey: k}
			continue
		}

		if peer == nil {
			if err := applyInterfaceUAPI(&cfg.Interface, key, value); err != nil {
				return nil, fail(lineNo, key, err)
			}
			continue
		}

		switch key {
		case "last_handshake_time_sec":
			v, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return nil, fail(lineNo, key, err)
			}
			hsSec = v
		case "last_handshake_time_nsec":
			v, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return nil, fail(lineNo, key, err)
			}
			hsNsec = v
		default:
			if err := applyPeerUAPI(peer, key, value); err != nil {
				return nil, fail(lineNo, key, err)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("wgconf: read settings: %w", err)
	}
	finishPeer()

	if i, ok := duplicatePeer(cfg.Peers); ok {
		return nil, &ParseError{Kind: ErrDuplicatePeerPublicKey, Field: "public_key", Err: fmt.Errorf("key %s repeated", cfg.Peers[i].PublicKey)}
	}
	return cfg, nil
}

func applyInterfaceUAPI(iface *InterfaceConfiguration, key, value string) error {
	switch key {
	case "private_key":
		k, err := ParseHexKey(value)
		if err != nil {
			return err
		}
		iface.PrivateKey = k
	case "listen_port":
		port, err := parseUint16(value)
		if err != nil {
			return err
		}
		if port != 0 || iface.ListenPort != nil {
			iface.ListenPort = &port
		}
	case "errno":
		if value != "0" {
			return fmt.Errorf("backend reported errno %s", value)
		}
	case "replace_peers", "fwmark", "protocol_version":
	default:
		return fmt.Errorf("unknown interface key")
	}
	return nil
}

func applyPeerUAPI(peer *PeerConfiguration, key, value string) error {
	switch key {
	case "preshared_key":
		k, err := ParseHexKey(value)
		if err != nil {
			return err
		}
		if !isZeroKey(k) {
			peer.PresharedKey = &k
		}
	case "endpoint":
		ep, err := ParseEndpoint(value)
		if err != nil {
			return err
		}
		peer.Endpoint = &ep
	case "persistent_keepalive_interval":
		v, err := parseUint16(value)
		if err != nil {
			return err
		}
		if v != 0 {
			peer.PersistentKeepalive = &v
		}
	case "allowed_ip":
		r, err := ParseIPAddressRange(value)
		if err != nil {
			return err
		}
		peer.AllowedIPs = append(peer.AllowedIPs, r)
	case "rx_bytes":
		v, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		ensureStats(peer).RxBytes = v
	case "tx_bytes":
		v, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		ensureStats(peer).TxBytes = v
	case "replace_allowed_ips", "protocol_version", "update_only", "remove":
	case "errno":
		if value != "0" {
			return fmt.Errorf("backend reported errno %s", value)
		}
	default:
		return fmt.Errorf("unknown peer key")
	}
	return nil
}

func ensureStats(p *PeerConfiguration) *PeerStats {
	if p.Stats == nil {
		p.Stats = &PeerStats{}
	}
	return p.Stats
}
