package wgconf

import (
	"strconv"
	"strings"
)

// WgQuickConfig renders c in canonical wg-quick form. The output is
// deterministic: the same configuration always produces the same text.
func (c *TunnelConfiguration) WgQuickConfig() string {
	var b strings.Builder
	iface := c.Interface

	b.WriteString("[Interface]\n")
	writeAttr(&b, KeyPrivateKey, iface.PrivateKey.String())
	if iface.ListenPort != nil {
		writeAttr(&b, KeyListenPort, strconv.Itoa(int(*iface.ListenPort)))
	}
	if len(iface.Addresses) > 0 {
		writeAttr(&b, KeyAddress, joinAddressRanges(iface.Addresses))
	}
	if dns := iface.dnsEntries(); len(dns) > 0 {
		writeAttr(&b, KeyDNS, strings.Join(dns, ", "))
	}
	if iface.MTU != nil {
		writeAttr(&b, KeyMTU, strconv.Itoa(int(*iface.MTU)))
	}

	for _, peer := range c.Peers {
		b.WriteString("\n[Peer]\n")
		writeAttr(&b, KeyPublicKey, peer.PublicKey.String())
		if peer.PresharedKey != nil {
			writeAttr(&b, KeyPresharedKey, peer.PresharedKey.String())
		}
		if len(peer.AllowedIPs) > 0 {
			writeAttr(&b, KeyAllowedIPs, joinAddressRanges(peer.AllowedIPs))
		}
		if peer.Endpoint != nil {
			writeAttr(&b, KeyEndpoint, peer.Endpoint.String())
		}
		if peer.PersistentKeepalive != nil {
			writeAttr(&b, KeyPersistentKeepalive, strconv.Itoa(int(*peer.PersistentKeepalive)))
		}
	}

	return b.String()
}

func (i InterfaceConfiguration) dnsEntries() []string {
	out := make([]string, 0, len(i.DNS)+len(i.DNSSearch))
	for _, addr := range i.DNS {
		out = append(out, addr.String())
	}
	return append(out, i.DNSSearch...)
}

func writeAttr(b *strings.Builder, k AttributeKey, value string) {
	b.WriteString(k.String())
	b.WriteString(" = ")
	b.WriteString(value)
	b.WriteByte('\n')
}
