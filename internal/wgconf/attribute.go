package wgconf

import "strings"

// AttributeKey is one of the recognized wg-quick attribute names.
type AttributeKey int

const (
	KeyAddress AttributeKey = iota + 1
	KeyAllowedIPs
	KeyDNS
	KeyEndpoint
	KeyListenPort
	KeyMTU
	KeyPersistentKeepalive
	KeyPresharedKey
	KeyPrivateKey
	KeyPublicKey
)

var attributeNames = map[AttributeKey]string{
	KeyAddress:             "Address",
	KeyAllowedIPs:          "AllowedIPs",
	KeyDNS:                 "DNS",
	KeyEndpoint:            "Endpoint",
	KeyListenPort:          "ListenPort",
	KeyMTU:                 "MTU",
	KeyPersistentKeepalive: "PersistentKeepalive",
	KeyPresharedKey:        "PresharedKey",
	KeyPrivateKey:          "PrivateKey",
	KeyPublicKey:           "PublicKey",
}

var attributeLookup = func() map[string]AttributeKey {
	m := make(map[string]AttributeKey, len(attributeNames))
	for k, name := range attributeNames {
		m[strings.ToLower(name)] = k
	}
	return m
}()

// String returns the canonical spelling of the key.
func (k AttributeKey) String() string {
	if name, ok := attributeNames[k]; ok {
		return name
	}
	return "Unknown"
}

// multiValued reports whether repeated occurrences of k are concatenated.
func (k AttributeKey) multiValued() bool {
	switch k {
	case KeyAddress, KeyAllowedIPs, KeyDNS:
		return true
	}
	return false
}

// LookupAttributeKey matches name case-insensitively against the fixed key
// vocabulary.
func LookupAttributeKey(name string) (AttributeKey, bool) {
	k, ok := attributeLookup[strings.ToLower(name)]
	return k, ok
}

// Attribute is a recognized key with its trimmed value.
type Attribute struct {
	Key   AttributeKey
	Value string
}

// ParseAttribute splits a comment-free, trimmed line on its first '=' and
// looks up the key. It reports false if the line has no '=' or the key is
// not recognized.
func ParseAttribute(line string) (Attribute, bool) {
	name, value, found := strings.Cut(line, "=")
	if !found {
		return Attribute{}, false
	}
	k, ok := LookupAttributeKey(strings.TrimSpace(name))
	if !ok {
		return Attribute{}, false
	}
	return Attribute{Key: k, Value: strings.TrimSpace(value)}, true
}
