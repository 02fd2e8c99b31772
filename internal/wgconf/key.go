package wgconf

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/curve25519"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

// Key is a 32-byte Curve25519 key as used for private, public and
// pre-shared keys.
type Key = wgtypes.Key

// KeyLen is the length of a Key in bytes.
const KeyLen = wgtypes.KeyLen

// ParseKey decodes a standard base64 key. The decoded value must be exactly
// KeyLen bytes.
func ParseKey(s string) (Key, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return Key{}, fmt.Errorf("decode base64 key: %w", err)
	}
	if len(raw) != KeyLen {
		return Key{}, fmt.Errorf("key is %d bytes, want %d", len(raw), KeyLen)
	}
	return wgtypes.NewKey(raw)
}

// ParseHexKey decodes a hex key as used in the backend settings protocol.
func ParseHexKey(s string) (Key, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Key{}, fmt.Errorf("decode hex key: %w", err)
	}
	if len(raw) != KeyLen {
		return Key{}, fmt.Errorf("key is %d bytes, want %d", len(raw), KeyLen)
	}
	return wgtypes.NewKey(raw)
}

// HexKey returns the lowercase hex encoding of k.
func HexKey(k Key) string {
	return hex.EncodeToString(k[:])
}

// GeneratePrivateKey returns a new clamped Curve25519 private key.
func GeneratePrivateKey() (Key, error) {
	var k Key
	if _, err := rand.Read(k[:]); err != nil {
		return Key{}, fmt.Errorf("wgconf: generate private key: %w", err)
	}

	k[0] &^= 0x07
	k[31] &^= 0x80
	k[31] |= 0x40

	return k, nil
}

// PublicKey derives the public key for the given private key.
func PublicKey(private Key) (Key, error) {
	pub, err := curve25519.X25519(private[:], curve25519.Basepoint)
	if err != nil {
		return Key{}, fmt.Errorf("wgconf: derive public key: %w", err)
	}
	return wgtypes.NewKey(pub)
}

func isZeroKey(k Key) bool {
	return k == Key{}
}
