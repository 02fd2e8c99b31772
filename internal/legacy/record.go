// Package legacy migrates tunnel records persisted by older releases into
// the current configuration model.
//
// Old records are property lists (binary or XML). Keys are raw 32-byte
// blobs, interface addresses are raw 4 or 16 address bytes followed by one
// prefix-length byte, DNS servers are raw address bytes, and endpoints are
// stored in their text form. Migration changes representation only.
package legacy

import (
	"errors"
	"fmt"

	"howett.net/plist"
)

const (
	// Version is the only schema version Migrate understands.
	Version = 1
	// CurrentVersion is the schema version of records written today.
	CurrentVersion = 2
)

var (
	// ErrUnsupportedVersion is returned for records whose version tag is
	// not Version.
	ErrUnsupportedVersion = errors.New("legacy: unsupported configuration version")
	// ErrDecode is returned when a field of a legacy record cannot be read.
	ErrDecode = errors.New("legacy: decode failure")
)

// Record is the persisted layout of a version 1 tunnel.
type Record struct {
	Version   int             `plist:"tunnelConfigurationVersion"`
	Name      string          `plist:"name,omitempty"`
	Interface InterfaceRecord `plist:"interface"`
	Peers     []PeerRecord    `plist:"peers,omitempty"`
}

// InterfaceRecord is the persisted interface of a version 1 tunnel.
type InterfaceRecord struct {
	PrivateKey []byte   `plist:"privateKey"`
	ListenPort *uint64  `plist:"listenPort,omitempty"`
	MTU        *uint64  `plist:"mtu,omitempty"`
	Addresses  [][]byte `plist:"addresses,omitempty"`
	DNS        [][]byte `plist:"dns,omitempty"`
}

// PeerRecord is a persisted peer of a version 1 tunnel.
type PeerRecord struct {
	PublicKey           []byte   `plist:"publicKey"`
	PresharedKey        []byte   `plist:"preSharedKey,omitempty"`
	AllowedIPs          [][]byte `plist:"allowedIPs,omitempty"`
	Endpoint            string   `plist:"endpoint,omitempty"`
	PersistentKeepalive *uint64  `plist:"persistentKeepAlive,omitempty"`
}

// versionTag is decoded first so an unknown schema is reported as such
// rather than as a field decoding failure.
type versionTag struct {
	Version int `plist:"tunnelConfigurationVersion"`
}

// PeekVersion returns the tunnelConfigurationVersion tag of a persisted
// record without decoding the rest of it.
func PeekVersion(data []byte) (int, error) {
	var tag versionTag
	if _, err := plist.Unmarshal(data, &tag); err != nil {
		return 0, fmt.Errorf("%w: record: %v", ErrDecode, err)
	}
	return tag.Version, nil
}

// Encode serializes r as a binary property list.
func Encode(r *Record) ([]byte, error) {
	data, err := plist.Marshal(r, plist.BinaryFormat)
	if err != nil {
		return nil, fmt.Errorf("legacy: encode: %w", err)
	}
	return data, nil
}
