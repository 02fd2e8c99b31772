package wgconf

import (
	"bytes"
	"encoding/base64"
	"log/slog"
)

// Fake keys: 32 repeated bytes, valid for parsing only.
var (
	testPrivateKey   = base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{0x61}, 32))
	testPublicKey    = base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{0x62}, 32))
	testPublicKey2   = base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{0x63}, 32))
	testPresharedKey = base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{0x64}, 32))
)

func mustKey(s string) Key {
	k, err := ParseKey(s)
	if err != nil {
		panic(err)
	}
	return k
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nopWriter{}, nil))
}
