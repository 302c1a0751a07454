package storage

import (
	"encoding/hex"
	"fmt"
)

func hex64(h [64]byte) string { return hex.EncodeToString(h[:]) }

func parseHex64(s string) ([64]byte, error) {
	var out [64]byte
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, fmt.Errorf("storage: bad hex: %w", err)
	}
	if len(b) != 64 {
		return out, fmt.Errorf("storage: expected 64 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}

// mustParseHex64 is used only on manifest-sourced hashes, which this
// process itself wrote via hex64 and therefore always decode cleanly.
func mustParseHex64(s string) [64]byte {
	h, err := parseHex64(s)
	if err != nil {
		panic(err)
	}
	return h
}
