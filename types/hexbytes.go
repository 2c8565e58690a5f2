package types

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

// HexBytes is a byte slice that encodes as a 0x prefixed hex string in JSON
// instead of base64.
type HexBytes []byte

// String returns the 0x prefixed hex form.
func (b HexBytes) String() string {
	return "0x" + hex.EncodeToString(b)
}

// LeftPad returns a copy of b padded with leading zeros up to n bytes.
func (b HexBytes) LeftPad(n int) HexBytes {
	if len(b) >= n {
		return bytes.Clone(b)
	}
	out := make(HexBytes, n)
	copy(out[n-len(b):], b)
	return out
}

// Equal reports whether both slices hold the same bytes.
func (b HexBytes) Equal(other HexBytes) bool {
	return bytes.Equal(b, other)
}

// MarshalJSON encodes b as a quoted 0x prefixed hex string.
func (b HexBytes) MarshalJSON() ([]byte, error) {
	enc := make([]byte, hex.EncodedLen(len(b))+4)
	copy(enc, `"0x`)
	hex.Encode(enc[3:], b)
	enc[len(enc)-1] = '"'
	return enc, nil
}

// UnmarshalJSON decodes a quoted hex string, with or without 0x prefix.
func (b *HexBytes) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("invalid JSON string: %q", data)
	}
	decoded, err := HexStringToHexBytes(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*b = decoded
	return nil
}

// HexStringToHexBytes decodes a hex string, stripping an optional 0x prefix.
func HexStringToHexBytes(s string) (HexBytes, error) {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex string %q: %w", s, err)
	}
	return b, nil
}
