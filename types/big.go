package types

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// BigInt wraps big.Int so that it travels as a decimal string in JSON and
// CBOR. Amounts in wei and field elements both exceed the float64 range, so
// they are never encoded as JSON numbers.
type BigInt big.Int

// NewBigInt returns a BigInt holding a copy of x. A nil x yields nil.
func NewBigInt(x *big.Int) *BigInt {
	if x == nil {
		return nil
	}
	return (*BigInt)(new(big.Int).Set(x))
}

// NewInt returns a BigInt holding x.
func NewInt(x int64) *BigInt {
	return (*BigInt)(big.NewInt(x))
}

// MathBigInt returns the underlying *big.Int.
func (i *BigInt) MathBigInt() *big.Int {
	return (*big.Int)(i)
}

// String returns the decimal representation, "0" for nil.
func (i *BigInt) String() string {
	if i == nil {
		return "0"
	}
	return i.MathBigInt().String()
}

// MarshalText encodes the number in base 10. nil encodes as "0".
func (i *BigInt) MarshalText() ([]byte, error) {
	if i == nil {
		return []byte("0"), nil
	}
	return i.MathBigInt().MarshalText()
}

// UnmarshalText accepts base 10 or 0x prefixed hexadecimal text.
func (i *BigInt) UnmarshalText(data []byte) error {
	if i == nil {
		return fmt.Errorf("cannot unmarshal into nil BigInt")
	}
	s := strings.TrimSpace(string(data))
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s, base = s[2:], 16
	}
	if _, ok := i.MathBigInt().SetString(s, base); !ok {
		return fmt.Errorf("invalid integer %q", string(data))
	}
	return nil
}

// UnmarshalJSON accepts both quoted and bare JSON numbers.
func (i *BigInt) UnmarshalJSON(data []byte) error {
	if len(data) >= 2 && data[0] == '"' && data[len(data)-1] == '"' {
		data = data[1 : len(data)-1]
	}
	return i.UnmarshalText(data)
}

// MarshalCBOR encodes the number as a CBOR text string.
func (i *BigInt) MarshalCBOR() ([]byte, error) {
	txt, err := i.MarshalText()
	if err != nil {
		return nil, err
	}
	return cbor.Marshal(string(txt))
}

// UnmarshalCBOR decodes a CBOR text string produced by MarshalCBOR.
func (i *BigInt) UnmarshalCBOR(data []byte) error {
	var s string
	if err := cbor.Unmarshal(data, &s); err != nil {
		return err
	}
	return i.UnmarshalText([]byte(s))
}

// Equal reports whether both numbers hold the same value. Two nil values are
// equal.
func (i *BigInt) Equal(j *BigInt) bool {
	if i == nil || j == nil {
		return (i == nil) == (j == nil)
	}
	return i.MathBigInt().Cmp(j.MathBigInt()) == 0
}

// Bytes32 returns the 32-byte big-endian encoding of the number. Values that
// do not fit are truncated to their low 32 bytes.
func (i *BigInt) Bytes32() [32]byte {
	var out [32]byte
	if i == nil {
		return out
	}
	b := i.MathBigInt().Bytes()
	if len(b) > 32 {
		b = b[len(b)-32:]
	}
	copy(out[32-len(b):], b)
	return out
}
