package types

import (
	"encoding/json"
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/fxamacker/cbor/v2"
)

func TestBigIntJSON(t *testing.T) {
	c := qt.New(t)
	wei, _ := new(big.Int).SetString("1000000000000000000", 10)
	in := map[string]*BigInt{"amount": NewBigInt(wei)}

	data, err := json.Marshal(in)
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Equals, `{"amount":"1000000000000000000"}`)

	var out map[string]*BigInt
	c.Assert(json.Unmarshal(data, &out), qt.IsNil)
	c.Assert(out["amount"].Equal(in["amount"]), qt.IsTrue)
}

func TestBigIntUnmarshalForms(t *testing.T) {
	c := qt.New(t)

	var quoted, bare, hex BigInt
	c.Assert(json.Unmarshal([]byte(`"42"`), &quoted), qt.IsNil)
	c.Assert(json.Unmarshal([]byte(`42`), &bare), qt.IsNil)
	c.Assert(json.Unmarshal([]byte(`"0x2a"`), &hex), qt.IsNil)
	c.Assert(quoted.String(), qt.Equals, "42")
	c.Assert(bare.String(), qt.Equals, "42")
	c.Assert(hex.String(), qt.Equals, "42")

	var bad BigInt
	c.Assert(json.Unmarshal([]byte(`"forty-two"`), &bad), qt.ErrorMatches, `invalid integer .*`)
}

func TestBigIntCBOR(t *testing.T) {
	c := qt.New(t)
	in := map[string]*BigInt{"key": NewInt(1234567890)}

	data, err := cbor.Marshal(in)
	c.Assert(err, qt.IsNil)

	var out map[string]*BigInt
	c.Assert(cbor.Unmarshal(data, &out), qt.IsNil)
	c.Assert(out["key"].Equal(in["key"]), qt.IsTrue)
}

func TestBigIntBytes32(t *testing.T) {
	c := qt.New(t)
	b := NewInt(0x0102).Bytes32()
	c.Assert(b[30], qt.Equals, byte(0x01))
	c.Assert(b[31], qt.Equals, byte(0x02))
	c.Assert(b[0], qt.Equals, byte(0))

	var nilInt *BigInt
	c.Assert(nilInt.Bytes32(), qt.Equals, [32]byte{})
	c.Assert(nilInt.String(), qt.Equals, "0")
	c.Assert(nilInt.Equal(nil), qt.IsTrue)
}
