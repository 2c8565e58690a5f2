package ethereum

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	qt "github.com/frankban/quicktest"
)

func TestNewSignerFromHex(t *testing.T) {
	c := qt.New(t)

	privKey, err := ethcrypto.GenerateKey()
	c.Assert(err, qt.IsNil)
	hexKey := common.Bytes2Hex(ethcrypto.FromECDSA(privKey))

	signer, err := NewSignerFromHex(hexKey)
	c.Assert(err, qt.IsNil)
	c.Assert(signer.Address(), qt.Equals, ethcrypto.PubkeyToAddress(privKey.PublicKey))

	prefixed, err := NewSignerFromHex("0x" + hexKey)
	c.Assert(err, qt.IsNil)
	c.Assert(prefixed.Address(), qt.Equals, signer.Address())
	c.Assert(prefixed.HexPrivateKey().String(), qt.Equals, "0x"+hexKey)

	_, err = NewSignerFromHex("invalid hex string")
	c.Assert(err, qt.Not(qt.IsNil))
	_, err = NewSignerFromHex("1234")
	c.Assert(err, qt.Not(qt.IsNil))
}

func TestNewSignerFromSeed(t *testing.T) {
	c := qt.New(t)

	a, err := NewSignerFromSeed([]byte("burnkit"))
	c.Assert(err, qt.IsNil)
	b, err := NewSignerFromSeed([]byte("burnkit"))
	c.Assert(err, qt.IsNil)
	c.Assert(a.Address(), qt.Equals, b.Address())

	other, err := NewSignerFromSeed([]byte("other"))
	c.Assert(err, qt.IsNil)
	c.Assert(other.Address(), qt.Not(qt.Equals), a.Address())
}

func TestSignAndRecover(t *testing.T) {
	c := qt.New(t)

	signer, err := NewSigner()
	c.Assert(err, qt.IsNil)

	msg := []byte("EIP-7503")
	sig, err := signer.Sign(msg)
	c.Assert(err, qt.IsNil)
	c.Assert(sig.Valid(), qt.IsTrue)
	c.Assert(sig.V <= 1, qt.IsTrue)

	addr, err := AddrFromSignature(msg, sig)
	c.Assert(err, qt.IsNil)
	c.Assert(addr, qt.Equals, signer.Address())
	c.Assert(sig.Verify(msg, signer.Address()), qt.IsTrue)
	c.Assert(sig.Verify([]byte("other message"), signer.Address()), qt.IsFalse)

	// RFC 6979 signatures are deterministic
	again, err := signer.Sign(msg)
	c.Assert(err, qt.IsNil)
	c.Assert(again.S.Cmp(sig.S), qt.Equals, 0)
	c.Assert(again.R.Cmp(sig.R), qt.Equals, 0)
}

func TestHashMessage(t *testing.T) {
	c := qt.New(t)

	msg := []byte("hello")
	expected := ethcrypto.Keccak256([]byte("\x19Ethereum Signed Message:\n5hello"))
	c.Assert(HashMessage(msg), qt.DeepEquals, expected)
}
