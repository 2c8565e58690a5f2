// Package ethereum implements EIP-191 personal message signatures: signing,
// parsing of the 65-byte wire format and signer address recovery.
package ethereum

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/proofofburn/burnkit/types"
)

const (
	// SignatureLength is the size of an encoded signature: r(32) || s(32) || v(1).
	SignatureLength = ethcrypto.SignatureLength
	// SigningPrefix is prepended to every message before hashing (EIP-191).
	SigningPrefix = "\u0019Ethereum Signed Message:\n"
)

// Signature is a secp256k1 ECDSA signature over an EIP-191 message. V is the
// recovery id normalized to 0 or 1.
type Signature struct {
	R *big.Int `json:"r"`
	S *big.Int `json:"s"`
	V byte     `json:"v"`
}

// BytesToSignature decodes a 65 byte signature. The recovery byte may be in
// either the raw (0, 1) or the legacy (27, 28) form.
func BytesToSignature(signature []byte) (*Signature, error) {
	if len(signature) != SignatureLength {
		return nil, fmt.Errorf("invalid signature length %d, expected %d", len(signature), SignatureLength)
	}
	v := signature[64]
	if v >= 27 {
		v -= 27
	}
	if v > 1 {
		return nil, fmt.Errorf("invalid recovery byte %d", signature[64])
	}
	return &Signature{
		R: new(big.Int).SetBytes(signature[:32]),
		S: new(big.Int).SetBytes(signature[32:64]),
		V: v,
	}, nil
}

// HexToSignature decodes a hex string (with or without 0x) into a Signature.
func HexToSignature(hexSignature string) (*Signature, error) {
	b, err := types.HexStringToHexBytes(hexSignature)
	if err != nil {
		return nil, err
	}
	return BytesToSignature(b)
}

// Valid reports whether both R and S are set.
func (sig *Signature) Valid() bool {
	return sig != nil && sig.R != nil && sig.S != nil
}

// Bytes returns r || s || v with v in the raw (0, 1) form expected by
// ethcrypto.SigToPub.
func (sig *Signature) Bytes() []byte {
	out := make([]byte, SignatureLength)
	sig.R.FillBytes(out[:32])
	sig.S.FillBytes(out[32:64])
	out[64] = sig.V
	return out
}

// Hex returns the wallet (legacy v = 27/28) hex encoding of the signature.
func (sig *Signature) Hex() string {
	b := sig.Bytes()
	b[64] += 27
	return types.HexBytes(b).String()
}

func (sig *Signature) String() string {
	return fmt.Sprintf("r: %s, s: %s, v: %d", sig.R, sig.S, sig.V)
}

// Verify reports whether sig is a signature of message by expected.
func (sig *Signature) Verify(message []byte, expected common.Address) bool {
	addr, err := AddrFromSignature(message, sig)
	if err != nil {
		return false
	}
	return addr == expected
}

// AddrFromSignature recovers the address that signed message.
func AddrFromSignature(message []byte, sig *Signature) (common.Address, error) {
	if !sig.Valid() {
		return common.Address{}, fmt.Errorf("signature is nil")
	}
	pubKey, err := ethcrypto.SigToPub(HashMessage(message), sig.Bytes())
	if err != nil {
		return common.Address{}, fmt.Errorf("sigToPub: %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pubKey), nil
}
