package ethereum

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/proofofburn/burnkit/types"
)

// Signer is a local wallet: an ECDSA private key that signs EIP-191 messages.
type Signer ecdsa.PrivateKey

// Address returns the Ethereum address of the signer.
func (s *Signer) Address() common.Address {
	return ethcrypto.PubkeyToAddress(s.PublicKey)
}

// PrivateKey returns the underlying key, as needed by transaction signers.
func (s *Signer) PrivateKey() *ecdsa.PrivateKey {
	return (*ecdsa.PrivateKey)(s)
}

// HexPrivateKey returns the hex-encoded private key.
func (s *Signer) HexPrivateKey() types.HexBytes {
	return types.HexBytes(ethcrypto.FromECDSA(s.PrivateKey()))
}

// Sign signs msg with the EIP-191 prefix.
func (s *Signer) Sign(msg []byte) (*Signature, error) {
	return Sign(msg, s.PrivateKey())
}

// NewSigner creates a signer with a random key.
func NewSigner() (*Signer, error) {
	s, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("could not generate key: %w", err)
	}
	return (*Signer)(s), nil
}

// NewSignerFromHex loads a signer from a hex-encoded private key. A leading
// 0x is accepted.
func NewSignerFromHex(hexKey string) (*Signer, error) {
	s, err := ethcrypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("could not load key: %w", err)
	}
	return (*Signer)(s), nil
}

// NewSignerFromSeed derives a signer from keccak256(seed).
func NewSignerFromSeed(seed []byte) (*Signer, error) {
	s, err := ethcrypto.ToECDSA(ethcrypto.Keccak256(seed))
	if err != nil {
		return nil, fmt.Errorf("could not generate key: %w", err)
	}
	return (*Signer)(s), nil
}

// Sign signs msg with privKey after applying the EIP-191 prefix. The result
// is deterministic (RFC 6979) and has a low s value.
func Sign(msg []byte, privKey *ecdsa.PrivateKey) (*Signature, error) {
	raw, err := ethcrypto.Sign(HashMessage(msg), privKey)
	if err != nil {
		return nil, fmt.Errorf("could not sign message: %w", err)
	}
	return BytesToSignature(raw)
}

// HashMessage returns keccak256(SigningPrefix || len(data) || data).
func HashMessage(data []byte) []byte {
	prefixed := fmt.Sprintf("%s%d%s", SigningPrefix, len(data), data)
	return ethcrypto.Keccak256([]byte(prefixed))
}
