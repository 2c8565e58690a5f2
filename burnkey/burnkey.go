// Package burnkey derives proof-of-burn keys. A wallet-bound secret scalar
// and an index give a starting point in the BN254 scalar field; from there a
// grinding search looks for a key whose keccak256 fingerprint starts with a
// number of zero bytes. The accepted key determines, through Poseidon, the
// burn address that receives the burnt ETH and the nullifier that the
// contract uses to reject double mints.
package burnkey

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

const (
	// PoWSuffix is appended to every search preimage.
	PoWSuffix = "EIP-7503"
	// SigningMessage is the message the wallet signs to produce the scalar.
	SigningMessage = "EIP-7503"

	DefaultMinZeroBytes  = 2
	DefaultMaxIterations = 20_000_000
	DefaultYieldInterval = 1000
)

var (
	// FieldSize is the BN254 scalar field modulus. Callers must not modify it.
	FieldSize = fr.Modulus()

	// IndexSpacing separates the starting points of consecutive indices.
	IndexSpacing = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

	// BurnAddressPrefix is the domain separator of the burn address hash.
	BurnAddressPrefix, _ = new(big.Int).SetString("0ba44186ee7876b8007d2482cd46cec2d115b780980a6b46f0363f983d892f7e", 16)

	// NullifierPrefix is the domain separator of the nullifier hash.
	NullifierPrefix = new(big.Int).Add(BurnAddressPrefix, big.NewInt(1))
)

// InField reports whether x is a canonical field element.
func InField(x *big.Int) bool {
	return x != nil && x.Sign() >= 0 && x.Cmp(FieldSize) < 0
}

func checkField(name string, x *big.Int) error {
	switch {
	case x == nil:
		return invalidParameter("%s is missing", name)
	case x.Sign() < 0:
		return invalidParameter("%s is negative", name)
	case x.Cmp(FieldSize) >= 0:
		return invalidParameter("%s exceeds the field size", name)
	}
	return nil
}

// StartingPoint returns (scalar + index * 10^18) mod FieldSize.
func StartingPoint(scalar *big.Int, index uint64) (*big.Int, error) {
	if err := checkField("scalar", scalar); err != nil {
		return nil, err
	}
	offset := new(big.Int).Mul(new(big.Int).SetUint64(index), IndexSpacing)
	start := offset.Add(offset, scalar)
	return start.Mod(start, FieldSize), nil
}

func fieldString(x *big.Int) string {
	if x == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%#x", x)
}
