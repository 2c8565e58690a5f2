// Package poseidon exposes the circom-compatible Poseidon hash over the BN254
// scalar field, as used by the burn circuits.
package poseidon

import (
	"fmt"
	"math/big"

	"github.com/iden3/go-iden3-crypto/constants"
	"github.com/iden3/go-iden3-crypto/poseidon"
)

// MaxInputs is the widest Poseidon instance supported by the circuits.
const MaxInputs = 16

// Q returns the BN254 scalar field modulus used by Poseidon.
func Q() *big.Int {
	return new(big.Int).Set(constants.Q)
}

// Hash computes Poseidon over inputs. Every input must be a non-nil value in
// [0, Q). The arity is the number of inputs, so poseidon4 and poseidon6 of
// the circuits are Hash with four and six inputs.
func Hash(inputs ...*big.Int) (*big.Int, error) {
	if len(inputs) == 0 || len(inputs) > MaxInputs {
		return nil, fmt.Errorf("poseidon: invalid number of inputs %d", len(inputs))
	}
	for i, in := range inputs {
		if in == nil {
			return nil, fmt.Errorf("poseidon: input %d is nil", i)
		}
		if in.Sign() < 0 || in.Cmp(constants.Q) >= 0 {
			return nil, fmt.Errorf("poseidon: input %d out of field", i)
		}
	}
	return poseidon.Hash(inputs)
}
