package burnkey

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/proofofburn/burnkit/crypto/hash/poseidon"
)

// BurnAddress derives the address that burns are sent to. The hash is
// Poseidon over the prefix, the key and the parameters; which 20 bytes of it
// form the address depends on the protocol version.
func BurnAddress(burnKey *big.Int, params Parameters) (common.Address, error) {
	if err := checkField("burn key", burnKey); err != nil {
		return common.Address{}, err
	}
	if err := checkParams(params); err != nil {
		return common.Address{}, err
	}
	h, err := poseidon.Hash(params.addressInputs(burnKey)...)
	if err != nil {
		return common.Address{}, fmt.Errorf("burn address hash: %w", err)
	}
	var word [32]byte
	h.FillBytes(word[:])
	return params.addressFromHash(word), nil
}

// Nullifier returns poseidon2(NullifierPrefix, burnKey).
func Nullifier(burnKey *big.Int) (*big.Int, error) {
	if err := checkField("burn key", burnKey); err != nil {
		return nil, err
	}
	n, err := poseidon.Hash(NullifierPrefix, burnKey)
	if err != nil {
		return nil, fmt.Errorf("nullifier hash: %w", err)
	}
	return n, nil
}

// Result is a found burn key with everything derived from it.
type Result struct {
	Index        uint64
	BurnKey      *big.Int
	BurnAddress  common.Address
	Nullifier    *big.Int
	Iterations   uint64
	MinZeroBytes int
	Params       Parameters
}

// Derive computes the starting point for (scalar, index), searches it and
// derives the burn address and nullifier of the key found.
func (d *Deriver) Derive(ctx context.Context, scalar *big.Int, index uint64, params Parameters, minZeroBytes int) (*Result, error) {
	start, err := StartingPoint(scalar, index)
	if err != nil {
		return nil, err
	}
	key, iterations, err := d.Search(ctx, start, params, minZeroBytes)
	if err != nil {
		return nil, err
	}
	addr, err := BurnAddress(key, params)
	if err != nil {
		return nil, err
	}
	nullifier, err := Nullifier(key)
	if err != nil {
		return nil, err
	}
	return &Result{
		Index:        index,
		BurnKey:      key,
		BurnAddress:  addr,
		Nullifier:    nullifier,
		Iterations:   iterations,
		MinZeroBytes: minZeroBytes,
		Params:       params,
	}, nil
}
