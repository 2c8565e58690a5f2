package web3

import (
	"errors"
	"fmt"

	rstypes "github.com/iden3/go-rapidsnark/types"
	"github.com/iden3/go-rapidsnark/verifier"
	"github.com/proofofburn/burnkit/proofservice"
)

// ErrInvalidProof is returned when a proof does not verify.
var ErrInvalidProof = errors.New("invalid proof")

// VerifyProof checks the groth16 proof of a proof service result against a
// snarkjs verification key (JSON).
func VerifyProof(res *proofservice.Result, verificationKey []byte) error {
	if res == nil || res.Proof == nil {
		return fmt.Errorf("%w: missing proof", ErrInvalidProof)
	}
	if len(res.PubSignals) == 0 {
		return fmt.Errorf("%w: missing public signals", ErrInvalidProof)
	}
	if len(verificationKey) == 0 {
		return fmt.Errorf("empty verification key")
	}
	zkp := rstypes.ZKProof{Proof: res.Proof, PubSignals: res.PubSignals}
	if err := verifier.VerifyGroth16(zkp, verificationKey); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidProof, err)
	}
	return nil
}
