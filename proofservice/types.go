package proofservice

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	rstypes "github.com/iden3/go-rapidsnark/types"
	"github.com/proofofburn/burnkit/types"
)

// Status is the state of a remote proof job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the job will not change anymore.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Request is the body of POST /proof. Amounts are decimal strings in wei.
type Request struct {
	// Amount is the balance burnt at the burn address.
	Amount *types.BigInt `json:"amount"`
	// Fee is the prover fee.
	Fee *types.BigInt `json:"fee"`
	// Spend is the amount revealed and minted now.
	Spend         *types.BigInt  `json:"spend"`
	Network       string         `json:"network"`
	WalletAddress common.Address `json:"wallet_address"`
	BurnKey       *types.BigInt  `json:"burn_key"`
}

// Validate checks that every field is set.
func (r *Request) Validate() error {
	switch {
	case r.Amount == nil || r.Amount.MathBigInt().Sign() <= 0:
		return fmt.Errorf("amount must be positive")
	case r.Fee == nil || r.Fee.MathBigInt().Sign() < 0:
		return fmt.Errorf("fee must not be negative")
	case r.Spend == nil || r.Spend.MathBigInt().Sign() < 0:
		return fmt.Errorf("spend must not be negative")
	case r.Network == "":
		return fmt.Errorf("network is missing")
	case r.BurnKey == nil:
		return fmt.Errorf("burn key is missing")
	}
	return nil
}

// SubmitResponse is the body returned by POST /proof.
type SubmitResponse struct {
	JobID string `json:"job_id"`
}

// StatusResponse is the body returned by GET /proof/{job_id}.
type StatusResponse struct {
	Status  Status          `json:"status"`
	Message string          `json:"message,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
}

// Result is a completed proof and the public inputs of the mint call.
type Result struct {
	Proof          *rstypes.ProofData `json:"proof"`
	PubSignals     []string           `json:"public_signals,omitempty"`
	BlockNumber    *types.BigInt      `json:"block_number"`
	Nullifier      *types.BigInt      `json:"nullifier"`
	RemainingCoin  *types.BigInt      `json:"remaining_coin"`
	BroadcasterFee *types.BigInt      `json:"broadcaster_fee"`
	ProverFee      *types.BigInt      `json:"prover_fee"`
	RevealAmount   *types.BigInt      `json:"reveal_amount"`
	Receiver       common.Address     `json:"receiver"`
	Prover         common.Address     `json:"prover"`
}

// ParseResult decodes the result of a completed job.
func ParseResult(raw json.RawMessage) (*Result, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty proof result")
	}
	var res Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decode proof result: %w", err)
	}
	if res.Proof == nil {
		return nil, fmt.Errorf("proof result without proof")
	}
	return &res, nil
}
