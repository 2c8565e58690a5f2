package api

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/proofofburn/burnkit/burnkey"
	"github.com/proofofburn/burnkit/proofservice"
	"github.com/proofofburn/burnkit/storage"
	"github.com/proofofburn/burnkit/types"
	"github.com/proofofburn/burnkit/workers"
)

// InfoResponse describes the protocol constants and the network served.
type InfoResponse struct {
	Network         string            `json:"network"`
	ChainID         uint64            `json:"chainId"`
	Contracts       ContractAddresses `json:"contracts"`
	NullifierSlot   uint64            `json:"nullifierSlot"`
	FieldSize       *types.BigInt     `json:"fieldSize"`
	SigningMessage  string            `json:"signingMessage"`
	PoWSuffix       string            `json:"powSuffix"`
	Versions        []string          `json:"versions"`
	DefaultVersion  string            `json:"defaultVersion"`
	MinZeroBytes    int               `json:"minZeroBytes"`
	ChainConnected  bool              `json:"chainConnected"`
	ProverConnected bool              `json:"proverConnected"`
	ProvingEndpoint string            `json:"provingEndpoint,omitempty"`
	Networks        []string          `json:"networks"`
}

// ContractAddresses are the burn contracts of the network.
type ContractAddresses struct {
	BETH common.Address `json:"beth"`
	WORM common.Address `json:"worm"`
}

// SessionRequest opens a session with the wallet signature of the signing
// message.
type SessionRequest struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
}

// SessionResponse identifies an open session. The session id is the bearer
// token of the wallet scoped endpoints.
type SessionResponse struct {
	SessionID string         `json:"sessionId"`
	Address   common.Address `json:"address"`
}

// BurnKeySearchRequest asks for a burn key search. Every field is optional:
// the index defaults to the next unused one, the version to V2, the
// receiver to the session wallet and amounts to zero. Fee is the V1 fee and
// is taken as the prover fee when ProverFee is missing.
type BurnKeySearchRequest struct {
	Index          *uint64       `json:"index,omitempty"`
	Version        *uint8        `json:"version,omitempty"`
	Receiver       string        `json:"receiver,omitempty"`
	ProverFee      *types.BigInt `json:"proverFee,omitempty"`
	BroadcasterFee *types.BigInt `json:"broadcasterFee,omitempty"`
	RevealAmount   *types.BigInt `json:"revealAmount,omitempty"`
	Fee            *types.BigInt `json:"fee,omitempty"`
	MinZeroBytes   *int          `json:"minZeroBytes,omitempty"`
}

// SearchJobResponse is the state of a search job.
type SearchJobResponse struct {
	ID           string                 `json:"id"`
	Wallet       common.Address         `json:"wallet"`
	Index        uint64                 `json:"index"`
	Version      burnkey.Version        `json:"version"`
	MinZeroBytes int                    `json:"minZeroBytes"`
	Status       workers.JobStatus      `json:"status"`
	Iterations   uint64                 `json:"iterations"`
	Error        string                 `json:"error,omitempty"`
	Created      time.Time              `json:"created"`
	Finished     *time.Time             `json:"finished,omitempty"`
	Record       *storage.BurnKeyRecord `json:"record,omitempty"`
}

// BurnKeyListResponse lists the burn keys of a wallet by index.
type BurnKeyListResponse struct {
	Wallet    common.Address           `json:"wallet"`
	NextIndex uint64                   `json:"nextIndex"`
	BurnKeys  []*storage.BurnKeyRecord `json:"burnKeys"`
}

// NullifierResponse carries the nullifier of a burn key. Consumed is only
// set when the node has chain access.
type NullifierResponse struct {
	Wallet    common.Address `json:"wallet"`
	Index     uint64         `json:"index"`
	Nullifier *types.BigInt  `json:"nullifier"`
	Consumed  *bool          `json:"consumed,omitempty"`
}

// ProofSubmitRequest overrides the amounts of a proof request. Amount
// defaults to the last known balance and Spend to the reveal amount.
type ProofSubmitRequest struct {
	Amount *types.BigInt `json:"amount,omitempty"`
	Spend  *types.BigInt `json:"spend,omitempty"`
}

// ProofJobResponse is a proof job with its result once completed.
type ProofJobResponse struct {
	*storage.ProofJob
	Result *proofservice.Result `json:"result,omitempty"`
}

// ProofJobListResponse lists the proof jobs of a wallet.
type ProofJobListResponse struct {
	Wallet common.Address      `json:"wallet"`
	Jobs   []*storage.ProofJob `json:"jobs"`
}

// MintResponse identifies the mint transaction of a proof.
type MintResponse struct {
	ProofID string      `json:"proofId"`
	TxHash  common.Hash `json:"txHash"`
}
