package api

import (
	"fmt"
	"net/url"
	"strings"
)

// Route constants for the API endpoints
const (
	// GET: health check
	PingEndpoint = "/ping"
	// GET: protocol constants and network
	InfoEndpoint = "/info"

	SessionURLParam = "sessionId"
	// POST: open a session from a wallet signature
	SessionsEndpoint = "/sessions"
	// DELETE: close a session
	SessionEndpoint = SessionsEndpoint + "/{" + SessionURLParam + "}"
	// POST: start a burn key search for the session wallet
	SessionBurnKeysEndpoint = SessionEndpoint + "/burnkeys"

	SearchURLParam = "jobId"
	// GET: search job state, DELETE: cancel it
	SearchEndpoint = "/searches/{" + SearchURLParam + "}"

	AddressURLParam = "address"
	IndexURLParam   = "index"
	// GET: burn key records of a wallet
	WalletBurnKeysEndpoint = "/wallets/{" + AddressURLParam + "}/burnkeys"
	// GET: one burn key record
	WalletBurnKeyEndpoint = WalletBurnKeysEndpoint + "/{" + IndexURLParam + "}"
	// GET: nullifier of a burn key and whether it was consumed
	BurnKeyNullifierEndpoint = WalletBurnKeyEndpoint + "/nullifier"
	// POST: refresh the burn address balance from chain
	BurnKeyBalanceEndpoint = WalletBurnKeyEndpoint + "/balance"
	// POST: submit the burn key to the proof service
	BurnKeyProofsEndpoint = WalletBurnKeyEndpoint + "/proofs"
	// GET: proof jobs of a wallet
	WalletProofsEndpoint = "/wallets/{" + AddressURLParam + "}/proofs"
	// GET: burn key record owning a burn address
	BurnAddressEndpoint = "/burnaddresses/{" + AddressURLParam + "}"

	ProofURLParam = "proofId"
	// GET: proof job state
	ProofEndpoint = "/proofs/{" + ProofURLParam + "}"
	// POST: send the mint transaction of a completed proof
	ProofMintEndpoint = ProofEndpoint + "/mint"
)

// EndpointWithParam replaces the {key} placeholder of path with param, or
// appends it as a query parameter if path has no such placeholder.
func EndpointWithParam(path, key, param string) string {
	rawKey := fmt.Sprintf("{%s}", key)
	if strings.Contains(path, rawKey) {
		return strings.Replace(path, rawKey, url.PathEscape(param), 1)
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s%s=%s", path, sep, url.QueryEscape(key), url.QueryEscape(param))
}

// LogExcludedPrefixes are the paths the request logger ignores.
var LogExcludedPrefixes = []string{
	PingEndpoint,
	InfoEndpoint,
}
