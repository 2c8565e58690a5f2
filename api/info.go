package api

import (
	"net/http"

	"github.com/proofofburn/burnkit/burnkey"
	"github.com/proofofburn/burnkit/config"
	"github.com/proofofburn/burnkit/types"
)

// info returns the protocol constants a client needs to check the keys
// derived by the node, and the network it serves.
// GET /info
func (a *API) info(w http.ResponseWriter, _ *http.Request) {
	if a.network.Name == "" {
		ErrGenericInternalServerError.With("network not configured").Write(w)
		return
	}
	httpWriteJSON(w, &InfoResponse{
		Network: a.network.Name,
		ChainID: a.network.ChainID,
		Contracts: ContractAddresses{
			BETH: a.network.BETH,
			WORM: a.network.WORM,
		},
		NullifierSlot:   a.network.NullifierSlot,
		FieldSize:       types.NewBigInt(burnkey.FieldSize),
		SigningMessage:  burnkey.SigningMessage,
		PoWSuffix:       burnkey.PoWSuffix,
		Versions:        []string{burnkey.V1.String(), burnkey.V2.String()},
		DefaultVersion:  burnkey.V2.String(),
		MinZeroBytes:    a.minZeroBytes,
		ChainConnected:  a.chain != nil,
		ProverConnected: a.proofs != nil,
		ProvingEndpoint: a.provingEndpoint,
		Networks:        config.AvailableNetworks(),
	})
}
