package api

import (
	"errors"
	"net/http"

	"github.com/proofofburn/burnkit/storage"
	"github.com/proofofburn/burnkit/types"
)

// burnKeys lists the burn keys of a wallet sorted by index.
// GET /wallets/{address}/burnkeys
func (a *API) burnKeys(w http.ResponseWriter, r *http.Request) {
	wallet, err := urlAddress(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	records, err := a.storage.ListBurnKeys(wallet)
	if err != nil {
		writeErr(w, err)
		return
	}
	next, err := a.storage.NextIndex(wallet)
	if err != nil {
		writeErr(w, err)
		return
	}
	withKey := a.owns(r, wallet)
	resp := &BurnKeyListResponse{
		Wallet:    wallet,
		NextIndex: next,
		BurnKeys:  make([]*storage.BurnKeyRecord, 0, len(records)),
	}
	for _, rec := range records {
		resp.BurnKeys = append(resp.BurnKeys, recordView(rec, withKey))
	}
	httpWriteJSON(w, resp)
}

// burnKey returns one burn key record.
// GET /wallets/{address}/burnkeys/{index}
func (a *API) burnKey(w http.ResponseWriter, r *http.Request) {
	rec, ok := a.urlRecord(w, r)
	if !ok {
		return
	}
	httpWriteJSON(w, recordView(rec, a.owns(r, rec.Wallet)))
}

// burnAddress returns the record that owns a burn address.
// GET /burnaddresses/{address}
func (a *API) burnAddress(w http.ResponseWriter, r *http.Request) {
	addr, err := urlAddress(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	rec, err := a.storage.BurnKeyByAddress(addr)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			ErrBurnKeyNotFound.Withf("no burn key for %s", addr.Hex()).Write(w)
			return
		}
		writeErr(w, err)
		return
	}
	httpWriteJSON(w, recordView(rec, a.owns(r, rec.Wallet)))
}

// nullifier returns the nullifier of a burn key and, with chain access,
// whether it was already consumed by a mint.
// GET /wallets/{address}/burnkeys/{index}/nullifier
func (a *API) nullifier(w http.ResponseWriter, r *http.Request) {
	rec, ok := a.urlRecord(w, r)
	if !ok {
		return
	}
	nullifier, err := rec.Nullifier()
	if err != nil {
		writeErr(w, err)
		return
	}
	resp := &NullifierResponse{
		Wallet:    rec.Wallet,
		Index:     rec.Index,
		Nullifier: types.NewBigInt(nullifier),
	}
	if a.chain != nil {
		consumed, err := a.chain.NullifierConsumed(r.Context(), nullifier)
		if err != nil {
			ErrChainRequestFailed.WithErr(err).Write(w)
			return
		}
		resp.Consumed = &consumed
	}
	httpWriteJSON(w, resp)
}

// refreshBalance reads the burn address balance and the nullifier state
// from chain and stores them in the record.
// POST /wallets/{address}/burnkeys/{index}/balance
func (a *API) refreshBalance(w http.ResponseWriter, r *http.Request) {
	if a.chain == nil {
		ErrChainUnavailable.Write(w)
		return
	}
	rec, ok := a.urlRecord(w, r)
	if !ok {
		return
	}
	state, err := a.chain.RefreshRecord(r.Context(), rec)
	if err != nil {
		ErrChainRequestFailed.WithErr(err).Write(w)
		return
	}
	updated, err := a.storage.UpdateBalance(rec.Wallet, rec.Index, state.Balance, state.Block, state.Consumed)
	if err != nil {
		writeErr(w, err)
		return
	}
	httpWriteJSON(w, recordView(updated, a.owns(r, rec.Wallet)))
}

// urlRecord loads the record named by the address and index URL
// parameters, writing the error response if it cannot.
func (a *API) urlRecord(w http.ResponseWriter, r *http.Request) (*storage.BurnKeyRecord, bool) {
	wallet, err := urlAddress(r)
	if err != nil {
		writeErr(w, err)
		return nil, false
	}
	index, err := urlIndex(r)
	if err != nil {
		writeErr(w, err)
		return nil, false
	}
	rec, err := a.storage.BurnKey(wallet, index)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			ErrBurnKeyNotFound.Withf("%s/%d", wallet.Hex(), index).Write(w)
			return nil, false
		}
		writeErr(w, err)
		return nil, false
	}
	return rec, true
}
