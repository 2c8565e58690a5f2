package api

import (
	"errors"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/proofofburn/burnkit/burnkey"
	"github.com/proofofburn/burnkit/log"
	"github.com/proofofburn/burnkit/session"
	"github.com/proofofburn/burnkit/storage"
	"github.com/proofofburn/burnkit/types"
	"github.com/proofofburn/burnkit/workers"
)

// newSearch starts the search of a burn key for the session wallet. If no
// index is given the next unused one is reserved, so a cancelled search
// never hands its index out again.
// POST /sessions/{sessionId}/burnkeys
func (a *API) newSearch(w http.ResponseWriter, r *http.Request) {
	s, err := a.sessions.Get(chi.URLParam(r, SessionURLParam))
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			ErrSessionNotFound.Write(w)
			return
		}
		writeErr(w, err)
		return
	}
	account, ok := s.Account()
	if !ok {
		ErrWalletNotConnected.Write(w)
		return
	}
	req := &BurnKeySearchRequest{}
	if err := decodeBody(r, req); err != nil {
		writeErr(w, err)
		return
	}
	params, err := searchParams(req, account)
	if err != nil {
		writeErr(w, err)
		return
	}
	minZeroBytes := a.minZeroBytes
	if req.MinZeroBytes != nil {
		minZeroBytes = *req.MinZeroBytes
	}
	scalar, err := s.Scalar(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}

	var index uint64
	if req.Index != nil {
		index = *req.Index
		if _, err := a.storage.BurnKey(account, index); err == nil {
			ErrBurnKeyExists.Withf("%s/%d", account.Hex(), index).Write(w)
			return
		} else if !errors.Is(err, storage.ErrNotFound) {
			writeErr(w, err)
			return
		}
	} else {
		if index, err = a.storage.ReserveIndex(account); err != nil {
			writeErr(w, err)
			return
		}
	}

	job, err := a.searches.Submit(workers.SearchRequest{
		Wallet:       account,
		Scalar:       scalar,
		Index:        index,
		Params:       params,
		MinZeroBytes: minZeroBytes,
	})
	if err != nil {
		if errors.Is(err, workers.ErrSearchInFlight) {
			ErrSearchInFlight.WithErr(err).Write(w)
			return
		}
		writeErr(w, err)
		return
	}
	log.Infow("burn key search submitted",
		"job", job.ID,
		"wallet", account.Hex(),
		"index", index,
		"version", params.Version().String(),
		"minZeroBytes", minZeroBytes)
	httpWriteJSON(w, searchJobResponse(job, true))
}

// search returns the state of a search job. The burn key of a finished job
// is only included for a session of the job wallet.
// GET /searches/{jobId}
func (a *API) search(w http.ResponseWriter, r *http.Request) {
	job, err := a.searches.Job(chi.URLParam(r, SearchURLParam))
	if err != nil {
		ErrSearchNotFound.Write(w)
		return
	}
	httpWriteJSON(w, searchJobResponse(job, a.owns(r, job.Wallet)))
}

// cancelSearch cancels a search job of the session wallet.
// DELETE /searches/{jobId}
func (a *API) cancelSearch(w http.ResponseWriter, r *http.Request) {
	job, err := a.searches.Job(chi.URLParam(r, SearchURLParam))
	if err != nil {
		ErrSearchNotFound.Write(w)
		return
	}
	if err := a.authorize(r, job.Wallet); err != nil {
		writeErr(w, err)
		return
	}
	if err := a.searches.Cancel(job.ID); err != nil {
		writeErr(w, err)
		return
	}
	httpWriteOK(w)
}

// searchParams builds the burn parameters of a search request.
func searchParams(req *BurnKeySearchRequest, wallet common.Address) (burnkey.Parameters, error) {
	receiver := wallet
	if req.Receiver != "" {
		addr, err := burnkey.ParseAddress(req.Receiver)
		if err != nil {
			return nil, ErrMalformedAddress.WithErr(err)
		}
		receiver = addr
	}
	version := burnkey.V2
	if req.Version != nil {
		version = burnkey.Version(*req.Version)
	}
	proverFee := req.ProverFee
	if proverFee == nil {
		proverFee = req.Fee
	}
	switch version {
	case burnkey.V1:
		if req.BroadcasterFee != nil || req.RevealAmount != nil {
			return nil, ErrInvalidParameter.With("v1 burn keys take no broadcaster fee or reveal amount")
		}
		return burnkey.ParamsV1{Receiver: receiver, Fee: orZero(proverFee)}, nil
	case burnkey.V2:
		return burnkey.ParamsV2{
			Receiver:       receiver,
			ProverFee:      orZero(proverFee),
			BroadcasterFee: orZero(req.BroadcasterFee),
			RevealAmount:   orZero(req.RevealAmount),
		}, nil
	default:
		return nil, ErrInvalidParameter.Withf("unknown burn protocol version %s", version)
	}
}

func orZero(x *types.BigInt) *big.Int {
	if x == nil {
		return new(big.Int)
	}
	return x.MathBigInt()
}

func searchJobResponse(job *workers.SearchJob, withKey bool) *SearchJobResponse {
	resp := &SearchJobResponse{
		ID:           job.ID,
		Wallet:       job.Wallet,
		Index:        job.Index,
		Version:      job.Version,
		MinZeroBytes: job.MinZeroBytes,
		Status:       job.Status(),
		Iterations:   job.Iterations(),
		Created:      job.Created,
	}
	if err := job.Err(); err != nil {
		resp.Error = err.Error()
	}
	if finished, ok := job.FinishedAt(); ok {
		resp.Finished = &finished
	}
	if rec := job.Record(); rec != nil {
		resp.Record = recordView(rec, withKey)
	}
	return resp
}

// recordView returns rec, or a copy without the burn key if withKey is
// false.
func recordView(rec *storage.BurnKeyRecord, withKey bool) *storage.BurnKeyRecord {
	if withKey {
		return rec
	}
	public := *rec
	public.BurnKey = nil
	return &public
}
