package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/proofofburn/burnkit/burnkey"
	"github.com/proofofburn/burnkit/log"
	"github.com/proofofburn/burnkit/proofservice"
	"github.com/proofofburn/burnkit/storage"
	"github.com/proofofburn/burnkit/web3"
	"github.com/proofofburn/burnkit/workers"
)

// newProof sends a burn key to the proof service. The burn key leaves the
// node, so only a session of the wallet may do it.
// POST /wallets/{address}/burnkeys/{index}/proofs
func (a *API) newProof(w http.ResponseWriter, r *http.Request) {
	if a.proofs == nil {
		ErrProverUnavailable.Write(w)
		return
	}
	rec, ok := a.urlRecord(w, r)
	if !ok {
		return
	}
	if err := a.authorize(r, rec.Wallet); err != nil {
		writeErr(w, err)
		return
	}
	if rec.Consumed {
		ErrNullifierConsumed.Withf("%s/%d", rec.Wallet.Hex(), rec.Index).Write(w)
		return
	}
	req := &ProofSubmitRequest{}
	if err := decodeBody(r, req); err != nil {
		writeErr(w, err)
		return
	}
	job, err := a.proofs.Submit(r.Context(), workers.ProofRequest{
		Record: rec,
		Amount: req.Amount.MathBigInt(),
		Spend:  req.Spend.MathBigInt(),
	})
	switch {
	case err == nil:
	case errors.Is(err, workers.ErrNothingToProve):
		ErrNothingToProve.WithErr(err).Write(w)
		return
	case errors.Is(err, burnkey.ErrInvalidParameter), errors.Is(err, workers.ErrNotStarted):
		writeErr(w, err)
		return
	default:
		ErrProofServiceFailed.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, &ProofJobResponse{ProofJob: job})
}

// proof returns a proof job and its result once completed.
// GET /proofs/{proofId}
func (a *API) proof(w http.ResponseWriter, r *http.Request) {
	job, err := a.storage.ProofJob(chi.URLParam(r, ProofURLParam))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			ErrProofJobNotFound.Write(w)
			return
		}
		writeErr(w, err)
		return
	}
	resp := &ProofJobResponse{ProofJob: job}
	if job.Status == storage.ProofCompleted {
		if resp.Result, err = proofservice.ParseResult(job.Result); err != nil {
			writeErr(w, err)
			return
		}
	}
	httpWriteJSON(w, resp)
}

// walletProofs lists the proof jobs of a wallet, oldest first.
// GET /wallets/{address}/proofs
func (a *API) walletProofs(w http.ResponseWriter, r *http.Request) {
	wallet, err := urlAddress(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	jobs, err := a.storage.ListProofJobs(wallet)
	if err != nil {
		writeErr(w, err)
		return
	}
	if jobs == nil {
		jobs = []*storage.ProofJob{}
	}
	httpWriteJSON(w, &ProofJobListResponse{Wallet: wallet, Jobs: jobs})
}

// mint sends the mint transaction of a completed proof with the node
// broadcaster key.
// POST /proofs/{proofId}/mint
func (a *API) mint(w http.ResponseWriter, r *http.Request) {
	if a.chain == nil || a.chain.Signer() == nil {
		ErrChainUnavailable.With("no broadcaster key").Write(w)
		return
	}
	if a.proofs == nil {
		ErrProverUnavailable.Write(w)
		return
	}
	id := chi.URLParam(r, ProofURLParam)
	job, err := a.storage.ProofJob(id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			ErrProofJobNotFound.Write(w)
			return
		}
		writeErr(w, err)
		return
	}
	if err := a.authorize(r, job.Wallet); err != nil {
		writeErr(w, err)
		return
	}
	if job.MintTx != "" {
		ErrNullifierConsumed.Withf("mint already sent in %s", job.MintTx).Write(w)
		return
	}
	if job.Status != storage.ProofCompleted {
		ErrProofNotReady.Withf("proof job is %s", job.Status).Write(w)
		return
	}
	_, res, err := a.proofs.Result(id)
	if err != nil {
		writeErr(w, err)
		return
	}
	consumed, err := a.chain.NullifierConsumed(r.Context(), res.Nullifier.MathBigInt())
	if err != nil {
		ErrChainRequestFailed.WithErr(err).Write(w)
		return
	}
	if consumed {
		ErrNullifierConsumed.Withf("nullifier %s", res.Nullifier.String()).Write(w)
		return
	}
	hash, err := a.chain.Mint(r.Context(), res)
	if err != nil {
		if errors.Is(err, burnkey.ErrInvalidParameter) {
			ErrInvalidParameter.WithErr(err).Write(w)
			return
		}
		if errors.Is(err, web3.ErrNoSigner) {
			ErrChainUnavailable.WithErr(err).Write(w)
			return
		}
		ErrChainRequestFailed.WithErr(err).Write(w)
		return
	}
	if _, err := a.proofs.SetMintTx(id, hash.Hex()); err != nil {
		log.Warnw("cannot store mint transaction", "proof", id, "tx", hash.Hex(), "error", err.Error())
	}
	httpWriteJSON(w, &MintResponse{ProofID: id, TxHash: hash})
}
