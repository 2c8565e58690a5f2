package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/proofofburn/burnkit/burnkey"
	"github.com/proofofburn/burnkit/crypto/signatures/ethereum"
	"github.com/proofofburn/burnkit/log"
	"github.com/proofofburn/burnkit/session"
)

// newSession opens a session from the signature of the signing message by
// the wallet. The session id authorizes the wallet scoped endpoints.
// POST /sessions
func (a *API) newSession(w http.ResponseWriter, r *http.Request) {
	req := &SessionRequest{}
	if err := decodeBody(r, req); err != nil {
		writeErr(w, err)
		return
	}
	account, err := burnkey.ParseAddress(req.Address)
	if err != nil {
		ErrMalformedAddress.WithErr(err).Write(w)
		return
	}
	sig, err := ethereum.HexToSignature(req.Signature)
	if err != nil {
		ErrInvalidSignature.WithErr(err).Write(w)
		return
	}
	id, _, err := a.sessions.Open(account, sig)
	if err != nil {
		ErrInvalidSignature.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, &SessionResponse{SessionID: id, Address: account})
}

// closeSession drops a session and its cached scalar.
// DELETE /sessions/{sessionId}
func (a *API) closeSession(w http.ResponseWriter, r *http.Request) {
	if err := a.sessions.Close(chi.URLParam(r, SessionURLParam)); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			ErrSessionNotFound.Write(w)
			return
		}
		writeErr(w, err)
		return
	}
	log.Debugw("session closed", "id", chi.URLParam(r, SessionURLParam))
	httpWriteOK(w)
}
