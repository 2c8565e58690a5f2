package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/proofofburn/burnkit/burnkey"
	"github.com/proofofburn/burnkit/log"
	"github.com/proofofburn/burnkit/session"
)

// maxRequestBodySize bounds the JSON bodies the API accepts.
const maxRequestBodySize = 64 << 10

// httpWriteJSON helper function allows to write a JSON response.
func httpWriteJSON(w http.ResponseWriter, data any) {
	jdata, err := json.Marshal(data)
	if err != nil {
		ErrMarshalingServerJSONFailed.WithErr(err).Write(w)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	n, err := w.Write(jdata)
	if err != nil {
		log.Warnw("failed to write http response", "error", err.Error())
		return
	}
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write on response", "error", err.Error())
		return
	}
	if !DisabledLogging && log.Level() == log.LogLevelDebug {
		log.Debugw("api response", "bytes", n, "data", loggableBody(jdata, 0))
	}
}

// httpWriteOK helper function allows to write an OK response.
func httpWriteOK(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write on response", "error", err.Error())
	}
}

// decodeBody decodes the JSON body of r into out. An empty body leaves out
// untouched.
func decodeBody(r *http.Request, out any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize+1))
	if err != nil {
		return ErrMalformedBody.WithErr(err)
	}
	if len(body) > maxRequestBodySize {
		return ErrMalformedBody.Withf("body larger than %d bytes", maxRequestBodySize)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return ErrMalformedBody.WithErr(err)
	}
	return nil
}

// writeErr writes err as an API error. Errors that are not already API
// errors are mapped from the burnkey sentinels or reported as internal.
func writeErr(w http.ResponseWriter, err error) {
	var apiErr Error
	switch {
	case errors.As(err, &apiErr):
		apiErr.Write(w)
	case errors.Is(err, burnkey.ErrWalletNotConnected):
		ErrWalletNotConnected.WithErr(err).Write(w)
	case errors.Is(err, burnkey.ErrInvalidParameter):
		ErrInvalidParameter.WithErr(err).Write(w)
	default:
		ErrGenericInternalServerError.WithErr(err).Write(w)
	}
}

// urlAddress parses the address URL parameter.
func urlAddress(r *http.Request) (common.Address, error) {
	addr, err := burnkey.ParseAddress(chi.URLParam(r, AddressURLParam))
	if err != nil {
		return common.Address{}, ErrMalformedAddress.WithErr(err)
	}
	return addr, nil
}

// urlIndex parses the index URL parameter.
func urlIndex(r *http.Request) (uint64, error) {
	index, err := strconv.ParseUint(chi.URLParam(r, IndexURLParam), 10, 64)
	if err != nil {
		return 0, ErrMalformedIndex.WithErr(err)
	}
	return index, nil
}

// bearerToken returns the token of an "Authorization: Bearer <token>"
// header, or an empty string.
func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// requestSession resolves the session named by the bearer token of r.
func (a *API) requestSession(r *http.Request) (*session.Session, common.Address, error) {
	token := bearerToken(r)
	if token == "" {
		return nil, common.Address{}, ErrWalletNotConnected.With("missing bearer session id")
	}
	s, err := a.sessions.Get(token)
	if err != nil {
		return nil, common.Address{}, ErrWalletNotConnected.WithErr(err)
	}
	account, ok := s.Account()
	if !ok {
		return nil, common.Address{}, ErrWalletNotConnected
	}
	return s, account, nil
}

// authorize checks that r carries a session of wallet.
func (a *API) authorize(r *http.Request, wallet common.Address) error {
	_, account, err := a.requestSession(r)
	if err != nil {
		return err
	}
	if account != wallet {
		return ErrUnauthorized.Withf("session is bound to %s", account.Hex())
	}
	return nil
}

// owns reports whether r carries a session of wallet, without failing when
// it does not.
func (a *API) owns(r *http.Request, wallet common.Address) bool {
	return bearerToken(r) != "" && a.authorize(r, wallet) == nil
}
