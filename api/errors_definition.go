//nolint:lll
package api

import (
	"fmt"
	"net/http"
)

// Error codes in the 40001-49999 range are the client's fault, 50001-59999
// are the server's. Codes are never reused: append new errors after the
// last one of their range.
var (
	ErrResourceNotFound   = Error{Code: 40001, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("resource not found")}
	ErrInvalidParameter   = Error{Code: 40002, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid parameter")}
	ErrMalformedBody      = Error{Code: 40003, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed JSON body")}
	ErrMalformedAddress   = Error{Code: 40004, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed address")}
	ErrInvalidSignature   = Error{Code: 40005, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid signature")}
	ErrMalformedIndex     = Error{Code: 40006, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed burn key index")}
	ErrBurnKeyNotFound    = Error{Code: 40007, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("burn key not found")}
	ErrSearchNotFound     = Error{Code: 40008, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("search job not found")}
	ErrSearchInFlight     = Error{Code: 40009, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("search already running")}
	ErrSessionNotFound    = Error{Code: 40010, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("session not found")}
	ErrProofJobNotFound   = Error{Code: 40011, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("proof job not found")}
	ErrNothingToProve     = Error{Code: 40012, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("burn address has no balance")}
	ErrProofNotReady      = Error{Code: 40013, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("proof not ready")}
	ErrUnauthorized       = Error{Code: 40014, HTTPstatus: http.StatusForbidden, Err: fmt.Errorf("unauthorized")}
	ErrBurnKeyExists      = Error{Code: 40015, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("burn key already exists")}
	ErrNullifierConsumed  = Error{Code: 40016, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("nullifier already consumed")}
	ErrWalletNotConnected = Error{Code: 40101, HTTPstatus: http.StatusUnauthorized, Err: fmt.Errorf("wallet not connected")}

	ErrMarshalingServerJSONFailed = Error{Code: 50001, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("marshaling (server-side) JSON failed")}
	ErrGenericInternalServerError = Error{Code: 50002, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("internal server error")}
	ErrChainUnavailable           = Error{Code: 50003, HTTPstatus: http.StatusServiceUnavailable, Err: fmt.Errorf("chain access not configured")}
	ErrProverUnavailable          = Error{Code: 50004, HTTPstatus: http.StatusServiceUnavailable, Err: fmt.Errorf("proof service not configured")}
	ErrChainRequestFailed         = Error{Code: 50005, HTTPstatus: http.StatusBadGateway, Err: fmt.Errorf("chain request failed")}
	ErrProofServiceFailed         = Error{Code: 50006, HTTPstatus: http.StatusBadGateway, Err: fmt.Errorf("proof service request failed")}
)
