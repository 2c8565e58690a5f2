package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/proofofburn/burnkit/log"
)

// Error is an API error with a stable numeric code and the HTTP status it is
// returned with.
type Error struct {
	Err        error
	Code       int
	HTTPstatus int
}

// MarshalJSON returns {"error": msg, "code": n}.
func (e Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Err  string `json:"error"`
		Code int    `json:"code"`
	}{
		Err:  e.Err.Error(),
		Code: e.Code,
	})
}

func (e Error) Error() string {
	return e.Err.Error()
}

func (e Error) Unwrap() error {
	return e.Err
}

// Write writes the error as the JSON response.
func (e Error) Write(w http.ResponseWriter) {
	msg, err := json.Marshal(e)
	if err != nil {
		log.Warnw("cannot marshal api error", "error", err.Error())
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	if log.Level() == log.LogLevelDebug {
		log.Debugw("api error response", "error", e.Error(), "code", e.Code, "status", e.HTTPstatus)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(e.HTTPstatus)
	_, _ = w.Write(append(msg, '\n'))
}

// Withf returns a copy of e with the formatted detail appended.
func (e Error) Withf(format string, args ...any) Error {
	return Error{
		Err:        fmt.Errorf("%w: %s", e.Err, fmt.Sprintf(format, args...)),
		Code:       e.Code,
		HTTPstatus: e.HTTPstatus,
	}
}

// With returns a copy of e with s appended.
func (e Error) With(s string) Error {
	return e.Withf("%s", s)
}

// WithErr returns a copy of e with err appended.
func (e Error) WithErr(err error) Error {
	return e.Withf("%v", err)
}
