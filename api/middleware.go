package api

import (
	"bytes"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/proofofburn/burnkit/log"
)

// DisabledLogging is a global flag to disable logging middleware
var DisabledLogging = false

var (
	// jsonRegex matches common JSON starting patterns
	jsonRegex = regexp.MustCompile(`^\s*[\[{]`)
	// secretFieldRegex matches JSON string fields carrying wallet secrets.
	secretFieldRegex = regexp.MustCompile(`"(signature|burnKey|burn_key)"\s*:\s*"[^"]*"`)
)

// LoggingConfig holds configuration for the logging middleware
type LoggingConfig struct {
	MaxBodyLog       int
	ExcludedPrefixes []string // URL path prefixes to exclude from logging
}

// DefaultLoggingConfig returns the configuration used by the API router.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		MaxBodyLog:       maxRequestBodyLog,
		ExcludedPrefixes: LogExcludedPrefixes,
	}
}

// shouldSkipLogging checks if the request should be skipped from logging
func (lc LoggingConfig) shouldSkipLogging(r *http.Request) bool {
	if DisabledLogging || log.Level() != log.LogLevelDebug {
		return true
	}
	for _, prefix := range lc.ExcludedPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return false
}

// loggableBody returns the printable form of a JSON request body, with
// secret fields masked, cut at limit bytes. Other bodies are dropped.
func loggableBody(body []byte, limit int) string {
	if !jsonRegex.Match(body) {
		return ""
	}
	masked := secretFieldRegex.ReplaceAll(body, []byte(`"$1":"***"`))
	s := strings.ReplaceAll(string(masked), "\"", "")
	if limit > 0 && len(s) > limit {
		s = s[:limit] + "..."
	}
	return s
}

// responseWriter wraps http.ResponseWriter to capture the status code and
// the number of bytes written.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.statusCode == 0 {
		rw.statusCode = code
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if rw.statusCode == 0 {
		rw.statusCode = http.StatusOK
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.written += n
	return n, err
}

// loggingMiddleware logs requests at debug level with bodies cut at
// maxBodyLog bytes.
func loggingMiddleware(maxBodyLog int) func(http.Handler) http.Handler {
	config := DefaultLoggingConfig()
	config.MaxBodyLog = maxBodyLog
	return loggingMiddlewareWithConfig(config)
}

// loggingMiddlewareWithConfig logs each request and its response status.
// The Authorization header is never logged, only whether it was present.
func loggingMiddlewareWithConfig(config LoggingConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if config.shouldSkipLogging(r) {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()

			var body string
			if r.Body != nil && r.ContentLength > 0 {
				raw, err := io.ReadAll(r.Body)
				if err != nil {
					log.Warnw("unable to read request body", "error", err.Error())
					ErrMalformedBody.WithErr(err).Write(w)
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(raw))
				body = loggableBody(raw, config.MaxBodyLog)
			}

			wrapped := &responseWriter{ResponseWriter: w}
			log.Debugw("api request",
				"method", r.Method,
				"path", r.URL.Path,
				"authenticated", bearerToken(r) != "",
				"body", body,
			)
			next.ServeHTTP(wrapped, r)
			log.Debugw("api response",
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"bytes", wrapped.written,
				"took", time.Since(start).String(),
			)
		})
	}
}
