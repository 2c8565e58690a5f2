// Package proofservice is a client for the external proof generation service.
// A job is submitted with the burn parameters and polled until the service
// reports it completed or failed.
package proofservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/proofofburn/burnkit/log"
)

const (
	DefaultPollInterval       = 5 * time.Second
	DefaultMaxTransientErrors = 5
	defaultHTTPTimeout        = 30 * time.Second

	proofPath = "/proof"
)

// ErrProofFailed is returned by Wait when the service reports the job as
// failed. The remote message is appended.
var ErrProofFailed = errors.New("proof generation failed")

// HTTPError is an unexpected HTTP response. 4xx responses are permanent,
// anything else is worth retrying.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("proof service returned status %d: %s", e.StatusCode, e.Body)
}

// Permanent reports whether retrying the same request is pointless.
func (e *HTTPError) Permanent() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// Client talks to one proof service.
type Client struct {
	BaseURL            string
	HTTP               *http.Client
	PollInterval       time.Duration
	MaxTransientErrors int
}

// NewClient returns a client for baseURL with the default poll policy. A
// trailing "/prove" or "/proof" path in baseURL is dropped, so the proving
// endpoints of the network table can be used as is.
func NewClient(baseURL string) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid proof service url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid proof service url %q: unsupported scheme", baseURL)
	}
	base := strings.TrimSuffix(u.String(), "/")
	base = strings.TrimSuffix(base, "/prove")
	base = strings.TrimSuffix(base, proofPath)
	return &Client{
		BaseURL:            base,
		HTTP:               &http.Client{Timeout: defaultHTTPTimeout},
		PollInterval:       DefaultPollInterval,
		MaxTransientErrors: DefaultMaxTransientErrors,
	}, nil
}

// Submit posts req and returns the remote job id.
func (c *Client) Submit(ctx context.Context, req *Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", fmt.Errorf("invalid proof request: %w", err)
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode proof request: %w", err)
	}
	var out SubmitResponse
	if err := c.do(ctx, http.MethodPost, proofPath, body, &out); err != nil {
		return "", fmt.Errorf("submit proof: %w", err)
	}
	if out.JobID == "" {
		return "", fmt.Errorf("submit proof: empty job id")
	}
	log.Infow("proof job submitted", "jobID", out.JobID, "network", req.Network, "wallet", req.WalletAddress.Hex())
	return out.JobID, nil
}

// Status fetches the current state of a job.
func (c *Client) Status(ctx context.Context, jobID string) (*StatusResponse, error) {
	var out StatusResponse
	if err := c.do(ctx, http.MethodGet, proofPath+"/"+url.PathEscape(jobID), nil, &out); err != nil {
		return nil, fmt.Errorf("proof status %s: %w", jobID, err)
	}
	return &out, nil
}

// Wait polls the job every PollInterval until it is completed or failed.
// onUpdate, if set, is called every time the status changes. Transport
// errors and 5xx responses are retried up to MaxTransientErrors times in a
// row; any other error ends the wait.
func (c *Client) Wait(ctx context.Context, jobID string, onUpdate func(*StatusResponse)) (*Result, error) {
	interval := c.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	maxErrors := c.MaxTransientErrors
	if maxErrors <= 0 {
		maxErrors = DefaultMaxTransientErrors
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	var (
		last              Status
		consecutiveErrors int
	)
	for {
		st, err := c.Status(ctx, jobID)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil && !isTransient(err):
			return nil, err
		case err != nil:
			consecutiveErrors++
			log.Warnw("proof status poll failed",
				"jobID", jobID,
				"error", err.Error(),
				"consecutiveErrors", consecutiveErrors)
			if consecutiveErrors >= maxErrors {
				return nil, fmt.Errorf("giving up after %d consecutive errors: %w", consecutiveErrors, err)
			}
		default:
			consecutiveErrors = 0
			if st.Status != last {
				last = st.Status
				log.Debugw("proof job status", "jobID", jobID, "status", string(st.Status))
				if onUpdate != nil {
					onUpdate(st)
				}
			}
			switch st.Status {
			case StatusCompleted:
				return ParseResult(st.Result)
			case StatusFailed:
				return nil, fmt.Errorf("%w: %s", ErrProofFailed, st.Message)
			case StatusPending, StatusInProgress:
			default:
				return nil, fmt.Errorf("unknown proof job status %q", st.Status)
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func isTransient(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return !httpErr.Permanent()
	}
	// decoding errors of a 200 response will not fix themselves
	var syntaxErr *json.SyntaxError
	return !errors.As(err, &syntaxErr)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
