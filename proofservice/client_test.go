package proofservice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"github.com/proofofburn/burnkit/types"
)

const completedResult = `{
	"proof": {"pi_a": ["1", "2", "1"], "pi_b": [["3", "4"], ["5", "6"], ["1", "0"]], "pi_c": ["7", "8", "1"], "protocol": "groth16"},
	"public_signals": ["9"],
	"block_number": "123",
	"nullifier": "456",
	"remaining_coin": "0",
	"broadcaster_fee": "0",
	"prover_fee": "10",
	"reveal_amount": "1000",
	"receiver": "0x00000000000000000000000000000000000000aa",
	"prover": "0x00000000000000000000000000000000000000bb"
}`

// fakeService serves the proof API. statuses are returned in order by
// successive polls, the last one repeating.
type fakeService struct {
	mu        sync.Mutex
	statuses  []int
	bodies    []string
	polls     int
	submitted Request
}

func (f *fakeService) handler(c *qt.C) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /proof", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		c.Check(r.Header.Get("Content-Type"), qt.Equals, "application/json")
		c.Check(json.NewDecoder(r.Body).Decode(&f.submitted), qt.IsNil)
		_, _ = w.Write([]byte(`{"job_id":"job-42"}`))
	})
	mux.HandleFunc("GET /proof/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		c.Check(r.PathValue("id"), qt.Equals, "job-42")
		i := min(f.polls, len(f.bodies)-1)
		f.polls++
		w.WriteHeader(f.statuses[i])
		_, _ = w.Write([]byte(f.bodies[i]))
	})
	return mux
}

func newTestClient(c *qt.C, f *fakeService) *Client {
	srv := httptest.NewServer(f.handler(c))
	c.Cleanup(srv.Close)
	client, err := NewClient(srv.URL + "/prove")
	c.Assert(err, qt.IsNil)
	client.PollInterval = 10 * time.Millisecond
	return client
}

func testRequest() *Request {
	return &Request{
		Amount:        types.NewInt(1000),
		Fee:           types.NewInt(10),
		Spend:         types.NewInt(1000),
		Network:       "sepolia",
		WalletAddress: common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		BurnKey:       types.NewInt(987654321),
	}
}

func TestSubmit(t *testing.T) {
	c := qt.New(t)
	f := &fakeService{}
	client := newTestClient(c, f)

	id, err := client.Submit(context.Background(), testRequest())
	c.Assert(err, qt.IsNil)
	c.Assert(id, qt.Equals, "job-42")
	c.Assert(f.submitted.Network, qt.Equals, "sepolia")
	c.Assert(f.submitted.BurnKey.String(), qt.Equals, "987654321")
	c.Assert(f.submitted.Fee.String(), qt.Equals, "10")

	req := testRequest()
	req.Amount = types.NewInt(0)
	_, err = client.Submit(context.Background(), req)
	c.Assert(err, qt.ErrorMatches, "invalid proof request: amount must be positive")
}

func TestRequestWireFormat(t *testing.T) {
	c := qt.New(t)

	data, err := json.Marshal(testRequest())
	c.Assert(err, qt.IsNil)
	var fields map[string]any
	c.Assert(json.Unmarshal(data, &fields), qt.IsNil)
	c.Assert(fields["amount"], qt.Equals, "1000")
	c.Assert(fields["burn_key"], qt.Equals, "987654321")
	c.Assert(fields["wallet_address"], qt.Equals, "0x00000000000000000000000000000000000000aa")
	for _, k := range []string{"fee", "spend", "network"} {
		_, ok := fields[k]
		c.Assert(ok, qt.IsTrue, qt.Commentf("missing %s", k))
	}
}

func TestWaitCompleted(t *testing.T) {
	c := qt.New(t)
	f := &fakeService{
		statuses: []int{200, 200, 503, 200},
		bodies: []string{
			`{"status":"pending"}`,
			`{"status":"in_progress","message":"proving"}`,
			`busy`,
			`{"status":"completed","result":` + completedResult + `}`,
		},
	}
	client := newTestClient(c, f)

	var updates []Status
	res, err := client.Wait(context.Background(), "job-42", func(st *StatusResponse) {
		updates = append(updates, st.Status)
	})
	c.Assert(err, qt.IsNil)
	c.Assert(updates, qt.DeepEquals, []Status{StatusPending, StatusInProgress, StatusCompleted})
	c.Assert(res.Proof.Protocol, qt.Equals, "groth16")
	c.Assert(res.Proof.B, qt.HasLen, 3)
	c.Assert(res.BlockNumber.String(), qt.Equals, "123")
	c.Assert(res.Nullifier.String(), qt.Equals, "456")
	c.Assert(res.Prover, qt.Equals, common.HexToAddress("0x00000000000000000000000000000000000000bb"))
	c.Assert(f.polls, qt.Equals, 4)
}

func TestWaitFailed(t *testing.T) {
	c := qt.New(t)
	f := &fakeService{
		statuses: []int{200, 200},
		bodies:   []string{`{"status":"pending"}`, `{"status":"failed","message":"witness error"}`},
	}
	client := newTestClient(c, f)

	_, err := client.Wait(context.Background(), "job-42", nil)
	c.Assert(errors.Is(err, ErrProofFailed), qt.IsTrue)
	c.Assert(err, qt.ErrorMatches, "proof generation failed: witness error")
}

func TestWaitPermanentError(t *testing.T) {
	c := qt.New(t)
	f := &fakeService{statuses: []int{404}, bodies: []string{`{"detail":"not found"}`}}
	client := newTestClient(c, f)

	_, err := client.Wait(context.Background(), "job-42", nil)
	var httpErr *HTTPError
	c.Assert(errors.As(err, &httpErr), qt.IsTrue)
	c.Assert(httpErr.StatusCode, qt.Equals, 404)
	c.Assert(httpErr.Permanent(), qt.IsTrue)
	c.Assert(f.polls, qt.Equals, 1)
}

func TestWaitTooManyTransientErrors(t *testing.T) {
	c := qt.New(t)
	f := &fakeService{statuses: []int{502}, bodies: []string{"bad gateway"}}
	client := newTestClient(c, f)
	client.MaxTransientErrors = 3

	_, err := client.Wait(context.Background(), "job-42", nil)
	c.Assert(err, qt.ErrorMatches, "giving up after 3 consecutive errors: .*status 502.*")
	c.Assert(f.polls, qt.Equals, 3)
}

func TestWaitContextCancelled(t *testing.T) {
	c := qt.New(t)
	f := &fakeService{statuses: []int{200}, bodies: []string{`{"status":"pending"}`}}
	client := newTestClient(c, f)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := client.Wait(ctx, "job-42", nil)
	c.Assert(errors.Is(err, context.DeadlineExceeded), qt.IsTrue)
}

func TestNewClient(t *testing.T) {
	c := qt.New(t)

	client, err := NewClient("http://12.23.34.45:8000/prove")
	c.Assert(err, qt.IsNil)
	c.Assert(client.BaseURL, qt.Equals, "http://12.23.34.45:8000")
	c.Assert(client.PollInterval, qt.Equals, DefaultPollInterval)

	client, err = NewClient("https://prover.example/")
	c.Assert(err, qt.IsNil)
	c.Assert(client.BaseURL, qt.Equals, "https://prover.example")

	_, err = NewClient("ftp://prover.example")
	c.Assert(err, qt.Not(qt.IsNil))
}
