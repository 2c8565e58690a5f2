package workers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/proofofburn/burnkit/burnkey"
	"github.com/proofofburn/burnkit/storage"
)

// JobStatus is the lifecycle state of a search job.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobDone      JobStatus = "done"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Terminal reports whether the job has finished.
func (s JobStatus) Terminal() bool {
	return s == JobDone || s == JobFailed || s == JobCancelled
}

// SearchJob is one background search.
type SearchJob struct {
	ID           string
	Wallet       common.Address
	Index        uint64
	Version      burnkey.Version
	MinZeroBytes int
	Created      time.Time

	iterations atomic.Uint64
	cancel     context.CancelFunc
	done       chan struct{}

	mu       sync.RWMutex
	status   JobStatus
	err      error
	record   *storage.BurnKeyRecord
	finished time.Time
}

// Status returns the current state.
func (j *SearchJob) Status() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status
}

// Iterations returns the number of candidates tested so far. It is updated
// once per yield interval while running.
func (j *SearchJob) Iterations() uint64 {
	return j.iterations.Load()
}

// Err returns the reason of a failed or cancelled job.
func (j *SearchJob) Err() error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.err
}

// Record returns the stored record of a successful job.
func (j *SearchJob) Record() *storage.BurnKeyRecord {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.record
}

// FinishedAt returns when the job reached a terminal state.
func (j *SearchJob) FinishedAt() (time.Time, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.finished, !j.finished.IsZero()
}

// Done is closed when the job finishes.
func (j *SearchJob) Done() <-chan struct{} {
	return j.done
}

// Wait blocks until the job finishes or ctx is done.
func (j *SearchJob) Wait(ctx context.Context) error {
	select {
	case <-j.done:
		return j.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *SearchJob) setStatus(s JobStatus) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = s
}

func (j *SearchJob) finish(record *storage.BurnKeyRecord, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	switch {
	case err == nil:
		j.status = JobDone
	case errors.Is(err, burnkey.ErrCancelled):
		j.status = JobCancelled
	default:
		j.status = JobFailed
	}
	j.err = err
	j.record = record
	j.finished = time.Now()
	close(j.done)
}
