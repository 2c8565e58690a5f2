// Package workers runs burn key searches in the background. Searches are
// bounded by a semaphore, report progress, can be cancelled and persist their
// result only when they succeed.
package workers

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/proofofburn/burnkit/burnkey"
	"github.com/proofofburn/burnkit/log"
	"github.com/proofofburn/burnkit/storage"
	"golang.org/x/sync/semaphore"
)

const (
	defaultRetention      = time.Hour
	defaultTickerInterval = time.Minute
)

var (
	ErrNotStarted     = errors.New("search manager not started")
	ErrAlreadyStarted = errors.New("search manager already started")
	ErrJobNotFound    = errors.New("search job not found")
	ErrSearchInFlight = errors.New("a search for this wallet and index is already running")
)

// SearchConfig configures a SearchManager. Zero values select defaults.
type SearchConfig struct {
	// Workers bounds how many searches run at once. Defaults to NumCPU.
	Workers int
	// MaxIterations caps each search.
	MaxIterations uint64
	// YieldInterval is the number of candidates between cancellation checks.
	YieldInterval uint64
	// Retention is how long finished jobs stay queryable.
	Retention time.Duration
	// TickerInterval is the period of the finished job collector.
	TickerInterval time.Duration
}

// SearchRequest describes one search.
type SearchRequest struct {
	Wallet       common.Address
	Scalar       *big.Int
	Index        uint64
	Params       burnkey.Parameters
	MinZeroBytes int
}

// SearchManager owns the running and recently finished search jobs.
type SearchManager struct {
	ctx     context.Context
	cancel  context.CancelFunc
	storage *storage.Storage
	sem     *semaphore.Weighted
	cfg     SearchConfig
	wg      sync.WaitGroup

	jobsMtx sync.RWMutex
	jobs    map[string]*SearchJob
}

// NewSearchManager returns a manager that stores results in stg.
func NewSearchManager(stg *storage.Storage, cfg SearchConfig) *SearchManager {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = burnkey.DefaultMaxIterations
	}
	if cfg.YieldInterval == 0 {
		cfg.YieldInterval = burnkey.DefaultYieldInterval
	}
	if cfg.Retention <= 0 {
		cfg.Retention = defaultRetention
	}
	if cfg.TickerInterval <= 0 {
		cfg.TickerInterval = defaultTickerInterval
	}
	return &SearchManager{
		storage: stg,
		sem:     semaphore.NewWeighted(int64(cfg.Workers)),
		cfg:     cfg,
		jobs:    make(map[string]*SearchJob),
	}
}

// Start enables job submission and launches the finished job collector.
// Cancelling ctx cancels every job. It returns ErrAlreadyStarted if the
// manager is running.
func (sm *SearchManager) Start(ctx context.Context) error {
	sm.jobsMtx.Lock()
	defer sm.jobsMtx.Unlock()
	if sm.ctx != nil && sm.ctx.Err() == nil {
		return ErrAlreadyStarted
	}
	log.Infow("starting search manager",
		"workers", sm.cfg.Workers,
		"maxIterations", sm.cfg.MaxIterations,
		"retention", sm.cfg.Retention.String())
	sm.ctx, sm.cancel = context.WithCancel(ctx)
	runCtx := sm.ctx

	sm.wg.Add(1)
	go func() {
		defer sm.wg.Done()
		ticker := time.NewTicker(sm.cfg.TickerInterval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				sm.collectFinished(time.Now())
			}
		}
	}()
	return nil
}

// Stop cancels every job and waits for them to return.
func (sm *SearchManager) Stop() {
	// cancelled under the lock so Submit never adds a job after the wait
	// has begun
	sm.jobsMtx.Lock()
	if sm.cancel != nil {
		sm.cancel()
	}
	sm.jobsMtx.Unlock()
	sm.wg.Wait()
}

// Submit validates req and queues it. The job starts as soon as a worker
// slot is free.
func (sm *SearchManager) Submit(req SearchRequest) (*SearchJob, error) {
	if req.Scalar == nil {
		return nil, burnkey.ErrWalletNotConnected
	}
	if req.Params == nil {
		return nil, fmt.Errorf("%w: burn parameters are missing", burnkey.ErrInvalidParameter)
	}
	if err := req.Params.Validate(); err != nil {
		return nil, err
	}
	if req.MinZeroBytes < 0 || req.MinZeroBytes > 32 {
		return nil, fmt.Errorf("%w: min zero bytes %d not in [0, 32]", burnkey.ErrInvalidParameter, req.MinZeroBytes)
	}

	sm.jobsMtx.Lock()
	defer sm.jobsMtx.Unlock()
	if sm.ctx == nil || sm.ctx.Err() != nil {
		return nil, ErrNotStarted
	}
	for _, j := range sm.jobs {
		if j.Wallet == req.Wallet && j.Index == req.Index && !j.Status().Terminal() {
			return nil, fmt.Errorf("%w: job %s", ErrSearchInFlight, j.ID)
		}
	}
	ctx, cancel := context.WithCancel(sm.ctx)
	job := &SearchJob{
		ID:           strings.ReplaceAll(uuid.NewString(), "-", ""),
		Wallet:       req.Wallet,
		Index:        req.Index,
		Version:      req.Params.Version(),
		MinZeroBytes: req.MinZeroBytes,
		Created:      time.Now(),
		status:       JobQueued,
		cancel:       cancel,
		done:         make(chan struct{}),
	}
	sm.jobs[job.ID] = job
	sm.wg.Add(1)
	go sm.run(ctx, job, req)
	log.Debugw("search job queued", "id", job.ID, "wallet", req.Wallet.Hex(), "index", req.Index)
	return job, nil
}

func (sm *SearchManager) run(ctx context.Context, job *SearchJob, req SearchRequest) {
	defer sm.wg.Done()
	defer job.cancel()

	if err := sm.sem.Acquire(ctx, 1); err != nil {
		job.finish(nil, fmt.Errorf("%w: %w", burnkey.ErrCancelled, err))
		return
	}
	defer sm.sem.Release(1)
	job.setStatus(JobRunning)

	deriver := burnkey.NewDeriver(
		burnkey.WithMaxIterations(sm.cfg.MaxIterations),
		burnkey.WithYieldInterval(sm.cfg.YieldInterval),
		burnkey.WithProgress(job.iterations.Store),
	)
	res, err := deriver.Derive(ctx, req.Scalar, req.Index, req.Params, req.MinZeroBytes)
	if err != nil {
		job.finish(nil, err)
		return
	}
	job.iterations.Store(res.Iterations)
	record, err := storage.NewBurnKeyRecord(req.Wallet, res)
	if err != nil {
		job.finish(nil, err)
		return
	}
	if err := sm.storage.SetBurnKey(record); err != nil {
		job.finish(nil, fmt.Errorf("store burn key: %w", err))
		return
	}
	job.finish(record, nil)
	log.Infow("burn key found",
		"job", job.ID,
		"wallet", req.Wallet.Hex(),
		"index", req.Index,
		"burnAddress", record.BurnAddress.Hex(),
		"iterations", res.Iterations)
}

// Job returns the job with the given id.
func (sm *SearchManager) Job(id string) (*SearchJob, error) {
	sm.jobsMtx.RLock()
	defer sm.jobsMtx.RUnlock()
	job, ok := sm.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// Cancel stops the job. Cancelling a finished job has no effect.
func (sm *SearchManager) Cancel(id string) error {
	job, err := sm.Job(id)
	if err != nil {
		return err
	}
	job.cancel()
	return nil
}

// Jobs returns every known job, oldest first.
func (sm *SearchManager) Jobs() []*SearchJob {
	sm.jobsMtx.RLock()
	jobs := make([]*SearchJob, 0, len(sm.jobs))
	for _, j := range sm.jobs {
		jobs = append(jobs, j)
	}
	sm.jobsMtx.RUnlock()
	slices.SortFunc(jobs, func(a, b *SearchJob) int {
		return a.Created.Compare(b.Created)
	})
	return jobs
}

// collectFinished forgets jobs that finished before now - retention.
func (sm *SearchManager) collectFinished(now time.Time) {
	sm.jobsMtx.Lock()
	defer sm.jobsMtx.Unlock()
	for id, job := range sm.jobs {
		finished, ok := job.FinishedAt()
		if ok && now.Sub(finished) > sm.cfg.Retention {
			delete(sm.jobs, id)
			log.Debugw("search job collected", "id", id)
		}
	}
}
