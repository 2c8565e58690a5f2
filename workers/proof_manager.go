package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/proofofburn/burnkit/burnkey"
	"github.com/proofofburn/burnkit/log"
	"github.com/proofofburn/burnkit/proofservice"
	"github.com/proofofburn/burnkit/storage"
	"github.com/proofofburn/burnkit/types"
	"github.com/proofofburn/burnkit/web3"
)

// ErrNothingToProve is returned when a burn address holds no balance.
var ErrNothingToProve = errors.New("burn address has no balance to prove")

// ProofService is the part of proofservice.Client the manager uses.
type ProofService interface {
	Submit(ctx context.Context, req *proofservice.Request) (string, error)
	Wait(ctx context.Context, jobID string, onUpdate func(*proofservice.StatusResponse)) (*proofservice.Result, error)
}

var _ ProofService = (*proofservice.Client)(nil)

// ProofConfig configures a ProofManager.
type ProofConfig struct {
	// Network is the network name sent to the proof service.
	Network string
	// VerificationKey, if set, is used to check every completed proof
	// locally before it is marked completed.
	VerificationKey []byte
}

// ProofRequest asks for the proof of a stored burn key.
type ProofRequest struct {
	Record *storage.BurnKeyRecord
	// Amount is the burnt balance. Defaults to the record balance.
	Amount *big.Int
	// Spend is the amount minted now. Defaults to the record reveal
	// amount, or Amount for legacy records.
	Spend *big.Int
}

// ProofManager submits proof jobs and follows them until they finish,
// keeping their state in storage. Unfinished jobs are resumed on Start.
type ProofManager struct {
	storage *storage.Storage
	client  ProofService
	cfg     ProofConfig

	mtx    sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewProofManager returns a manager using client.
func NewProofManager(stg *storage.Storage, client ProofService, cfg ProofConfig) *ProofManager {
	return &ProofManager{storage: stg, client: client, cfg: cfg}
}

// Start resumes the jobs that were still pending at the proof service.
func (pm *ProofManager) Start(ctx context.Context) error {
	pm.mtx.Lock()
	pm.ctx, pm.cancel = context.WithCancel(ctx)
	pm.mtx.Unlock()

	pending, err := pm.storage.PendingProofJobs()
	if err != nil {
		return fmt.Errorf("load pending proof jobs: %w", err)
	}
	for _, job := range pending {
		if job.RemoteID == "" {
			// never reached the service
			pm.fail(job.ID, "interrupted before submission")
			continue
		}
		pm.follow(job.ID, job.RemoteID)
	}
	log.Infow("proof manager started", "resumed", len(pending), "network", pm.cfg.Network)
	return nil
}

// Stop stops following jobs. Their state is kept and resumed by the next
// Start.
func (pm *ProofManager) Stop() {
	pm.mtx.Lock()
	if pm.cancel != nil {
		pm.cancel()
	}
	pm.mtx.Unlock()
	pm.wg.Wait()
}

// Submit sends the proof request of a burn key to the proof service and
// follows the job in the background.
func (pm *ProofManager) Submit(ctx context.Context, req ProofRequest) (*storage.ProofJob, error) {
	pm.mtx.Lock()
	started := pm.ctx != nil && pm.ctx.Err() == nil
	pm.mtx.Unlock()
	if !started {
		return nil, ErrNotStarted
	}
	remoteReq, err := pm.buildRequest(req)
	if err != nil {
		return nil, err
	}

	job := &storage.ProofJob{
		ID:     strings.ReplaceAll(uuid.NewString(), "-", ""),
		Wallet: req.Record.Wallet,
		Index:  req.Record.Index,
		Status: storage.ProofPending,
	}
	if err := pm.storage.SetProofJob(job); err != nil {
		return nil, fmt.Errorf("store proof job: %w", err)
	}
	remoteID, err := pm.client.Submit(ctx, remoteReq)
	if err != nil {
		pm.fail(job.ID, err.Error())
		return nil, err
	}
	job, err = pm.storage.UpdateProofJob(job.ID, func(j *storage.ProofJob) {
		j.RemoteID = remoteID
	})
	if err != nil {
		return nil, err
	}
	pm.follow(job.ID, remoteID)
	return job, nil
}

func (pm *ProofManager) buildRequest(req ProofRequest) (*proofservice.Request, error) {
	r := req.Record
	if r == nil || r.BurnKey == nil {
		return nil, fmt.Errorf("%w: burn key record is missing", burnkey.ErrInvalidParameter)
	}
	amount := req.Amount
	if amount == nil {
		amount = r.Balance.MathBigInt()
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrNothingToProve
	}
	spend := req.Spend
	if spend == nil {
		spend = r.RevealAmount.MathBigInt()
	}
	if spend == nil {
		spend = amount
	}
	if spend.Sign() < 0 || spend.Cmp(amount) > 0 {
		return nil, fmt.Errorf("%w: spend %s not in [0, %s]", burnkey.ErrInvalidParameter, spend, amount)
	}
	fee := r.ProverFee.MathBigInt()
	if fee == nil {
		fee = new(big.Int)
	}
	return &proofservice.Request{
		Amount:        types.NewBigInt(amount),
		Fee:           types.NewBigInt(fee),
		Spend:         types.NewBigInt(spend),
		Network:       pm.cfg.Network,
		WalletAddress: r.Wallet,
		BurnKey:       r.BurnKey,
	}, nil
}

// follow waits for the remote job in the background. Once the manager is
// stopped the job is left as stored, for the next Start to resume.
func (pm *ProofManager) follow(id, remoteID string) bool {
	pm.mtx.Lock()
	defer pm.mtx.Unlock()
	ctx := pm.ctx
	if ctx == nil || ctx.Err() != nil {
		log.Debugw("proof manager stopped, job left for resume", "id", id)
		return false
	}
	pm.wg.Add(1)
	go func() {
		defer pm.wg.Done()
		pm.wait(ctx, id, remoteID)
	}()
	return true
}

func (pm *ProofManager) wait(ctx context.Context, id, remoteID string) {
	res, err := pm.client.Wait(ctx, remoteID, func(st *proofservice.StatusResponse) {
		if st.Status.Terminal() {
			return
		}
		if _, err := pm.storage.UpdateProofJob(id, func(j *storage.ProofJob) {
			j.Status = storage.ProofStatus(st.Status)
			j.Message = st.Message
		}); err != nil {
			log.Warnw("cannot update proof job", "id", id, "error", err.Error())
		}
	})
	switch {
	case err != nil && ctx.Err() != nil:
		// shutting down, resumed on next start
		return
	case err != nil:
		pm.fail(id, err.Error())
		return
	}
	if len(pm.cfg.VerificationKey) > 0 {
		if err := web3.VerifyProof(res, pm.cfg.VerificationKey); err != nil {
			pm.fail(id, err.Error())
			return
		}
	}
	raw, err := json.Marshal(res)
	if err != nil {
		pm.fail(id, fmt.Sprintf("encode proof result: %v", err))
		return
	}
	if _, err := pm.storage.UpdateProofJob(id, func(j *storage.ProofJob) {
		j.Status = storage.ProofCompleted
		j.Message = ""
		j.Result = raw
	}); err != nil {
		log.Errorw(err, "cannot store proof result")
		return
	}
	log.Infow("proof ready", "id", id, "remoteId", remoteID, "nullifier", res.Nullifier.String())
}

func (pm *ProofManager) fail(id, msg string) {
	if _, err := pm.storage.UpdateProofJob(id, func(j *storage.ProofJob) {
		j.Status = storage.ProofFailed
		j.Message = msg
	}); err != nil {
		log.Warnw("cannot mark proof job failed", "id", id, "error", err.Error())
	}
	log.Warnw("proof job failed", "id", id, "reason", msg)
}

// Result returns the proof of a completed job.
func (pm *ProofManager) Result(id string) (*storage.ProofJob, *proofservice.Result, error) {
	job, err := pm.storage.ProofJob(id)
	if err != nil {
		return nil, nil, err
	}
	if job.Status != storage.ProofCompleted {
		return job, nil, fmt.Errorf("proof job %s is %s", id, job.Status)
	}
	res, err := proofservice.ParseResult(job.Result)
	if err != nil {
		return job, nil, err
	}
	return job, res, nil
}

// SetMintTx records the mint transaction of a job.
func (pm *ProofManager) SetMintTx(id string, tx string) (*storage.ProofJob, error) {
	return pm.storage.UpdateProofJob(id, func(j *storage.ProofJob) {
		j.MintTx = tx
	})
}
