package storage

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/proofofburn/burnkit/db"
	"github.com/proofofburn/burnkit/db/prefixeddb"
)

// ProofStatus mirrors the status reported by the proof service.
type ProofStatus string

const (
	ProofPending    ProofStatus = "pending"
	ProofInProgress ProofStatus = "in_progress"
	ProofCompleted  ProofStatus = "completed"
	ProofFailed     ProofStatus = "failed"
)

// Terminal reports whether no further status change is expected.
func (s ProofStatus) Terminal() bool {
	return s == ProofCompleted || s == ProofFailed
}

// ProofJob tracks the proof of one burn key at the proof service.
type ProofJob struct {
	ID       string         `json:"id" cbor:"1,keyasint"`
	Wallet   common.Address `json:"wallet" cbor:"2,keyasint"`
	Index    uint64         `json:"index" cbor:"3,keyasint"`
	RemoteID string         `json:"remoteId,omitempty" cbor:"4,keyasint,omitempty"`
	Status   ProofStatus    `json:"status" cbor:"5,keyasint"`
	Message  string         `json:"message,omitempty" cbor:"6,keyasint,omitempty"`
	// Result is the proof service result as returned, in JSON.
	Result  []byte `json:"-" cbor:"7,keyasint,omitempty"`
	Created int64  `json:"created" cbor:"8,keyasint"`
	Updated int64  `json:"updated" cbor:"9,keyasint"`
	// MintTx is the hash of the mint transaction sent with the proof.
	MintTx string `json:"mintTx,omitempty" cbor:"10,keyasint,omitempty"`
}

// SetProofJob creates or replaces a proof job.
func (s *Storage) SetProofJob(job *ProofJob) error {
	if job == nil || job.ID == "" {
		return fmt.Errorf("proof job without id")
	}
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	job.Updated = time.Now().Unix()
	if job.Created == 0 {
		job.Created = job.Updated
	}
	return db.Update(s.db, func(tx db.WriteTx) error {
		return setArtifact(tx, proofJobPrefix, []byte(job.ID), job)
	})
}

// UpdateProofJob applies fn to the stored job and saves the result.
func (s *Storage) UpdateProofJob(id string, fn func(*ProofJob)) (*ProofJob, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	var job ProofJob
	err := db.Update(s.db, func(tx db.WriteTx) error {
		if err := getArtifact(tx, proofJobPrefix, []byte(id), &job); err != nil {
			return err
		}
		fn(&job)
		job.Updated = time.Now().Unix()
		return setArtifact(tx, proofJobPrefix, []byte(id), &job)
	})
	if err != nil {
		return nil, fmt.Errorf("update proof job %s: %w", id, err)
	}
	return &job, nil
}

// ProofJob returns the job with the given id.
func (s *Storage) ProofJob(id string) (*ProofJob, error) {
	var job ProofJob
	if err := getArtifact(s.db, proofJobPrefix, []byte(id), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// ListProofJobs returns the jobs of wallet, oldest first.
func (s *Storage) ListProofJobs(wallet common.Address) ([]*ProofJob, error) {
	return s.filterProofJobs(func(job *ProofJob) bool { return job.Wallet == wallet })
}

// PendingProofJobs returns the jobs still waiting for the proof service,
// oldest first.
func (s *Storage) PendingProofJobs() ([]*ProofJob, error) {
	return s.filterProofJobs(func(job *ProofJob) bool { return !job.Status.Terminal() })
}

func (s *Storage) filterProofJobs(keep func(*ProofJob) bool) ([]*ProofJob, error) {
	var (
		jobs   []*ProofJob
		decErr error
	)
	pr := prefixeddb.NewPrefixedReader(s.db, proofJobPrefix)
	if err := pr.Iterate(nil, func(_, value []byte) bool {
		job := new(ProofJob)
		if decErr = DecodeArtifact(value, job); decErr != nil {
			return false
		}
		if keep(job) {
			jobs = append(jobs, job)
		}
		return true
	}); err != nil {
		return nil, err
	}
	if decErr != nil {
		return nil, fmt.Errorf("decode proof job: %w", decErr)
	}
	slices.SortStableFunc(jobs, func(a, b *ProofJob) int {
		return cmp.Compare(a.Created, b.Created)
	})
	return jobs, nil
}
