/*
Package storage persists burn keys and proof jobs for the burnkit node.

# Storage Organization

The storage uses a key-value database with prefixed namespaces:

  - bk/ : wallet + index → BurnKeyRecord (write-once burn key and its balance state)
  - ba/ : burnAddress → wallet + index (lookup of a record by burn address)
  - bi/ : wallet → next free index
  - pj/ : jobID → ProofJob (proof service submissions and their status)

Indexes are big-endian so that iterating bk/ + wallet yields records sorted
by index. An index handed out by ReserveIndex is never handed out again,
whether or not a burn key is later stored for it.
*/
package storage

import (
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/proofofburn/burnkit/db"
	"github.com/proofofburn/burnkit/db/prefixeddb"
	"github.com/proofofburn/burnkit/log"
)

var (
	ErrKeyAlreadyExists = errors.New("key already exists")
	ErrNotFound         = errors.New("not found")

	burnKeyPrefix        = []byte("bk/")
	burnAddressPrefix    = []byte("ba/")
	indexCounterPrefix   = []byte("bi/")
	proofJobPrefix       = []byte("pj/")
	recordCacheSize      = 1024
	burnKeyRecordKeySize = 20 + 8
)

// Storage manages burn key records and proof jobs.
type Storage struct {
	db         db.Database
	globalLock sync.Mutex
	cache      *lru.Cache[string, BurnKeyRecord]
}

// New creates a Storage on top of database.
func New(database db.Database) *Storage {
	cache, err := lru.New[string, BurnKeyRecord](recordCacheSize)
	if err != nil {
		log.Fatalf("failed to create LRU cache: %v", err)
	}
	return &Storage{
		db:    database,
		cache: cache,
	}
}

// Close closes the underlying database.
func (s *Storage) Close() {
	if err := s.db.Close(); err != nil {
		log.Errorw(err, "failed to close storage")
	}
}

// setArtifact encodes artifact and stores it under prefix + key in tx.
func setArtifact(tx db.WriteTx, prefix, key []byte, artifact any) error {
	data, err := EncodeArtifact(artifact)
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	return prefixeddb.NewPrefixedWriteTx(tx, prefix).Set(key, data)
}

// getArtifact decodes the value under prefix + key into out. It returns
// ErrNotFound when the key does not exist.
func getArtifact(r db.Reader, prefix, key []byte, out any) error {
	data, err := prefixeddb.NewPrefixedReader(r, prefix).Get(key)
	if errors.Is(err, db.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get artifact: %w", err)
	}
	if err := DecodeArtifact(data, out); err != nil {
		return fmt.Errorf("decode artifact: %w", err)
	}
	return nil
}
