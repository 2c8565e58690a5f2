// Package pebbledb implements db.Database on top of cockroachdb/pebble.
//
// Transactions are indexed batches: they read their own writes but do not
// detect conflicts with concurrent transactions, so callers must serialize
// writers to the same keys.
package pebbledb

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/pebble"
	"github.com/proofofburn/burnkit/db"
)

// PebbleDB is a persistent db.Database.
type PebbleDB struct {
	db *pebble.DB
}

var _ db.Database = (*PebbleDB)(nil)

// New opens or creates the database at opts.Path.
func New(opts db.Options) (*PebbleDB, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("pebbledb: empty path")
	}
	if err := os.MkdirAll(opts.Path, 0o750); err != nil {
		return nil, fmt.Errorf("pebbledb: %w", err)
	}
	pdb, err := pebble.Open(opts.Path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("pebbledb: open %s: %w", opts.Path, err)
	}
	return &PebbleDB{db: pdb}, nil
}

func (p *PebbleDB) Get(key []byte) ([]byte, error) {
	return get(p.db, key)
}

func (p *PebbleDB) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	return iterate(p.db, prefix, callback)
}

func (p *PebbleDB) WriteTx() db.WriteTx {
	return &WriteTx{batch: p.db.NewIndexedBatch()}
}

// Compact compacts the whole key range.
func (p *PebbleDB) Compact() error {
	iter, err := p.db.NewIter(nil)
	if err != nil {
		return err
	}
	var first, last []byte
	if iter.First() {
		first = bytes.Clone(iter.Key())
	}
	if iter.Last() {
		last = bytes.Clone(iter.Key())
	}
	if err := iter.Close(); err != nil {
		return err
	}
	if first == nil {
		return nil
	}
	return p.db.Compact(first, append(last, 0xff), true)
}

func (p *PebbleDB) Close() error {
	return p.db.Close()
}

// WriteTx wraps a pebble indexed batch.
type WriteTx struct {
	batch *pebble.Batch
}

var _ db.WriteTx = (*WriteTx)(nil)

func (tx *WriteTx) Get(key []byte) ([]byte, error) {
	return get(tx.batch, key)
}

func (tx *WriteTx) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	return iterate(tx.batch, prefix, callback)
}

func (tx *WriteTx) Set(key, value []byte) error {
	return tx.batch.Set(key, value, nil)
}

func (tx *WriteTx) Delete(key []byte) error {
	return tx.batch.Delete(key, nil)
}

func (tx *WriteTx) Apply(other db.WriteTx) error {
	if o, ok := other.(*WriteTx); ok {
		return tx.batch.Apply(o.batch, nil)
	}
	var err error
	if iterErr := other.Iterate(nil, func(k, v []byte) bool {
		err = tx.Set(k, v)
		return err == nil
	}); iterErr != nil {
		return iterErr
	}
	return err
}

func (tx *WriteTx) Commit() error {
	if tx.batch == nil {
		return fmt.Errorf("pebbledb: transaction already finished")
	}
	return tx.batch.Commit(pebble.Sync)
}

func (tx *WriteTx) Discard() {
	if tx.batch == nil {
		return
	}
	_ = tx.batch.Close()
	tx.batch = nil
}

// getter and iterable are satisfied by both *pebble.DB and *pebble.Batch.
type getter interface {
	Get(key []byte) ([]byte, io.Closer, error)
}

type iterable interface {
	NewIter(o *pebble.IterOptions) (*pebble.Iterator, error)
}

func get(g getter, key []byte) ([]byte, error) {
	value, closer, err := g.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, db.ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return bytes.Clone(value), nil
}

func iterate(it iterable, prefix []byte, callback func(key, value []byte) bool) error {
	iter, err := it.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: upperBound(prefix),
	})
	if err != nil {
		return err
	}
	for valid := iter.First(); valid; valid = iter.Next() {
		if !callback(iter.Key(), iter.Value()) {
			break
		}
	}
	return iter.Close()
}

// upperBound returns the smallest key greater than every key with prefix, or
// nil when there is none.
func upperBound(prefix []byte) []byte {
	end := bytes.Clone(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
