// Package inmemory is a map backed db.Database with optimistic transactions.
// It is meant for tests and ephemeral nodes.
package inmemory

import (
	"bytes"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/proofofburn/burnkit/db"
)

// record is a stored value and the commit sequence that last touched it.
// Deleted keys are kept as tombstones so that conflicts on them are seen.
type record struct {
	value []byte
	seq   uint64
	gone  bool
}

// Database implements db.Database in memory.
type Database struct {
	mu      sync.RWMutex
	records map[string]record
	seq     uint64
}

var _ db.Database = (*Database)(nil)

// New returns an empty database. Options are ignored.
func New(_ db.Options) (*Database, error) {
	return &Database{records: make(map[string]record)}, nil
}

func (d *Database) Close() error   { return nil }
func (d *Database) Compact() error { return nil }

func (d *Database) Get(key []byte) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.records[string(key)]
	if !ok || r.gone {
		return nil, db.ErrKeyNotFound
	}
	return bytes.Clone(r.value), nil
}

func (d *Database) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	live, _ := d.snapshot(prefix)
	walk(live, callback)
	return nil
}

func (d *Database) WriteTx() db.WriteTx {
	return &WriteTx{
		db:      d,
		pending: make(map[string]*[]byte),
		seen:    make(map[string]uint64),
	}
}

// snapshot copies the live values under prefix and the sequence of every
// key under prefix, tombstones included.
func (d *Database) snapshot(prefix []byte) (map[string][]byte, map[string]uint64) {
	p := string(prefix)
	d.mu.RLock()
	defer d.mu.RUnlock()
	live := make(map[string][]byte)
	seqs := make(map[string]uint64)
	for k, r := range d.records {
		if !strings.HasPrefix(k, p) {
			continue
		}
		seqs[k] = r.seq
		if !r.gone {
			live[k] = bytes.Clone(r.value)
		}
	}
	return live, seqs
}

func (d *Database) seqOf(key string) uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.records[key].seq
}

// WriteTx buffers writes until Commit. A nil pending entry is a delete.
type WriteTx struct {
	db      *Database
	pending map[string]*[]byte
	seen    map[string]uint64
	done    bool
}

var _ db.WriteTx = (*WriteTx)(nil)

// observe remembers the sequence of key the first time the tx touches it.
func (tx *WriteTx) observe(key string, seq uint64) {
	if _, ok := tx.seen[key]; !ok {
		tx.seen[key] = seq
	}
}

func (tx *WriteTx) Get(key []byte) ([]byte, error) {
	k := string(key)
	if v, ok := tx.pending[k]; ok {
		if v == nil {
			return nil, db.ErrKeyNotFound
		}
		return bytes.Clone(*v), nil
	}
	tx.db.mu.RLock()
	r, ok := tx.db.records[k]
	tx.db.mu.RUnlock()
	tx.observe(k, r.seq)
	if !ok || r.gone {
		return nil, db.ErrKeyNotFound
	}
	return bytes.Clone(r.value), nil
}

func (tx *WriteTx) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	live, seqs := tx.db.snapshot(prefix)
	for k, seq := range seqs {
		tx.observe(k, seq)
	}
	for k, v := range tx.pending {
		if !strings.HasPrefix(k, string(prefix)) {
			continue
		}
		if v == nil {
			delete(live, k)
		} else {
			live[k] = bytes.Clone(*v)
		}
	}
	walk(live, callback)
	return nil
}

func (tx *WriteTx) Set(key, value []byte) error {
	k := string(key)
	tx.observe(k, tx.db.seqOf(k))
	v := bytes.Clone(value)
	tx.pending[k] = &v
	return nil
}

func (tx *WriteTx) Delete(key []byte) error {
	k := string(key)
	tx.observe(k, tx.db.seqOf(k))
	tx.pending[k] = nil
	return nil
}

func (tx *WriteTx) Apply(other db.WriteTx) error {
	var err error
	if iterErr := other.Iterate(nil, func(k, v []byte) bool {
		err = tx.Set(k, v)
		return err == nil
	}); iterErr != nil {
		return iterErr
	}
	return err
}

// Commit fails with db.ErrConflict if any key the tx read or wrote was
// committed by someone else after the tx first touched it.
func (tx *WriteTx) Commit() error {
	if tx.done {
		return fmt.Errorf("inmemory: transaction already finished")
	}
	d := tx.db
	d.mu.Lock()
	defer d.mu.Unlock()
	for k, seq := range tx.seen {
		if d.records[k].seq != seq {
			return db.ErrConflict
		}
	}
	d.seq++
	for k, v := range tx.pending {
		if v == nil {
			d.records[k] = record{seq: d.seq, gone: true}
			continue
		}
		d.records[k] = record{value: *v, seq: d.seq}
	}
	tx.done = true
	return nil
}

func (tx *WriteTx) Discard() {
	tx.done = true
	clear(tx.pending)
	clear(tx.seen)
}

func walk(entries map[string][]byte, callback func(key, value []byte) bool) {
	for _, k := range slices.Sorted(maps.Keys(entries)) {
		if !callback([]byte(k), entries[k]) {
			return
		}
	}
}
