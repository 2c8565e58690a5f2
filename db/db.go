// Package db defines the key-value database abstraction used by the storage
// layer. Writes go through transactions; implementations live in the
// subpackages.
package db

import (
	"errors"
	"fmt"
)

const (
	TypePebble   = "pebble"
	TypeInMemory = "inmem"
)

var (
	// ErrKeyNotFound is returned by Get when the key does not exist.
	ErrKeyNotFound = errors.New("key not found")
	// ErrConflict is returned by Commit when a key read or written by the
	// transaction was changed by another transaction in the meantime.
	ErrConflict = errors.New("transaction conflict")
)

// Options configures a database.
type Options struct {
	Path string
}

// Reader is the read side shared by databases and transactions.
type Reader interface {
	// Get returns a copy of the value stored under key, or ErrKeyNotFound.
	Get(key []byte) ([]byte, error)
	// Iterate calls callback for every key with the given prefix in
	// ascending order until callback returns false. Key and value are only
	// valid during the call.
	Iterate(prefix []byte, callback func(key, value []byte) bool) error
}

// WriteTx is a read-write transaction. Reads observe the transaction's own
// writes. After Commit or Discard the transaction must not be used.
type WriteTx interface {
	Reader
	Set(key, value []byte) error
	Delete(key []byte) error
	// Apply copies every key-value of other into this transaction.
	Apply(other WriteTx) error
	Commit() error
	// Discard drops the transaction. It is safe to call after Commit.
	Discard()
}

// Database is a key-value store.
type Database interface {
	Reader
	WriteTx() WriteTx
	Compact() error
	Close() error
}

// Update runs fn in a new transaction and commits it. The transaction is
// retried up to three times when the commit reports a conflict.
func Update(d Database, fn func(tx WriteTx) error) error {
	const attempts = 3
	var err error
	for range attempts {
		tx := d.WriteTx()
		if err = fn(tx); err != nil {
			tx.Discard()
			return err
		}
		err = tx.Commit()
		tx.Discard()
		if !errors.Is(err, ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("giving up after %d attempts: %w", attempts, err)
}
