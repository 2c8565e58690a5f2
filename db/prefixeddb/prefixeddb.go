// Package prefixeddb scopes a database, a transaction or a reader to a key
// prefix. Keys passed in are relative to the prefix and keys handed to
// iteration callbacks have it stripped.
package prefixeddb

import (
	"bytes"

	"github.com/proofofburn/burnkit/db"
)

func prefixed(prefix, key []byte) []byte {
	out := make([]byte, 0, len(prefix)+len(key))
	out = append(out, prefix...)
	return append(out, key...)
}

func iterate(r db.Reader, prefix, sub []byte, callback func(key, value []byte) bool) error {
	return r.Iterate(prefixed(prefix, sub), func(key, value []byte) bool {
		return callback(bytes.TrimPrefix(key, prefix), value)
	})
}

// PrefixedReader reads under a prefix.
type PrefixedReader struct {
	prefix []byte
	reader db.Reader
}

var _ db.Reader = (*PrefixedReader)(nil)

// NewPrefixedReader returns r scoped to prefix.
func NewPrefixedReader(r db.Reader, prefix []byte) *PrefixedReader {
	return &PrefixedReader{prefix: bytes.Clone(prefix), reader: r}
}

func (r *PrefixedReader) Get(key []byte) ([]byte, error) {
	return r.reader.Get(prefixed(r.prefix, key))
}

func (r *PrefixedReader) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	return iterate(r.reader, r.prefix, prefix, callback)
}

// PrefixedWriteTx writes under a prefix.
type PrefixedWriteTx struct {
	prefix []byte
	tx     db.WriteTx
}

var _ db.WriteTx = (*PrefixedWriteTx)(nil)

// NewPrefixedWriteTx returns tx scoped to prefix. Committing or discarding it
// commits or discards tx.
func NewPrefixedWriteTx(tx db.WriteTx, prefix []byte) *PrefixedWriteTx {
	return &PrefixedWriteTx{prefix: bytes.Clone(prefix), tx: tx}
}

func (t *PrefixedWriteTx) Get(key []byte) ([]byte, error) {
	return t.tx.Get(prefixed(t.prefix, key))
}

func (t *PrefixedWriteTx) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	return iterate(t.tx, t.prefix, prefix, callback)
}

func (t *PrefixedWriteTx) Set(key, value []byte) error {
	return t.tx.Set(prefixed(t.prefix, key), value)
}

func (t *PrefixedWriteTx) Delete(key []byte) error {
	return t.tx.Delete(prefixed(t.prefix, key))
}

// Apply copies other into the prefixed namespace.
func (t *PrefixedWriteTx) Apply(other db.WriteTx) error {
	var err error
	if iterErr := other.Iterate(nil, func(k, v []byte) bool {
		err = t.Set(k, v)
		return err == nil
	}); iterErr != nil {
		return iterErr
	}
	return err
}

func (t *PrefixedWriteTx) Commit() error { return t.tx.Commit() }
func (t *PrefixedWriteTx) Discard()      { t.tx.Discard() }

// PrefixedDatabase is a database namespace.
type PrefixedDatabase struct {
	prefix []byte
	db     db.Database
}

var _ db.Database = (*PrefixedDatabase)(nil)

// NewPrefixedDatabase returns d scoped to prefix.
func NewPrefixedDatabase(d db.Database, prefix []byte) *PrefixedDatabase {
	return &PrefixedDatabase{prefix: bytes.Clone(prefix), db: d}
}

func (d *PrefixedDatabase) Get(key []byte) ([]byte, error) {
	return d.db.Get(prefixed(d.prefix, key))
}

func (d *PrefixedDatabase) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	return iterate(d.db, d.prefix, prefix, callback)
}

func (d *PrefixedDatabase) WriteTx() db.WriteTx {
	return NewPrefixedWriteTx(d.db.WriteTx(), d.prefix)
}

func (d *PrefixedDatabase) Compact() error { return d.db.Compact() }

// Close closes the underlying database.
func (d *PrefixedDatabase) Close() error { return d.db.Close() }
