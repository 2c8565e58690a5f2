// Package metadb opens a db.Database by type name.
package metadb

import (
	"fmt"
	"testing"

	"github.com/proofofburn/burnkit/db"
	"github.com/proofofburn/burnkit/db/inmemory"
	"github.com/proofofburn/burnkit/db/pebbledb"
)

// New opens a database of type typ (db.TypePebble or db.TypeInMemory) in dir.
func New(typ, dir string) (db.Database, error) {
	opts := db.Options{Path: dir}
	switch typ {
	case db.TypePebble:
		return pebbledb.New(opts)
	case db.TypeInMemory:
		return inmemory.New(opts)
	default:
		return nil, fmt.Errorf("unknown database type %q", typ)
	}
}

// NewTest returns an in-memory database that is closed when tb finishes.
func NewTest(tb testing.TB) db.Database {
	database, err := inmemory.New(db.Options{})
	if err != nil {
		tb.Fatal(err)
	}
	tb.Cleanup(func() { _ = database.Close() })
	return database
}
