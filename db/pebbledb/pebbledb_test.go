package pebbledb

import (
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/proofofburn/burnkit/db"
	"github.com/proofofburn/burnkit/db/internal/dbtest"
)

func newTestDB(t *testing.T) *PebbleDB {
	database, err := New(db.Options{Path: t.TempDir()})
	qt.Assert(t, err, qt.IsNil)
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func TestWriteTx(t *testing.T) {
	dbtest.TestWriteTx(t, newTestDB(t))
}

func TestIterate(t *testing.T) {
	dbtest.TestIterate(t, newTestDB(t))
}

func TestWriteTxApply(t *testing.T) {
	dbtest.TestWriteTxApply(t, newTestDB(t))
}

func TestReopen(t *testing.T) {
	c := qt.New(t)
	dir := t.TempDir()

	database, err := New(db.Options{Path: dir})
	c.Assert(err, qt.IsNil)
	c.Assert(db.Update(database, func(tx db.WriteTx) error {
		return tx.Set([]byte("bk/1"), []byte("record"))
	}), qt.IsNil)
	c.Assert(database.Compact(), qt.IsNil)
	c.Assert(database.Close(), qt.IsNil)

	database, err = New(db.Options{Path: dir})
	c.Assert(err, qt.IsNil)
	defer database.Close()
	v, err := database.Get([]byte("bk/1"))
	c.Assert(err, qt.IsNil)
	c.Assert(string(v), qt.Equals, "record")
}

func TestUpperBound(t *testing.T) {
	c := qt.New(t)

	c.Assert(upperBound([]byte("bk/")), qt.DeepEquals, []byte("bk0"))
	c.Assert(upperBound([]byte{0x01, 0xff}), qt.DeepEquals, []byte{0x02})
	c.Assert(upperBound([]byte{0xff, 0xff}), qt.IsNil)
	c.Assert(upperBound(nil), qt.IsNil)
}

func TestEmptyPath(t *testing.T) {
	_, err := New(db.Options{})
	qt.Assert(t, err, qt.ErrorMatches, "pebbledb: empty path")
}
