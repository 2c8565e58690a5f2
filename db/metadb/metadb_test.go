package metadb

import (
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/proofofburn/burnkit/db"
)

func TestNew(t *testing.T) {
	c := qt.New(t)

	for _, typ := range []string{db.TypePebble, db.TypeInMemory} {
		database, err := New(typ, t.TempDir())
		c.Assert(err, qt.IsNil)
		c.Assert(db.Update(database, func(tx db.WriteTx) error {
			return tx.Set([]byte("k"), []byte("v"))
		}), qt.IsNil)
		v, err := database.Get([]byte("k"))
		c.Assert(err, qt.IsNil)
		c.Assert(string(v), qt.Equals, "v")
		c.Assert(database.Close(), qt.IsNil)
	}

	_, err := New("leveldb", t.TempDir())
	c.Assert(err, qt.ErrorMatches, `unknown database type "leveldb"`)
}

func TestNewTest(t *testing.T) {
	c := qt.New(t)

	database := NewTest(t)
	_, err := database.Get([]byte("missing"))
	c.Assert(err, qt.Equals, db.ErrKeyNotFound)
}
