package prefixeddb

import (
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/proofofburn/burnkit/db"
	"github.com/proofofburn/burnkit/db/inmemory"
	"github.com/proofofburn/burnkit/db/internal/dbtest"
)

func TestPrefixedDatabase(t *testing.T) {
	c := qt.New(t)

	base, err := inmemory.New(db.Options{})
	c.Assert(err, qt.IsNil)
	bk := NewPrefixedDatabase(base, []byte("bk/"))
	pj := NewPrefixedDatabase(base, []byte("pj/"))

	dbtest.TestWriteTx(t, bk)

	c.Assert(db.Update(bk, func(tx db.WriteTx) error {
		return tx.Set([]byte("key"), []byte("record"))
	}), qt.IsNil)
	c.Assert(db.Update(pj, func(tx db.WriteTx) error {
		return tx.Set([]byte("key"), []byte("job"))
	}), qt.IsNil)

	v, err := base.Get([]byte("bk/key"))
	c.Assert(err, qt.IsNil)
	c.Assert(string(v), qt.Equals, "record")
	v, err = pj.Get([]byte("key"))
	c.Assert(err, qt.IsNil)
	c.Assert(string(v), qt.Equals, "job")

	var keys []string
	c.Assert(bk.Iterate(nil, func(k, _ []byte) bool {
		keys = append(keys, string(k))
		return true
	}), qt.IsNil)
	c.Assert(keys, qt.DeepEquals, []string{"key"})
}

func TestPrefixedReaderAndTx(t *testing.T) {
	c := qt.New(t)

	base, err := inmemory.New(db.Options{})
	c.Assert(err, qt.IsNil)

	tx := base.WriteTx()
	ptx := NewPrefixedWriteTx(tx, []byte("ba/"))
	c.Assert(ptx.Set([]byte("0x01"), []byte("a")), qt.IsNil)
	c.Assert(ptx.Set([]byte("0x02"), []byte("b")), qt.IsNil)
	c.Assert(ptx.Delete([]byte("0x02")), qt.IsNil)
	c.Assert(ptx.Commit(), qt.IsNil)

	r := NewPrefixedReader(base, []byte("ba/"))
	v, err := r.Get([]byte("0x01"))
	c.Assert(err, qt.IsNil)
	c.Assert(string(v), qt.Equals, "a")
	_, err = r.Get([]byte("0x02"))
	c.Assert(err, qt.Equals, db.ErrKeyNotFound)

	count := 0
	c.Assert(r.Iterate([]byte("0x"), func(k, _ []byte) bool {
		c.Assert(string(k), qt.Equals, "0x01")
		count++
		return true
	}), qt.IsNil)
	c.Assert(count, qt.Equals, 1)
}
