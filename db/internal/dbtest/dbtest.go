// Package dbtest holds behaviour tests shared by the db implementations.
package dbtest

import (
	"fmt"
	"sync"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/proofofburn/burnkit/db"
)

func set(c *qt.C, database db.Database, key, value string) {
	tx := database.WriteTx()
	defer tx.Discard()
	c.Assert(tx.Set([]byte(key), []byte(value)), qt.IsNil)
	c.Assert(tx.Commit(), qt.IsNil)
}

func collect(c *qt.C, r db.Reader, prefix string) map[string]string {
	out := make(map[string]string)
	err := r.Iterate([]byte(prefix), func(k, v []byte) bool {
		out[string(k)] = string(v)
		return true
	})
	c.Assert(err, qt.IsNil)
	return out
}

// TestWriteTx checks read-your-writes, commit visibility and discard.
func TestWriteTx(t *testing.T, database db.Database) {
	c := qt.New(t)

	tx := database.WriteTx()
	c.Assert(tx.Set([]byte("a"), []byte("1")), qt.IsNil)
	v, err := tx.Get([]byte("a"))
	c.Assert(err, qt.IsNil)
	c.Assert(string(v), qt.Equals, "1")

	_, err = database.Get([]byte("a"))
	c.Assert(err, qt.Equals, db.ErrKeyNotFound)

	c.Assert(tx.Commit(), qt.IsNil)
	tx.Discard()
	v, err = database.Get([]byte("a"))
	c.Assert(err, qt.IsNil)
	c.Assert(string(v), qt.Equals, "1")

	tx = database.WriteTx()
	c.Assert(tx.Delete([]byte("a")), qt.IsNil)
	_, err = tx.Get([]byte("a"))
	c.Assert(err, qt.Equals, db.ErrKeyNotFound)
	tx.Discard()
	_, err = database.Get([]byte("a"))
	c.Assert(err, qt.IsNil)

	tx = database.WriteTx()
	c.Assert(tx.Delete([]byte("a")), qt.IsNil)
	c.Assert(tx.Commit(), qt.IsNil)
	tx.Discard()
	_, err = database.Get([]byte("a"))
	c.Assert(err, qt.Equals, db.ErrKeyNotFound)
}

// TestIterate checks prefix bounds, ordering and early stop.
func TestIterate(t *testing.T, database db.Database) {
	c := qt.New(t)

	for _, k := range []string{"bk/2", "bk/1", "bk/3", "bi/1", "bl", "c"} {
		set(c, database, k, "v"+k)
	}
	got := collect(c, database, "bk/")
	c.Assert(got, qt.DeepEquals, map[string]string{"bk/1": "vbk/1", "bk/2": "vbk/2", "bk/3": "vbk/3"})

	var keys []string
	err := database.Iterate([]byte("b"), func(k, _ []byte) bool {
		keys = append(keys, string(k))
		return len(keys) < 3
	})
	c.Assert(err, qt.IsNil)
	c.Assert(keys, qt.DeepEquals, []string{"bi/1", "bk/1", "bk/2"})

	c.Assert(collect(c, database, ""), qt.HasLen, 6)

	// transactions see their own pending writes
	tx := database.WriteTx()
	defer tx.Discard()
	c.Assert(tx.Set([]byte("bk/4"), []byte("vbk/4")), qt.IsNil)
	c.Assert(tx.Delete([]byte("bk/1")), qt.IsNil)
	got = collect(c, tx, "bk/")
	c.Assert(got, qt.DeepEquals, map[string]string{"bk/2": "vbk/2", "bk/3": "vbk/3", "bk/4": "vbk/4"})
}

// TestWriteTxApply checks that Apply copies pending writes.
func TestWriteTxApply(t *testing.T, database db.Database) {
	c := qt.New(t)

	first := database.WriteTx()
	defer first.Discard()
	c.Assert(first.Set([]byte("x"), []byte("1")), qt.IsNil)

	second := database.WriteTx()
	defer second.Discard()
	c.Assert(second.Set([]byte("y"), []byte("2")), qt.IsNil)
	c.Assert(first.Apply(second), qt.IsNil)
	c.Assert(first.Commit(), qt.IsNil)

	v, err := database.Get([]byte("y"))
	c.Assert(err, qt.IsNil)
	c.Assert(string(v), qt.Equals, "2")
}

// TestConcurrentWriteTx increments one counter from many goroutines with
// db.Update and checks that no increment is lost.
func TestConcurrentWriteTx(t *testing.T, database db.Database) {
	c := qt.New(t)

	const workers, rounds = 8, 20
	key := []byte("counter")
	set(c, database, "counter", "0")

	var wg sync.WaitGroup
	var mu sync.Mutex
	applied := 0
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range rounds {
				err := db.Update(database, func(tx db.WriteTx) error {
					v, err := tx.Get(key)
					if err != nil {
						return err
					}
					var n int
					if _, err := fmt.Sscan(string(v), &n); err != nil {
						return err
					}
					return tx.Set(key, []byte(fmt.Sprint(n+1)))
				})
				if err == nil {
					mu.Lock()
					applied++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	v, err := database.Get(key)
	c.Assert(err, qt.IsNil)
	c.Assert(string(v), qt.Equals, fmt.Sprint(applied))
}
