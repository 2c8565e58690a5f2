package burnkey

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	qt "github.com/frankban/quicktest"
)

// nextCandidate returns k+1 mod FieldSize.
func nextCandidate(k *big.Int) *big.Int {
	n := new(big.Int).Add(k, big.NewInt(1))
	return n.Mod(n, FieldSize)
}

// bruteForce walks the search order with MeetsDifficulty and returns the
// first match and how many candidates it tested.
func bruteForce(c *qt.C, start *big.Int, params Parameters, minZeroBytes int) (*big.Int, uint64) {
	k := new(big.Int).Set(start)
	for i := uint64(1); ; i++ {
		ok, err := MeetsDifficulty(k, params, minZeroBytes)
		c.Assert(err, qt.IsNil)
		if ok {
			return k, i
		}
		k = nextCandidate(k)
	}
}

func TestSearchHashLayout(t *testing.T) {
	c := qt.New(t)

	key := big.NewInt(0xabcdef)
	params := ParamsV2{
		Receiver:       testReceiver,
		ProverFee:      big.NewInt(1),
		BroadcasterFee: big.NewInt(2),
		RevealAmount:   big.NewInt(3),
	}
	var buf bytes.Buffer
	buf.Write(key.FillBytes(make([]byte, 32)))
	buf.Write(testReceiver.Bytes())
	buf.Write(big.NewInt(1).FillBytes(make([]byte, 32)))
	buf.Write(big.NewInt(2).FillBytes(make([]byte, 32)))
	buf.Write(big.NewInt(3).FillBytes(make([]byte, 32)))
	buf.WriteString("EIP-7503")
	c.Assert(buf.Len(), qt.Equals, 32+20+32*3+8)

	digest, err := SearchHash(key, params)
	c.Assert(err, qt.IsNil)
	c.Assert(digest[:], qt.DeepEquals, ethcrypto.Keccak256(buf.Bytes()))

	// legacy layout: key || receiver || fee || suffix
	buf.Reset()
	buf.Write(key.FillBytes(make([]byte, 32)))
	buf.Write(testReceiver.Bytes())
	buf.Write(big.NewInt(5).FillBytes(make([]byte, 32)))
	buf.WriteString("EIP-7503")
	digest, err = SearchHash(key, ParamsV1{Receiver: testReceiver, Fee: big.NewInt(5)})
	c.Assert(err, qt.IsNil)
	c.Assert(digest[:], qt.DeepEquals, ethcrypto.Keccak256(buf.Bytes()))
}

func TestSearchReferenceScenario(t *testing.T) {
	c := qt.New(t)

	start, err := StartingPoint(big.NewInt(42), 0)
	c.Assert(err, qt.IsNil)

	d := NewDeriver()
	key, iterations, err := d.Search(context.Background(), start, testParams(), 2)
	c.Assert(err, qt.IsNil)
	c.Assert(InField(key), qt.IsTrue)
	c.Assert(iterations > 0, qt.IsTrue)

	digest, err := SearchHash(key, testParams())
	c.Assert(err, qt.IsNil)
	c.Assert(digest[0], qt.Equals, byte(0))
	c.Assert(digest[1], qt.Equals, byte(0))

	// no candidate between the start and the key matches
	expected, expectedIterations := bruteForce(c, start, testParams(), 2)
	c.Assert(key.Cmp(expected), qt.Equals, 0)
	c.Assert(iterations, qt.Equals, expectedIterations)

	// determinism
	again, againIterations, err := NewDeriver().Search(context.Background(), start, testParams(), 2)
	c.Assert(err, qt.IsNil)
	c.Assert(again.Cmp(key), qt.Equals, 0)
	c.Assert(againIterations, qt.Equals, iterations)
}

func TestSearchWraparound(t *testing.T) {
	c := qt.New(t)

	start := new(big.Int).Sub(FieldSize, big.NewInt(1))
	for _, minZeroBytes := range []int{0, 1} {
		key, iterations, err := NewDeriver().Search(context.Background(), start, testParams(), minZeroBytes)
		c.Assert(err, qt.IsNil)
		c.Assert(InField(key), qt.IsTrue)

		expected, expectedIterations := bruteForce(c, start, testParams(), minZeroBytes)
		c.Assert(key.Cmp(expected), qt.Equals, 0)
		c.Assert(iterations, qt.Equals, expectedIterations)
		if iterations > 1 {
			// past the last element the search continues at 0
			c.Assert(key.Cmp(new(big.Int).SetUint64(iterations-2)), qt.Equals, 0)
		}
	}
}

func TestSearchZeroDifficulty(t *testing.T) {
	c := qt.New(t)

	start := big.NewInt(12345)
	key, iterations, err := NewDeriver().Search(context.Background(), start, testParams(), 0)
	c.Assert(err, qt.IsNil)
	c.Assert(key.Cmp(start), qt.Equals, 0)
	c.Assert(iterations, qt.Equals, uint64(1))
}

func TestSearchExhausted(t *testing.T) {
	c := qt.New(t)

	d := NewDeriver(WithMaxIterations(10))
	c.Assert(d.MaxIterations(), qt.Equals, uint64(10))
	_, iterations, err := d.Search(context.Background(), big.NewInt(1), testParams(), 32)
	c.Assert(errors.Is(err, ErrExhausted), qt.IsTrue)
	c.Assert(iterations, qt.Equals, uint64(10))

	var exhausted *ExhaustedError
	c.Assert(errors.As(err, &exhausted), qt.IsTrue)
	c.Assert(exhausted.Iterations, qt.Equals, uint64(10))
	c.Assert(exhausted.MinZeroBytes, qt.Equals, 32)
	c.Assert(exhausted.Start.Int64(), qt.Equals, int64(1))
	c.Assert(errors.Is(err, ErrCancelled), qt.IsFalse)
}

func TestSearchCancelled(t *testing.T) {
	c := qt.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var reports []uint64
	d := NewDeriver(
		WithYieldInterval(10),
		WithProgress(func(iterations uint64) {
			reports = append(reports, iterations)
			if iterations >= 30 {
				cancel()
			}
		}),
	)
	key, iterations, err := d.Search(ctx, big.NewInt(1), testParams(), 32)
	c.Assert(key, qt.IsNil)
	c.Assert(errors.Is(err, ErrCancelled), qt.IsTrue)
	c.Assert(errors.Is(err, context.Canceled), qt.IsTrue)
	c.Assert(iterations, qt.Equals, uint64(30))
	c.Assert(reports, qt.DeepEquals, []uint64{10, 20, 30})

	// an already cancelled context tests nothing
	_, iterations, err = NewDeriver().Search(ctx, big.NewInt(1), testParams(), 1)
	c.Assert(errors.Is(err, ErrCancelled), qt.IsTrue)
	c.Assert(iterations, qt.Equals, uint64(0))

	// a fresh search after a cancelled one finds the same key
	start := big.NewInt(1)
	expected, tested := bruteForce(c, start, testParams(), 1)
	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()
	d = NewDeriver(WithYieldInterval(1), WithProgress(func(uint64) { cancel2() }))
	_, _, err = d.Search(ctx2, start, testParams(), 1)
	if tested > 1 {
		c.Assert(errors.Is(err, ErrCancelled), qt.IsTrue)
	}
	for range 2 {
		key, iterations, err = NewDeriver().Search(context.Background(), start, testParams(), 1)
		c.Assert(err, qt.IsNil)
		c.Assert(key.Cmp(expected), qt.Equals, 0)
		c.Assert(iterations, qt.Equals, tested)
	}
}

func TestSearchInvalidInput(t *testing.T) {
	c := qt.New(t)

	d := NewDeriver()
	ctx := context.Background()
	for name, run := range map[string]func() error{
		"negative difficulty": func() error {
			_, _, err := d.Search(ctx, big.NewInt(1), testParams(), -1)
			return err
		},
		"difficulty above 32": func() error {
			_, _, err := d.Search(ctx, big.NewInt(1), testParams(), 33)
			return err
		},
		"nil params": func() error {
			_, _, err := d.Search(ctx, big.NewInt(1), nil, 1)
			return err
		},
		"start out of field": func() error {
			_, _, err := d.Search(ctx, new(big.Int).Set(FieldSize), testParams(), 1)
			return err
		},
		"negative fee": func() error {
			p := testParams()
			p.BroadcasterFee = big.NewInt(-5)
			_, _, err := d.Search(ctx, big.NewInt(1), p, 1)
			return err
		},
		"key out of field": func() error {
			_, err := SearchHash(new(big.Int).Add(FieldSize, big.NewInt(1)), testParams())
			return err
		},
	} {
		c.Assert(errors.Is(run(), ErrInvalidParameter), qt.IsTrue, qt.Commentf("%s", name))
	}
}

func TestZeroValueDeriver(t *testing.T) {
	c := qt.New(t)

	var d Deriver
	key, _, err := d.Search(context.Background(), big.NewInt(42), testParams(), 1)
	c.Assert(err, qt.IsNil)
	ok, err := MeetsDifficulty(key, testParams(), 1)
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)
}
