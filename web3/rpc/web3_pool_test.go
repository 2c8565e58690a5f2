package rpc

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

func testEndpoints(uris ...string) []*Web3Endpoint {
	eps := make([]*Web3Endpoint, 0, len(uris))
	for _, uri := range uris {
		eps = append(eps, &Web3Endpoint{ChainID: 1, URI: uri})
	}
	return eps
}

func testPool(uris ...string) *Web3Pool {
	pool := NewWeb3Pool()
	pool.endpoints[1] = NewWeb3Iterator(testEndpoints(uris...)...)
	return pool
}

func TestIteratorRoundRobin(t *testing.T) {
	c := qt.New(t)
	it := NewWeb3Iterator(testEndpoints("a", "b", "c")...)

	var got []string
	for range 4 {
		ep, err := it.Next()
		c.Assert(err, qt.IsNil)
		got = append(got, ep.URI)
	}
	c.Assert(got, qt.DeepEquals, []string{"a", "b", "c", "a"})
}

func TestIteratorDisable(t *testing.T) {
	c := qt.New(t)
	it := NewWeb3Iterator(testEndpoints("a", "b", "c")...)

	ep, err := it.Next()
	c.Assert(err, qt.IsNil)
	c.Assert(ep.URI, qt.Equals, "a")

	it.Disable("b")
	c.Assert(it.Available(), qt.Equals, 2)
	c.Assert(it.Disabled(), qt.Equals, 1)

	ep, err = it.Next()
	c.Assert(err, qt.IsNil)
	c.Assert(ep.URI, qt.Equals, "c")
	ep, err = it.Next()
	c.Assert(err, qt.IsNil)
	c.Assert(ep.URI, qt.Equals, "a")

	// unknown uris are ignored
	it.Disable("nope")
	c.Assert(it.Available(), qt.Equals, 2)
}

func TestIteratorAllDisabled(t *testing.T) {
	c := qt.New(t)
	it := NewWeb3Iterator(testEndpoints("a", "b")...)

	it.Disable("a")
	c.Assert(it.Available(), qt.Equals, 1)
	it.Disable("b")
	c.Assert(it.Available(), qt.Equals, 2)
	c.Assert(it.Disabled(), qt.Equals, 0)
}

func TestIteratorCooldown(t *testing.T) {
	c := qt.New(t)
	now := time.Unix(1_700_000_000, 0)
	it := NewWeb3Iterator(testEndpoints("a", "b")...)
	it.now = func() time.Time { return now }

	it.Disable("a")
	ep, err := it.Next()
	c.Assert(err, qt.IsNil)
	c.Assert(ep.URI, qt.Equals, "b")
	c.Assert(it.Disabled(), qt.Equals, 1)

	now = now.Add(endpointCooldown)
	_, err = it.Next()
	c.Assert(err, qt.IsNil)
	c.Assert(it.Disabled(), qt.Equals, 0)
	c.Assert(it.Available(), qt.Equals, 2)
}

func TestIteratorEmpty(t *testing.T) {
	c := qt.New(t)
	_, err := NewWeb3Iterator().Next()
	c.Assert(err, qt.ErrorMatches, "no registered endpoints")

	var it *Web3Iterator
	_, err = it.Next()
	c.Assert(err, qt.Not(qt.IsNil))
}

func TestIteratorConcurrentAccess(t *testing.T) {
	c := qt.New(t)
	it := NewWeb3Iterator(testEndpoints("a", "b", "c")...)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Go(func() {
			for range 100 {
				if _, err := it.Next(); err != nil {
					c.Error(err)
					return
				}
				if i%4 == 0 {
					it.Disable("a")
				}
			}
		})
	}
	wg.Wait()
	c.Assert(it.Available()+it.Disabled(), qt.Equals, 3)
}

func TestPool(t *testing.T) {
	c := qt.New(t)
	pool := testPool("a", "b", "c")

	c.Assert(pool.NumberOfEndpoints(1, true), qt.Equals, 3)
	pool.DisableEndpoint(1, "a")
	c.Assert(pool.NumberOfEndpoints(1, true), qt.Equals, 2)
	c.Assert(pool.NumberOfEndpoints(1, false), qt.Equals, 3)
	pool.DisableEndpoint(999, "b")
	c.Assert(pool.NumberOfEndpoints(999, false), qt.Equals, 0)

	_, err := pool.Endpoint(999)
	c.Assert(err, qt.ErrorMatches, "no endpoints for chain 999")
	_, err = pool.Client(999)
	c.Assert(err, qt.Not(qt.IsNil))

	cli, err := pool.Client(1)
	c.Assert(err, qt.IsNil)
	c.Assert(cli.ChainID(), qt.Equals, uint64(1))
}

func TestRetrySwitchesEndpoint(t *testing.T) {
	c := qt.New(t)
	pool := testPool("a", "b")
	cli := &Client{w3p: pool, chainID: 1}

	var calls []string
	res, err := cli.retryAndCheckErr(context.Background(), func(ep *Web3Endpoint) (any, error) {
		calls = append(calls, ep.URI)
		if ep.URI == "a" {
			return nil, errors.New("connection refused")
		}
		return "ok", nil
	})
	c.Assert(err, qt.IsNil)
	c.Assert(res, qt.Equals, "ok")
	c.Assert(calls, qt.HasLen, defaultRetries+1)
	c.Assert(pool.NumberOfEndpoints(1, true), qt.Equals, 1)
}

func TestRetryAllEndpointsFail(t *testing.T) {
	c := qt.New(t)
	pool := testPool("a", "b")
	cli := &Client{w3p: pool, chainID: 1}

	calls := 0
	_, err := cli.retryAndCheckErr(context.Background(), func(*Web3Endpoint) (any, error) {
		calls++
		return nil, errors.New("timeout")
	})
	c.Assert(err, qt.ErrorMatches, "all endpoints failed for chain 1: timeout")
	c.Assert(calls, qt.Equals, 2*defaultRetries)
	// both disabled means both back in rotation
	c.Assert(pool.NumberOfEndpoints(1, true), qt.Equals, 2)
}

func TestRetryPermanentError(t *testing.T) {
	c := qt.New(t)
	cli := &Client{w3p: testPool("a", "b"), chainID: 1}

	calls := 0
	_, err := cli.retryAndCheckErr(context.Background(), func(*Web3Endpoint) (any, error) {
		calls++
		return nil, errors.New("execution reverted: nullifier consumed")
	})
	c.Assert(err, qt.ErrorMatches, "execution reverted: nullifier consumed")
	c.Assert(calls, qt.Equals, 1)
}

func TestRetryNoEndpoints(t *testing.T) {
	c := qt.New(t)
	cli := &Client{w3p: NewWeb3Pool(), chainID: 999}
	_, err := cli.retryAndCheckErr(context.Background(), func(*Web3Endpoint) (any, error) {
		return nil, nil
	})
	c.Assert(err, qt.ErrorMatches, "no endpoints available for chain 999")
}

func TestParseError(t *testing.T) {
	c := qt.New(t)
	c.Assert(ParseError(nil) == nil, qt.IsTrue)

	rpcErr := &RPCError{Code: 3, Message: "execution reverted", Data: []byte{0x08, 0xc3, 0x79, 0xa0}}
	c.Assert(ParseError(rpcErr), qt.Equals, rpcErr)

	plain := ParseError(errors.New("boom"))
	c.Assert(plain.Message, qt.Equals, "boom")
	c.Assert(plain.Code, qt.Equals, 0)
}
