package rpc

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
)

// endpointCooldown is how long a failing endpoint stays out of rotation.
const endpointCooldown = 5 * time.Minute

// Web3Endpoint is one RPC provider of a chain.
type Web3Endpoint struct {
	ChainID    uint64 `json:"chainId"`
	URI        string `json:"uri"`
	client     *ethclient.Client
	disabledAt time.Time
}

// Web3Iterator hands out the endpoints of one chain in round-robin order.
// Failing endpoints are disabled and come back after endpointCooldown, or
// immediately if every endpoint ends up disabled.
type Web3Iterator struct {
	mtx       sync.Mutex
	next      int
	available []*Web3Endpoint
	disabled  []*Web3Endpoint
	now       func() time.Time
}

// NewWeb3Iterator returns an iterator over endpoints.
func NewWeb3Iterator(endpoints ...*Web3Endpoint) *Web3Iterator {
	return &Web3Iterator{
		available: slices.Clone(endpoints),
		now:       time.Now,
	}
}

// Available returns the number of endpoints in rotation.
func (it *Web3Iterator) Available() int {
	it.mtx.Lock()
	defer it.mtx.Unlock()
	return len(it.available)
}

// Disabled returns the number of endpoints cooling down.
func (it *Web3Iterator) Disabled() int {
	it.mtx.Lock()
	defer it.mtx.Unlock()
	return len(it.disabled)
}

// Add puts endpoints in rotation.
func (it *Web3Iterator) Add(endpoints ...*Web3Endpoint) {
	it.mtx.Lock()
	defer it.mtx.Unlock()
	it.available = append(it.available, endpoints...)
}

// Next returns the next endpoint in rotation.
func (it *Web3Iterator) Next() (*Web3Endpoint, error) {
	if it == nil {
		return nil, fmt.Errorf("nil endpoint iterator")
	}
	it.mtx.Lock()
	defer it.mtx.Unlock()

	it.reenable()
	if len(it.available) == 0 {
		return nil, fmt.Errorf("no registered endpoints")
	}
	if it.next >= len(it.available) {
		it.next = 0
	}
	ep := it.available[it.next]
	it.next = (it.next + 1) % len(it.available)
	return ep, nil
}

// reenable moves back the endpoints whose cooldown is over. Callers hold mtx.
func (it *Web3Iterator) reenable() {
	if len(it.disabled) == 0 {
		return
	}
	now := it.now()
	it.disabled = slices.DeleteFunc(it.disabled, func(ep *Web3Endpoint) bool {
		if now.Sub(ep.disabledAt) < endpointCooldown {
			return false
		}
		ep.disabledAt = time.Time{}
		it.available = append(it.available, ep)
		return true
	})
}

// Disable takes the endpoint with the given uri out of rotation. Unknown
// uris are ignored.
func (it *Web3Iterator) Disable(uri string) {
	it.mtx.Lock()
	defer it.mtx.Unlock()

	i := slices.IndexFunc(it.available, func(ep *Web3Endpoint) bool { return ep.URI == uri })
	if i < 0 {
		return
	}
	ep := it.available[i]
	ep.disabledAt = it.now()
	it.available = slices.Delete(it.available, i, i+1)
	it.disabled = append(it.disabled, ep)
	if it.next > i {
		it.next--
	}

	// never leave a chain without endpoints
	if len(it.available) == 0 {
		for _, ep := range it.disabled {
			ep.disabledAt = time.Time{}
		}
		it.available, it.disabled = it.disabled, nil
		it.next = 0
	}
	if it.next >= len(it.available) {
		it.next = 0
	}
}
