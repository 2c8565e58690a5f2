// Package rpc keeps a pool of JSON-RPC endpoints per chain and a client that
// rotates through them when calls fail.
package rpc

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/proofofburn/burnkit/log"
)

const dialTimeout = 10 * time.Second

// Web3Pool groups endpoints by chain id.
type Web3Pool struct {
	mtx       sync.RWMutex
	endpoints map[uint64]*Web3Iterator
}

// NewWeb3Pool returns an empty pool.
func NewWeb3Pool() *Web3Pool {
	return &Web3Pool{endpoints: make(map[uint64]*Web3Iterator)}
}

// AddEndpoint dials uri, asks for its chain id and adds it to the pool.
func (p *Web3Pool) AddEndpoint(uri string) (uint64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	client, err := ethclient.DialContext(ctx, uri)
	if err != nil {
		return 0, fmt.Errorf("dial %s: %w", uri, err)
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return 0, fmt.Errorf("chain id of %s: %w", uri, err)
	}
	ep := &Web3Endpoint{ChainID: chainID.Uint64(), URI: uri, client: client}
	p.add(ep)
	log.Debugw("web3 endpoint added", "uri", uri, "chainID", ep.ChainID)
	return ep.ChainID, nil
}

func (p *Web3Pool) add(ep *Web3Endpoint) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	if it, ok := p.endpoints[ep.ChainID]; ok {
		it.Add(ep)
		return
	}
	p.endpoints[ep.ChainID] = NewWeb3Iterator(ep)
}

func (p *Web3Pool) iterator(chainID uint64) (*Web3Iterator, bool) {
	p.mtx.RLock()
	defer p.mtx.RUnlock()
	it, ok := p.endpoints[chainID]
	return it, ok
}

// Endpoint returns the next endpoint for chainID.
func (p *Web3Pool) Endpoint(chainID uint64) (*Web3Endpoint, error) {
	it, ok := p.iterator(chainID)
	if !ok {
		return nil, fmt.Errorf("no endpoints for chain %d", chainID)
	}
	return it.Next()
}

// DisableEndpoint takes uri out of the rotation of chainID.
func (p *Web3Pool) DisableEndpoint(chainID uint64, uri string) {
	if it, ok := p.iterator(chainID); ok {
		it.Disable(uri)
	}
}

// NumberOfEndpoints returns how many endpoints chainID has. If onlyAvailable
// is set, endpoints cooling down are not counted.
func (p *Web3Pool) NumberOfEndpoints(chainID uint64, onlyAvailable bool) int {
	it, ok := p.iterator(chainID)
	if !ok {
		return 0
	}
	if onlyAvailable {
		return it.Available()
	}
	return it.Available() + it.Disabled()
}

// Client returns a client bound to chainID.
func (p *Web3Pool) Client(chainID uint64) (*Client, error) {
	if p.NumberOfEndpoints(chainID, false) == 0 {
		return nil, fmt.Errorf("no endpoints for chain %d", chainID)
	}
	return &Client{w3p: p, chainID: chainID}, nil
}

// Close closes every endpoint connection.
func (p *Web3Pool) Close() {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	for _, it := range p.endpoints {
		it.mtx.Lock()
		for _, ep := range slices.Concat(it.available, it.disabled) {
			if ep.client != nil {
				ep.client.Close()
			}
		}
		it.mtx.Unlock()
	}
}
