// Package service wraps the long running parts of a burnkit node with a
// common Start and Stop lifecycle.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/proofofburn/burnkit/log"
	"github.com/proofofburn/burnkit/storage"
	"github.com/proofofburn/burnkit/web3"
)

// ChainService is the chain access the balance monitor needs.
type ChainService interface {
	RefreshRecord(ctx context.Context, r *storage.BurnKeyRecord) (*web3.BalanceState, error)
}

var _ ChainService = (*web3.Chain)(nil)

// BalanceMonitor periodically refreshes the balance and nullifier state of
// every stored burn key whose nullifier has not been consumed yet.
type BalanceMonitor struct {
	chain    ChainService
	storage  *storage.Storage
	interval time.Duration
	mu       sync.Mutex
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewBalanceMonitor creates a BalanceMonitor that runs every interval.
func NewBalanceMonitor(chain ChainService, stg *storage.Storage, interval time.Duration) *BalanceMonitor {
	return &BalanceMonitor{
		chain:    chain,
		storage:  stg,
		interval: interval,
	}
}

// Start runs a first refresh round and then one every interval. It returns
// an error if the service is already running.
func (bm *BalanceMonitor) Start(ctx context.Context) error {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	if bm.cancel != nil {
		return fmt.Errorf("service already running")
	}
	if bm.interval <= 0 {
		return fmt.Errorf("invalid monitor interval %s", bm.interval)
	}
	ctx, bm.cancel = context.WithCancel(ctx)

	bm.wg.Add(1)
	go func() {
		defer bm.wg.Done()
		ticker := time.NewTicker(bm.interval)
		defer ticker.Stop()
		for {
			bm.refreshAll(ctx)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return nil
}

// Stop halts the monitoring service and waits for the running round.
func (bm *BalanceMonitor) Stop() {
	bm.mu.Lock()
	cancel := bm.cancel
	bm.cancel = nil
	bm.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	bm.wg.Wait()
}

// refreshAll refreshes every unconsumed record and stores the records whose
// state changed. Failures are logged and retried on the next round.
func (bm *BalanceMonitor) refreshAll(ctx context.Context) {
	records, err := bm.storage.UnconsumedBurnKeys()
	if err != nil {
		log.Warnw("failed to list burn keys", "error", err.Error())
		return
	}
	updated := 0
	for _, r := range records {
		if ctx.Err() != nil {
			return
		}
		state, err := bm.chain.RefreshRecord(ctx, r)
		if err != nil {
			log.Warnw("failed to refresh burn address",
				"wallet", r.Wallet.Hex(),
				"index", r.Index,
				"address", r.BurnAddress.Hex(),
				"error", err.Error())
			continue
		}
		if !stateChanged(r, state) {
			continue
		}
		if _, err := bm.storage.UpdateBalance(r.Wallet, r.Index, state.Balance, state.Block, state.Consumed); err != nil {
			log.Warnw("failed to store burn address balance",
				"wallet", r.Wallet.Hex(),
				"index", r.Index,
				"error", err.Error())
			continue
		}
		updated++
		log.Debugw("burn address changed",
			"address", r.BurnAddress.Hex(),
			"balance", state.Balance.String(),
			"consumed", state.Consumed)
	}
	if len(records) > 0 {
		log.Debugw("burn addresses refreshed", "checked", len(records), "updated", updated)
	}
}

func stateChanged(r *storage.BurnKeyRecord, state *web3.BalanceState) bool {
	if r.Consumed != state.Consumed {
		return true
	}
	prev := r.Balance.MathBigInt()
	if prev == nil {
		return state.Balance.Sign() != 0
	}
	return prev.Cmp(state.Balance) != 0
}
