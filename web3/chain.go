// Package web3 reads the state of burn addresses and nullifiers from the
// chain and sends the mint transaction of a proven burn.
package web3

import (
	"context"
	"fmt"
	"math/big"
	"time"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/proofofburn/burnkit/config"
	"github.com/proofofburn/burnkit/crypto/signatures/ethereum"
	"github.com/proofofburn/burnkit/log"
	"github.com/proofofburn/burnkit/storage"
	"github.com/proofofburn/burnkit/web3/rpc"
)

const web3QueryTimeout = 15 * time.Second

// Backend is the subset of an Ethereum client used by Chain. *rpc.Client
// implements it.
type Backend interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	StorageAt(ctx context.Context, account common.Address, slot common.Hash, blockNumber *big.Int) ([]byte, error)
	BlockNumber(ctx context.Context) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*gethtypes.Header, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg geth.CallMsg) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, hash common.Hash) (*gethtypes.Receipt, error)
}

var _ Backend = (*rpc.Client)(nil)

// Chain gives access to the contracts of one network.
type Chain struct {
	Network config.Network

	cli    Backend
	pool   *rpc.Web3Pool
	signer *ethereum.Signer
}

// New connects to the given RPC endpoints, or to the network defaults if
// none are given. Every endpoint must serve the chain of the network;
// endpoints that cannot be reached are skipped.
func New(network config.Network, rpcs []string) (*Chain, error) {
	if len(rpcs) == 0 {
		rpcs = network.RPC
	}
	pool := rpc.NewWeb3Pool()
	added := 0
	for _, uri := range rpcs {
		chainID, err := pool.AddEndpoint(uri)
		if err != nil {
			log.Warnw("skipping web3 endpoint", "rpc", uri, "error", err.Error())
			continue
		}
		if chainID != network.ChainID {
			pool.Close()
			return nil, fmt.Errorf("endpoint %s serves chain %d, network %s is chain %d",
				uri, chainID, network.Name, network.ChainID)
		}
		added++
	}
	if added == 0 {
		return nil, fmt.Errorf("no reachable web3 endpoint for network %s", network.Name)
	}
	cli, err := pool.Client(network.ChainID)
	if err != nil {
		pool.Close()
		return nil, err
	}
	log.Infow("web3 ready", "network", network.Name, "chainID", network.ChainID, "endpoints", added)
	return &Chain{Network: network, cli: cli, pool: pool}, nil
}

// NewWithBackend returns a Chain over an existing backend.
func NewWithBackend(network config.Network, backend Backend) *Chain {
	return &Chain{Network: network, cli: backend}
}

// SetSigner sets the key that signs mint transactions.
func (c *Chain) SetSigner(signer *ethereum.Signer) {
	c.signer = signer
}

// Signer returns the transaction signer, nil if none is set.
func (c *Chain) Signer() *ethereum.Signer {
	return c.signer
}

// Close releases the RPC connections.
func (c *Chain) Close() {
	if c.pool != nil {
		c.pool.Close()
	}
}

// BlockNumber returns the latest block number.
func (c *Chain) BlockNumber(ctx context.Context) (uint64, error) {
	return c.cli.BlockNumber(ctx)
}

// Balance returns the balance of addr and the block it was read at.
func (c *Chain) Balance(ctx context.Context, addr common.Address) (*big.Int, uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, web3QueryTimeout)
	defer cancel()
	block, err := c.cli.BlockNumber(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("block number: %w", err)
	}
	balance, err := c.cli.BalanceAt(ctx, addr, new(big.Int).SetUint64(block))
	if err != nil {
		return nil, 0, fmt.Errorf("balance of %s: %w", addr.Hex(), err)
	}
	return balance, block, nil
}

// NullifierStorageSlot returns the storage slot of nullifier in a
// mapping(uint256 => ...) declared at slot, that is
// keccak256(abi.encode(nullifier, slot)).
func NullifierStorageSlot(nullifier *big.Int, slot uint64) common.Hash {
	key := uint256.MustFromBig(nullifier).Bytes32()
	pos := uint256.NewInt(slot).Bytes32()
	return ethcrypto.Keccak256Hash(key[:], pos[:])
}

// NullifierConsumed reports whether the BETH contract has already minted
// for nullifier. Any non-zero value in the nullifier slot means consumed.
func (c *Chain) NullifierConsumed(ctx context.Context, nullifier *big.Int) (bool, error) {
	if nullifier == nil || nullifier.Sign() < 0 || nullifier.BitLen() > 256 {
		return false, fmt.Errorf("invalid nullifier %v", nullifier)
	}
	ctx, cancel := context.WithTimeout(ctx, web3QueryTimeout)
	defer cancel()
	slot := NullifierStorageSlot(nullifier, c.Network.NullifierSlot)
	value, err := c.cli.StorageAt(ctx, c.Network.BETH, slot, nil)
	if err != nil {
		return false, fmt.Errorf("read nullifier slot %s: %w", slot.Hex(), err)
	}
	return new(big.Int).SetBytes(value).Sign() != 0, nil
}

// BalanceState is the on-chain state of a burn address.
type BalanceState struct {
	Balance  *big.Int
	Block    uint64
	Consumed bool
}

// RefreshRecord reads the balance of the record's burn address and whether
// its nullifier was consumed.
func (c *Chain) RefreshRecord(ctx context.Context, r *storage.BurnKeyRecord) (*BalanceState, error) {
	balance, block, err := c.Balance(ctx, r.BurnAddress)
	if err != nil {
		return nil, err
	}
	nullifier, err := r.Nullifier()
	if err != nil {
		return nil, fmt.Errorf("nullifier of %s/%d: %w", r.Wallet.Hex(), r.Index, err)
	}
	consumed, err := c.NullifierConsumed(ctx, nullifier)
	if err != nil {
		return nil, err
	}
	log.Debugw("burn address refreshed",
		"address", r.BurnAddress.Hex(),
		"balance", balance.String(),
		"block", block,
		"consumed", consumed)
	return &BalanceState{Balance: balance, Block: block, Consumed: consumed}, nil
}
