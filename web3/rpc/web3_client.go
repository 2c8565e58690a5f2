package rpc

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	bind "github.com/ethereum/go-ethereum/accounts/abi/bind/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/proofofburn/burnkit/log"
)

const (
	// attempts on one endpoint before moving to the next one
	defaultRetries    = 2
	defaultRetrySleep = 200 * time.Millisecond
)

var (
	defaultTimeout    = 5 * time.Second
	filterLogsTimeout = 10 * time.Second
)

// permanentErrorPatterns are failures that no retry or endpoint switch can
// fix.
var permanentErrorPatterns = []string{
	"execution reverted",
	"insufficient funds",
}

// IsPermanentError reports whether err should not be retried.
func IsPermanentError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range permanentErrorPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

var _ bind.ContractBackend = (*Client)(nil)

// Client implements bind.ContractBackend plus the few extra reads burnkit
// needs, over the endpoints of one chain of a Web3Pool.
type Client struct {
	w3p     *Web3Pool
	chainID uint64
}

// ChainID returns the chain the client is bound to. It is known from the
// pool, no request is made.
func (c *Client) ChainID() uint64 {
	return c.chainID
}

// call runs fn with a per-attempt timeout through retryAndCheckErr and
// casts the result.
func call[T any](ctx context.Context, c *Client, timeout time.Duration, fn func(context.Context, *Web3Endpoint) (T, error)) (T, error) {
	res, err := c.retryAndCheckErr(ctx, func(ep *Web3Endpoint) (any, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return fn(attemptCtx, ep)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return res.(T), nil
}

// CodeAt is part of bind.ContractBackend.
func (c *Client) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	return call(ctx, c, defaultTimeout, func(ctx context.Context, ep *Web3Endpoint) ([]byte, error) {
		return ep.client.CodeAt(ctx, account, blockNumber)
	})
}

// CallContract is part of bind.ContractBackend.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return call(ctx, c, defaultTimeout, func(ctx context.Context, ep *Web3Endpoint) ([]byte, error) {
		return ep.client.CallContract(ctx, msg, blockNumber)
	})
}

// EstimateGas is part of bind.ContractBackend.
func (c *Client) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return call(ctx, c, defaultTimeout, func(ctx context.Context, ep *Web3Endpoint) (uint64, error) {
		return ep.client.EstimateGas(ctx, msg)
	})
}

// FilterLogs is part of bind.ContractBackend.
func (c *Client) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]gethtypes.Log, error) {
	return call(ctx, c, filterLogsTimeout, func(ctx context.Context, ep *Web3Endpoint) ([]gethtypes.Log, error) {
		return ep.client.FilterLogs(ctx, query)
	})
}

// SubscribeFilterLogs is part of bind.ContractBackend. Subscriptions live as
// long as ctx, so no per-attempt timeout is applied.
func (c *Client) SubscribeFilterLogs(ctx context.Context, query ethereum.FilterQuery, ch chan<- gethtypes.Log) (ethereum.Subscription, error) {
	res, err := c.retryAndCheckErr(ctx, func(ep *Web3Endpoint) (any, error) {
		return ep.client.SubscribeFilterLogs(ctx, query, ch)
	})
	if err != nil {
		return nil, err
	}
	return res.(ethereum.Subscription), nil
}

// HeaderByNumber is part of bind.ContractBackend.
func (c *Client) HeaderByNumber(ctx context.Context, number *big.Int) (*gethtypes.Header, error) {
	return call(ctx, c, defaultTimeout, func(ctx context.Context, ep *Web3Endpoint) (*gethtypes.Header, error) {
		return ep.client.HeaderByNumber(ctx, number)
	})
}

// PendingCodeAt is part of bind.ContractBackend.
func (c *Client) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	return call(ctx, c, defaultTimeout, func(ctx context.Context, ep *Web3Endpoint) ([]byte, error) {
		return ep.client.PendingCodeAt(ctx, account)
	})
}

// PendingNonceAt is part of bind.ContractBackend.
func (c *Client) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return call(ctx, c, defaultTimeout, func(ctx context.Context, ep *Web3Endpoint) (uint64, error) {
		return ep.client.PendingNonceAt(ctx, account)
	})
}

// SuggestGasPrice is part of bind.ContractBackend.
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return call(ctx, c, defaultTimeout, func(ctx context.Context, ep *Web3Endpoint) (*big.Int, error) {
		return ep.client.SuggestGasPrice(ctx)
	})
}

// SuggestGasTipCap is part of bind.ContractBackend.
func (c *Client) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return call(ctx, c, defaultTimeout, func(ctx context.Context, ep *Web3Endpoint) (*big.Int, error) {
		return ep.client.SuggestGasTipCap(ctx)
	})
}

// SendTransaction is part of bind.ContractBackend.
func (c *Client) SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error {
	_, err := call(ctx, c, defaultTimeout, func(ctx context.Context, ep *Web3Endpoint) (struct{}, error) {
		return struct{}{}, ep.client.SendTransaction(ctx, tx)
	})
	return err
}

// TransactionReceipt returns the receipt of a mined transaction.
func (c *Client) TransactionReceipt(ctx context.Context, hash common.Hash) (*gethtypes.Receipt, error) {
	return call(ctx, c, defaultTimeout, func(ctx context.Context, ep *Web3Endpoint) (*gethtypes.Receipt, error) {
		return ep.client.TransactionReceipt(ctx, hash)
	})
}

// BalanceAt returns the wei balance of account at blockNumber (nil for the
// latest block).
func (c *Client) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return call(ctx, c, defaultTimeout, func(ctx context.Context, ep *Web3Endpoint) (*big.Int, error) {
		return ep.client.BalanceAt(ctx, account, blockNumber)
	})
}

// StorageAt returns the raw value of a contract storage slot.
func (c *Client) StorageAt(ctx context.Context, account common.Address, slot common.Hash, blockNumber *big.Int) ([]byte, error) {
	return call(ctx, c, defaultTimeout, func(ctx context.Context, ep *Web3Endpoint) ([]byte, error) {
		return ep.client.StorageAt(ctx, account, slot, blockNumber)
	})
}

// BlockNumber returns the latest block number.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	return call(ctx, c, defaultTimeout, func(ctx context.Context, ep *Web3Endpoint) (uint64, error) {
		return ep.client.BlockNumber(ctx)
	})
}

// retryAndCheckErr calls fn on the current endpoint up to defaultRetries
// times, then disables it and moves to the next one, until every endpoint of
// the chain was tried. Permanent errors and a done ctx stop immediately.
func (c *Client) retryAndCheckErr(ctx context.Context, fn func(*Web3Endpoint) (any, error)) (any, error) {
	total := c.w3p.NumberOfEndpoints(c.chainID, false)
	if total == 0 {
		return nil, fmt.Errorf("no endpoints available for chain %d", c.chainID)
	}

	tried := make(map[string]bool, total)
	var lastErr error
	for attempt := range total {
		ep, err := c.w3p.Endpoint(c.chainID)
		if err != nil {
			return nil, fmt.Errorf("endpoint for chain %d: %w", c.chainID, err)
		}
		if tried[ep.URI] {
			break
		}
		tried[ep.URI] = true

		for retry := range defaultRetries {
			res, err := fn(ep)
			if err == nil {
				if attempt > 0 {
					log.Infow("rpc call succeeded after endpoint switch",
						"chainID", c.chainID,
						"uri", ep.URI,
						"endpointAttempts", attempt+1)
				}
				return res, nil
			}
			lastErr = err
			if rpcErr := ParseError(err); rpcErr != nil && len(rpcErr.Data) > 0 {
				lastErr = fmt.Errorf("%w (code: %d, data: %s)", err, rpcErr.Code, rpcErr.Data)
			}
			if IsPermanentError(err) || errors.Is(err, ethereum.NotFound) {
				return nil, lastErr
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if retry < defaultRetries-1 {
				time.Sleep(defaultRetrySleep)
			}
		}

		log.Warnw("endpoint failed, switching to next",
			"chainID", c.chainID,
			"uri", ep.URI,
			"error", lastErr.Error())
		c.w3p.DisableEndpoint(c.chainID, ep.URI)
	}
	return nil, fmt.Errorf("all endpoints failed for chain %d: %w", c.chainID, lastErr)
}

// RPCError is a JSON-RPC error with its code and revert data.
type RPCError struct {
	Code    int           `json:"code"`
	Message string        `json:"message"`
	Data    hexutil.Bytes `json:"data"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("%s (code: %d, data: %s)", e.Message, e.Code, e.Data.String())
}

func (e *RPCError) ErrorCode() int { return e.Code }

func (e *RPCError) ErrorData() any { return e.Data }

// ParseError extracts the code and data of a JSON-RPC error, if err carries
// them.
func ParseError(err error) *RPCError {
	if err == nil {
		return nil
	}
	var out *RPCError
	if errors.As(err, &out) {
		return out
	}
	out = &RPCError{Message: err.Error()}
	var rpcErr gethrpc.Error
	if errors.As(err, &rpcErr) {
		out.Code = rpcErr.ErrorCode()
	}
	var dataErr gethrpc.DataError
	if errors.As(err, &dataErr) {
		switch v := dataErr.ErrorData().(type) {
		case []byte:
			out.Data = v
		case string:
			if b, derr := hexutil.Decode(v); derr == nil {
				out.Data = b
			}
		}
	}
	return out
}
