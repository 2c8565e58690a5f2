package web3

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/proofofburn/burnkit/burnkey"
	"github.com/proofofburn/burnkit/log"
	"github.com/proofofburn/burnkit/proofservice"
	"github.com/proofofburn/burnkit/types"
)

const mintMethod = "mintCoin"

const mintABIJSON = `[{
	"type": "function",
	"name": "mintCoin",
	"stateMutability": "nonpayable",
	"inputs": [
		{"name": "_pA", "type": "uint256[2]"},
		{"name": "_pB", "type": "uint256[2][2]"},
		{"name": "_pC", "type": "uint256[2]"},
		{"name": "_blockNumber", "type": "uint256"},
		{"name": "_nullifier", "type": "uint256"},
		{"name": "_remainingCoin", "type": "uint256"},
		{"name": "_broadcasterFee", "type": "uint256"},
		{"name": "_revealedAmount", "type": "uint256"},
		{"name": "_revealedAmountReceiver", "type": "address"},
		{"name": "_proverFee", "type": "uint256"},
		{"name": "_prover", "type": "address"}
	],
	"outputs": []
}]`

// gas estimate is multiplied by gasMarginNum/gasMarginDen
const (
	gasMarginNum = 12
	gasMarginDen = 10

	receiptPollInterval = 2 * time.Second
)

var mintABI = sync.OnceValues(func() (*abi.ABI, error) {
	a, err := abi.JSON(strings.NewReader(mintABIJSON))
	if err != nil {
		return nil, err
	}
	return &a, nil
})

// ErrNoSigner is returned when a transaction is needed but no key is set.
var ErrNoSigner = errors.New("no transaction signer configured")

// MintCall holds the arguments of BETH.mintCoin in contract order.
type MintCall struct {
	PA             [2]*big.Int
	PB             [2][2]*big.Int
	PC             [2]*big.Int
	BlockNumber    *big.Int
	Nullifier      *big.Int
	RemainingCoin  *big.Int
	BroadcasterFee *big.Int
	RevealAmount   *big.Int
	Receiver       common.Address
	ProverFee      *big.Int
	Prover         common.Address
}

// MintArgs converts a proof service result into mint arguments. The G2
// point coordinates of snarkjs proofs are stored as [c0, c1] while the
// solidity verifier expects [c1, c0], so pB is swapped here.
func MintArgs(res *proofservice.Result) (*MintCall, error) {
	if res == nil || res.Proof == nil {
		return nil, fmt.Errorf("%w: result without proof", burnkey.ErrInvalidParameter)
	}
	p := res.Proof
	if len(p.A) < 2 || len(p.C) < 2 || len(p.B) < 2 || len(p.B[0]) < 2 || len(p.B[1]) < 2 {
		return nil, fmt.Errorf("%w: malformed groth16 proof", burnkey.ErrInvalidParameter)
	}
	call := &MintCall{Receiver: res.Receiver, Prover: res.Prover}

	var err error
	parse := func(name, s string) *big.Int {
		if err != nil {
			return nil
		}
		var x *big.Int
		x, err = parseFieldString(name, s)
		return x
	}
	call.PA = [2]*big.Int{parse("pi_a[0]", p.A[0]), parse("pi_a[1]", p.A[1])}
	call.PB = [2][2]*big.Int{
		{parse("pi_b[0][1]", p.B[0][1]), parse("pi_b[0][0]", p.B[0][0])},
		{parse("pi_b[1][1]", p.B[1][1]), parse("pi_b[1][0]", p.B[1][0])},
	}
	call.PC = [2]*big.Int{parse("pi_c[0]", p.C[0]), parse("pi_c[1]", p.C[1])}
	if err != nil {
		return nil, err
	}

	for _, f := range []struct {
		name string
		in   *types.BigInt
		out  **big.Int
	}{
		{"block_number", res.BlockNumber, &call.BlockNumber},
		{"nullifier", res.Nullifier, &call.Nullifier},
		{"remaining_coin", res.RemainingCoin, &call.RemainingCoin},
		{"broadcaster_fee", res.BroadcasterFee, &call.BroadcasterFee},
		{"reveal_amount", res.RevealAmount, &call.RevealAmount},
		{"prover_fee", res.ProverFee, &call.ProverFee},
	} {
		if f.in == nil || f.in.MathBigInt().Sign() < 0 {
			return nil, fmt.Errorf("%w: %s is missing or negative", burnkey.ErrInvalidParameter, f.name)
		}
		*f.out = f.in.MathBigInt()
	}
	return call, nil
}

func parseFieldString(name, s string) (*big.Int, error) {
	var v types.BigInt
	if err := v.UnmarshalText([]byte(s)); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", burnkey.ErrInvalidParameter, name, err)
	}
	x := v.MathBigInt()
	if !burnkey.InField(x) {
		return nil, fmt.Errorf("%w: %s is not a field element", burnkey.ErrInvalidParameter, name)
	}
	return x, nil
}

// PackMint returns the calldata of mintCoin.
func PackMint(call *MintCall) ([]byte, error) {
	a, err := mintABI()
	if err != nil {
		return nil, fmt.Errorf("mint abi: %w", err)
	}
	return a.Pack(mintMethod,
		call.PA, call.PB, call.PC,
		call.BlockNumber, call.Nullifier, call.RemainingCoin,
		call.BroadcasterFee, call.RevealAmount, call.Receiver,
		call.ProverFee, call.Prover,
	)
}

// Mint sends the mintCoin transaction of a proof result to the BETH
// contract, signed with the configured key, and returns its hash. It does
// not wait for the transaction to be mined.
func (c *Chain) Mint(ctx context.Context, res *proofservice.Result) (common.Hash, error) {
	if c.signer == nil {
		return common.Hash{}, ErrNoSigner
	}
	call, err := MintArgs(res)
	if err != nil {
		return common.Hash{}, err
	}
	data, err := PackMint(call)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack mint: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, web3QueryTimeout)
	defer cancel()
	from := c.signer.Address()
	to := c.Network.BETH
	tip, feeCap, err := c.suggestFees(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	gas, err := c.cli.EstimateGas(ctx, geth.CallMsg{From: from, To: &to, Data: data})
	if err != nil {
		return common.Hash{}, fmt.Errorf("estimate mint gas: %s", RevertReason(err))
	}
	nonce, err := c.cli.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pending nonce: %w", err)
	}

	chainID := new(big.Int).SetUint64(c.Network.ChainID)
	tx, err := gethtypes.SignNewTx((*ecdsa.PrivateKey)(c.signer), gethtypes.LatestSignerForChainID(chainID),
		&gethtypes.DynamicFeeTx{
			ChainID:   chainID,
			Nonce:     nonce,
			GasTipCap: tip,
			GasFeeCap: feeCap,
			Gas:       gas * gasMarginNum / gasMarginDen,
			To:        &to,
			Value:     big.NewInt(0),
			Data:      data,
		})
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign mint tx: %w", err)
	}
	if err := c.cli.SendTransaction(ctx, tx); err != nil {
		return common.Hash{}, fmt.Errorf("send mint tx: %s", RevertReason(err))
	}
	log.Infow("mint transaction sent",
		"tx", tx.Hash().Hex(),
		"nullifier", call.Nullifier.String(),
		"receiver", call.Receiver.Hex(),
		"amount", call.RevealAmount.String())
	return tx.Hash(), nil
}

// suggestFees returns the tip and a fee cap of twice the base fee plus tip.
func (c *Chain) suggestFees(ctx context.Context) (*big.Int, *big.Int, error) {
	tip, err := c.cli.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("suggest tip: %w", err)
	}
	head, err := c.cli.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("latest header: %w", err)
	}
	if head.BaseFee == nil {
		return nil, nil, fmt.Errorf("no base fee in latest header")
	}
	feeCap := new(big.Int).Mul(head.BaseFee, big.NewInt(2))
	return tip, feeCap.Add(feeCap, tip), nil
}

// WaitReceipt polls for the receipt of hash until it is mined or ctx is
// done. A reverted transaction returns the receipt and an error.
func (c *Chain) WaitReceipt(ctx context.Context, hash common.Hash) (*gethtypes.Receipt, error) {
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()
	for {
		receipt, err := c.cli.TransactionReceipt(ctx, hash)
		switch {
		case err == nil && receipt.Status == gethtypes.ReceiptStatusSuccessful:
			return receipt, nil
		case err == nil:
			return receipt, fmt.Errorf("transaction %s reverted in block %s", hash.Hex(), receipt.BlockNumber)
		case !errors.Is(err, geth.NotFound) && ctx.Err() == nil:
			log.Debugw("receipt not available", "tx", hash.Hex(), "error", err.Error())
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for %s: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}
