package web3

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	qt "github.com/frankban/quicktest"
	rstypes "github.com/iden3/go-rapidsnark/types"
	"github.com/proofofburn/burnkit/burnkey"
	"github.com/proofofburn/burnkit/crypto/signatures/ethereum"
	"github.com/proofofburn/burnkit/proofservice"
	"github.com/proofofburn/burnkit/types"
)

func testResult() *proofservice.Result {
	return &proofservice.Result{
		Proof: &rstypes.ProofData{
			A:        []string{"11", "12", "1"},
			B:        [][]string{{"21", "22"}, {"23", "24"}, {"1", "0"}},
			C:        []string{"31", "32", "1"},
			Protocol: "groth16",
		},
		PubSignals:     []string{"41"},
		BlockNumber:    types.NewInt(100),
		Nullifier:      types.NewInt(555),
		RemainingCoin:  types.NewInt(0),
		BroadcasterFee: types.NewInt(1),
		ProverFee:      types.NewInt(2),
		RevealAmount:   types.NewInt(1e18),
		Receiver:       common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		Prover:         common.HexToAddress("0x00000000000000000000000000000000000000bb"),
	}
}

func TestMintArgs(t *testing.T) {
	c := qt.New(t)

	call, err := MintArgs(testResult())
	c.Assert(err, qt.IsNil)
	c.Assert(call.PA[0].Int64(), qt.Equals, int64(11))
	c.Assert(call.PA[1].Int64(), qt.Equals, int64(12))
	// G2 coordinates are swapped
	c.Assert(call.PB[0][0].Int64(), qt.Equals, int64(22))
	c.Assert(call.PB[0][1].Int64(), qt.Equals, int64(21))
	c.Assert(call.PB[1][0].Int64(), qt.Equals, int64(24))
	c.Assert(call.PB[1][1].Int64(), qt.Equals, int64(23))
	c.Assert(call.PC[1].Int64(), qt.Equals, int64(32))
	c.Assert(call.Nullifier.Int64(), qt.Equals, int64(555))
	c.Assert(call.ProverFee.Int64(), qt.Equals, int64(2))
	c.Assert(call.Receiver, qt.Equals, common.HexToAddress("0x00000000000000000000000000000000000000aa"))

	res := testResult()
	res.Nullifier = nil
	_, err = MintArgs(res)
	c.Assert(errors.Is(err, burnkey.ErrInvalidParameter), qt.IsTrue)
	c.Assert(err, qt.ErrorMatches, ".*nullifier is missing or negative")

	res = testResult()
	res.Proof.A[0] = burnkey.FieldSize.String()
	_, err = MintArgs(res)
	c.Assert(err, qt.ErrorMatches, ".*pi_a\\[0\\] is not a field element")

	res = testResult()
	res.Proof.B = [][]string{{"1"}}
	_, err = MintArgs(res)
	c.Assert(err, qt.ErrorMatches, ".*malformed groth16 proof")

	_, err = MintArgs(nil)
	c.Assert(errors.Is(err, burnkey.ErrInvalidParameter), qt.IsTrue)
}

func TestPackMint(t *testing.T) {
	c := qt.New(t)

	call, err := MintArgs(testResult())
	c.Assert(err, qt.IsNil)
	data, err := PackMint(call)
	c.Assert(err, qt.IsNil)

	selector := ethcrypto.Keccak256([]byte(
		"mintCoin(uint256[2],uint256[2][2],uint256[2],uint256,uint256,uint256,uint256,uint256,address,uint256,address)"))[:4]
	c.Assert(data[:4], qt.DeepEquals, selector)
	c.Assert(data, qt.HasLen, 4+16*32)

	a, err := mintABI()
	c.Assert(err, qt.IsNil)
	values, err := a.Methods[mintMethod].Inputs.Unpack(data[4:])
	c.Assert(err, qt.IsNil)
	c.Assert(values, qt.HasLen, 11)
	c.Assert(values[4].(*big.Int).Int64(), qt.Equals, int64(555))
	c.Assert(values[7].(*big.Int).Cmp(big.NewInt(1e18)), qt.Equals, 0)
	c.Assert(values[8], qt.Equals, call.Receiver)
	c.Assert(values[10], qt.Equals, call.Prover)
}

func TestMint(t *testing.T) {
	c := qt.New(t)
	backend := newFakeBackend()
	network := testNetwork()
	chain := NewWithBackend(network, backend)

	_, err := chain.Mint(context.Background(), testResult())
	c.Assert(errors.Is(err, ErrNoSigner), qt.IsTrue)

	signer, err := ethereum.NewSignerFromSeed([]byte("broadcaster"))
	c.Assert(err, qt.IsNil)
	chain.SetSigner(signer)

	hash, err := chain.Mint(context.Background(), testResult())
	c.Assert(err, qt.IsNil)
	c.Assert(backend.sent, qt.HasLen, 1)
	tx := backend.sent[0]
	c.Assert(tx.Hash(), qt.Equals, hash)
	c.Assert(*tx.To(), qt.Equals, network.BETH)
	c.Assert(tx.ChainId().Uint64(), qt.Equals, network.ChainID)
	c.Assert(tx.Nonce(), qt.Equals, uint64(7))
	c.Assert(tx.Gas(), qt.Equals, uint64(360_000))
	c.Assert(tx.GasTipCap().Int64(), qt.Equals, int64(2))
	c.Assert(tx.GasFeeCap().Int64(), qt.Equals, int64(22))

	call, err := MintArgs(testResult())
	c.Assert(err, qt.IsNil)
	data, err := PackMint(call)
	c.Assert(err, qt.IsNil)
	c.Assert(tx.Data(), qt.DeepEquals, data)

	from, err := gethtypes.Sender(gethtypes.LatestSignerForChainID(tx.ChainId()), tx)
	c.Assert(err, qt.IsNil)
	c.Assert(from, qt.Equals, signer.Address())

	backend.gasErr = errors.New("execution reverted: nullifier already used")
	_, err = chain.Mint(context.Background(), testResult())
	c.Assert(err, qt.ErrorMatches, "estimate mint gas: nullifier already used")
}

func TestWaitReceipt(t *testing.T) {
	c := qt.New(t)
	backend := newFakeBackend()
	chain := NewWithBackend(testNetwork(), backend)

	ok := common.HexToHash("0x01")
	reverted := common.HexToHash("0x02")
	backend.receipts[ok] = &gethtypes.Receipt{Status: gethtypes.ReceiptStatusSuccessful, BlockNumber: big.NewInt(101)}
	backend.receipts[reverted] = &gethtypes.Receipt{Status: gethtypes.ReceiptStatusFailed, BlockNumber: big.NewInt(102)}

	receipt, err := chain.WaitReceipt(context.Background(), ok)
	c.Assert(err, qt.IsNil)
	c.Assert(receipt.BlockNumber.Int64(), qt.Equals, int64(101))

	receipt, err = chain.WaitReceipt(context.Background(), reverted)
	c.Assert(err, qt.ErrorMatches, "transaction 0x0+2 reverted in block 102")
	c.Assert(receipt, qt.Not(qt.IsNil))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = chain.WaitReceipt(ctx, common.HexToHash("0x03"))
	c.Assert(errors.Is(err, context.DeadlineExceeded), qt.IsTrue)
}
