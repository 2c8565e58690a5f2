package main

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"github.com/proofofburn/burnkit/burnkey"
)

var testWallet = common.HexToAddress("0x00000000000000000000000000000000000000aa")

func TestParseParams(t *testing.T) {
	c := qt.New(t)

	params, err := parseParams(burnkey.V2, testWallet, "", "10", "0x2", "3")
	c.Assert(err, qt.IsNil)
	v2, ok := params.(burnkey.ParamsV2)
	c.Assert(ok, qt.IsTrue)
	c.Assert(v2.Receiver, qt.Equals, testWallet)
	c.Assert(v2.ProverFee.Int64(), qt.Equals, int64(10))
	c.Assert(v2.BroadcasterFee.Int64(), qt.Equals, int64(2))
	c.Assert(v2.RevealAmount.Int64(), qt.Equals, int64(3))

	receiver := "0x00000000000000000000000000000000000000bb"
	params, err = parseParams(burnkey.V1, testWallet, receiver, "7", "0", "0")
	c.Assert(err, qt.IsNil)
	c.Assert(params.Version(), qt.Equals, burnkey.V1)
	c.Assert(params.ReceiverAddress(), qt.Equals, common.HexToAddress(receiver))

	_, err = parseParams(burnkey.V1, testWallet, "", "0", "1", "0")
	c.Assert(err, qt.ErrorIs, burnkey.ErrInvalidParameter)
	_, err = parseParams(burnkey.V2, testWallet, "", "ten", "0", "0")
	c.Assert(err, qt.ErrorIs, burnkey.ErrInvalidParameter)
	_, err = parseParams(burnkey.Version(3), testWallet, "", "0", "0", "0")
	c.Assert(err, qt.ErrorIs, burnkey.ErrInvalidParameter)
	_, err = parseParams(burnkey.V2, testWallet, "", burnkey.FieldSize.String(), "0", "0")
	c.Assert(err, qt.ErrorIs, burnkey.ErrInvalidParameter)
}

func TestDeriveRange(t *testing.T) {
	c := qt.New(t)

	params, err := parseParams(burnkey.V2, testWallet, "", "0", "0", "0")
	c.Assert(err, qt.IsNil)
	scalar := big.NewInt(12345)

	records, err := derive(context.Background(), testWallet, scalar, 4, 3, params, 0, 10, 2)
	c.Assert(err, qt.IsNil)
	c.Assert(records, qt.HasLen, 3)
	for i, rec := range records {
		c.Assert(rec.Index, qt.Equals, uint64(4+i))
		c.Assert(rec.Wallet, qt.Equals, testWallet)

		// with no difficulty the key is the starting point itself
		start, err := burnkey.StartingPoint(scalar, rec.Index)
		c.Assert(err, qt.IsNil)
		c.Assert(rec.BurnKey.MathBigInt().Cmp(start), qt.Equals, 0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = derive(ctx, testWallet, scalar, 0, 2, params, 32, 1000, 1)
	c.Assert(err, qt.IsNotNil)
}
