// Command burnkit derives burn keys offline from a wallet private key and
// prints the resulting records as JSON.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/proofofburn/burnkit/burnkey"
	"github.com/proofofburn/burnkit/crypto/signatures/ethereum"
	"github.com/proofofburn/burnkit/internal"
	"github.com/proofofburn/burnkit/log"
	"github.com/proofofburn/burnkit/session"
	"github.com/proofofburn/burnkit/storage"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

func main() {
	privKey := pflag.StringP("privkey", "k", os.Getenv("BURNKIT_PRIVKEY"), "Hex-encoded wallet private key (or BURNKIT_PRIVKEY)")
	index := pflag.Uint64P("index", "i", 0, "First burn key index")
	count := pflag.Uint64P("count", "c", 1, "Number of consecutive indices to derive")
	version := pflag.Uint8P("version", "v", uint8(burnkey.V2), "Burn protocol version (1 or 2)")
	receiver := pflag.StringP("receiver", "r", "", "Receiver of the minted coins (defaults to the wallet)")
	proverFee := pflag.String("prover-fee", "0", "Prover fee in wei")
	broadcasterFee := pflag.String("broadcaster-fee", "0", "Broadcaster fee in wei (v2 only)")
	revealAmount := pflag.String("reveal-amount", "0", "Amount revealed at mint time in wei (v2 only)")
	minZeroBytes := pflag.Int("min-zero-bytes", burnkey.DefaultMinZeroBytes, "Leading zero bytes required by the search")
	maxIterations := pflag.Uint64("max-iterations", burnkey.DefaultMaxIterations, "Maximum candidates tested per index")
	parallel := pflag.Int("parallel", runtime.NumCPU(), "Indices derived concurrently")
	logLevel := pflag.String("log-level", log.LogLevelWarn, "Log level (debug, info, warn, error)")
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "burnkit %s\n\nUsage: burnkit [flags]\n\nFlags:\n", internal.Version)
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if *privKey == "" || *count == 0 {
		pflag.Usage()
		os.Exit(2)
	}
	log.Init(*logLevel, "stderr", nil)

	signer, err := ethereum.NewSignerFromHex(*privKey)
	if err != nil {
		log.Fatalf("invalid private key: %v", err)
	}
	params, err := parseParams(burnkey.Version(*version), signer.Address(), *receiver,
		*proverFee, *broadcasterFee, *revealAmount)
	if err != nil {
		log.Fatalf("invalid burn parameters: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess := session.New()
	sess.Connect(signer)
	scalar, err := sess.Scalar(ctx)
	if err != nil {
		log.Fatalf("cannot derive wallet scalar: %v", err)
	}

	records, err := derive(ctx, signer.Address(), scalar, *index, *count, params, *minZeroBytes, *maxIterations, *parallel)
	if err != nil {
		log.Fatalf("derivation failed: %v", err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		log.Fatalf("cannot encode records: %v", err)
	}
}

// derive searches the burn keys of indices [first, first+count) with at most
// parallel searches at once. Records are returned in index order.
func derive(ctx context.Context, wallet common.Address, scalar *big.Int, first, count uint64,
	params burnkey.Parameters, minZeroBytes int, maxIterations uint64, parallel int,
) ([]*storage.BurnKeyRecord, error) {
	records := make([]*storage.BurnKeyRecord, count)
	deriver := burnkey.NewDeriver(burnkey.WithMaxIterations(maxIterations))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(parallel, 1))
	for i := range count {
		g.Go(func() error {
			res, err := deriver.Derive(ctx, scalar, first+i, params, minZeroBytes)
			if err != nil {
				return fmt.Errorf("index %d: %w", first+i, err)
			}
			log.Infow("burn key found",
				"index", res.Index,
				"burnAddress", res.BurnAddress.Hex(),
				"iterations", res.Iterations)
			records[i], err = storage.NewBurnKeyRecord(wallet, res)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

// parseParams builds the burn parameters of version v. An empty receiver
// selects the wallet.
func parseParams(v burnkey.Version, wallet common.Address, receiver, proverFee, broadcasterFee, revealAmount string) (burnkey.Parameters, error) {
	to := wallet
	if receiver != "" {
		addr, err := burnkey.ParseAddress(receiver)
		if err != nil {
			return nil, err
		}
		to = addr
	}
	amounts := make([]*big.Int, 3)
	for i, s := range []string{proverFee, broadcasterFee, revealAmount} {
		x, ok := new(big.Int).SetString(s, 0)
		if !ok {
			return nil, fmt.Errorf("%w: %q is not an integer", burnkey.ErrInvalidParameter, s)
		}
		amounts[i] = x
	}
	var params burnkey.Parameters
	switch v {
	case burnkey.V1:
		if amounts[1].Sign() != 0 || amounts[2].Sign() != 0 {
			return nil, fmt.Errorf("%w: v1 has no broadcaster fee or reveal amount", burnkey.ErrInvalidParameter)
		}
		params = burnkey.ParamsV1{Receiver: to, Fee: amounts[0]}
	case burnkey.V2:
		params = burnkey.ParamsV2{
			Receiver:       to,
			ProverFee:      amounts[0],
			BroadcasterFee: amounts[1],
			RevealAmount:   amounts[2],
		}
	default:
		return nil, fmt.Errorf("%w: unknown version %d", burnkey.ErrInvalidParameter, v)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return params, nil
}
