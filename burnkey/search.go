package burnkey

import (
	"context"
	"fmt"
	"math/big"
	"runtime"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Deriver runs burn key searches. A Deriver holds no search state and can be
// used from several goroutines, but the progress callback is shared. The zero
// value uses the defaults.
type Deriver struct {
	maxIterations uint64
	yieldInterval uint64
	progress      func(iterations uint64)
}

// Option configures a Deriver.
type Option func(*Deriver)

// WithMaxIterations caps the number of candidates a search may test.
func WithMaxIterations(n uint64) Option {
	return func(d *Deriver) {
		if n > 0 {
			d.maxIterations = n
		}
	}
}

// WithYieldInterval sets how many candidates are tested between context
// checks and progress reports.
func WithYieldInterval(n uint64) Option {
	return func(d *Deriver) {
		if n > 0 {
			d.yieldInterval = n
		}
	}
}

// WithProgress registers fn to be called with the number of candidates tested
// so far, once per yield interval.
func WithProgress(fn func(iterations uint64)) Option {
	return func(d *Deriver) {
		d.progress = fn
	}
}

// NewDeriver returns a Deriver with the default cap and yield interval.
func NewDeriver(opts ...Option) *Deriver {
	d := &Deriver{
		maxIterations: DefaultMaxIterations,
		yieldInterval: DefaultYieldInterval,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// MaxIterations returns the configured iteration cap.
func (d *Deriver) MaxIterations() uint64 {
	return d.maxIterations
}

// Search scans the field forward from start, wrapping from FieldSize-1 to 0,
// and returns the first key whose search hash begins with minZeroBytes zero
// bytes, together with the number of candidates tested (the match included).
func (d *Deriver) Search(ctx context.Context, start *big.Int, params Parameters, minZeroBytes int) (*big.Int, uint64, error) {
	if err := checkField("starting point", start); err != nil {
		return nil, 0, err
	}
	if err := checkSearchInputs(params, minZeroBytes); err != nil {
		return nil, 0, err
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrCancelled, err)
	}

	maxIterations, yieldInterval := d.maxIterations, d.yieldInterval
	if maxIterations == 0 {
		maxIterations = DefaultMaxIterations
	}
	if yieldInterval == 0 {
		yieldInterval = DefaultYieldInterval
	}

	preimage := searchPreimage(params)
	hasher := ethcrypto.NewKeccakState()
	var (
		candidate, one fr.Element
		digest         [32]byte
	)
	candidate.SetBigInt(start)
	one.SetOne()

	for i := uint64(1); i <= maxIterations; i++ {
		key := candidate.Bytes()
		copy(preimage, key[:])
		hasher.Reset()
		_, _ = hasher.Write(preimage)
		_, _ = hasher.Read(digest[:])
		if leadingZeroBytes(digest, minZeroBytes) {
			if d.progress != nil {
				d.progress(i)
			}
			return candidate.BigInt(new(big.Int)), i, nil
		}
		if i%yieldInterval == 0 {
			if d.progress != nil {
				d.progress(i)
			}
			select {
			case <-ctx.Done():
				return nil, i, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
			default:
			}
			runtime.Gosched()
		}
		candidate.Add(&candidate, &one)
	}
	return nil, maxIterations, &ExhaustedError{
		Start:        new(big.Int).Set(start),
		Iterations:   maxIterations,
		MinZeroBytes: minZeroBytes,
	}
}

// SearchHash returns keccak256(key || params || PoWSuffix).
func SearchHash(burnKey *big.Int, params Parameters) ([32]byte, error) {
	if err := checkField("burn key", burnKey); err != nil {
		return [32]byte{}, err
	}
	if err := checkParams(params); err != nil {
		return [32]byte{}, err
	}
	preimage := searchPreimage(params)
	burnKey.FillBytes(preimage[:32])
	var digest [32]byte
	copy(digest[:], ethcrypto.Keccak256(preimage))
	return digest, nil
}

// MeetsDifficulty reports whether burnKey is an acceptable search result for
// params at the given difficulty.
func MeetsDifficulty(burnKey *big.Int, params Parameters, minZeroBytes int) (bool, error) {
	if err := checkSearchInputs(params, minZeroBytes); err != nil {
		return false, err
	}
	digest, err := SearchHash(burnKey, params)
	if err != nil {
		return false, err
	}
	return leadingZeroBytes(digest, minZeroBytes), nil
}

// searchPreimage returns the full preimage with the first 32 bytes left for
// the candidate key.
func searchPreimage(params Parameters) []byte {
	buf := make([]byte, 32, 32+20+3*32+len(PoWSuffix))
	buf = params.appendPreimage(buf)
	return append(buf, PoWSuffix...)
}

func leadingZeroBytes(digest [32]byte, n int) bool {
	for _, b := range digest[:n] {
		if b != 0 {
			return false
		}
	}
	return true
}

func checkParams(params Parameters) error {
	if params == nil {
		return invalidParameter("burn parameters are missing")
	}
	switch params.Version() {
	case V1, V2:
	default:
		return invalidParameter("unknown protocol version %s", params.Version())
	}
	return params.Validate()
}

func checkSearchInputs(params Parameters, minZeroBytes int) error {
	if minZeroBytes < 0 || minZeroBytes > 32 {
		return invalidParameter("min zero bytes %d not in [0, 32]", minZeroBytes)
	}
	return checkParams(params)
}
