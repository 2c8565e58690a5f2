package burnkey

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	// ErrWalletNotConnected is returned when no secret scalar is available.
	ErrWalletNotConnected = errors.New("wallet not connected")
	// ErrInvalidParameter is returned for malformed keys, addresses or amounts.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrExhausted is matched by every *ExhaustedError.
	ErrExhausted = errors.New("burn key search exhausted")
	// ErrCancelled is returned when the search context is done. The context
	// error is wrapped too.
	ErrCancelled = errors.New("burn key search cancelled")
)

// ExhaustedError reports a search that hit its iteration cap. Retrying with
// another index or a lower difficulty is up to the caller.
type ExhaustedError struct {
	Start        *big.Int
	Iterations   uint64
	MinZeroBytes int
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: no key with %d leading zero bytes in %d candidates from %s",
		ErrExhausted, e.MinZeroBytes, e.Iterations, fieldString(e.Start))
}

// Is makes errors.Is(err, ErrExhausted) true.
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrExhausted
}

func invalidParameter(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidParameter, fmt.Sprintf(format, args...))
}
