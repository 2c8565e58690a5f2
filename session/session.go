// Package session keeps the wallet-bound secret scalar for the lifetime of a
// wallet connection. The scalar is the s value of the wallet's EIP-191
// signature of "EIP-7503", reduced into the BN254 scalar field; it is
// computed once per connected account and dropped when the account changes.
package session

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/proofofburn/burnkit/burnkey"
	"github.com/proofofburn/burnkit/crypto/signatures/ethereum"
)

// ErrWalletNotConnected is returned by Scalar when there is no wallet and no
// signature to derive the scalar from.
var ErrWalletNotConnected = burnkey.ErrWalletNotConnected

// Wallet signs EIP-191 messages for one account. *ethereum.Signer satisfies
// it.
type Wallet interface {
	Address() common.Address
	Sign(msg []byte) (*ethereum.Signature, error)
}

// Session is the scalar cache of one wallet connection.
type Session struct {
	mu      sync.Mutex
	wallet  Wallet
	account common.Address
	scalar  *big.Int
}

// New returns a disconnected session.
func New() *Session {
	return &Session{}
}

// Connect attaches w. A different account than the current one resets the
// cached scalar.
func (s *Session) Connect(w Wallet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w.Address() != s.account {
		s.scalar = nil
	}
	s.wallet = w
	s.account = w.Address()
}

// Reset disconnects the wallet and forgets the scalar.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallet = nil
	s.account = common.Address{}
	s.scalar = nil
}

// Account returns the connected account and whether there is one.
func (s *Session) Account() (common.Address, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account, s.wallet != nil || s.scalar != nil
}

// SetSignature installs a signature of burnkey.SigningMessage produced
// elsewhere, typically by a browser wallet. The signer recovered from sig
// must be account.
func (s *Session) SetSignature(account common.Address, sig *ethereum.Signature) error {
	signer, err := ethereum.AddrFromSignature([]byte(burnkey.SigningMessage), sig)
	if err != nil {
		return fmt.Errorf("%w: %w", burnkey.ErrInvalidParameter, err)
	}
	if signer != account {
		return fmt.Errorf("%w: signature belongs to %s, not %s", burnkey.ErrInvalidParameter, signer, account)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallet = nil
	s.account = account
	s.scalar = ScalarFromSignature(sig)
	return nil
}

// Scalar returns the secret scalar, asking the wallet for a signature on the
// first call after a connect.
func (s *Session) Scalar(ctx context.Context) (*big.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scalar != nil {
		return new(big.Int).Set(s.scalar), nil
	}
	if s.wallet == nil {
		return nil, ErrWalletNotConnected
	}
	sig, err := s.wallet.Sign([]byte(burnkey.SigningMessage))
	if err != nil {
		return nil, fmt.Errorf("could not sign %q: %w", burnkey.SigningMessage, err)
	}
	s.scalar = ScalarFromSignature(sig)
	return new(big.Int).Set(s.scalar), nil
}

// ScalarFromSignature returns sig.S mod FieldSize.
func ScalarFromSignature(sig *ethereum.Signature) *big.Int {
	return new(big.Int).Mod(sig.S, burnkey.FieldSize)
}
