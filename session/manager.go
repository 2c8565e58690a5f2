package session

import (
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/proofofburn/burnkit/crypto/signatures/ethereum"
	"github.com/proofofburn/burnkit/log"
)

const (
	DefaultTTL         = 24 * time.Hour
	DefaultMaxSessions = 4096
)

// ErrSessionNotFound is returned for unknown or expired session ids.
var ErrSessionNotFound = errors.New("session not found")

// Manager indexes sessions opened from external signatures by a random id.
// Sessions expire ttl after they were opened.
type Manager struct {
	sessions *expirable.LRU[string, *Session]
}

// NewManager returns a Manager holding at most size sessions. Zero values
// select the defaults.
func NewManager(size int, ttl time.Duration) *Manager {
	if size <= 0 {
		size = DefaultMaxSessions
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		sessions: expirable.NewLRU(size, func(id string, s *Session) {
			s.Reset()
			log.Debugw("session evicted", "id", id)
		}, ttl),
	}
}

// Open verifies sig for account and registers a new session.
func (m *Manager) Open(account common.Address, sig *ethereum.Signature) (string, *Session, error) {
	s := New()
	if err := s.SetSignature(account, sig); err != nil {
		return "", nil, err
	}
	id := uuid.NewString()
	m.sessions.Add(id, s)
	log.Infow("session opened", "id", id, "account", account.Hex())
	return id, s, nil
}

// Get returns the session registered under id.
func (m *Manager) Get(id string) (*Session, error) {
	s, ok := m.sessions.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Close drops the session. Closing an unknown id returns ErrSessionNotFound.
func (m *Manager) Close(id string) error {
	if !m.sessions.Remove(id) {
		return ErrSessionNotFound
	}
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	return m.sessions.Len()
}
