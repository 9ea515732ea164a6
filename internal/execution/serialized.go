// internal/execution/serialized.go
package execution

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/sniper-agent/internal/wallet"
)

// Serialized wraps an Executor so that at most one submission per user is in
// flight. Submissions of different users run concurrently. A user's lock only
// lives while a submission holds or waits for it.
type Serialized struct {
	inner Executor

	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

// NewSerialized wraps inner.
func NewSerialized(inner Executor) *Serialized {
	return &Serialized{inner: inner, locks: make(map[string]*userLock)}
}

func (s *Serialized) acquire(userID string) *userLock {
	s.mu.Lock()
	l, ok := s.locks[userID]
	if !ok {
		l = &userLock{}
		s.locks[userID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return l
}

func (s *Serialized) release(userID string, l *userLock) {
	l.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, userID)
	}
}

func (s *Serialized) SubmitTrade(ctx context.Context, intent TradeIntent, key *wallet.Wallet) TradeResult {
	l := s.acquire(intent.UserID)
	defer s.release(intent.UserID, l)
	return s.inner.SubmitTrade(ctx, intent, key)
}

func (s *Serialized) Balance(ctx context.Context, key *wallet.Wallet) (decimal.Decimal, error) {
	return s.inner.Balance(ctx, key)
}

var _ Executor = (*Serialized)(nil)
