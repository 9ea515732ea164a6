// internal/subscription/gate.go
package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/sniper-agent/internal/storage"
)

// Gate answers whether a user currently holds an active subscription.
type Gate interface {
	IsEntitled(ctx context.Context, userID string) (bool, error)
}

// ExpiryStore reads subscription expiry records.
type ExpiryStore interface {
	GetSubscription(ctx context.Context, userID string) (time.Time, error)
}

// StoreGate grants access while the stored expiry lies in the future.
type StoreGate struct {
	store  ExpiryStore
	now    func() time.Time
	logger *zap.Logger
}

func NewStoreGate(store ExpiryStore, logger *zap.Logger) *StoreGate {
	return &StoreGate{store: store, now: time.Now, logger: logger.Named("subscription")}
}

// IsEntitled reports false for users without a record.
func (g *StoreGate) IsEntitled(ctx context.Context, userID string) (bool, error) {
	expiresAt, err := g.store.GetSubscription(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read subscription: %w", err)
	}
	ok := g.now().Before(expiresAt)
	if !ok {
		g.logger.Debug("Subscription expired",
			zap.String("user_id", userID),
			zap.Time("expires_at", expiresAt))
	}
	return ok, nil
}

// AllOf grants access only when every gate does. Gates are checked in order
// and the first refusal or error wins.
type AllOf []Gate

func (a AllOf) IsEntitled(ctx context.Context, userID string) (bool, error) {
	for _, g := range a {
		ok, err := g.IsEntitled(ctx, userID)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// Open entitles everyone. Used when no gate is configured.
type Open struct{}

func (Open) IsEntitled(context.Context, string) (bool, error) { return true, nil }
