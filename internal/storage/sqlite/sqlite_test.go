package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/sniper-agent/internal/storage"
	"github.com/rovshanmuradov/sniper-agent/internal/storage/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "sniper.db"), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestWalletRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.GetWallet(ctx, "42")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.SaveWallet(ctx, "42", "cipher-1"))
	require.NoError(t, s.SaveWallet(ctx, "42", "cipher-2"))

	got, err := s.GetWallet(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "cipher-2", got)
}

func TestSubscriptionAndLicense(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.GetSubscription(ctx, "7")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// A license key alone does not grant time.
	require.NoError(t, s.SetLicenseKey(ctx, "7", "LIC-123"))
	exp, err := s.GetSubscription(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, int64(0), exp.Unix())

	until := time.Now().Add(24 * time.Hour).Truncate(time.Second)
	require.NoError(t, s.SetSubscription(ctx, "7", until))

	exp, err = s.GetSubscription(ctx, "7")
	require.NoError(t, err)
	assert.True(t, until.Equal(exp))

	key, err := s.GetLicenseKey(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, "LIC-123", key)

	_, err = s.GetLicenseKey(ctx, "8")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPositionJournal(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	p := &models.Position{
		BaseModel:   models.BaseModel{ID: "pos-1"},
		UserID:      "1",
		Token:       "mintA",
		EntryPrice:  decimal.RequireFromString("0.000000031"),
		TokenAmount: 3_200_000_000_000,
		Notional:    decimal.RequireFromString("0.1"),
		Status:      "open",
		OpenedAt:    time.Now(),
	}
	require.NoError(t, s.SavePosition(ctx, p))
	require.NoError(t, s.SavePosition(ctx, &models.Position{
		BaseModel: models.BaseModel{ID: "pos-2"}, UserID: "2", Token: "mintB",
		Status: "open", OpenedAt: time.Now(),
	}))

	open, err := s.ListOpenPositions(ctx, "1")
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "mintA", open[0].Token)
	assert.True(t, p.EntryPrice.Equal(open[0].EntryPrice))
	assert.Equal(t, p.TokenAmount, open[0].TokenAmount)

	all, err := s.ListOpenPositions(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	p.Status = "closed"
	p.ExitReason = "take_profit"
	require.NoError(t, s.SavePosition(ctx, p))

	open, err = s.ListOpenPositions(ctx, "1")
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestTrades(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.SaveTrade(ctx, &models.Trade{
		BaseModel: models.BaseModel{ID: "t1"}, UserID: "1", Token: "mintA", Side: "buy",
		Notional: decimal.RequireFromString("0.1"), Fee: decimal.RequireFromString("0.0005"),
		Signature: "sig", Success: true,
	}))
	require.NoError(t, s.SaveTrade(ctx, &models.Trade{
		BaseModel: models.BaseModel{ID: "t2", CreatedAt: time.Now().Add(time.Second)}, UserID: "1",
		Token: "mintA", Side: "sell", Failure: "timeout",
	}))

	trades, err := s.ListTrades(ctx, "1", 10)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, "t2", trades[0].ID)
	assert.False(t, trades[0].Success)
	assert.True(t, trades[1].Success)
	assert.True(t, decimal.RequireFromString("0.0005").Equal(trades[1].Fee))
}
