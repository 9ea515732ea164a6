package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type mockDiscovery struct{ mock.Mock }

func (m *mockDiscovery) NewTokens(ctx context.Context, limit int) ([]string, error) {
	args := m.Called(ctx, limit)
	tokens, _ := args.Get(0).([]string)
	return tokens, args.Error(1)
}

type mockPairs struct{ mock.Mock }

func (m *mockPairs) Pair(ctx context.Context, token string) (*Pair, error) {
	args := m.Called(ctx, token)
	p, _ := args.Get(0).(*Pair)
	return p, args.Error(1)
}

type mockHolders struct{ mock.Mock }

func (m *mockHolders) HolderStats(ctx context.Context, token string) (*HolderStats, error) {
	args := m.Called(ctx, token)
	h, _ := args.Get(0).(*HolderStats)
	return h, args.Error(1)
}

type mockCandles struct{ mock.Mock }

func (m *mockCandles) Candles(ctx context.Context, pool string, limit int) ([]Candle, error) {
	args := m.Called(ctx, pool, limit)
	c, _ := args.Get(0).([]Candle)
	return c, args.Error(1)
}

type sources struct {
	discovery *mockDiscovery
	pairs     *mockPairs
	holders   *mockHolders
	candles   *mockCandles
}

func newTestService(t *testing.T) (*Service, sources) {
	t.Helper()
	src := sources{&mockDiscovery{}, &mockPairs{}, &mockHolders{}, &mockCandles{}}
	svc, err := NewService(Config{
		Discovery: src.discovery,
		Pairs:     src.pairs,
		Holders:   src.holders,
		Candles:   src.candles,
		Window:    4,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return svc, src
}

func bars(closes, volumes []float64) []Candle {
	out := make([]Candle, len(closes))
	for i := range closes {
		out[i] = Candle{
			Time:   time.Unix(int64(60*i), 0),
			Close:  decimal.NewFromFloat(closes[i]),
			Volume: decimal.NewFromFloat(volumes[i]),
		}
	}
	return out
}

func TestListNewTokensSwallowsErrors(t *testing.T) {
	svc, src := newTestService(t)
	src.discovery.On("NewTokens", mock.Anything, 5).Return(nil, errors.New("502")).Once()

	tokens := svc.ListNewTokens(context.Background(), 5)
	assert.NotNil(t, tokens)
	assert.Empty(t, tokens)
	src.discovery.AssertExpectations(t)
}

func TestListNewTokensTrimsToLimit(t *testing.T) {
	svc, src := newTestService(t)
	src.discovery.On("NewTokens", mock.Anything, 2).Return([]string{"a", "b", "c"}, nil)

	assert.Equal(t, []string{"a", "b"}, svc.ListNewTokens(context.Background(), 2))
}

func TestSnapshotAggregates(t *testing.T) {
	svc, src := newTestService(t)
	src.pairs.On("Pair", mock.Anything, "mint").Return(&Pair{
		Address: "pool", PriceNative: decimal.RequireFromString("0.00000003"), LiquidityUSD: decimal.NewFromInt(20000),
	}, nil)
	src.candles.On("Candles", mock.Anything, "pool", 4).Return(bars([]float64{1, 3, 1, 3}, []float64{10, 10, 5, 5}), nil)
	src.holders.On("HolderStats", mock.Anything, "mint").Return(&HolderStats{
		Holders: 250, Concentration: decimal.RequireFromString("0.12"),
	}, nil)

	snap, err := svc.Snapshot(context.Background(), "mint")
	require.NoError(t, err)

	assert.Equal(t, "mint", snap.Address)
	assert.True(t, decimal.NewFromInt(20000).Equal(snap.Liquidity))
	assert.Equal(t, 250, snap.Holders)
	assert.True(t, decimal.RequireFromString("0.12").Equal(snap.Concentration))
	assert.True(t, decimal.RequireFromString("0.5").Equal(snap.Volatility), "volatility %s", snap.Volatility)
	assert.True(t, decimal.RequireFromString("-0.5").Equal(snap.VolumeChange), "volume change %s", snap.VolumeChange)
	assert.False(t, snap.TakenAt.IsZero())
}

func TestSnapshotMissingFieldIsUnavailable(t *testing.T) {
	tests := []struct {
		name  string
		setup func(src sources)
	}{
		{"pair error", func(src sources) {
			src.pairs.On("Pair", mock.Anything, "mint").Return(nil, errors.New("429"))
			src.holders.On("HolderStats", mock.Anything, "mint").Return(&HolderStats{Holders: 1}, nil).Maybe()
		}},
		{"no liquidity", func(src sources) {
			src.pairs.On("Pair", mock.Anything, "mint").Return(&Pair{Address: "pool", PriceNative: decimal.NewFromInt(1)}, nil)
			src.holders.On("HolderStats", mock.Anything, "mint").Return(&HolderStats{Holders: 1}, nil).Maybe()
		}},
		{"holders error", func(src sources) {
			src.pairs.On("Pair", mock.Anything, "mint").Return(&Pair{Address: "pool", LiquidityUSD: decimal.NewFromInt(1)}, nil).Maybe()
			src.candles.On("Candles", mock.Anything, "pool", 4).Return(bars([]float64{1}, []float64{1}), nil).Maybe()
			src.holders.On("HolderStats", mock.Anything, "mint").Return(nil, errors.New("rpc down"))
		}},
		{"empty candles", func(src sources) {
			src.pairs.On("Pair", mock.Anything, "mint").Return(&Pair{Address: "pool", LiquidityUSD: decimal.NewFromInt(1)}, nil)
			src.candles.On("Candles", mock.Anything, "pool", 4).Return([]Candle{}, nil)
			src.holders.On("HolderStats", mock.Anything, "mint").Return(&HolderStats{Holders: 1}, nil).Maybe()
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, src := newTestService(t)
			tt.setup(src)

			_, err := svc.Snapshot(context.Background(), "mint")
			assert.ErrorIs(t, err, ErrDataUnavailable)
		})
	}
}

func TestSpotPrice(t *testing.T) {
	svc, src := newTestService(t)
	src.pairs.On("Pair", mock.Anything, "ok").Return(&Pair{PriceNative: decimal.RequireFromString("0.0001")}, nil)
	src.pairs.On("Pair", mock.Anything, "zero").Return(&Pair{}, nil)
	src.pairs.On("Pair", mock.Anything, "down").Return(nil, errors.New("timeout"))

	price, err := svc.SpotPrice(context.Background(), "ok")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("0.0001").Equal(price))

	_, err = svc.SpotPrice(context.Background(), "zero")
	assert.ErrorIs(t, err, ErrDataUnavailable)
	_, err = svc.SpotPrice(context.Background(), "down")
	assert.ErrorIs(t, err, ErrDataUnavailable)
}

func TestVolatilityEdgeCases(t *testing.T) {
	assert.True(t, volatility(nil).IsZero())
	assert.True(t, volatility(bars([]float64{5}, []float64{1})).IsZero())
	assert.True(t, volatility(bars([]float64{0, 0}, []float64{1, 1})).IsZero())
	assert.True(t, volatility(bars([]float64{2, 2, 2}, []float64{1, 1, 1})).IsZero())
}

func TestVolumeChangeZeroPrevious(t *testing.T) {
	assert.True(t, volumeChange(bars([]float64{1, 1}, []float64{0, 50})).IsZero())
	assert.True(t, decimal.NewFromInt(1).Equal(volumeChange(bars([]float64{1, 1, 1}, []float64{10, 0, 20}))))
}

func TestStreamDiscovery(t *testing.T) {
	s := NewStreamDiscovery(3)
	for _, m := range []string{"a", "b", "a", "c", "d"} {
		s.Push(m)
	}

	got, err := s.NewTokens(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "c"}, got)

	got, _ = s.NewTokens(context.Background(), 10)
	assert.Equal(t, []string{"b"}, got)

	s.Push("b")
	got, _ = s.NewTokens(context.Background(), 10)
	assert.Empty(t, got)
}

func TestStreamDiscoveryEverySubscriberSeesEveryMint(t *testing.T) {
	s := NewStreamDiscovery(8)
	alice, releaseAlice := s.Subscribe("alice")
	bob, releaseBob := s.Subscribe("bob")
	defer releaseBob()

	s.Push("MintA")
	s.Push("MintB")

	got, err := alice.NewTokens(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"MintB", "MintA"}, got)

	got, err = bob.NewTokens(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"MintB", "MintA"}, got)

	releaseAlice()
	assert.Equal(t, 1, s.Subscribers())
	s.Push("MintC")
	got, _ = alice.NewTokens(context.Background(), 10)
	assert.Empty(t, got)
	got, _ = bob.NewTokens(context.Background(), 10)
	assert.Equal(t, []string{"MintC"}, got)
}

func TestStreamDiscoveryResubscribeKeepsNewQueue(t *testing.T) {
	s := NewStreamDiscovery(4)
	_, releaseOld := s.Subscribe("alice")
	fresh, releaseFresh := s.Subscribe("alice")
	defer releaseFresh()

	releaseOld()
	assert.Equal(t, 1, s.Subscribers())

	s.Push("MintA")
	got, _ := fresh.NewTokens(context.Background(), 10)
	assert.Equal(t, []string{"MintA"}, got)
}

func TestServiceForUserSplitsStreamPerUser(t *testing.T) {
	stream := NewStreamDiscovery(8)
	svc, err := NewService(Config{
		Discovery: stream,
		Pairs:     &mockPairs{},
		Holders:   &mockHolders{},
		Candles:   &mockCandles{},
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	alice, releaseAlice := svc.ForUser("alice")
	defer releaseAlice()
	bob, releaseBob := svc.ForUser("bob")
	defer releaseBob()

	stream.Push("MintA")
	stream.Push("MintB")

	assert.Equal(t, []string{"MintB", "MintA"}, alice.ListNewTokens(context.Background(), 10))
	assert.Equal(t, []string{"MintB", "MintA"}, bob.ListNewTokens(context.Background(), 10))
	assert.Empty(t, alice.ListNewTokens(context.Background(), 10))
}

func TestServiceForUserSharesPollingDiscovery(t *testing.T) {
	svc, _ := newTestService(t)
	gw, release := svc.ForUser("alice")
	release()
	assert.Same(t, svc, gw)
}
