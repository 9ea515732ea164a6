// internal/marketdata/types.go
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrDataUnavailable возвращается, когда хотя бы одно поле снапшота или цена
// не могут быть получены из апстрима.
var ErrDataUnavailable = errors.New("market data unavailable")

func unavailable(what string, err error) error {
	if err == nil {
		return fmt.Errorf("%w: %s", ErrDataUnavailable, what)
	}
	return fmt.Errorf("%w: %s: %v", ErrDataUnavailable, what, err)
}

// TokenSnapshot is a point-in-time view of the metrics the risk model needs.
// It is built fresh for every evaluation.
type TokenSnapshot struct {
	Address       string
	Liquidity     decimal.Decimal // USD
	Holders       int
	Concentration decimal.Decimal // share of supply held by the largest account, 0..1
	Volatility    decimal.Decimal // stddev/mean over the recent price window
	VolumeChange  decimal.Decimal // (current - previous) / previous
	TakenAt       time.Time
}

// Gateway is the read side of the market used by the sniper loop and monitors.
type Gateway interface {
	// ListNewTokens never fails: upstream errors are logged and an empty list returned.
	ListNewTokens(ctx context.Context, limit int) []string
	Snapshot(ctx context.Context, token string) (TokenSnapshot, error)
	// SpotPrice returns the price in SOL per whole token.
	SpotPrice(ctx context.Context, token string) (decimal.Decimal, error)
}

// Discovery yields newly listed token mints, newest first.
type Discovery interface {
	NewTokens(ctx context.Context, limit int) ([]string, error)
}

// SubscribableDiscovery hands out an independent view of the feed per
// consumer. The returned func releases it.
type SubscribableDiscovery interface {
	Discovery
	Subscribe(id string) (Discovery, func())
}

// Pair is the subset of a DEX pair used for liquidity and pricing.
type Pair struct {
	Address      string
	PriceNative  decimal.Decimal
	LiquidityUSD decimal.Decimal
}

// PairSource resolves the most liquid pair for a token.
type PairSource interface {
	Pair(ctx context.Context, token string) (*Pair, error)
}

// HolderStats are on-chain distribution metrics for a mint.
type HolderStats struct {
	Holders       int
	Concentration decimal.Decimal
}

// HolderSource reads holder distribution for a mint.
type HolderSource interface {
	HolderStats(ctx context.Context, token string) (*HolderStats, error)
}

// Candle is one OHLCV bar.
type Candle struct {
	Time   time.Time
	Close  decimal.Decimal
	Volume decimal.Decimal
}

// CandleSource returns the most recent bars of a pool, oldest first.
type CandleSource interface {
	Candles(ctx context.Context, pool string, limit int) ([]Candle, error)
}
