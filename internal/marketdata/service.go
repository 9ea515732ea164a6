// internal/marketdata/service.go
package marketdata

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config wires the upstream sources of a Service.
type Config struct {
	Discovery Discovery
	Pairs     PairSource
	Holders   HolderSource
	Candles   CandleSource
	// Window is the number of one-minute bars used for volatility and volume.
	Window int
}

// Service implements Gateway over independent upstream sources.
type Service struct {
	discovery Discovery
	pairs     PairSource
	holders   HolderSource
	candles   CandleSource
	window    int
	logger    *zap.Logger
}

func NewService(cfg Config, logger *zap.Logger) (*Service, error) {
	if cfg.Discovery == nil || cfg.Pairs == nil || cfg.Holders == nil || cfg.Candles == nil {
		return nil, errors.New("marketdata: every source must be set")
	}
	if cfg.Window < 2 {
		cfg.Window = 30
	}
	return &Service{
		discovery: cfg.Discovery,
		pairs:     cfg.Pairs,
		holders:   cfg.Holders,
		candles:   cfg.Candles,
		window:    cfg.Window,
		logger:    logger.Named("marketdata"),
	}, nil
}

func (s *Service) ListNewTokens(ctx context.Context, limit int) []string {
	tokens, err := s.discovery.NewTokens(ctx, limit)
	if err != nil {
		s.logger.Warn("Token discovery failed", zap.Error(err))
		return []string{}
	}
	if limit > 0 && len(tokens) > limit {
		tokens = tokens[:limit]
	}
	return tokens
}

// ForUser returns a Gateway whose ListNewTokens reads userID's own
// subscription when discovery is a live feed. Polling sources are shared as
// is. release must be called once the caller is done.
func (s *Service) ForUser(userID string) (gw *Service, release func()) {
	sub, ok := s.discovery.(SubscribableDiscovery)
	if !ok {
		return s, func() {}
	}
	view, cancel := sub.Subscribe(userID)
	scoped := *s
	scoped.discovery = view
	scoped.logger = s.logger.With(zap.String("user_id", userID))
	return &scoped, cancel
}

// Snapshot fans out to every source concurrently. Any missing piece fails the
// whole snapshot with ErrDataUnavailable.
func (s *Service) Snapshot(ctx context.Context, token string) (TokenSnapshot, error) {
	var (
		pair    *Pair
		candles []Candle
		holders *HolderStats
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.pairs.Pair(gctx, token)
		if err != nil {
			return unavailable("pair", err)
		}
		if p.LiquidityUSD.IsZero() {
			return unavailable("liquidity", nil)
		}
		pair = p
		c, err := s.candles.Candles(gctx, p.Address, s.window)
		if err != nil {
			return unavailable("candles", err)
		}
		if len(c) == 0 {
			return unavailable("candles", nil)
		}
		candles = c
		return nil
	})
	g.Go(func() error {
		h, err := s.holders.HolderStats(gctx, token)
		if err != nil {
			return unavailable("holders", err)
		}
		holders = h
		return nil
	})
	if err := g.Wait(); err != nil {
		return TokenSnapshot{}, err
	}

	return TokenSnapshot{
		Address:       token,
		Liquidity:     pair.LiquidityUSD,
		Holders:       holders.Holders,
		Concentration: holders.Concentration,
		Volatility:    volatility(candles),
		VolumeChange:  volumeChange(candles),
		TakenAt:       time.Now(),
	}, nil
}

func (s *Service) SpotPrice(ctx context.Context, token string) (decimal.Decimal, error) {
	p, err := s.pairs.Pair(ctx, token)
	if err != nil {
		return decimal.Zero, unavailable("price", err)
	}
	if !p.PriceNative.IsPositive() {
		return decimal.Zero, unavailable("price", nil)
	}
	return p.PriceNative, nil
}

var _ Gateway = (*Service)(nil)
