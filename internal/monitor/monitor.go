// internal/monitor/monitor.go
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/sniper-agent/internal/events"
	"github.com/rovshanmuradov/sniper-agent/internal/execution"
	"github.com/rovshanmuradov/sniper-agent/internal/storage/models"
	"github.com/rovshanmuradov/sniper-agent/internal/wallet"
)

var unitsPerToken = decimal.New(1, 6)

// PriceSource quotes the current price of a token in SOL.
type PriceSource interface {
	SpotPrice(ctx context.Context, token string) (decimal.Decimal, error)
}

// Journal persists position state. Failures are logged, never fatal.
type Journal interface {
	SavePosition(ctx context.Context, p *models.Position) error
}

// Config holds monitor timings and exit thresholds.
type Config struct {
	Interval           time.Duration
	Jitter             float64
	TakeProfit         decimal.Decimal
	StopLoss           decimal.Decimal
	PriceRetries       uint
	PriceRetryInterval time.Duration
}

// Deps are the collaborators of a Monitor.
type Deps struct {
	Prices   PriceSource
	Executor execution.Executor
	Key      *wallet.Wallet
	Journal  Journal
	Bus      events.Publisher
}

// Monitor watches one position until take-profit or stop-loss fires and the
// exit sell confirms, or until its context is cancelled.
type Monitor struct {
	cfg    Config
	deps   Deps
	logger *zap.Logger

	mu  sync.RWMutex
	pos Position
}

// New prepares a monitor for a freshly filled buy. Open must succeed before Run.
func New(pos Position, deps Deps, cfg Config, logger *zap.Logger) *Monitor {
	if pos.ID == "" {
		pos.ID = uuid.New().String()
	}
	if deps.Bus == nil {
		deps.Bus = events.Nop{}
	}
	if cfg.PriceRetries == 0 {
		cfg.PriceRetries = 3
	}
	if cfg.PriceRetryInterval <= 0 {
		cfg.PriceRetryInterval = 250 * time.Millisecond
	}
	return &Monitor{
		cfg:  cfg,
		deps: deps,
		pos:  pos,
		logger: logger.Named("monitor").With(
			zap.String("position_id", pos.ID),
			zap.String("user_id", pos.UserID),
			zap.String("token", pos.Token)),
	}
}

// Position returns a copy of the current state.
func (m *Monitor) Position() Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pos
}

// Open records the entry price with a single quote. On failure nothing is
// recorded and the position must be discarded.
func (m *Monitor) Open(ctx context.Context) error {
	price, err := m.deps.Prices.SpotPrice(ctx, m.pos.Token)
	if err != nil {
		return fmt.Errorf("failed to fetch entry price: %w", err)
	}
	if !price.IsPositive() {
		return fmt.Errorf("invalid entry price %s", price)
	}

	m.mu.Lock()
	m.pos.EntryPrice = price
	m.pos.EntryTime = time.Now()
	m.pos.Status = StatusOpen
	pos := m.pos
	m.mu.Unlock()

	m.logger.Info("Position opened",
		zap.String("entry_price", price.String()),
		zap.Uint64("token_amount", pos.TokenAmount))
	m.journal(ctx, pos)
	m.publish(events.PositionOpened, pos, price, "")
	return nil
}

// Run ticks until the position is closed (nil) or ctx is done (ctx.Err()).
// A cancelled monitor never submits a sell.
func (m *Monitor) Run(ctx context.Context) error {
	for {
		timer := time.NewTimer(Jitter(m.cfg.Interval, m.cfg.Jitter))
		select {
		case <-ctx.Done():
			timer.Stop()
			m.logger.Debug("Monitor cancelled")
			return ctx.Err()
		case <-timer.C:
		}

		if m.tick(ctx) {
			return nil
		}
	}
}

// tick performs one evaluation and reports whether the position closed.
func (m *Monitor) tick(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}

	price, err := m.spotPrice(ctx)
	if err != nil {
		if ctx.Err() == nil {
			m.logger.Warn("Price unavailable, will retry next tick", zap.Error(err))
		}
		return false
	}

	pos := m.Position()
	change := pos.Change(price)
	reason, exit := Decide(change, m.cfg.TakeProfit, m.cfg.StopLoss)
	if !exit {
		m.logger.Debug("Price update",
			zap.String("price", price.String()),
			zap.String("change", change.StringFixed(4)))
		return false
	}
	if ctx.Err() != nil {
		return false
	}

	m.mu.Lock()
	m.pos.Status = StatusClosing
	m.pos.ExitReason = reason
	pos = m.pos
	m.mu.Unlock()

	m.logger.Info("Exit condition met",
		zap.String("reason", string(reason)),
		zap.String("price", price.String()),
		zap.String("change", change.StringFixed(4)))
	m.publishChange(events.PositionExit, pos, price, change, "")

	res := m.deps.Executor.SubmitTrade(ctx, execution.TradeIntent{
		ID:          uuid.New().String(),
		UserID:      pos.UserID,
		Side:        execution.SideSell,
		Token:       pos.Token,
		Amount:      price.Mul(decimal.NewFromInt(int64(pos.TokenAmount))).Div(unitsPerToken),
		TokenAmount: pos.TokenAmount,
	}, m.deps.Key)

	if !res.Success {
		m.mu.Lock()
		m.pos.Status = StatusOpen
		m.pos.ExitReason = ""
		pos = m.pos
		m.mu.Unlock()

		reasonText := ""
		if res.Failure != nil {
			reasonText = string(res.Failure.Reason)
		}
		m.logger.Warn("Exit sell failed, still watching", zap.Error(res.Err()))
		m.publishChange(events.PositionSellFailed, pos, price, change, reasonText)
		return false
	}

	m.mu.Lock()
	m.pos.Status = StatusClosed
	m.pos.ExitSignature = res.Signature
	pos = m.pos
	m.mu.Unlock()

	m.logger.Info("Position closed",
		zap.String("reason", string(reason)),
		zap.String("signature", res.Signature))
	m.journal(context.WithoutCancel(ctx), pos)
	m.publishChange(events.PositionClosed, pos, price, change, "")
	return true
}

func (m *Monitor) spotPrice(ctx context.Context) (decimal.Decimal, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.cfg.PriceRetryInterval

	op := func() (decimal.Decimal, error) {
		p, err := m.deps.Prices.SpotPrice(ctx, m.pos.Token)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return decimal.Zero, backoff.Permanent(err)
			}
			return decimal.Zero, err
		}
		return p, nil
	}
	opts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxTries(m.cfg.PriceRetries),
	}
	// Retries stay inside the tick.
	if m.cfg.Interval > 0 {
		opts = append(opts, backoff.WithMaxElapsedTime(m.cfg.Interval))
	}
	return backoff.Retry(ctx, op, opts...)
}

func (m *Monitor) journal(ctx context.Context, p Position) {
	if m.deps.Journal == nil {
		return
	}
	rec := &models.Position{
		BaseModel:      models.BaseModel{ID: p.ID},
		UserID:         p.UserID,
		Token:          p.Token,
		EntryPrice:     p.EntryPrice,
		TokenAmount:    p.TokenAmount,
		Notional:       p.Notional,
		Status:         string(p.Status),
		EntrySignature: p.EntrySignature,
		ExitSignature:  p.ExitSignature,
		ExitReason:     string(p.ExitReason),
		OpenedAt:       p.EntryTime,
	}
	if err := m.deps.Journal.SavePosition(ctx, rec); err != nil {
		m.logger.Warn("Failed to journal position", zap.Error(err))
	}
}

func (m *Monitor) publish(t events.EventType, p Position, price decimal.Decimal, reason string) {
	m.publishChange(t, p, price, p.Change(price), reason)
}

func (m *Monitor) publishChange(t events.EventType, p Position, price, change decimal.Decimal, reason string) {
	sig := p.ExitSignature
	if sig == "" {
		sig = p.EntrySignature
	}
	_ = m.deps.Bus.Publish(events.PositionEvent{
		BaseEvent:  events.NewBase(t),
		PositionID: p.ID,
		UserID:     p.UserID,
		Token:      p.Token,
		EntryPrice: p.EntryPrice,
		Price:      price,
		Change:     change,
		Notional:   p.Notional,
		ExitReason: string(p.ExitReason),
		Signature:  sig,
		Reason:     reason,
	})
}
