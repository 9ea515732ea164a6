// internal/sniper/loop.go
package sniper

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/sniper-agent/internal/events"
	"github.com/rovshanmuradov/sniper-agent/internal/execution"
	"github.com/rovshanmuradov/sniper-agent/internal/marketdata"
	"github.com/rovshanmuradov/sniper-agent/internal/monitor"
	"github.com/rovshanmuradov/sniper-agent/internal/risk"
	"github.com/rovshanmuradov/sniper-agent/internal/storage/models"
	"github.com/rovshanmuradov/sniper-agent/internal/wallet"
)

// Config holds the per-user loop settings.
type Config struct {
	Interval        time.Duration
	Jitter          float64
	Cooldown        time.Duration
	CandidateLimit  int
	SnapshotTimeout time.Duration
	TradeAmount     decimal.Decimal // SOL per entry before the balance cap
	MaxMonitors     int             // 0 means unlimited
	RankByScore     bool            // buy safe candidates by score instead of discovery order
	Risk            risk.Params
	Monitor         monitor.Config
}

// TradeJournal records every submission.
type TradeJournal interface {
	SaveTrade(ctx context.Context, t *models.Trade) error
}

// Deps are the collaborators shared by every loop of the process.
type Deps struct {
	Market    marketdata.Gateway
	Executor  execution.Executor
	Positions monitor.Journal
	Trades    TradeJournal
	Bus       events.Publisher
}

// slot reserves a token for one user. monitor is nil while the buy is in flight.
type slot struct {
	monitor *monitor.Monitor
}

// Loop discovers, screens and buys tokens for one user and owns the
// monitors of the resulting positions.
type Loop struct {
	userID string
	key    *wallet.Wallet
	cfg    Config
	deps   Deps
	logger *zap.Logger
	base   *zap.Logger

	mu    sync.Mutex
	slots map[string]*slot
	wg    sync.WaitGroup
}

func NewLoop(userID string, key *wallet.Wallet, cfg Config, deps Deps, logger *zap.Logger) *Loop {
	if deps.Bus == nil {
		deps.Bus = events.Nop{}
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = cfg.Interval
	}
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = 20
	}
	return &Loop{
		userID: userID,
		key:    key,
		cfg:    cfg,
		deps:   deps,
		logger: logger.Named("sniper").With(zap.String("user_id", userID)),
		base:   logger,
		slots:  make(map[string]*slot),
	}
}

// Run cycles until ctx is cancelled, then waits for its monitors to exit.
// Cycle failures and panics are logged and followed by a cooldown.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("Sniper loop started",
		zap.Duration("interval", l.cfg.Interval),
		zap.String("trade_amount", l.cfg.TradeAmount.String()),
		zap.Int("max_monitors", l.cfg.MaxMonitors))
	defer func() {
		l.wg.Wait()
		l.logger.Info("Sniper loop stopped")
	}()

	for {
		wait := monitor.Jitter(l.cfg.Interval, l.cfg.Jitter)
		if err := l.safeCycle(ctx); err != nil && ctx.Err() == nil {
			l.logger.Error("Cycle failed, cooling down",
				zap.Error(err),
				zap.Duration("cooldown", l.cfg.Cooldown))
			wait = l.cfg.Cooldown
		}
		if !sleep(ctx, wait) {
			return nil
		}
	}
}

func (l *Loop) safeCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("Cycle panic", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("cycle panic: %v", r)
		}
	}()
	return l.runCycle(ctx)
}

// runCycle performs one discovery pass. Per-candidate failures are logged and
// skipped; only failures that make the whole pass meaningless are returned.
//
// In discovery order each candidate is screened and bought before the next
// one is looked at, so a buy never acts on a stale snapshot. With RankByScore
// every candidate is screened first and the safe ones are bought by score.
func (l *Loop) runCycle(ctx context.Context) error {
	c := &cycleState{start: time.Now()}
	tokens := l.deps.Market.ListNewTokens(ctx, l.cfg.CandidateLimit)
	c.candidates = len(tokens)

	var screened []risk.Candidate
	for i, token := range tokens {
		if ctx.Err() != nil {
			return nil
		}
		if !l.cfg.RankByScore && l.full() {
			l.logCapReached(len(tokens) - i)
			break
		}
		if l.owns(token) {
			l.logger.Debug("Token already held, skipping", zap.String("token", token))
			continue
		}
		verdict, err := l.screen(ctx, token)
		if err != nil {
			continue
		}
		candidate := risk.Candidate{Token: token, Verdict: verdict}
		if l.cfg.RankByScore {
			screened = append(screened, candidate)
			continue
		}
		if !verdict.Safe {
			continue
		}
		if err := l.buy(ctx, c, candidate); err != nil {
			return err
		}
	}

	for i, candidate := range risk.Rank(screened) {
		if ctx.Err() != nil {
			return nil
		}
		if l.full() {
			l.logCapReached(len(screened) - i)
			break
		}
		if err := l.buy(ctx, c, candidate); err != nil {
			return err
		}
	}

	l.publishCycle(c.candidates, c.accepted, c.start, nil)
	return nil
}

// cycleState carries the balance and counters of one pass. The balance is
// read once, before the first buy of the pass.
type cycleState struct {
	start      time.Time
	candidates int
	accepted   int
	balance    *decimal.Decimal
}

func (l *Loop) buy(ctx context.Context, c *cycleState, candidate risk.Candidate) error {
	if c.balance == nil {
		b, err := l.deps.Executor.Balance(ctx, l.key)
		if err != nil {
			l.publishCycle(c.candidates, c.accepted, c.start, err)
			return err
		}
		c.balance = &b
	}
	spent, ok := l.enter(ctx, candidate, *c.balance)
	*c.balance = c.balance.Sub(spent)
	if ok {
		c.accepted++
	}
	return nil
}

func (l *Loop) logCapReached(skipped int) {
	l.logger.Info("Monitor cap reached, skipping remaining candidates",
		zap.Int("cap", l.cfg.MaxMonitors),
		zap.Int("skipped", skipped))
}

func (l *Loop) screen(ctx context.Context, token string) (risk.Verdict, error) {
	sctx := ctx
	if l.cfg.SnapshotTimeout > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(ctx, l.cfg.SnapshotTimeout)
		defer cancel()
	}

	snap, err := l.deps.Market.Snapshot(sctx, token)
	if err != nil {
		// Unknown data is treated as unsafe.
		l.logger.Debug("Snapshot unavailable", zap.String("token", token), zap.Error(err))
		l.publish(events.CandidateScreenedEvent{
			BaseEvent: events.NewBase(events.CandidateScreened),
			UserID:    l.userID, Token: token, Err: err,
		})
		return risk.Verdict{}, err
	}

	verdict := risk.Evaluate(snap, l.cfg.Risk)
	violations := make([]string, len(verdict.Violations))
	for i, v := range verdict.Violations {
		violations[i] = string(v)
	}
	l.logger.Debug("Candidate screened",
		zap.String("token", token),
		zap.Bool("safe", verdict.Safe),
		zap.String("score", verdict.Score.StringFixed(3)),
		zap.Strings("violations", violations))
	l.publish(events.CandidateScreenedEvent{
		BaseEvent: events.NewBase(events.CandidateScreened),
		UserID:    l.userID, Token: token,
		Safe: verdict.Safe, Score: verdict.Score, Violations: violations,
	})
	return verdict, nil
}

// enter buys one candidate and starts its monitor. It returns the SOL spent.
func (l *Loop) enter(ctx context.Context, c risk.Candidate, balance decimal.Decimal) (decimal.Decimal, bool) {
	log := l.logger.With(zap.String("token", c.Token))

	size := l.cfg.TradeAmount
	if limit := balance.Mul(l.cfg.Risk.MaxPositionFraction); size.GreaterThan(limit) {
		size = limit
	}
	if !size.IsPositive() {
		log.Info("Insufficient balance, skipping", zap.String("balance", balance.String()))
		return decimal.Zero, false
	}

	s, ok := l.reserve(c.Token)
	if !ok {
		return decimal.Zero, false
	}

	intent := execution.TradeIntent{
		ID:     uuid.New().String(),
		UserID: l.userID,
		Side:   execution.SideBuy,
		Token:  c.Token,
		Amount: size,
	}
	started := time.Now()
	res := l.deps.Executor.SubmitTrade(ctx, intent, l.key)
	l.recordTrade(ctx, intent, res, time.Since(started))
	if !res.Success {
		l.release(c.Token)
		return decimal.Zero, false
	}

	m := monitor.New(monitor.Position{
		UserID:         l.userID,
		Token:          c.Token,
		TokenAmount:    res.TokenAmount,
		Notional:       size,
		EntrySignature: res.Signature,
	}, monitor.Deps{
		Prices:   l.deps.Market,
		Executor: l.deps.Executor,
		Key:      l.key,
		Journal:  l.deps.Positions,
		Bus:      l.deps.Bus,
	}, l.cfg.Monitor, l.base)

	if err := m.Open(ctx); err != nil {
		log.Error("Entry price unavailable, position discarded",
			zap.String("signature", res.Signature),
			zap.Uint64("token_amount", res.TokenAmount),
			zap.Error(err))
		l.release(c.Token)
		return size, false
	}

	l.mu.Lock()
	s.monitor = m
	l.mu.Unlock()

	log.Info("Position entered",
		zap.String("position_id", m.Position().ID),
		zap.String("amount", size.String()),
		zap.String("score", c.Verdict.Score.StringFixed(3)))

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer l.release(c.Token)
		defer func() {
			if r := recover(); r != nil {
				log.Error("Monitor panic", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			}
		}()
		_ = m.Run(ctx)
	}()
	return size, true
}

// reserve claims token for this user. It fails if the token is already held
// or the monitor cap is reached.
func (l *Loop) reserve(token string) (*slot, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, held := l.slots[token]; held {
		return nil, false
	}
	if l.cfg.MaxMonitors > 0 && len(l.slots) >= l.cfg.MaxMonitors {
		return nil, false
	}
	s := &slot{}
	l.slots[token] = s
	return s, true
}

func (l *Loop) release(token string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.slots, token)
}

func (l *Loop) owns(token string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.slots[token]
	return ok
}

func (l *Loop) full() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cfg.MaxMonitors > 0 && len(l.slots) >= l.cfg.MaxMonitors
}

// Positions returns the positions of active monitors, oldest first.
func (l *Loop) Positions() []monitor.Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]monitor.Position, 0, len(l.slots))
	for _, s := range l.slots {
		if s.monitor != nil {
			out = append(out, s.monitor.Position())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntryTime.Before(out[j].EntryTime) })
	return out
}

func (l *Loop) recordTrade(ctx context.Context, intent execution.TradeIntent, res execution.TradeResult, took time.Duration) {
	reason := ""
	if res.Failure != nil {
		reason = string(res.Failure.Reason)
	}
	if l.deps.Trades != nil {
		err := l.deps.Trades.SaveTrade(context.WithoutCancel(ctx), &models.Trade{
			BaseModel:   models.BaseModel{ID: intent.ID},
			UserID:      intent.UserID,
			Token:       intent.Token,
			Side:        string(intent.Side),
			Notional:    intent.Amount,
			TokenAmount: res.TokenAmount,
			Fee:         res.Fee,
			Signature:   res.Signature,
			Success:     res.Success,
			Failure:     reason,
		})
		if err != nil {
			l.logger.Warn("Failed to journal trade", zap.Error(err))
		}
	}
	l.publish(events.TradeSubmittedEvent{
		BaseEvent: events.NewBase(events.TradeSubmitted),
		UserID:    intent.UserID,
		Token:     intent.Token,
		Side:      string(intent.Side),
		Notional:  intent.Amount,
		Fee:       res.Fee,
		Signature: res.Signature,
		Success:   res.Success,
		Reason:    reason,
		Duration:  took,
	})
}

func (l *Loop) publishCycle(candidates, accepted int, start time.Time, err error) {
	l.publish(events.CycleCompletedEvent{
		BaseEvent:  events.NewBase(events.CycleCompleted),
		UserID:     l.userID,
		Candidates: candidates,
		Accepted:   accepted,
		Duration:   time.Since(start),
		Err:        err,
	})
}

func (l *Loop) publish(e events.Event) {
	_ = l.deps.Bus.Publish(e)
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
