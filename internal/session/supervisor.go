// internal/session/supervisor.go
package session

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/sniper-agent/internal/events"
	"github.com/rovshanmuradov/sniper-agent/internal/wallet"
)

const defaultStopTimeout = 10 * time.Second

// Supervisor owns the registry of per-user sessions. At most one loop runs
// per user. All methods are safe for concurrent use.
type Supervisor struct {
	gate        Gate
	keys        wallet.KeyProvider
	factory     LoopFactory
	bus         events.Publisher
	logger      *zap.Logger
	stopTimeout time.Duration

	root       context.Context
	cancelRoot context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*entry
}

type entry struct {
	userID    string
	state     State
	runner    Runner
	cancel    context.CancelFunc
	done      chan struct{}
	startedAt time.Time
	stoppedAt time.Time
}

// Config wires a Supervisor.
type Config struct {
	Gate        Gate
	Keys        wallet.KeyProvider
	Factory     LoopFactory
	Bus         events.Publisher
	StopTimeout time.Duration
}

// NewSupervisor creates a supervisor. Loops run under a root context that is
// cancelled by Shutdown.
func NewSupervisor(cfg Config, logger *zap.Logger) *Supervisor {
	if cfg.Bus == nil {
		cfg.Bus = events.Nop{}
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = defaultStopTimeout
	}
	root, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		gate:        cfg.Gate,
		keys:        cfg.Keys,
		factory:     cfg.Factory,
		bus:         cfg.Bus,
		logger:      logger.Named("supervisor"),
		stopTimeout: cfg.StopTimeout,
		root:        root,
		cancelRoot:  cancel,
		sessions:    make(map[string]*entry),
	}
}

// Start launches the user's loop. It is a no-op when a loop is already
// running. Entitlement and key resolution failures are returned synchronously.
func (s *Supervisor) Start(ctx context.Context, userID string, opts Options) error {
	if s.running(userID) {
		return nil
	}

	entitled, err := s.gate.IsEntitled(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to check subscription: %w", err)
	}
	if !entitled {
		return ErrInsufficientEntitlement
	}

	key, err := s.keys.ResolveSigningKey(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to resolve signing key: %w", err)
	}

	s.mu.Lock()
	if s.root.Err() != nil {
		s.mu.Unlock()
		return errors.New("supervisor is shut down")
	}
	if e, ok := s.sessions[userID]; ok && (e.state == StateRunning || e.state == StateStopping) {
		s.mu.Unlock()
		if e.state == StateStopping {
			return fmt.Errorf("session for user %s is still stopping", userID)
		}
		return nil
	}
	loopCtx, cancel := context.WithCancel(s.root)
	e := &entry{
		userID:    userID,
		state:     StateRunning,
		runner:    s.factory(userID, key, opts),
		cancel:    cancel,
		done:      make(chan struct{}),
		startedAt: time.Now(),
	}
	s.sessions[userID] = e
	s.mu.Unlock()

	go s.run(loopCtx, e)

	s.logger.Info("Session started",
		zap.String("user_id", userID),
		zap.String("wallet", key.PublicKey.String()))
	_ = s.bus.Publish(events.SessionEvent{BaseEvent: events.NewBase(events.SessionStarted), UserID: userID})
	return nil
}

func (s *Supervisor) run(ctx context.Context, e *entry) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Sniper loop panic",
				zap.String("user_id", e.userID),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
		}
		e.cancel()

		s.mu.Lock()
		e.state = StateStopped
		e.stoppedAt = time.Now()
		s.mu.Unlock()
		close(e.done)

		_ = s.bus.Publish(events.SessionEvent{BaseEvent: events.NewBase(events.SessionStopped), UserID: e.userID})
	}()

	if err := e.runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("Sniper loop exited with error", zap.String("user_id", e.userID), zap.Error(err))
	}
}

// Stop cancels the user's loop and every monitor it owns, then waits for
// them to exit up to the stop timeout. Stopping an unknown or stopped session
// is a no-op.
func (s *Supervisor) Stop(userID string) {
	s.mu.Lock()
	e, ok := s.sessions[userID]
	if !ok || e.state == StateStopped {
		s.mu.Unlock()
		return
	}
	if e.state == StateRunning {
		e.state = StateStopping
	}
	s.mu.Unlock()

	e.cancel()

	timer := time.NewTimer(s.stopTimeout)
	defer timer.Stop()
	select {
	case <-e.done:
		s.logger.Info("Session stopped", zap.String("user_id", userID))
	case <-timer.C:
		s.logger.Warn("Session did not stop in time",
			zap.String("user_id", userID),
			zap.Duration("timeout", s.stopTimeout))
	}
}

// Status returns the user's session. Unknown users are reported idle.
func (s *Supervisor) Status(userID string) Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[userID]
	if !ok {
		return Session{UserID: userID, State: StateIdle}
	}
	return e.snapshot()
}

// Sessions returns every known session ordered by user id.
func (s *Supervisor) Sessions() []Session {
	s.mu.Lock()
	out := make([]Session, 0, len(s.sessions))
	for _, e := range s.sessions {
		out = append(out, e.snapshot())
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// Shutdown stops every session concurrently and refuses new starts.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	users := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		users = append(users, id)
	}
	s.mu.Unlock()

	s.logger.Info("Shutting down sessions", zap.Int("sessions", len(users)))

	done := make(chan struct{})
	go func() {
		defer close(done)
		var g errgroup.Group
		for _, id := range users {
			g.Go(func() error {
				s.Stop(id)
				return nil
			})
		}
		_ = g.Wait()
	}()

	defer s.cancelRoot()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Supervisor) running(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[userID]
	return ok && e.state == StateRunning
}

// snapshot must be called with the supervisor lock held.
func (e *entry) snapshot() Session {
	sess := Session{
		UserID:    e.userID,
		State:     e.state,
		StartedAt: e.startedAt,
		StoppedAt: e.stoppedAt,
	}
	if e.state != StateStopped {
		sess.Positions = e.runner.Positions()
		sess.PositionIDs = make([]string, len(sess.Positions))
		for i, p := range sess.Positions {
			sess.PositionIDs[i] = p.ID
		}
	}
	return sess
}
