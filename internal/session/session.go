// internal/session/session.go
package session

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/sniper-agent/internal/monitor"
	"github.com/rovshanmuradov/sniper-agent/internal/wallet"
)

// ErrInsufficientEntitlement возвращается Start, если у пользователя нет активной подписки.
var ErrInsufficientEntitlement = errors.New("insufficient entitlement")

// State is the lifecycle state of a user session.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateStopped  State = "stopped"
)

// Options are per-start overrides. Zero values keep the configured defaults.
type Options struct {
	TradeAmount decimal.Decimal
}

// Gate answers whether a user may trade.
type Gate interface {
	IsEntitled(ctx context.Context, userID string) (bool, error)
}

// Runner is a running sniper loop.
type Runner interface {
	Run(ctx context.Context) error
	Positions() []monitor.Position
}

// LoopFactory builds the loop of one user.
type LoopFactory func(userID string, key *wallet.Wallet, opts Options) Runner

// Session is a point-in-time view of one user's session.
type Session struct {
	UserID      string
	State       State
	StartedAt   time.Time
	StoppedAt   time.Time
	PositionIDs []string
	Positions   []monitor.Position
}
