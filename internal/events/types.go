// internal/events/types.go
package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventType represents the type of event.
type EventType string

const (
	// Session lifecycle
	SessionStarted EventType = "session.started"
	SessionStopped EventType = "session.stopped"

	// Sniper loop
	CycleCompleted    EventType = "cycle.completed"
	CandidateScreened EventType = "candidate.screened"

	// Execution
	TradeSubmitted EventType = "trade.submitted"

	// Positions
	PositionOpened     EventType = "position.opened"
	PositionExit       EventType = "position.exit"
	PositionClosed     EventType = "position.closed"
	PositionSellFailed EventType = "position.sell_failed"
)

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	EventType EventType
	EventTime time.Time
}

// NewBase stamps an event with the current time.
func NewBase(t EventType) BaseEvent {
	return BaseEvent{EventType: t, EventTime: time.Now()}
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.EventTime }

// SessionEvent covers session.started and session.stopped.
type SessionEvent struct {
	BaseEvent
	UserID string
}

// CycleCompletedEvent summarizes one discovery cycle.
type CycleCompletedEvent struct {
	BaseEvent
	UserID     string
	Candidates int
	Accepted   int
	Duration   time.Duration
	Err        error
}

// CandidateScreenedEvent carries the risk verdict for one token.
type CandidateScreenedEvent struct {
	BaseEvent
	UserID     string
	Token      string
	Safe       bool
	Score      decimal.Decimal
	Violations []string
	Err        error
}

// TradeSubmittedEvent is emitted for every submission, successful or not.
type TradeSubmittedEvent struct {
	BaseEvent
	UserID    string
	Token     string
	Side      string
	Notional  decimal.Decimal
	Fee       decimal.Decimal
	Signature string
	Success   bool
	Reason    string
	Duration  time.Duration
}

// PositionEvent covers the position.* events.
type PositionEvent struct {
	BaseEvent
	PositionID string
	UserID     string
	Token      string
	EntryPrice decimal.Decimal
	Price      decimal.Decimal
	Change     decimal.Decimal
	Notional   decimal.Decimal
	ExitReason string
	Signature  string
	Reason     string
}
