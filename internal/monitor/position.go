package monitor

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status of a monitored position.
type Status string

const (
	StatusOpen    Status = "open"
	StatusClosing Status = "closing"
	StatusClosed  Status = "closed"
)

// ExitReason names the condition that triggered a sell.
type ExitReason string

const (
	ExitTakeProfit ExitReason = "take_profit"
	ExitStopLoss   ExitReason = "stop_loss"
)

// Position represents a trading position owned by exactly one Monitor.
type Position struct {
	ID             string
	UserID         string
	Token          string
	EntryPrice     decimal.Decimal // SOL per whole token
	EntryTime      time.Time
	TokenAmount    uint64 // raw units
	Notional       decimal.Decimal
	EntrySignature string
	Status         Status
	ExitReason     ExitReason
	ExitSignature  string
}

// Change returns (price - entry) / entry.
func (p Position) Change(price decimal.Decimal) decimal.Decimal {
	if p.EntryPrice.IsZero() {
		return decimal.Zero
	}
	return price.Sub(p.EntryPrice).Div(p.EntryPrice)
}

// Decide compares the relative change against the exit thresholds.
func Decide(change, takeProfit, stopLoss decimal.Decimal) (ExitReason, bool) {
	switch {
	case change.GreaterThanOrEqual(takeProfit):
		return ExitTakeProfit, true
	case change.LessThanOrEqual(stopLoss):
		return ExitStopLoss, true
	default:
		return "", false
	}
}
