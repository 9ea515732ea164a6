// internal/storage/models/position.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is the journaled view of a monitored position.
type Position struct {
	BaseModel
	UserID         string
	Token          string
	EntryPrice     decimal.Decimal
	TokenAmount    uint64
	Notional       decimal.Decimal
	Status         string
	EntrySignature string
	ExitSignature  string
	ExitReason     string
	OpenedAt       time.Time
}
