// internal/storage/models/trade.go
package models

import "github.com/shopspring/decimal"

// Trade is one submission attempt, successful or not.
type Trade struct {
	BaseModel
	UserID      string
	Token       string
	Side        string
	Notional    decimal.Decimal
	TokenAmount uint64
	Fee         decimal.Decimal
	Signature   string
	Success     bool
	Failure     string
}
