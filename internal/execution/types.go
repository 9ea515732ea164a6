// internal/execution/types.go
package execution

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/sniper-agent/internal/wallet"
)

// ErrSubmissionFailed is wrapped by every Failure.
var ErrSubmissionFailed = errors.New("trade submission failed")

// Side is the direction of a trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Reason classifies a failed submission.
type Reason string

const (
	ReasonInvalidIntent Reason = "invalid_intent"
	ReasonQuote         Reason = "quote"
	ReasonBuild         Reason = "build"
	ReasonSignature     Reason = "signature"
	ReasonRejected      Reason = "rejected"
	ReasonTimeout       Reason = "timeout"
)

// Failure describes why a trade did not land.
type Failure struct {
	Reason Reason
	Err    error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s: %s", ErrSubmissionFailed, f.Reason)
	}
	return fmt.Sprintf("%s: %s: %v", ErrSubmissionFailed, f.Reason, f.Err)
}

// Unwrap exposes both the sentinel and the cause to errors.Is.
func (f *Failure) Unwrap() []error {
	if f.Err == nil {
		return []error{ErrSubmissionFailed}
	}
	return []error{ErrSubmissionFailed, f.Err}
}

// TradeIntent is consumed exactly once by SubmitTrade.
type TradeIntent struct {
	ID     string
	UserID string
	Side   Side
	Token  string
	// Amount is the notional in SOL. For buys it is the SOL spent, for sells
	// the expected proceeds used for fee computation.
	Amount decimal.Decimal
	// TokenAmount is the raw token quantity to sell. Ignored for buys.
	TokenAmount uint64
}

// TradeResult is the outcome of one submission. Failed results are never
// retried by the gateway.
type TradeResult struct {
	Success   bool
	Signature string
	Failure   *Failure
	Fee       decimal.Decimal
	// TokenAmount is the raw token quantity bought or sold.
	TokenAmount uint64
	// Price is the quoted SOL per whole token at submission.
	Price decimal.Decimal
}

// Err returns the failure as an error, nil on success.
func (r TradeResult) Err() error {
	if r.Success || r.Failure == nil {
		return nil
	}
	return r.Failure
}

func failed(reason Reason, err error) TradeResult {
	return TradeResult{Failure: &Failure{Reason: reason, Err: err}}
}

// Executor submits trades on behalf of a user.
type Executor interface {
	SubmitTrade(ctx context.Context, intent TradeIntent, key *wallet.Wallet) TradeResult
	Balance(ctx context.Context, key *wallet.Wallet) (decimal.Decimal, error)
}
