// internal/risk/risk.go
package risk

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/sniper-agent/internal/marketdata"
)

// Rule names a single screening check.
type Rule string

const (
	RuleLiquidity     Rule = "liquidity"
	RuleHolders       Rule = "holders"
	RuleConcentration Rule = "concentration"
	RuleVolatility    Rule = "volatility"
	RuleVolumeDrop    Rule = "volumeDrop"
)

// Params are the screening thresholds and exit ratios. They are read once at
// startup and not mutated while sessions run.
type Params struct {
	MinLiquidity        decimal.Decimal
	MinHolders          int
	MaxConcentration    decimal.Decimal
	MaxVolatility       decimal.Decimal
	MaxVolumeDrop       decimal.Decimal
	TakeProfitRatio     decimal.Decimal
	StopLossRatio       decimal.Decimal
	MaxPositionFraction decimal.Decimal
}

// DefaultParams returns the stock thresholds.
func DefaultParams() Params {
	return Params{
		MinLiquidity:        decimal.NewFromInt(10000),
		MinHolders:          100,
		MaxConcentration:    decimal.RequireFromString("0.30"),
		MaxVolatility:       decimal.RequireFromString("0.50"),
		MaxVolumeDrop:       decimal.RequireFromString("0.30"),
		TakeProfitRatio:     decimal.RequireFromString("0.30"),
		StopLossRatio:       decimal.RequireFromString("-0.20"),
		MaxPositionFraction: decimal.RequireFromString("0.10"),
	}
}

// Validate checks internal consistency of the parameters.
func (p Params) Validate() error {
	if p.MinLiquidity.IsNegative() {
		return errors.New("min liquidity must not be negative")
	}
	if p.MinHolders < 0 {
		return errors.New("min holders must not be negative")
	}
	if p.MaxConcentration.IsNegative() || p.MaxConcentration.GreaterThan(decimal.NewFromInt(1)) {
		return errors.New("max concentration must be within [0, 1]")
	}
	if p.MaxVolatility.IsNegative() || p.MaxVolumeDrop.IsNegative() {
		return errors.New("max volatility and max volume drop must not be negative")
	}
	if !p.TakeProfitRatio.IsPositive() {
		return errors.New("take profit ratio must be positive")
	}
	if !p.StopLossRatio.IsNegative() {
		return errors.New("stop loss ratio must be negative")
	}
	if !p.MaxPositionFraction.IsPositive() || p.MaxPositionFraction.GreaterThan(decimal.NewFromInt(1)) {
		return errors.New("max position fraction must be within (0, 1]")
	}
	return nil
}

// Verdict is the outcome of screening one snapshot.
type Verdict struct {
	Safe       bool
	Score      decimal.Decimal
	Violations []Rule
}

var (
	one      = decimal.NewFromInt(1)
	minusOne = decimal.NewFromInt(-1)

	// Weights sum to 1 so the score stays within [-1, 1].
	weights = map[Rule]decimal.Decimal{
		RuleLiquidity:     decimal.RequireFromString("0.30"),
		RuleHolders:       decimal.RequireFromString("0.20"),
		RuleConcentration: decimal.RequireFromString("0.20"),
		RuleVolatility:    decimal.RequireFromString("0.15"),
		RuleVolumeDrop:    decimal.RequireFromString("0.15"),
	}
)

// Evaluate screens a snapshot. Every rule is checked so the verdict lists all
// violations in a fixed order. The function has no side effects.
func Evaluate(s marketdata.TokenSnapshot, p Params) Verdict {
	var violations []Rule

	if s.Liquidity.LessThan(p.MinLiquidity) {
		violations = append(violations, RuleLiquidity)
	}
	if s.Holders < p.MinHolders {
		violations = append(violations, RuleHolders)
	}
	if s.Concentration.GreaterThan(p.MaxConcentration) {
		violations = append(violations, RuleConcentration)
	}
	if s.Volatility.GreaterThanOrEqual(p.MaxVolatility) {
		violations = append(violations, RuleVolatility)
	}
	if s.VolumeChange.LessThan(p.MaxVolumeDrop.Neg()) {
		violations = append(violations, RuleVolumeDrop)
	}

	return Verdict{
		Safe:       len(violations) == 0,
		Score:      score(s, p),
		Violations: violations,
	}
}

func score(s marketdata.TokenSnapshot, p Params) decimal.Decimal {
	margins := map[Rule]decimal.Decimal{
		RuleLiquidity:     margin(s.Liquidity.Sub(p.MinLiquidity), p.MinLiquidity),
		RuleHolders:       margin(decimal.NewFromInt(int64(s.Holders-p.MinHolders)), decimal.NewFromInt(int64(p.MinHolders))),
		RuleConcentration: margin(p.MaxConcentration.Sub(s.Concentration), p.MaxConcentration),
		RuleVolatility:    margin(p.MaxVolatility.Sub(s.Volatility), p.MaxVolatility),
		RuleVolumeDrop:    margin(s.VolumeChange.Add(p.MaxVolumeDrop), p.MaxVolumeDrop),
	}

	total := decimal.Zero
	for rule, m := range margins {
		total = total.Add(m.Mul(weights[rule]))
	}
	return total
}

// margin normalizes diff by scale and clamps to [-1, 1]. A zero scale yields
// the sign of diff.
func margin(diff, scale decimal.Decimal) decimal.Decimal {
	if scale.IsZero() {
		return decimal.NewFromInt(int64(diff.Sign()))
	}
	m := diff.Div(scale.Abs())
	if m.GreaterThan(one) {
		return one
	}
	if m.LessThan(minusOne) {
		return minusOne
	}
	return m
}

// Candidate pairs a token with its verdict.
type Candidate struct {
	Token   string
	Verdict Verdict
}

// Rank returns the safe candidates ordered by score, highest first.
// Ties keep discovery order.
func Rank(candidates []Candidate) []Candidate {
	safe := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Verdict.Safe {
			safe = append(safe, c)
		}
	}
	sort.SliceStable(safe, func(i, j int) bool {
		return safe[i].Verdict.Score.GreaterThan(safe[j].Verdict.Score)
	})
	return safe
}
