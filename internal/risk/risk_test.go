package risk

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/sniper-agent/internal/marketdata"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func healthySnapshot() marketdata.TokenSnapshot {
	return marketdata.TokenSnapshot{
		Address:       "mint",
		Liquidity:     d("25000"),
		Holders:       400,
		Concentration: d("0.10"),
		Volatility:    d("0.20"),
		VolumeChange:  d("0.05"),
	}
}

func TestDefaultParamsValid(t *testing.T) {
	require.NoError(t, DefaultParams().Validate())
}

func TestValidateRejectsInvertedExits(t *testing.T) {
	p := DefaultParams()
	p.StopLossRatio = d("0.1")
	assert.Error(t, p.Validate())

	p = DefaultParams()
	p.TakeProfitRatio = decimal.Zero
	assert.Error(t, p.Validate())

	p = DefaultParams()
	p.MaxPositionFraction = d("1.5")
	assert.Error(t, p.Validate())
}

func TestEvaluateAllViolations(t *testing.T) {
	s := marketdata.TokenSnapshot{
		Liquidity:     d("500"),
		Holders:       50,
		Concentration: d("0.5"),
		Volatility:    d("0.6"),
		VolumeChange:  d("-0.5"),
	}

	v := Evaluate(s, DefaultParams())

	assert.False(t, v.Safe)
	assert.Equal(t, []Rule{RuleLiquidity, RuleHolders, RuleConcentration, RuleVolatility, RuleVolumeDrop}, v.Violations)
	assert.True(t, v.Score.IsNegative())
}

func TestEvaluateHealthy(t *testing.T) {
	v := Evaluate(healthySnapshot(), DefaultParams())
	assert.True(t, v.Safe)
	assert.Empty(t, v.Violations)
	assert.True(t, v.Score.IsPositive())
}

func TestEvaluateSingleViolation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*marketdata.TokenSnapshot)
		want   Rule
	}{
		{"liquidity", func(s *marketdata.TokenSnapshot) { s.Liquidity = d("9999.99") }, RuleLiquidity},
		{"holders", func(s *marketdata.TokenSnapshot) { s.Holders = 99 }, RuleHolders},
		{"concentration", func(s *marketdata.TokenSnapshot) { s.Concentration = d("0.31") }, RuleConcentration},
		{"volatility at threshold", func(s *marketdata.TokenSnapshot) { s.Volatility = d("0.50") }, RuleVolatility},
		{"volume drop", func(s *marketdata.TokenSnapshot) { s.VolumeChange = d("-0.31") }, RuleVolumeDrop},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := healthySnapshot()
			tt.mutate(&s)
			v := Evaluate(s, DefaultParams())
			assert.False(t, v.Safe)
			assert.Equal(t, []Rule{tt.want}, v.Violations)
		})
	}
}

func TestEvaluateBoundariesAreSafe(t *testing.T) {
	s := marketdata.TokenSnapshot{
		Liquidity:     d("10000"),
		Holders:       100,
		Concentration: d("0.30"),
		Volatility:    d("0.49"),
		VolumeChange:  d("-0.30"),
	}
	v := Evaluate(s, DefaultParams())
	assert.True(t, v.Safe, "violations: %v", v.Violations)
}

func TestEvaluateDeterministic(t *testing.T) {
	s := healthySnapshot()
	first := Evaluate(s, DefaultParams())
	for i := 0; i < 10; i++ {
		v := Evaluate(s, DefaultParams())
		assert.True(t, first.Score.Equal(v.Score))
		assert.Equal(t, first.Safe, v.Safe)
	}
}

func TestScoreMonotonic(t *testing.T) {
	p := DefaultParams()
	base := Evaluate(healthySnapshot(), p).Score

	better := healthySnapshot()
	better.Holders = 150
	worse := healthySnapshot()
	worse.Holders = 150
	worse.Concentration = d("0.25")

	assert.True(t, Evaluate(better, p).Score.GreaterThan(Evaluate(worse, p).Score))

	lessLiquid := healthySnapshot()
	lessLiquid.Liquidity = d("12000")
	assert.True(t, base.GreaterThan(Evaluate(lessLiquid, p).Score))
}

func TestMarginZeroScale(t *testing.T) {
	assert.True(t, margin(d("5"), decimal.Zero).Equal(decimal.NewFromInt(1)))
	assert.True(t, margin(d("-5"), decimal.Zero).Equal(decimal.NewFromInt(-1)))
	assert.True(t, margin(d("50"), d("1")).Equal(decimal.NewFromInt(1)))
}

func TestRank(t *testing.T) {
	candidates := []Candidate{
		{Token: "a", Verdict: Verdict{Safe: true, Score: d("0.1")}},
		{Token: "b", Verdict: Verdict{Safe: false, Score: d("0.9")}},
		{Token: "c", Verdict: Verdict{Safe: true, Score: d("0.5")}},
		{Token: "d", Verdict: Verdict{Safe: true, Score: d("0.1")}},
	}

	ranked := Rank(candidates)

	require.Len(t, ranked, 3)
	assert.Equal(t, "c", ranked[0].Token)
	assert.Equal(t, "a", ranked[1].Token)
	assert.Equal(t, "d", ranked[2].Token)
}
