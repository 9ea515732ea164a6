// internal/config/components.go
package config

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/sniper-agent/internal/execution"
	"github.com/rovshanmuradov/sniper-agent/internal/logger"
	"github.com/rovshanmuradov/sniper-agent/internal/monitor"
	"github.com/rovshanmuradov/sniper-agent/internal/risk"
	"github.com/rovshanmuradov/sniper-agent/internal/sniper"
)

type decimalField struct {
	name string
	raw  string
	dst  *decimal.Decimal
}

// RiskParams parses and validates the risk thresholds.
func (c *Config) RiskParams() (risk.Params, error) {
	p := risk.Params{MinHolders: c.Risk.MinHolders}
	for _, f := range []decimalField{
		{"min_liquidity", c.Risk.MinLiquidity, &p.MinLiquidity},
		{"max_concentration", c.Risk.MaxConcentration, &p.MaxConcentration},
		{"max_volatility", c.Risk.MaxVolatility, &p.MaxVolatility},
		{"max_volume_drop", c.Risk.MaxVolumeDrop, &p.MaxVolumeDrop},
		{"take_profit_ratio", c.Risk.TakeProfitRatio, &p.TakeProfitRatio},
		{"stop_loss_ratio", c.Risk.StopLossRatio, &p.StopLossRatio},
		{"max_position_fraction", c.Risk.MaxPositionFraction, &p.MaxPositionFraction},
	} {
		v, err := decimal.NewFromString(f.raw)
		if err != nil {
			return risk.Params{}, fmt.Errorf("invalid risk.%s %q: %w", f.name, f.raw, err)
		}
		*f.dst = v
	}
	if err := p.Validate(); err != nil {
		return risk.Params{}, fmt.Errorf("invalid risk parameters: %w", err)
	}
	return p, nil
}

// ExecutionConfig builds the execution gateway settings.
func (c *Config) ExecutionConfig() (execution.Config, error) {
	priority, err := execution.PriorityProfile(execution.PriorityLevel(c.Priority))
	if err != nil {
		return execution.Config{}, err
	}
	return execution.Config{
		FeeRecipient:   c.FeeRecipientKey,
		FeeRate:        c.FeeRate,
		Slippage:       c.Slippage,
		Priority:       priority,
		ConfirmTimeout: c.ConfirmTimeout,
	}, nil
}

// MonitorConfig builds position monitor settings from the risk exits.
func (c *Config) MonitorConfig(p risk.Params) monitor.Config {
	return monitor.Config{
		Interval:     c.PriceInterval,
		Jitter:       c.Jitter,
		TakeProfit:   p.TakeProfitRatio,
		StopLoss:     p.StopLossRatio,
		PriceRetries: c.PriceRetries,
	}
}

// LoopConfig builds the per-user sniper loop settings.
func (c *Config) LoopConfig() (sniper.Config, error) {
	p, err := c.RiskParams()
	if err != nil {
		return sniper.Config{}, err
	}
	return sniper.Config{
		Interval:        c.DiscoveryInterval,
		Jitter:          c.Jitter,
		Cooldown:        c.Cooldown,
		CandidateLimit:  c.CandidateLimit,
		SnapshotTimeout: c.SnapshotTimeout,
		TradeAmount:     c.TradeAmount,
		MaxMonitors:     c.MaxMonitorsPerUser,
		RankByScore:     c.RankByScore,
		Risk:            p,
		Monitor:         c.MonitorConfig(p),
	}, nil
}

// LoggerConfig maps log settings.
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{
		Debug:      c.Log.Debug,
		Console:    c.Log.Console,
		File:       c.Log.File,
		MaxSize:    c.Log.MaxSizeMB,
		MaxAge:     c.Log.MaxAgeDays,
		MaxBackups: c.Log.MaxBackups,
		Compress:   c.Log.Compress,
	}
}
