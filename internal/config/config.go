// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. SNIPER_RPC_URL.
const EnvPrefix = "SNIPER"

// Discovery sources.
const (
	DiscoveryHTTP   = "http"
	DiscoveryStream = "stream"
)

// Subscription gate modes.
const (
	GateStore  = "store"
	GateKeygen = "keygen"
	GateBoth   = "both"
	GateNone   = "none"
)

// RiskConfig holds screening thresholds as decimal strings.
type RiskConfig struct {
	MinLiquidity        string `mapstructure:"min_liquidity"`
	MinHolders          int    `mapstructure:"min_holders"`
	MaxConcentration    string `mapstructure:"max_concentration"`
	MaxVolatility       string `mapstructure:"max_volatility"`
	MaxVolumeDrop       string `mapstructure:"max_volume_drop"`
	TakeProfitRatio     string `mapstructure:"take_profit_ratio"`
	StopLossRatio       string `mapstructure:"stop_loss_ratio"`
	MaxPositionFraction string `mapstructure:"max_position_fraction"`
}

// KeygenConfig holds keygen.sh credentials.
type KeygenConfig struct {
	AccountID    string `mapstructure:"account_id"`
	ProductID    string `mapstructure:"product_id"`
	ProductToken string `mapstructure:"product_token"`
}

// LogConfig controls log outputs.
type LogConfig struct {
	Debug      bool   `mapstructure:"debug"`
	Console    bool   `mapstructure:"console"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// Config holds application settings. Millisecond fields are converted to
// durations after loading.
type Config struct {
	RPCURL string `mapstructure:"rpc_url"`

	DiscoverySource  string `mapstructure:"discovery_source"`
	PumpPortalURL    string `mapstructure:"pumpportal_url"`
	PumpFunAPIURL    string `mapstructure:"pumpfun_api_url"`
	DexScreenerURL   string `mapstructure:"dexscreener_url"`
	GeckoTerminalURL string `mapstructure:"geckoterminal_url"`
	APIRateLimit     int    `mapstructure:"api_rate_limit"`
	HTTPTimeoutMS    int    `mapstructure:"http_timeout"`
	CandleWindow     int    `mapstructure:"candle_window"`
	StreamBuffer     int    `mapstructure:"stream_buffer"`

	FeeRecipient     string `mapstructure:"fee_recipient"`
	FeeRateRaw       string `mapstructure:"fee_rate"`
	SlippageRaw      string `mapstructure:"slippage"`
	Priority         string `mapstructure:"priority"`
	ConfirmTimeoutMS int    `mapstructure:"confirm_timeout"`

	DiscoveryIntervalMS int     `mapstructure:"discovery_interval"`
	PriceIntervalMS     int     `mapstructure:"price_interval"`
	Jitter              float64 `mapstructure:"jitter"`
	CooldownMS          int     `mapstructure:"cooldown"`
	CandidateLimit      int     `mapstructure:"candidate_limit"`
	SnapshotTimeoutMS   int     `mapstructure:"snapshot_timeout"`
	PriceRetries        uint    `mapstructure:"price_retries"`
	TradeAmountRaw      string  `mapstructure:"trade_amount"`
	MaxMonitorsPerUser  int     `mapstructure:"max_monitors_per_user"`
	RankByScore         bool    `mapstructure:"rank_by_score"`
	StopTimeoutMS       int     `mapstructure:"stop_timeout"`

	Risk RiskConfig `mapstructure:"risk"`

	DatabasePath        string       `mapstructure:"database_path"`
	WalletEncryptionKey string       `mapstructure:"wallet_encryption_key"`
	SubscriptionGate    string       `mapstructure:"subscription_gate"`
	Keygen              KeygenConfig `mapstructure:"keygen"`
	TelegramToken       string       `mapstructure:"telegram_token"`
	MetricsAddr         string       `mapstructure:"metrics_addr"`
	RosterFile          string       `mapstructure:"roster_file"`
	Log                 LogConfig    `mapstructure:"log"`

	HTTPTimeout       time.Duration `mapstructure:"-"`
	ConfirmTimeout    time.Duration `mapstructure:"-"`
	DiscoveryInterval time.Duration `mapstructure:"-"`
	PriceInterval     time.Duration `mapstructure:"-"`
	Cooldown          time.Duration `mapstructure:"-"`
	SnapshotTimeout   time.Duration `mapstructure:"-"`
	StopTimeout       time.Duration `mapstructure:"-"`

	FeeRecipientKey solana.PublicKey `mapstructure:"-"`
	FeeRate         decimal.Decimal  `mapstructure:"-"`
	Slippage        decimal.Decimal  `mapstructure:"-"`
	TradeAmount     decimal.Decimal  `mapstructure:"-"`
}

var defaults = map[string]any{
	"rpc_url":                    "",
	"discovery_source":           DiscoveryHTTP,
	"pumpportal_url":             "wss://pumpportal.fun/api/data",
	"pumpfun_api_url":            "https://frontend-api-v3.pump.fun",
	"dexscreener_url":            "https://api.dexscreener.com/latest/dex",
	"geckoterminal_url":          "https://api.geckoterminal.com/api/v2",
	"api_rate_limit":             5,
	"http_timeout":               10000,
	"candle_window":              30,
	"stream_buffer":              256,
	"fee_recipient":              "",
	"fee_rate":                   "0.005",
	"slippage":                   "0.15",
	"priority":                   "medium",
	"confirm_timeout":            30000,
	"discovery_interval":         60000,
	"price_interval":             30000,
	"jitter":                     0.1,
	"cooldown":                   300000,
	"candidate_limit":            20,
	"snapshot_timeout":           15000,
	"price_retries":              3,
	"trade_amount":               "0.1",
	"max_monitors_per_user":      5,
	"rank_by_score":              false,
	"stop_timeout":               10000,
	"risk.min_liquidity":         "10000",
	"risk.min_holders":           100,
	"risk.max_concentration":     "0.30",
	"risk.max_volatility":        "0.50",
	"risk.max_volume_drop":       "0.30",
	"risk.take_profit_ratio":     "0.30",
	"risk.stop_loss_ratio":       "-0.20",
	"risk.max_position_fraction": "0.10",
	"database_path":              "sniper.db",
	"wallet_encryption_key":      "",
	"subscription_gate":          GateStore,
	"keygen.account_id":          "",
	"keygen.product_id":          "",
	"keygen.product_token":       "",
	"telegram_token":             "",
	"metrics_addr":               "",
	"roster_file":                "",
	"log.debug":                  false,
	"log.console":                true,
	"log.file":                   "logs/sniper.log",
	"log.max_size_mb":            100,
	"log.max_age_days":           7,
	"log.max_backups":            3,
	"log.compress":               true,
}

// Load reads .env (if present), the optional config file at path and
// SNIPER_* environment overrides, then validates the result.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config error: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal error: %w", err)
	}

	// Convert ms to Duration
	cfg.HTTPTimeout = ms(cfg.HTTPTimeoutMS)
	cfg.ConfirmTimeout = ms(cfg.ConfirmTimeoutMS)
	cfg.DiscoveryInterval = ms(cfg.DiscoveryIntervalMS)
	cfg.PriceInterval = ms(cfg.PriceIntervalMS)
	cfg.Cooldown = ms(cfg.CooldownMS)
	cfg.SnapshotTimeout = ms(cfg.SnapshotTimeoutMS)
	cfg.StopTimeout = ms(cfg.StopTimeoutMS)

	if err := cfg.parse(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

func (c *Config) parse() error {
	var err error
	if c.FeeRate, err = decimal.NewFromString(c.FeeRateRaw); err != nil {
		return fmt.Errorf("invalid fee_rate %q: %w", c.FeeRateRaw, err)
	}
	if c.Slippage, err = decimal.NewFromString(c.SlippageRaw); err != nil {
		return fmt.Errorf("invalid slippage %q: %w", c.SlippageRaw, err)
	}
	if c.TradeAmount, err = decimal.NewFromString(c.TradeAmountRaw); err != nil {
		return fmt.Errorf("invalid trade_amount %q: %w", c.TradeAmountRaw, err)
	}
	if c.FeeRecipient != "" {
		if c.FeeRecipientKey, err = solana.PublicKeyFromBase58(c.FeeRecipient); err != nil {
			return fmt.Errorf("invalid fee_recipient: %w", err)
		}
	}
	return nil
}

// validate checks required fields and value ranges.
func (c *Config) validate() error {
	if c.RPCURL == "" {
		return errors.New("rpc_url is required")
	}
	if err := checkURL(c.RPCURL, "http"); err != nil {
		return fmt.Errorf("rpc_url: %w", err)
	}
	switch c.DiscoverySource {
	case DiscoveryHTTP:
	case DiscoveryStream:
		if err := checkURL(c.PumpPortalURL, "ws"); err != nil {
			return fmt.Errorf("pumpportal_url: %w", err)
		}
	default:
		return fmt.Errorf("unknown discovery_source %q", c.DiscoverySource)
	}
	if c.FeeRecipientKey.IsZero() {
		return errors.New("fee_recipient is required")
	}
	if !c.TradeAmount.IsPositive() {
		return errors.New("trade_amount must be positive")
	}
	if c.DiscoveryInterval <= 0 || c.PriceInterval <= 0 {
		return errors.New("discovery_interval and price_interval must be positive")
	}
	if c.Jitter < 0 || c.Jitter >= 1 {
		return errors.New("jitter must be within [0, 1)")
	}
	if c.MaxMonitorsPerUser < 0 {
		return errors.New("max_monitors_per_user must not be negative")
	}
	if c.APIRateLimit <= 0 {
		c.APIRateLimit = 5
	}
	if c.CandleWindow < 2 {
		return errors.New("candle_window must be at least 2")
	}
	switch c.SubscriptionGate {
	case GateStore, GateNone:
	case GateKeygen, GateBoth:
		if c.Keygen.AccountID == "" || c.Keygen.ProductID == "" {
			return errors.New("keygen.account_id and keygen.product_id are required for the keygen gate")
		}
	default:
		return fmt.Errorf("unknown subscription_gate %q", c.SubscriptionGate)
	}
	return nil
}

func checkURL(raw, scheme string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, scheme) {
		return fmt.Errorf("expected %s scheme, got %q", scheme, parsed.Scheme)
	}
	return nil
}
