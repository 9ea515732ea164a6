// internal/export/export.go
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/sniper-agent/internal/storage/models"
)

// Format is the export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// Options configures which trades are exported and where.
type Options struct {
	Format      Format
	Since       time.Time
	Until       time.Time
	Token       string
	Side        string // buy/sell, empty for both
	OnlySuccess bool
	OutputDir   string
}

// Summary aggregates the exported trades.
type Summary struct {
	TotalTrades  int             `json:"total_trades"`
	Successful   int             `json:"successful"`
	BuyCount     int             `json:"buy_count"`
	SellCount    int             `json:"sell_count"`
	UniqueTokens int             `json:"unique_tokens"`
	BuyVolume    decimal.Decimal `json:"buy_volume_sol"`
	SellVolume   decimal.Decimal `json:"sell_volume_sol"`
	Fees         decimal.Decimal `json:"fees_sol"`
	Failures     map[string]int  `json:"failures,omitempty"`
	From         time.Time       `json:"from"`
	To           time.Time       `json:"to"`
}

// TradeExporter writes journal trades to CSV or JSON files.
type TradeExporter struct {
	logger *zap.Logger
}

func NewTradeExporter(logger *zap.Logger) *TradeExporter {
	return &TradeExporter{logger: logger.Named("export")}
}

// ExportTrades filters trades, writes them to a new file in opts.OutputDir
// and returns its path.
func (te *TradeExporter) ExportTrades(userID string, trades []*models.Trade, opts Options) (string, error) {
	if opts.Format != FormatCSV && opts.Format != FormatJSON {
		return "", fmt.Errorf("unsupported format: %s", opts.Format)
	}
	filtered := Filter(trades, opts)
	if len(filtered) == 0 {
		return "", fmt.Errorf("no trades match the export criteria")
	}

	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(opts.OutputDir, filename(userID, opts, time.Now()))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()

	if opts.Format == FormatCSV {
		err = WriteCSV(f, filtered)
	} else {
		err = WriteJSON(f, userID, filtered)
	}
	if err != nil {
		return "", err
	}

	te.logger.Info("Trades exported",
		zap.String("user_id", userID),
		zap.String("file", path),
		zap.Int("count", len(filtered)))
	return path, nil
}

// Filter returns the trades matching opts, oldest first.
func Filter(trades []*models.Trade, opts Options) []*models.Trade {
	var out []*models.Trade
	for _, t := range trades {
		if !opts.Since.IsZero() && t.CreatedAt.Before(opts.Since) {
			continue
		}
		if !opts.Until.IsZero() && t.CreatedAt.After(opts.Until) {
			continue
		}
		if opts.Token != "" && t.Token != opts.Token {
			continue
		}
		if opts.Side != "" && t.Side != opts.Side {
			continue
		}
		if opts.OnlySuccess && !t.Success {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func filename(userID string, opts Options, now time.Time) string {
	prefix := "trades_" + userID
	if opts.Side != "" {
		prefix += "_" + opts.Side
	}
	if len(opts.Token) >= 8 {
		prefix += "_" + opts.Token[:8]
	}
	return fmt.Sprintf("%s_%s.%s", prefix, now.Format("20060102_150405"), opts.Format)
}

var csvHeaders = []string{"time", "side", "token", "notional_sol", "token_amount", "fee_sol", "signature", "success", "failure"}

// WriteCSV writes one row per trade.
func WriteCSV(w io.Writer, trades []*models.Trade) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeaders); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, t := range trades {
		row := []string{
			t.CreatedAt.UTC().Format(time.RFC3339),
			t.Side,
			t.Token,
			t.Notional.String(),
			strconv.FormatUint(t.TokenAmount, 10),
			t.Fee.String(),
			t.Signature,
			strconv.FormatBool(t.Success),
			t.Failure,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write trade: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

type jsonTrade struct {
	Time        time.Time       `json:"time"`
	Side        string          `json:"side"`
	Token       string          `json:"token"`
	Notional    decimal.Decimal `json:"notional_sol"`
	TokenAmount uint64          `json:"token_amount"`
	Fee         decimal.Decimal `json:"fee_sol"`
	Signature   string          `json:"signature,omitempty"`
	Success     bool            `json:"success"`
	Failure     string          `json:"failure,omitempty"`
}

// WriteJSON writes the trades together with their summary.
func WriteJSON(w io.Writer, userID string, trades []*models.Trade) error {
	rows := make([]jsonTrade, 0, len(trades))
	for _, t := range trades {
		rows = append(rows, jsonTrade{
			Time:        t.CreatedAt,
			Side:        t.Side,
			Token:       t.Token,
			Notional:    t.Notional,
			TokenAmount: t.TokenAmount,
			Fee:         t.Fee,
			Signature:   t.Signature,
			Success:     t.Success,
			Failure:     t.Failure,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	err := enc.Encode(struct {
		UserID     string      `json:"user_id"`
		ExportedAt time.Time   `json:"exported_at"`
		Summary    Summary     `json:"summary"`
		Trades     []jsonTrade `json:"trades"`
	}{
		UserID:     userID,
		ExportedAt: time.Now().UTC(),
		Summary:    Summarize(trades),
		Trades:     rows,
	})
	if err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// Summarize counts trades and sums volumes of the successful ones.
func Summarize(trades []*models.Trade) Summary {
	s := Summary{
		TotalTrades: len(trades),
		BuyVolume:   decimal.Zero,
		SellVolume:  decimal.Zero,
		Fees:        decimal.Zero,
	}
	if len(trades) == 0 {
		return s
	}

	tokens := make(map[string]struct{})
	for _, t := range trades {
		tokens[t.Token] = struct{}{}
		if s.From.IsZero() || t.CreatedAt.Before(s.From) {
			s.From = t.CreatedAt
		}
		if t.CreatedAt.After(s.To) {
			s.To = t.CreatedAt
		}

		if !t.Success {
			if s.Failures == nil {
				s.Failures = make(map[string]int)
			}
			s.Failures[t.Failure]++
			continue
		}
		s.Successful++
		s.Fees = s.Fees.Add(t.Fee)
		switch t.Side {
		case "buy":
			s.BuyCount++
			s.BuyVolume = s.BuyVolume.Add(t.Notional)
		case "sell":
			s.SellCount++
			s.SellVolume = s.SellVolume.Add(t.Notional)
		}
	}
	s.UniqueTokens = len(tokens)
	return s
}
