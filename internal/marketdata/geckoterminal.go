// internal/marketdata/geckoterminal.go
package marketdata

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const DefaultGeckoTerminalURL = "https://api.geckoterminal.com/api/v2"

type ohlcvResponse struct {
	Data struct {
		Attributes struct {
			// [timestamp, open, high, low, close, volume], newest first
			OHLCVList [][]float64 `json:"ohlcv_list"`
		} `json:"attributes"`
	} `json:"data"`
}

// GeckoTerminal reads minute candles of a pool.
type GeckoTerminal struct {
	api    *apiClient
	logger *zap.Logger
}

func NewGeckoTerminal(baseURL string, perSecond int, timeout time.Duration, logger *zap.Logger) *GeckoTerminal {
	if baseURL == "" {
		baseURL = DefaultGeckoTerminalURL
	}
	return &GeckoTerminal{
		api:    newAPIClient(baseURL, perSecond, timeout),
		logger: logger.Named("geckoterminal"),
	}
}

// Candles returns up to limit one-minute bars, oldest first.
func (g *GeckoTerminal) Candles(ctx context.Context, pool string, limit int) ([]Candle, error) {
	path := fmt.Sprintf("/networks/%s/pools/%s/ohlcv/minute?aggregate=1&limit=%d", solanaChain, pool, limit)

	var resp ohlcvResponse
	if err := g.api.getJSON(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("failed to get ohlcv: %w", err)
	}

	candles := make([]Candle, 0, len(resp.Data.Attributes.OHLCVList))
	for _, row := range resp.Data.Attributes.OHLCVList {
		if len(row) < 6 {
			continue
		}
		candles = append(candles, Candle{
			Time:   time.Unix(int64(row[0]), 0),
			Close:  decimal.NewFromFloat(row[4]),
			Volume: decimal.NewFromFloat(row[5]),
		})
	}
	sort.Slice(candles, func(i, j int) bool { return candles[i].Time.Before(candles[j].Time) })
	return candles, nil
}
