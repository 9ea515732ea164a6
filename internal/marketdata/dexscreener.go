// internal/marketdata/dexscreener.go
package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	DefaultDexScreenerURL = "https://api.dexscreener.com/latest/dex"
	solanaChain           = "solana"
	wsolAddress           = "So11111111111111111111111111111111111111112"
)

// dexScreenerResponse представляет основную структуру ответа
type dexScreenerResponse struct {
	Pairs []pairInfo `json:"pairs"`
}

type pairInfo struct {
	ChainID     string         `json:"chainId"`
	DexID       string         `json:"dexId"`
	PairAddress string         `json:"pairAddress"`
	BaseToken   tokenInfo      `json:"baseToken"`
	QuoteToken  tokenInfo      `json:"quoteToken"`
	PriceNative string         `json:"priceNative"`
	Liquidity   *liquidityInfo `json:"liquidity"`
}

type tokenInfo struct {
	Address string `json:"address"`
	Symbol  string `json:"symbol"`
}

type liquidityInfo struct {
	USD float64 `json:"usd"`
}

// DexScreener резолвит SOL-пару токена с наибольшей ликвидностью.
type DexScreener struct {
	api    *apiClient
	logger *zap.Logger
}

// NewDexScreener создает клиент DexScreener API.
func NewDexScreener(baseURL string, perSecond int, timeout time.Duration, logger *zap.Logger) *DexScreener {
	if baseURL == "" {
		baseURL = DefaultDexScreenerURL
	}
	return &DexScreener{
		api:    newAPIClient(baseURL, perSecond, timeout),
		logger: logger.Named("dexscreener"),
	}
}

// Pair returns the most liquid Solana pair quoted in WSOL.
func (d *DexScreener) Pair(ctx context.Context, token string) (*Pair, error) {
	var resp dexScreenerResponse
	if err := d.api.getJSON(ctx, "/tokens/"+token, &resp); err != nil {
		return nil, fmt.Errorf("failed to get token pairs: %w", err)
	}

	var best *pairInfo
	for i := range resp.Pairs {
		p := &resp.Pairs[i]
		if p.ChainID != solanaChain || p.BaseToken.Address != token || p.QuoteToken.Address != wsolAddress {
			continue
		}
		if best == nil || liquidityUSD(p) > liquidityUSD(best) {
			best = p
		}
	}
	if best == nil {
		return nil, fmt.Errorf("no SOL pair found for token %s", token)
	}

	price, err := decimal.NewFromString(best.PriceNative)
	if err != nil {
		return nil, fmt.Errorf("invalid priceNative %q: %w", best.PriceNative, err)
	}

	pair := &Pair{Address: best.PairAddress, PriceNative: price}
	if best.Liquidity != nil {
		pair.LiquidityUSD = decimal.NewFromFloat(best.Liquidity.USD)
	}

	d.logger.Debug("Resolved pair",
		zap.String("token", token),
		zap.String("pair_address", best.PairAddress),
		zap.String("dex", best.DexID),
		zap.String("price_native", best.PriceNative))
	return pair, nil
}

func liquidityUSD(p *pairInfo) float64 {
	if p.Liquidity == nil {
		return -1
	}
	return p.Liquidity.USD
}
