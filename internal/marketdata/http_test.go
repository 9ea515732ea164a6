package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestDexScreenerPicksMostLiquidSOLPair(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tokens/MINT", r.URL.Path)
		fmt.Fprintf(w, `{"pairs":[
			{"chainId":"solana","dexId":"pumpswap","pairAddress":"P1","baseToken":{"address":"MINT"},"quoteToken":{"address":"%[1]s"},"priceNative":"0.00000002","liquidity":{"usd":5000}},
			{"chainId":"solana","dexId":"raydium","pairAddress":"P2","baseToken":{"address":"MINT"},"quoteToken":{"address":"%[1]s"},"priceNative":"0.00000003","liquidity":{"usd":15000}},
			{"chainId":"solana","dexId":"raydium","pairAddress":"P3","baseToken":{"address":"MINT"},"quoteToken":{"address":"USDC"},"priceNative":"1","liquidity":{"usd":99999}}
		]}`, wsolAddress)
	}))
	defer srv.Close()

	ds := NewDexScreener(srv.URL, 100, time.Second, zaptest.NewLogger(t))
	pair, err := ds.Pair(context.Background(), "MINT")
	require.NoError(t, err)

	assert.Equal(t, "P2", pair.Address)
	assert.True(t, decimal.RequireFromString("0.00000003").Equal(pair.PriceNative))
	assert.True(t, decimal.NewFromInt(15000).Equal(pair.LiquidityUSD))
}

func TestDexScreenerNoPair(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"pairs":null}`)
	}))
	defer srv.Close()

	_, err := NewDexScreener(srv.URL, 100, time.Second, zaptest.NewLogger(t)).Pair(context.Background(), "MINT")
	assert.Error(t, err)
}

func TestGeckoTerminalCandlesOldestFirst(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/networks/solana/pools/POOL/ohlcv/minute", r.URL.Path)
		assert.Equal(t, "3", r.URL.Query().Get("limit"))
		fmt.Fprint(w, `{"data":{"attributes":{"ohlcv_list":[[180,1,1,1,1.2,30],[120,1,1,1,1.1,20],[60,1,1,1,1.0,10]]}}}`)
	}))
	defer srv.Close()

	gt := NewGeckoTerminal(srv.URL, 100, time.Second, zaptest.NewLogger(t))
	candles, err := gt.Candles(context.Background(), "POOL", 3)
	require.NoError(t, err)
	require.Len(t, candles, 3)
	assert.Equal(t, int64(60), candles[0].Time.Unix())
	assert.True(t, decimal.NewFromInt(30).Equal(candles[2].Volume))
}

func TestHTTPDiscoverySkipsCompleted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins", r.URL.Path)
		assert.Equal(t, "DESC", r.URL.Query().Get("order"))
		fmt.Fprint(w, `[{"mint":"A"},{"mint":"B","complete":true},{"mint":""},{"mint":"C"}]`)
	}))
	defer srv.Close()

	d := NewHTTPDiscovery(srv.URL, 100, time.Second, zaptest.NewLogger(t))
	mints, err := d.NewTokens(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C"}, mints)
}

func TestAPIClientStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	var dst map[string]any
	err := newAPIClient(srv.URL, 100, time.Second).getJSON(context.Background(), "/x", &dst)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}
