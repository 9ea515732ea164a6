// internal/marketdata/stats.go
package marketdata

import (
	"math"

	"github.com/shopspring/decimal"
)

// volatility is the population standard deviation of closes divided by their
// mean. It is 0 for fewer than two samples or a zero mean.
func volatility(candles []Candle) decimal.Decimal {
	if len(candles) < 2 {
		return decimal.Zero
	}
	closes := make([]float64, len(candles))
	var sum float64
	for i, c := range candles {
		closes[i] = c.Close.InexactFloat64()
		sum += closes[i]
	}
	mean := sum / float64(len(closes))
	if mean == 0 {
		return decimal.Zero
	}
	var sq float64
	for _, v := range closes {
		sq += (v - mean) * (v - mean)
	}
	std := math.Sqrt(sq / float64(len(closes)))
	return decimal.NewFromFloat(std / mean).Round(6)
}

// volumeChange compares traded volume of the newer half of the window with
// the older half. It is 0 when the older half had no volume.
func volumeChange(candles []Candle) decimal.Decimal {
	if len(candles) < 2 {
		return decimal.Zero
	}
	mid := len(candles) / 2
	prev, cur := decimal.Zero, decimal.Zero
	for _, c := range candles[:mid] {
		prev = prev.Add(c.Volume)
	}
	for _, c := range candles[len(candles)-mid:] {
		cur = cur.Add(c.Volume)
	}
	if prev.IsZero() {
		return decimal.Zero
	}
	return cur.Sub(prev).Div(prev)
}
