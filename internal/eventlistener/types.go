// internal/eventlistener/types.go
package eventlistener

import (
	"time"
)

// DefaultPumpPortalURL is the public PumpPortal data socket.
const DefaultPumpPortalURL = "wss://pumpportal.fun/api/data"

const (
	initialBackoff = 500 * time.Millisecond
	maxBackoff     = 30 * time.Second
	idleTimeout    = 90 * time.Second
	writeTimeout   = 5 * time.Second
)

// NewTokenEvent is a token creation message from the PumpPortal feed.
type NewTokenEvent struct {
	Signature       string  `json:"signature"`
	Mint            string  `json:"mint"`
	TraderPublicKey string  `json:"traderPublicKey"`
	TxType          string  `json:"txType"`
	InitialBuy      float64 `json:"initialBuy"`
	SolAmount       float64 `json:"solAmount"`
	BondingCurveKey string  `json:"bondingCurveKey"`
	VTokens         float64 `json:"vTokensInBondingCurve"`
	VSol            float64 `json:"vSolInBondingCurve"`
	MarketCapSol    float64 `json:"marketCapSol"`
	Name            string  `json:"name"`
	Symbol          string  `json:"symbol"`
	URI             string  `json:"uri"`
	Pool            string  `json:"pool"`
}

// Handler receives decoded creation events. It runs on the read goroutine
// and must not block.
type Handler func(NewTokenEvent)
