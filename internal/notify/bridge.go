// internal/notify/bridge.go
package notify

import (
	"context"
	"fmt"
	"html"

	"github.com/rovshanmuradov/sniper-agent/internal/events"
	"github.com/rovshanmuradov/sniper-agent/internal/logger"
)

// Bridge turns bus events into user notifications.
type Bridge struct {
	sink Sink
}

func NewBridge(sink Sink) *Bridge {
	return &Bridge{sink: sink}
}

// Attach subscribes the bridge to the events users care about.
func (b *Bridge) Attach(bus *events.Bus) []events.Subscription {
	var subs []events.Subscription
	for _, t := range []events.EventType{
		events.SessionStarted, events.SessionStopped,
		events.PositionOpened, events.PositionClosed, events.PositionSellFailed,
	} {
		subs = append(subs, bus.Subscribe(t, b))
	}
	return subs
}

// Handle implements events.Handler. Unknown events are ignored.
func (b *Bridge) Handle(ctx context.Context, event events.Event) error {
	userID, msg := Format(event)
	if msg == "" {
		return nil
	}
	return b.sink.Notify(ctx, userID, msg)
}

// Format renders the user-facing text of an event. It returns an empty
// message for events that are not forwarded.
func Format(event events.Event) (string, string) {
	switch e := event.(type) {
	case events.SessionEvent:
		if e.Type() == events.SessionStarted {
			return e.UserID, "🚀 Sniper started"
		}
		return e.UserID, "🛑 Sniper stopped"
	case events.PositionEvent:
		token := html.EscapeString(logger.ShortenAddress(e.Token))
		switch e.Type() {
		case events.PositionOpened:
			return e.UserID, fmt.Sprintf("💰 BUY <b>%s</b>\n%s SOL @ %s\nhttps://solscan.io/tx/%s",
				token, e.Notional, e.EntryPrice, e.Signature)
		case events.PositionClosed:
			icon := "✅"
			if e.Change.IsNegative() {
				icon = "🔻"
			}
			return e.UserID, fmt.Sprintf("%s SELL <b>%s</b>\nReason: %s\nP/L: %s%%\nhttps://solscan.io/tx/%s",
				icon, token, e.ExitReason, e.Change.Shift(2).StringFixed(1), e.Signature)
		case events.PositionSellFailed:
			return e.UserID, fmt.Sprintf("⚠️ Sell of <b>%s</b> failed (%s), retrying", token, html.EscapeString(e.Reason))
		}
	}
	return "", ""
}
