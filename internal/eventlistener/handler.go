// internal/eventlistener/handler.go
package eventlistener

import (
	"encoding/json"
	"fmt"
)

// decodeEvent parses one socket frame. ok is false for frames that are not
// token creations (subscription acks, trades, errors).
func decodeEvent(frame []byte) (ev NewTokenEvent, ok bool, err error) {
	if err := json.Unmarshal(frame, &ev); err != nil {
		return NewTokenEvent{}, false, fmt.Errorf("decode frame: %w", err)
	}
	if ev.Mint == "" || (ev.TxType != "" && ev.TxType != "create") {
		return NewTokenEvent{}, false, nil
	}
	return ev, true, nil
}
