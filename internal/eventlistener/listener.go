// internal/eventlistener/listener.go
package eventlistener

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"go.uber.org/zap"
)

var subscribeNewToken = []byte(`{"method":"subscribeNewToken"}`)

// Listener keeps a subscription to the PumpPortal creation feed alive and
// forwards every new mint to the handler.
type Listener struct {
	wsURL   string
	handler Handler
	logger  *zap.Logger
}

func NewListener(wsURL string, handler Handler, logger *zap.Logger) *Listener {
	if wsURL == "" {
		wsURL = DefaultPumpPortalURL
	}
	return &Listener{
		wsURL:   wsURL,
		handler: handler,
		logger:  logger.Named("eventlistener"),
	}
}

// Run reconnects with exponential backoff until ctx is cancelled.
func (l *Listener) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initialBackoff
	b.MaxInterval = maxBackoff

	for {
		received, err := l.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if received > 0 {
			b.Reset()
		}

		wait := b.NextBackOff()
		l.logger.Warn("WebSocket session ended, reconnecting",
			zap.Error(err),
			zap.Int("events", received),
			zap.Duration("backoff", wait))

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

// session runs one connection and returns the number of events delivered.
func (l *Listener) session(ctx context.Context) (int, error) {
	conn, _, _, err := ws.Dial(ctx, l.wsURL)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	// Unblock the read loop on cancellation.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return 0, err
	}
	if err := wsutil.WriteClientText(conn, subscribeNewToken); err != nil {
		return 0, err
	}
	l.logger.Info("Subscribed to new token feed", zap.String("url", l.wsURL))

	received := 0
	for {
		if err := conn.SetReadDeadline(time.Now().Add(idleTimeout)); err != nil {
			return received, err
		}
		frame, op, err := wsutil.ReadServerData(conn)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				return received, errors.New("feed idle")
			}
			return received, err
		}
		if op != ws.OpText {
			continue
		}

		ev, ok, err := decodeEvent(frame)
		if err != nil {
			l.logger.Debug("Skipping malformed frame", zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		received++
		l.handler(ev)
	}
}
