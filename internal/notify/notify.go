// internal/notify/notify.go
package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sink delivers a message to a user. Delivery is best effort and callers
// never depend on it.
type Sink interface {
	Notify(ctx context.Context, userID, message string) error
}

// LogSink writes notifications to the log.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("notify")}
}

func (s *LogSink) Notify(_ context.Context, userID, message string) error {
	s.logger.Info("Notification", zap.String("user_id", userID), zap.String("message", message))
	return nil
}

// Multi fans a message out to every sink and joins their errors.
type Multi []Sink

func (m Multi) Notify(ctx context.Context, userID, message string) error {
	var errs []error
	for _, s := range m {
		if err := s.Notify(ctx, userID, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Async delivers in the background so a slow sink never stalls the caller.
// At most limit deliveries are in flight; extra messages are dropped.
type Async struct {
	inner   Sink
	timeout time.Duration
	slots   chan struct{}
	logger  *zap.Logger
	wg      sync.WaitGroup
}

func NewAsync(inner Sink, timeout time.Duration, limit int, logger *zap.Logger) *Async {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if limit <= 0 {
		limit = 16
	}
	return &Async{
		inner:   inner,
		timeout: timeout,
		slots:   make(chan struct{}, limit),
		logger:  logger.Named("notify-async"),
	}
}

// Notify always returns nil. Failures are logged.
func (a *Async) Notify(ctx context.Context, userID, message string) error {
	select {
	case a.slots <- struct{}{}:
	default:
		a.logger.Warn("Too many pending notifications, dropping", zap.String("user_id", userID))
		return nil
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer func() { <-a.slots }()

		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
		defer cancel()
		if err := a.inner.Notify(sendCtx, userID, message); err != nil {
			a.logger.Warn("Notification failed", zap.String("user_id", userID), zap.Error(err))
		}
	}()
	return nil
}

// Close waits for in-flight deliveries.
func (a *Async) Close() error {
	a.wg.Wait()
	return nil
}
