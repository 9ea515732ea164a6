// internal/events/handler.go
package events

import (
	"context"
)

// Handler processes events. Handlers run on the bus dispatch goroutine and
// should not block.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc is an adapter to allow the use of ordinary functions as event handlers.
type HandlerFunc func(ctx context.Context, event Event) error

// Handle calls f(ctx, event).
func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Publisher is the write side of the bus.
type Publisher interface {
	Publish(event Event) error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(Event) error { return nil }

// Subscription represents a subscription to events.
type Subscription interface {
	Unsubscribe()
}

type subscription struct {
	id  string
	typ EventType
	bus *Bus
}

func (s *subscription) Unsubscribe() {
	s.bus.unsubscribe(s.id, s.typ)
}
