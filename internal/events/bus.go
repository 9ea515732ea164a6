// internal/events/bus.go
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Any subscribes a handler to every event type.
const Any EventType = "*"

var (
	ErrBusClosed  = errors.New("event bus is closed")
	ErrBufferFull = errors.New("event buffer full")
)

// Bus is an in-memory event bus. Publish never blocks; events are delivered
// in publish order by a single dispatch goroutine.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType]map[string]Handler
	logger   *zap.Logger

	queue     chan Event
	closing   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewBus creates a new event bus.
func NewBus(logger *zap.Logger, bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	b := &Bus{
		handlers: make(map[EventType]map[string]Handler),
		logger:   logger.Named("event_bus"),
		queue:    make(chan Event, bufferSize),
		done:     make(chan struct{}),
		closing:  make(chan struct{}),
	}
	go b.run()
	return b
}

// Subscribe registers a handler for eventType, or for every type with Any.
func (b *Bus) Subscribe(eventType EventType, handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.New().String()
	if b.handlers[eventType] == nil {
		b.handlers[eventType] = make(map[string]Handler)
	}
	b.handlers[eventType][id] = handler

	b.logger.Debug("Handler subscribed",
		zap.String("event_type", string(eventType)),
		zap.String("subscription_id", id))
	return &subscription{id: id, typ: eventType, bus: b}
}

// SubscribeFunc is a convenience method for subscribing with a function.
func (b *Bus) SubscribeFunc(eventType EventType, fn func(context.Context, Event) error) Subscription {
	return b.Subscribe(eventType, HandlerFunc(fn))
}

// Publish enqueues an event. A full buffer drops the event.
func (b *Bus) Publish(event Event) error {
	select {
	case <-b.closing:
		return ErrBusClosed
	default:
	}

	select {
	case b.queue <- event:
		return nil
	default:
		b.logger.Warn("Event buffer full, dropping event",
			zap.String("event_type", string(event.Type())))
		return ErrBufferFull
	}
}

// deliver runs every handler subscribed to the event type and to Any.
func (b *Bus) deliver(ctx context.Context, event Event) error {
	b.mu.RLock()
	var targets []Handler
	for _, h := range b.handlers[event.Type()] {
		targets = append(targets, h)
	}
	for _, h := range b.handlers[Any] {
		targets = append(targets, h)
	}
	b.mu.RUnlock()

	var errs []error
	for _, h := range targets {
		if err := h.Handle(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%d handler(s) failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

func (b *Bus) run() {
	defer close(b.done)
	ctx := context.Background()

	for {
		select {
		case event := <-b.queue:
			b.handle(ctx, event)
		case <-b.closing:
			// Drain what was accepted before Close.
			for {
				select {
				case event := <-b.queue:
					b.handle(ctx, event)
				default:
					return
				}
			}
		}
	}
}

func (b *Bus) handle(ctx context.Context, event Event) {
	if err := b.deliver(ctx, event); err != nil {
		b.logger.Error("Failed to process event",
			zap.String("event_type", string(event.Type())),
			zap.Error(err))
	}
}

func (b *Bus) unsubscribe(id string, eventType EventType) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if handlers, ok := b.handlers[eventType]; ok {
		delete(handlers, id)
		if len(handlers) == 0 {
			delete(b.handlers, eventType)
		}
	}
}

// Close stops accepting events and waits for queued ones to be delivered.
func (b *Bus) Close(ctx context.Context) error {
	b.closeOnce.Do(func() { close(b.closing) })

	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		b.logger.Warn("Event bus close timeout")
		return ctx.Err()
	}
}
