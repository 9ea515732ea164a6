package ui

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/sniper-agent/internal/events"
)

// UpdateSender forwards bus events to the UI without ever blocking the bus.
type UpdateSender struct {
	msgChan        chan tea.Msg
	droppedUpdates uint64
	sentUpdates    uint64
	logger         *zap.Logger
	statsInterval  time.Duration
	stopStats      chan struct{}
	closeOnce      sync.Once
}

// NewUpdateSender creates a new non-blocking update sender
func NewUpdateSender(buffer int, logger *zap.Logger) *UpdateSender {
	if buffer <= 0 {
		buffer = 256
	}
	us := &UpdateSender{
		msgChan:       make(chan tea.Msg, buffer),
		logger:        logger.Named("ui-updates"),
		statsInterval: 30 * time.Second,
		stopStats:     make(chan struct{}),
	}

	go us.logStats()

	return us
}

// Attach subscribes the sender to every bus event.
func (us *UpdateSender) Attach(bus *events.Bus) events.Subscription {
	return bus.SubscribeFunc(events.Any, func(_ context.Context, e events.Event) error {
		us.SendUpdate(EventMsg{Event: e})
		return nil
	})
}

// SendUpdate sends a message to UI without blocking
func (us *UpdateSender) SendUpdate(msg tea.Msg) {
	select {
	case us.msgChan <- msg:
		atomic.AddUint64(&us.sentUpdates, 1)
	default:
		atomic.AddUint64(&us.droppedUpdates, 1)
	}
}

// Wait returns a command that delivers the next queued message.
func (us *UpdateSender) Wait() tea.Cmd {
	return func() tea.Msg {
		return <-us.msgChan
	}
}

// GetStats returns current statistics
func (us *UpdateSender) GetStats() (sent, dropped uint64) {
	sent = atomic.LoadUint64(&us.sentUpdates)
	dropped = atomic.LoadUint64(&us.droppedUpdates)
	return sent, dropped
}

// logStats periodically logs statistics
func (us *UpdateSender) logStats() {
	ticker := time.NewTicker(us.statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sent, dropped := us.GetStats()
			if dropped > 0 {
				us.logger.Warn("UI update statistics",
					zap.Uint64("sent", sent),
					zap.Uint64("dropped", dropped),
					zap.Float64("drop_rate", float64(dropped)/float64(sent+dropped)*100))
			}
		case <-us.stopStats:
			return
		}
	}
}

// Close stops the update sender
func (us *UpdateSender) Close() error {
	us.closeOnce.Do(func() { close(us.stopStats) })
	return nil
}
