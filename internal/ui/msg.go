package ui

import "github.com/rovshanmuradov/sniper-agent/internal/events"

// Tea message types for UI communication

// EventMsg wraps a bus event for the UI.
type EventMsg struct {
	Event events.Event
}

// refreshMsg triggers a poll of sessions and logs.
type refreshMsg struct{}

// actionResultMsg reports the outcome of a start or stop request.
type actionResultMsg struct {
	UserID string
	Action string
	Err    error
}
