// internal/logger/buffer.go
package logger

import (
	"encoding/json"
	"sync"
	"time"
)

// LogEntry represents a single log entry in the buffer
type LogEntry struct {
	Timestamp time.Time
	Level     string
	Logger    string
	Message   string
	Fields    map[string]any
}

// LogBuffer is a thread-safe ring buffer of recent log entries. It accepts
// the JSON lines written by a zap core.
type LogBuffer struct {
	mu      sync.Mutex
	ring    []LogEntry
	next    int
	wrapped bool
	total   uint64
}

// NewLogBuffer creates a new log buffer with the specified size
func NewLogBuffer(size int) *LogBuffer {
	if size <= 0 {
		size = 500
	}
	return &LogBuffer{ring: make([]LogEntry, size)}
}

// Write implements zapcore.WriteSyncer. Lines that are not JSON objects are
// kept verbatim as the message.
func (lb *LogBuffer) Write(p []byte) (int, error) {
	var raw map[string]any
	entry := LogEntry{Timestamp: time.Now()}
	if err := json.Unmarshal(p, &raw); err == nil {
		entry.Level, _ = raw["level"].(string)
		entry.Logger, _ = raw["logger"].(string)
		entry.Message, _ = raw["msg"].(string)
		if ts, ok := raw["timestamp"].(string); ok {
			if parsed, err := time.Parse("2006-01-02T15:04:05.000Z0700", ts); err == nil {
				entry.Timestamp = parsed
			}
		}
		for _, k := range []string{"level", "logger", "msg", "timestamp", "caller", "stacktrace"} {
			delete(raw, k)
		}
		if len(raw) > 0 {
			entry.Fields = raw
		}
	} else {
		entry.Message = string(p)
	}
	lb.Add(entry)
	return len(p), nil
}

// Sync implements zapcore.WriteSyncer.
func (lb *LogBuffer) Sync() error { return nil }

// Add stores an entry, overwriting the oldest one when full.
func (lb *LogBuffer) Add(e LogEntry) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	lb.ring[lb.next] = e
	lb.next = (lb.next + 1) % len(lb.ring)
	if lb.next == 0 {
		lb.wrapped = true
	}
	lb.total++
}

// Recent returns up to limit of the newest entries, oldest first. A limit of
// zero returns everything buffered.
func (lb *LogBuffer) Recent(limit int) []LogEntry {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	count := lb.next
	start := 0
	if lb.wrapped {
		count = len(lb.ring)
		start = lb.next
	}
	if limit > 0 && limit < count {
		start += count - limit
		count = limit
	}

	out := make([]LogEntry, count)
	for i := range out {
		out[i] = lb.ring[(start+i)%len(lb.ring)]
	}
	return out
}

// Total returns how many entries were ever written.
func (lb *LogBuffer) Total() uint64 {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.total
}
