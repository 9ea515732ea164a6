// internal/marketdata/discovery.go
package marketdata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const DefaultPumpFunURL = "https://frontend-api-v3.pump.fun"

type pumpCoin struct {
	Mint             string `json:"mint"`
	Symbol           string `json:"symbol"`
	CreatedTimestamp int64  `json:"created_timestamp"`
	Complete         bool   `json:"complete"`
}

// HTTPDiscovery polls the pump.fun coin listing for the latest launches.
type HTTPDiscovery struct {
	api    *apiClient
	logger *zap.Logger
}

func NewHTTPDiscovery(baseURL string, perSecond int, timeout time.Duration, logger *zap.Logger) *HTTPDiscovery {
	if baseURL == "" {
		baseURL = DefaultPumpFunURL
	}
	return &HTTPDiscovery{
		api:    newAPIClient(baseURL, perSecond, timeout),
		logger: logger.Named("pumpfun-discovery"),
	}
}

// NewTokens returns mints still on the bonding curve, newest first.
func (d *HTTPDiscovery) NewTokens(ctx context.Context, limit int) ([]string, error) {
	path := fmt.Sprintf("/coins?offset=0&limit=%d&sort=created_timestamp&order=DESC&includeNsfw=false", limit)

	var coins []pumpCoin
	if err := d.api.getJSON(ctx, path, &coins); err != nil {
		return nil, fmt.Errorf("failed to list coins: %w", err)
	}

	mints := make([]string, 0, len(coins))
	for _, c := range coins {
		if c.Mint == "" || c.Complete {
			continue
		}
		mints = append(mints, c.Mint)
	}
	return mints, nil
}

// StreamDiscovery fans mints pushed by a live feed out to its subscribers.
// Every subscriber owns a bounded queue, so one user's loop draining its
// queue never hides a launch from another. A mint is pushed at most once.
type StreamDiscovery struct {
	mu       sync.Mutex
	capacity int
	seen     map[string]struct{}
	subs     map[string]*streamQueue
	shared   *streamQueue
}

func NewStreamDiscovery(capacity int) *StreamDiscovery {
	if capacity <= 0 {
		capacity = 256
	}
	s := &StreamDiscovery{
		capacity: capacity,
		seen:     make(map[string]struct{}),
		subs:     make(map[string]*streamQueue),
	}
	s.shared = &streamQueue{hub: s}
	return s
}

// Push records a freshly created mint in every subscriber's queue. A full
// queue drops its oldest pending mint.
func (s *StreamDiscovery) Push(mint string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.seen[mint]; dup || mint == "" {
		return
	}
	s.seen[mint] = struct{}{}
	s.shared.push(mint, s.capacity)
	for _, q := range s.subs {
		q.push(mint, s.capacity)
	}

	// seen only has to outlive the websocket's replay window
	if len(s.seen) > s.capacity*16 {
		s.seen = make(map[string]struct{}, s.capacity)
		s.shared.mark(s.seen)
		for _, q := range s.subs {
			q.mark(s.seen)
		}
	}
}

// Subscribe registers a queue for id that receives every mint pushed from
// now on. Resubscribing an id replaces its queue. The returned func
// unregisters it.
func (s *StreamDiscovery) Subscribe(id string) (Discovery, func()) {
	q := &streamQueue{hub: s}

	s.mu.Lock()
	s.subs[id] = q
	s.mu.Unlock()

	return q, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.subs[id] == q {
			delete(s.subs, id)
		}
	}
}

// Subscribers reports how many queues are registered.
func (s *StreamDiscovery) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// NewTokens drains the shared queue, newest first. Consumers that need their
// own view of the feed use Subscribe.
func (s *StreamDiscovery) NewTokens(ctx context.Context, limit int) ([]string, error) {
	return s.shared.NewTokens(ctx, limit)
}

// streamQueue is guarded by its hub's mutex.
type streamQueue struct {
	hub     *StreamDiscovery
	pending []string
}

func (q *streamQueue) push(mint string, capacity int) {
	if len(q.pending) == capacity {
		q.pending = q.pending[1:]
	}
	q.pending = append(q.pending, mint)
}

func (q *streamQueue) mark(seen map[string]struct{}) {
	for _, m := range q.pending {
		seen[m] = struct{}{}
	}
}

func (q *streamQueue) NewTokens(_ context.Context, limit int) ([]string, error) {
	q.hub.mu.Lock()
	defer q.hub.mu.Unlock()

	n := len(q.pending)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]string, 0, n)
	for i := len(q.pending) - 1; i >= len(q.pending)-n; i-- {
		out = append(out, q.pending[i])
	}
	q.pending = q.pending[:len(q.pending)-n]
	return out, nil
}
