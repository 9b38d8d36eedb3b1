// Package live streams launch leaderboard changes to websocket subscribers.
package live

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/motheroflaunch/backend/internal/logger"
	"github.com/motheroflaunch/backend/internal/metrics"
	"go.uber.org/zap"
)

// Event types
const (
	EventVote      = "vote"
	EventFinalized = "finalized"
)

// Event is one message pushed to subscribers
type Event struct {
	Type   string `json:"type"`
	Date   string `json:"date"`
	ToolID string `json:"tool_id,omitempty"`
	Votes  int    `json:"votes"`
}

// Publisher receives tally changes. The launch service depends on this
// rather than on the hub so it can run without websockets.
type Publisher interface {
	Publish(ev Event)
}

// NopPublisher drops every event
type NopPublisher struct{}

// Publish implements Publisher
func (NopPublisher) Publish(Event) {}

// Hub owns the subscriber set. All mutations go through its Run loop.
type Hub struct {
	subscribers map[*subscriber]struct{}
	register    chan *subscriber
	unregister  chan *subscriber
	broadcast   chan Event
	done        chan struct{}

	active  atomic.Int64
	dropped atomic.Int64
	mu      sync.Mutex
	running bool
}

// NewHub creates a hub; call Run to start it
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[*subscriber]struct{}),
		register:    make(chan *subscriber, 64),
		unregister:  make(chan *subscriber, 64),
		broadcast:   make(chan Event, 256),
		done:        make(chan struct{}),
	}
}

// Run processes registrations and broadcasts until ctx is done
func (h *Hub) Run(ctx context.Context) {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for s := range h.subscribers {
				h.remove(s)
			}
			return
		case s := <-h.register:
			h.subscribers[s] = struct{}{}
			h.active.Add(1)
			metrics.Get().LiveSubscribers.Inc()
		case s := <-h.unregister:
			h.remove(s)
		case ev := <-h.broadcast:
			h.fanOut(ev)
		}
	}
}

func (h *Hub) remove(s *subscriber) {
	if _, ok := h.subscribers[s]; !ok {
		return
	}
	delete(h.subscribers, s)
	close(s.send)
	h.active.Add(-1)
	metrics.Get().LiveSubscribers.Dec()
}

func (h *Hub) fanOut(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		logger.Log.Error("Failed to marshal live event", zap.Error(err))
		return
	}
	for s := range h.subscribers {
		if s.date != "" && s.date != ev.Date {
			continue
		}
		select {
		case s.send <- data:
		default:
			// Slow consumer; drop it rather than block every other subscriber
			h.dropped.Add(1)
			h.remove(s)
		}
	}
}

// Publish implements Publisher. It never blocks the caller; events are
// dropped when the broadcast queue is full.
func (h *Hub) Publish(ev Event) {
	select {
	case h.broadcast <- ev:
	default:
		h.dropped.Add(1)
		logger.Log.Warn("Live broadcast queue full, dropping event", zap.String("type", ev.Type), zap.String("date", ev.Date))
	}
}

// ActiveSubscribers returns the number of connected subscribers
func (h *Hub) ActiveSubscribers() int64 {
	return h.active.Load()
}

// Done is closed when Run returns
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) subscribe(ctx context.Context, s *subscriber) bool {
	select {
	case h.register <- s:
		return true
	case <-ctx.Done():
		return false
	case <-h.done:
		return false
	}
}

func (h *Hub) unsubscribe(s *subscriber) {
	select {
	case h.unregister <- s:
	case <-h.done:
	}
}

var (
	_ Publisher = (*Hub)(nil)
	_ Publisher = NopPublisher{}
)
