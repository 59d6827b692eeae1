// Package feed is the consumer side of the capture pump. It keeps the bounded
// in-memory history and fans capture events out to any number of
// subscribers (local IPC watchers, the CLI). Subscribers receive events via a
// non-blocking Send; a slow subscriber loses events, never the poller.
package feed

import (
	"context"
	"log/slog"
	"sync"

	"go.klb.dev/clipkeep/internal/history"
	"go.klb.dev/clipkeep/internal/pump"
)

// Subscriber is anything that can receive capture events from the hub.
type Subscriber interface {
	ID() string
	// Send delivers an event to the subscriber. Must be non-blocking.
	Send(pump.Event)
}

// Hub stores the recent history and routes events to subscribers.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]Subscriber
	ring *history.Ring
}

// New returns an empty Hub retaining capacity entries.
func New(capacity int) *Hub {
	return &Hub{
		subs: make(map[string]Subscriber),
		ring: history.NewRing(capacity),
	}
}

// Register adds a subscriber and immediately delivers the current history
// as a HistoryLoaded event.
func (h *Hub) Register(s Subscriber) {
	h.mu.Lock()
	h.subs[s.ID()] = s
	s.Send(pump.Loaded(h.ring.Last(0)))
	total := len(h.subs)
	h.mu.Unlock()

	slog.Debug("subscriber registered", "subscriber", s.ID(), "total", total)
}

// Unregister removes a subscriber.
func (h *Hub) Unregister(s Subscriber) {
	h.mu.Lock()
	delete(h.subs, s.ID())
	total := len(h.subs)
	h.mu.Unlock()

	slog.Debug("subscriber unregistered", "subscriber", s.ID(), "total", total)
}

// Publish applies ev to the history and forwards it to every subscriber.
// A HistoryLoaded event replaces the history; EntryCaptured appends to it.
// Delivery happens under the lock so a new subscriber never sees a capture
// before its snapshot.
func (h *Hub) Publish(ev pump.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch ev.Kind {
	case pump.HistoryLoaded:
		h.ring.Reset(ev.History)
	case pump.EntryCaptured:
		h.ring.Append(ev.Entry)
	}
	for _, s := range h.subs {
		s.Send(ev)
	}
}

// Snapshot returns up to limit of the newest entries, oldest first.
func (h *Hub) Snapshot(limit int) []history.Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ring.Last(limit)
}

// Subscribers returns the number of registered subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Run publishes events until ctx is done.
func (h *Hub) Run(ctx context.Context, events <-chan pump.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-events:
			h.Publish(ev)
		}
	}
}
