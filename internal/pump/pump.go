// Package pump carries capture events from the poller to a single consumer
// over a small bounded channel.
//
// Two delivery modes exist: TrySend drops the event when the buffer is full
// (used once for the startup history), Send blocks until the consumer makes
// room, detaches, or the context ends.
package pump

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.klb.dev/clipkeep/internal/history"
)

// DefaultCapacity is the number of events buffered for the consumer.
const DefaultCapacity = 20

// ErrClosed is returned by Send after the consumer has detached.
var ErrClosed = errors.New("pump: consumer detached")

// Kind identifies an Event.
type Kind int

const (
	// HistoryLoaded carries the persisted history, oldest first.
	HistoryLoaded Kind = iota + 1
	// EntryCaptured carries one newly captured entry.
	EntryCaptured
)

func (k Kind) String() string {
	switch k {
	case HistoryLoaded:
		return "history_loaded"
	case EntryCaptured:
		return "entry_captured"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Event is one message on the pump.
type Event struct {
	Kind    Kind
	History []history.Entry
	Entry   history.Entry
}

// Loaded returns a HistoryLoaded event.
func Loaded(entries []history.Entry) Event {
	return Event{Kind: HistoryLoaded, History: entries}
}

// Captured returns an EntryCaptured event.
func Captured(e history.Entry) Event {
	return Event{Kind: EntryCaptured, Entry: e}
}

// Pump is the bounded, ordered event channel.
type Pump struct {
	ch        chan Event
	done      chan struct{}
	closeOnce sync.Once
}

// New returns a Pump buffering capacity events. capacity <= 0 uses
// DefaultCapacity.
func New(capacity int) *Pump {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Pump{
		ch:   make(chan Event, capacity),
		done: make(chan struct{}),
	}
}

// Events returns the consumer side. The channel is never closed; consumers
// stop reading and call Close.
func (p *Pump) Events() <-chan Event { return p.ch }

// TrySend delivers ev if there is room and reports whether it did.
func (p *Pump) TrySend(ev Event) bool {
	select {
	case <-p.done:
		return false
	default:
	}
	select {
	case p.ch <- ev:
		return true
	default:
		return false
	}
}

// Send delivers ev, blocking while the buffer is full.
func (p *Pump) Send(ctx context.Context, ev Event) error {
	select {
	case <-p.done:
		return ErrClosed
	default:
	}
	select {
	case p.ch <- ev:
		return nil
	case <-p.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close detaches the consumer. Blocked and future sends fail with ErrClosed.
func (p *Pump) Close() {
	p.closeOnce.Do(func() { close(p.done) })
}

// Len returns the number of buffered events.
func (p *Pump) Len() int { return len(p.ch) }
