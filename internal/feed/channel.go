package feed

import (
	"log/slog"
	"sync/atomic"

	"go.klb.dev/clipkeep/internal/pump"
)

// Channel is a Subscriber backed by a buffered channel.
type Channel struct {
	id      string
	ch      chan pump.Event
	dropped atomic.Uint64
}

// NewChannel returns a Channel subscriber buffering size events.
func NewChannel(id string, size int) *Channel {
	return &Channel{id: id, ch: make(chan pump.Event, size)}
}

func (c *Channel) ID() string { return c.id }

// Send implements Subscriber. Events that do not fit are dropped.
func (c *Channel) Send(ev pump.Event) {
	select {
	case c.ch <- ev:
	default:
		c.dropped.Add(1)
		slog.Warn("subscriber channel full, dropping", "subscriber", c.id, "kind", ev.Kind)
	}
}

// C returns the receive side.
func (c *Channel) C() <-chan pump.Event { return c.ch }

// Dropped returns the number of events lost to a full buffer.
func (c *Channel) Dropped() uint64 { return c.dropped.Load() }
