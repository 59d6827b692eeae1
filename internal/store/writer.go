package store

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// DefaultQueueSize is the number of captures that may wait for persistence
// before Enqueue blocks.
const DefaultQueueSize = 64

// drainTimeout bounds the best-effort flush after cancellation.
const drainTimeout = 2 * time.Second

// Appender is the write side of a Store.
type Appender interface {
	Append(ctx context.Context, content string) (int64, error)
}

// Writer is a single-worker FIFO queue in front of an Appender. Appends are
// applied strictly in Enqueue order without blocking the caller while the
// buffer has room.
type Writer struct {
	dst     Appender
	queue   chan string
	written atomic.Uint64
	failed  atomic.Uint64
}

// NewWriter returns a Writer feeding dst. size <= 0 uses DefaultQueueSize.
func NewWriter(dst Appender, size int) *Writer {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Writer{dst: dst, queue: make(chan string, size)}
}

// Enqueue schedules content for persistence. It blocks only when the queue is
// full, until there is room or ctx is done.
func (w *Writer) Enqueue(ctx context.Context, content string) error {
	select {
	case w.queue <- content:
		return nil
	default:
	}
	slog.Debug("history write queue full, waiting", "queued", len(w.queue))
	select {
	case w.queue <- content:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run applies queued appends until ctx is done, then makes a best-effort
// attempt to flush what is already queued. Entries still queued after
// drainTimeout are lost.
func (w *Writer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.drain(ctx)
			return ctx.Err()
		case content := <-w.queue:
			// An append that has started is allowed to finish.
			w.write(context.WithoutCancel(ctx), content)
		}
	}
}

func (w *Writer) drain(parent context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), drainTimeout)
	defer cancel()
	for {
		select {
		case content := <-w.queue:
			w.write(ctx, content)
		default:
			return
		}
		if ctx.Err() != nil {
			if n := len(w.queue); n > 0 {
				slog.Warn("history flush timed out", "dropped", n)
			}
			return
		}
	}
}

func (w *Writer) write(ctx context.Context, content string) {
	id, err := w.dst.Append(ctx, content)
	if err != nil {
		w.failed.Add(1)
		slog.Error("history append failed", "err", err)
		return
	}
	w.written.Add(1)
	slog.Debug("history entry saved", "id", id)
}

// Written returns the number of successful appends.
func (w *Writer) Written() uint64 { return w.written.Load() }

// Failed returns the number of appends that returned an error.
func (w *Writer) Failed() uint64 { return w.failed.Load() }

// Pending returns the number of queued, unwritten entries.
func (w *Writer) Pending() int { return len(w.queue) }
