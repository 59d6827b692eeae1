// Package poller implements the clipboard polling loop.
//
// Once per tick the poller reads the clipboard, drops the value if it equals
// the last captured one, and otherwise emits it on the event pump and queues
// it for persistence. While private mode is on it performs no reads and parks
// on the gate's wake channel.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"go.klb.dev/clipkeep/internal/clip"
	"go.klb.dev/clipkeep/internal/gate"
	"go.klb.dev/clipkeep/internal/history"
	"go.klb.dev/clipkeep/internal/logging"
	"go.klb.dev/clipkeep/internal/pump"
)

// DefaultInterval is the time between clipboard reads.
const DefaultInterval = 500 * time.Millisecond

// Recorder schedules a captured value for persistence without waiting for it
// to be written. Implementations must apply values in call order.
type Recorder interface {
	Enqueue(ctx context.Context, content string) error
}

// Config wires a Poller. Recorder may be nil, in which case captures are only
// emitted.
type Config struct {
	Source   clip.Source
	Gate     *gate.Gate
	Pump     *pump.Pump
	Recorder Recorder
	Interval time.Duration
}

// Stats is a snapshot of the poller counters.
type Stats struct {
	Reads      uint64 `json:"reads"`
	Captures   uint64 `json:"captures"`
	Duplicates uint64 `json:"duplicates"`
	Skipped    uint64 `json:"skipped"`
	Errors     uint64 `json:"errors"`
}

// Poller is the long-lived capture loop. It is not safe to call Run twice.
type Poller struct {
	src      clip.Source
	gate     *gate.Gate
	pump     *pump.Pump
	rec      Recorder
	interval time.Duration
	now      func() time.Time

	// only touched by Run
	last    string
	hasLast bool

	reads      atomic.Uint64
	captures   atomic.Uint64
	duplicates atomic.Uint64
	skipped    atomic.Uint64
	readErrs   atomic.Uint64
}

// New returns a Poller. It does not start polling.
func New(cfg Config) *Poller {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		src:      cfg.Source,
		gate:     cfg.Gate,
		pump:     cfg.Pump,
		rec:      cfg.Recorder,
		interval: interval,
		now:      time.Now,
	}
}

// Run polls until ctx is done and returns ctx.Err().
func (p *Poller) Run(ctx context.Context) error {
	t := time.NewTicker(p.interval)
	defer t.Stop()

	slog.Info("clipboard poller started",
		"source", p.src.Name(),
		"interval", p.interval,
		"private", p.gate.Get(),
	)

	for {
		if p.gate.Get() {
			slog.Debug("clipboard polling suspended")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-p.gate.Wake():
			}
			// The token may be stale; re-check the flag.
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}

		// Private mode may have been switched on while we waited.
		if p.gate.Get() {
			continue
		}
		p.tick(ctx)
	}
}

func (p *Poller) tick(ctx context.Context) {
	p.reads.Add(1)
	s, err := p.read(ctx)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return
	case clip.Expected(err):
		p.skipped.Add(1)
		return
	default:
		p.readErrs.Add(1)
		slog.Warn("clipboard read failed", "source", p.src.Name(), "err", err)
		return
	}

	if p.hasLast && s == p.last {
		p.duplicates.Add(1)
		return
	}
	p.capture(ctx, s)
}

// read runs the blocking clipboard read on its own goroutine so that
// cancellation is never held up by a stuck paste helper.
func (p *Poller) read(ctx context.Context) (string, error) {
	type result struct {
		text string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		s, err := p.src.ReadText(ctx)
		ch <- result{s, err}
	}()
	select {
	case r := <-ch:
		return r.text, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (p *Poller) capture(ctx context.Context, s string) {
	entry := history.Entry{Content: s, CreatedAt: p.now()}
	if err := p.pump.Send(ctx, pump.Captured(entry)); err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("capture delivery failed", "err", err)
	}
	p.last, p.hasLast = s, true
	p.captures.Add(1)
	slog.Debug("clipboard captured", "bytes", len(s), "preview", logging.Preview(s))

	if p.rec == nil {
		return
	}
	if err := p.rec.Enqueue(ctx, s); err != nil {
		slog.Error("history enqueue failed", "err", err)
	}
}

// Stats returns the current counters.
func (p *Poller) Stats() Stats {
	return Stats{
		Reads:      p.reads.Load(),
		Captures:   p.captures.Load(),
		Duplicates: p.duplicates.Load(),
		Skipped:    p.skipped.Load(),
		Errors:     p.readErrs.Load(),
	}
}
