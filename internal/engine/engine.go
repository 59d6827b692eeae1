// Package engine wires the capture core together: storage, initial history
// load, the persistence writer, the mode gate and the poller.
package engine

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"go.klb.dev/clipkeep/internal/clip"
	"go.klb.dev/clipkeep/internal/gate"
	"go.klb.dev/clipkeep/internal/history"
	"go.klb.dev/clipkeep/internal/poller"
	"go.klb.dev/clipkeep/internal/pump"
	"go.klb.dev/clipkeep/internal/store"
)

// Config holds everything needed to run an Engine.
type Config struct {
	// Source is the clipboard to observe.
	Source clip.Source
	// DBPath is the preferred history database. Empty means in-memory only.
	DBPath string
	// PrivateMode is the initial private-mode value.
	PrivateMode bool
	// Interval between clipboard reads; zero uses poller.DefaultInterval.
	Interval time.Duration
	// HistoryLimit is the number of entries loaded at startup.
	HistoryLimit int
	// PumpCapacity is the event buffer size; zero uses pump.DefaultCapacity.
	PumpCapacity int

	// open is overridden in tests.
	open func(ctx context.Context, path string) *store.Store
}

// Status is a point-in-time view of a running Engine.
type Status struct {
	PrivateMode  bool         `json:"private_mode"`
	Source       string       `json:"source"`
	StorageKind  store.Kind   `json:"storage_kind"`
	StoragePath  string       `json:"storage_path,omitempty"`
	Written      uint64       `json:"written"`
	WriteFailed  uint64       `json:"write_failed"`
	WritePending int          `json:"write_pending"`
	Poller       poller.Stats `json:"poller"`
}

// Engine owns the core components. Create with New, start with Run.
type Engine struct {
	cfg  Config
	gate *gate.Gate
	pump *pump.Pump

	// set by Run before the poller starts
	store  *store.Store
	writer *store.Writer
	poller *poller.Poller
	ready  chan struct{}
}

// New returns an Engine. Nothing is opened until Run.
func New(cfg Config) *Engine {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = history.DefaultLimit
	}
	if cfg.open == nil {
		cfg.open = store.Open
	}
	return &Engine{
		cfg:   cfg,
		gate:  gate.New(cfg.PrivateMode),
		pump:  pump.New(cfg.PumpCapacity),
		ready: make(chan struct{}),
	}
}

// Events returns the consumer side of the event pump.
func (e *Engine) Events() <-chan pump.Event { return e.pump.Events() }

// Detach tells the engine the consumer has stopped reading.
func (e *Engine) Detach() { e.pump.Close() }

// SetPrivateMode forwards a configuration change and reports whether the mode
// actually changed.
func (e *Engine) SetPrivateMode(v bool) bool { return e.gate.Set(v) }

// PrivateMode reports the current private-mode value.
func (e *Engine) PrivateMode() bool { return e.gate.Get() }

// Ready is closed once storage is open and the poller is about to start.
func (e *Engine) Ready() <-chan struct{} { return e.ready }

// Run opens storage, publishes the stored history, then polls until ctx is
// done. It returns ctx.Err() on shutdown.
func (e *Engine) Run(ctx context.Context) error {
	e.store = e.cfg.open(ctx, e.cfg.DBPath)
	defer func() {
		if err := e.store.Close(); err != nil {
			slog.Warn("closing history storage", "err", err)
		}
	}()

	if err := e.store.EnsureSchema(ctx); err != nil {
		slog.Error("history schema unavailable, persistence disabled", "err", err)
	} else {
		e.loadHistory(ctx)
		if e.store.Enabled() {
			e.writer = store.NewWriter(e.store, store.DefaultQueueSize)
		}
	}

	pcfg := poller.Config{
		Source:   e.cfg.Source,
		Gate:     e.gate,
		Pump:     e.pump,
		Interval: e.cfg.Interval,
	}
	if e.writer != nil {
		pcfg.Recorder = e.writer
	}
	e.poller = poller.New(pcfg)
	close(e.ready)

	g, gctx := errgroup.WithContext(ctx)
	if e.writer != nil {
		g.Go(func() error { return e.writer.Run(gctx) })
	}
	g.Go(func() error { return e.poller.Run(gctx) })
	return g.Wait()
}

func (e *Engine) loadHistory(ctx context.Context) {
	recent, err := e.store.LoadRecent(ctx, e.cfg.HistoryLimit)
	if err != nil {
		slog.Error("loading history failed", "err", err)
		return
	}
	if !e.store.Enabled() {
		return
	}
	// Stored newest first; consumers get oldest first.
	entries := history.NewestFirst(recent)
	if !e.pump.TrySend(pump.Loaded(entries)) {
		slog.Debug("history load not delivered, consumer not ready")
		return
	}
	slog.Info("history loaded", "entries", len(entries))
}

// Status reports the engine state. Storage and poller fields are zero until
// Ready is closed.
func (e *Engine) Status() Status {
	st := Status{
		PrivateMode: e.gate.Get(),
		StorageKind: store.KindNone,
	}
	if e.cfg.Source != nil {
		st.Source = e.cfg.Source.Name()
	}
	select {
	case <-e.ready:
	default:
		return st
	}
	st.StorageKind = e.store.Kind()
	st.StoragePath = e.store.Path()
	st.Poller = e.poller.Stats()
	if e.writer != nil {
		st.Written = e.writer.Written()
		st.WriteFailed = e.writer.Failed()
		st.WritePending = e.writer.Pending()
	}
	return st
}
