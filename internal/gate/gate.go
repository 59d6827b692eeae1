// Package gate holds the private-mode switch shared between the configuration
// handler and the clipboard poller.
//
// The flag is an atomic cell owned by the Gate, not a package global. A
// single-slot wake channel lets a suspended poller resume as soon as private
// mode is switched off.
package gate

import (
	"log/slog"
	"sync/atomic"
)

// Gate is the private-mode flag plus its wake channel.
type Gate struct {
	private atomic.Bool
	wake    chan struct{}
}

// New returns a Gate with the given initial private-mode value.
func New(private bool) *Gate {
	g := &Gate{wake: make(chan struct{}, 1)}
	g.private.Store(private)
	return g
}

// Get reports whether private mode is on.
func (g *Gate) Get() bool { return g.private.Load() }

// Set switches private mode to v and reports whether the value changed.
// Setting the current value is a no-op. Leaving private mode posts a wake
// token; if one is already pending the send is skipped.
func (g *Gate) Set(v bool) bool {
	if !g.private.CompareAndSwap(!v, v) {
		return false
	}
	slog.Info("private mode changed", "private", v)
	if !v {
		select {
		case g.wake <- struct{}{}:
		default:
		}
	}
	return true
}

// Wake returns the channel a suspended poller waits on. It is never closed.
func (g *Gate) Wake() <-chan struct{} { return g.wake }
