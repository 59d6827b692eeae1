// Package clip reads plain text from the system clipboard. Several sources
// exist and New picks the first one that works on this host:
//
//	native  : golang.design/x/clipboard (X11, macOS, Windows; needs cgo on unix)
//	exec    : github.com/atotto/clipboard (wl-paste, xclip, xsel, pbpaste, ...)
//	headless: no clipboard at all; every read reports ErrUnavailable
//
// Sources are read-only: nothing in clipkeep writes to the clipboard.
package clip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Expected, non-error read outcomes. Callers skip these silently.
var (
	// ErrEmpty means the clipboard holds nothing.
	ErrEmpty = errors.New("clipboard is empty")
	// ErrNoText means the clipboard holds data with no text representation.
	ErrNoText = errors.New("clipboard has no text content")
	// ErrUnavailable means there is no clipboard to read (no display, no seat).
	ErrUnavailable = errors.New("clipboard unavailable")
)

// Source is a read-only plain-text clipboard.
type Source interface {
	// Name returns a human-readable name for the source.
	Name() string

	// ReadText performs one blocking read of the default clipboard. It returns
	// ErrEmpty, ErrNoText or ErrUnavailable for the expected no-text cases.
	ReadText(ctx context.Context) (string, error)
}

// Names accepted by NewNamed.
const (
	NameAuto     = "auto"
	NameNative   = "native"
	NameExec     = "exec"
	NameHeadless = "headless"
)

// Expected reports whether err is one of the silent no-text outcomes.
func Expected(err error) bool {
	return errors.Is(err, ErrEmpty) || errors.Is(err, ErrNoText) || errors.Is(err, ErrUnavailable)
}

// New returns the first usable source: native, then exec, then headless.
func New() Source {
	s, err := newNative()
	if err == nil {
		return s
	}
	slog.Debug("native clipboard unavailable", "err", err)

	s, err = newExec()
	if err == nil {
		return s
	}
	slog.Debug("exec clipboard unavailable", "err", err)

	slog.Warn("no clipboard available, running headless")
	return headless{}
}

// NewNamed returns the named source. "auto" or "" behaves like New.
func NewNamed(name string) (Source, error) {
	switch strings.ToLower(name) {
	case "", NameAuto:
		return New(), nil
	case NameNative:
		return newNative()
	case NameExec:
		return newExec()
	case NameHeadless:
		return headless{}, nil
	default:
		return nil, fmt.Errorf("unknown clipboard source %q (want auto|native|exec|headless)", name)
	}
}

// text converts raw clipboard bytes, replacing invalid UTF-8.
func text(raw []byte) (string, error) {
	if len(raw) == 0 {
		return "", ErrEmpty
	}
	return strings.ToValidUTF8(string(raw), "\uFFFD"), nil
}
