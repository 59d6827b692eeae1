// Package history defines the clipboard entry type and the bounded in-memory
// history kept by consumers of the capture stream.
//
// Histories are always ordered oldest first (ascending persisted id). Callers
// that present newest first reverse at their own boundary with NewestFirst.
package history

import (
	"slices"
	"time"
)

// DefaultLimit is the number of entries loaded at startup and retained in memory.
const DefaultLimit = 100

// Entry is one captured clipboard text value. ID is zero until the entry has
// been persisted.
type Entry struct {
	ID        int64     `json:"id,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NewestFirst returns a reversed copy of entries.
func NewestFirst(entries []Entry) []Entry {
	out := slices.Clone(entries)
	slices.Reverse(out)
	return out
}

// Ring is a bounded oldest-first history. Appending past capacity evicts the
// oldest entry. The zero value is not usable; call NewRing.
type Ring struct {
	buf   []Entry
	start int
	n     int
}

// NewRing returns an empty Ring holding at most capacity entries. A capacity
// <= 0 uses DefaultLimit.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultLimit
	}
	return &Ring{buf: make([]Entry, capacity)}
}

// Cap returns the maximum number of entries the ring retains.
func (r *Ring) Cap() int { return len(r.buf) }

// Len returns the number of entries currently held.
func (r *Ring) Len() int { return r.n }

// Append adds e as the newest entry.
func (r *Ring) Append(e Entry) {
	if r.n < len(r.buf) {
		r.buf[(r.start+r.n)%len(r.buf)] = e
		r.n++
		return
	}
	r.buf[r.start] = e
	r.start = (r.start + 1) % len(r.buf)
}

// Reset replaces the contents with entries (oldest first). Only the newest
// Cap() entries are kept.
func (r *Ring) Reset(entries []Entry) {
	r.start, r.n = 0, 0
	if over := len(entries) - len(r.buf); over > 0 {
		entries = entries[over:]
	}
	for _, e := range entries {
		r.Append(e)
	}
}

// Last returns up to limit of the newest entries, oldest first. A limit <= 0
// returns everything.
func (r *Ring) Last(limit int) []Entry {
	if limit <= 0 || limit > r.n {
		limit = r.n
	}
	out := make([]Entry, 0, limit)
	for i := r.n - limit; i < r.n; i++ {
		out = append(out, r.buf[(r.start+i)%len(r.buf)])
	}
	return out
}
