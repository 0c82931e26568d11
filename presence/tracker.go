// Package presence tracks which identities currently hold live sessions.
// It replaces the ambient global online-status map with a dedicated
// component owning its own concurrency-safe state, exposed through narrow
// read/write operations.
package presence

import (
	"sync"
	"time"
)

// Tracker records online identities and when they were last seen.
type Tracker struct {
	mu      sync.RWMutex
	online  map[string]time.Time
	nowFunc func() time.Time
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithNowFunc sets the clock used for last-seen stamps (for testing).
func WithNowFunc(now func() time.Time) TrackerOption {
	return func(t *Tracker) {
		t.nowFunc = now
	}
}

// NewTracker creates an empty tracker.
func NewTracker(options ...TrackerOption) *Tracker {
	t := &Tracker{
		online:  make(map[string]time.Time),
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(t)
	}
	return t
}

// MarkOnline records the identity as online, stamping the current time.
func (t *Tracker) MarkOnline(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.online[id] = t.nowFunc()
}

// MarkOffline removes the identity. Idempotent.
func (t *Tracker) MarkOffline(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.online, id)
}

// IsOnline reports whether the identity is currently marked online.
func (t *Tracker) IsOnline(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.online[id]
	return ok
}

// LastSeen returns the online stamp for an identity, if any.
func (t *Tracker) LastSeen(id string) (time.Time, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	at, ok := t.online[id]
	return at, ok
}

// Count reports how many identities are online.
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.online)
}
