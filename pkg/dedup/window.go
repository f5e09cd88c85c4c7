// Package dedup implements the short-lived window of recently forwarded
// message bodies that keeps the bridge from echoing a message back and
// forth between chat and ledger.
package dedup

import (
	"sync"
	"time"
)

// DefaultTTL is how long a forwarded body stays in the window.
const DefaultTTL = 60 * time.Second

// Direction is the hop a body was forwarded on. Suppression applies per
// direction: a body sent to the ledger does not block the same text from
// being delivered to chat.
type Direction int

const (
	ToLedger Direction = iota
	ToChat
)

func (d Direction) String() string {
	if d == ToChat {
		return "to_chat"
	}
	return "to_ledger"
}

type key struct {
	dir  Direction
	body string
}

type entry struct {
	expires time.Time
	timer   *time.Timer
}

// Window is safe for concurrent use. Entries are keyed by exact body text.
type Window struct {
	ttl     time.Duration
	now     func() time.Time
	mu      sync.Mutex
	entries map[key]*entry
}

type Option func(*Window)

// WithClock replaces the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(w *Window) { w.now = now }
}

func New(ttl time.Duration, opts ...Option) *Window {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	w := &Window{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[key]*entry),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// ShouldForward reports whether body may be forwarded in dir.
func (w *Window) ShouldForward(dir Direction, body string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.entries[key{dir, body}]
	if !ok {
		return true
	}
	return !w.now().Before(e.expires)
}

// MarkForwarded records body as forwarded in dir. Marking a body that is
// already present does not extend its expiry.
func (w *Window) MarkForwarded(dir Direction, body string) {
	k := key{dir, body}

	w.mu.Lock()
	defer w.mu.Unlock()

	if e, ok := w.entries[k]; ok {
		if w.now().Before(e.expires) {
			return
		}
		e.timer.Stop()
	}

	e := &entry{expires: w.now().Add(w.ttl)}
	e.timer = time.AfterFunc(w.ttl, func() { w.expire(k, e) })
	w.entries[k] = e
}

func (w *Window) expire(k key, e *entry) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if cur, ok := w.entries[k]; ok && cur == e {
		delete(w.entries, k)
	}
}

// Len returns the number of bodies currently held, expired or not.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}

// Stop cancels all pending expiry timers and empties the window.
func (w *Window) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for k, e := range w.entries {
		e.timer.Stop()
		delete(w.entries, k)
	}
}
