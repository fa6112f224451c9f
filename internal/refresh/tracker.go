package refresh

import (
	"context"
	"sync"
	"time"

	"github.com/go-sessiond/sessiond/internal/token"
)

// Handle is the shared result of one in-flight refresh. Every caller that
// joins the refresh awaits the same handle, so N concurrent requests for a
// user produce exactly one provider call and N equivalent outcomes.
type Handle struct {
	done chan struct{}
	tok  *token.Token
	err  error
}

func newHandle() *Handle {
	return &Handle{done: make(chan struct{})}
}

// settle publishes the outcome. Must be called exactly once.
func (h *Handle) settle(tok *token.Token, err error) {
	h.tok = tok
	h.err = err
	close(h.done)
}

// Await blocks until the refresh settles or the context is cancelled.
func (h *Handle) Await(ctx context.Context) (*token.Token, error) {
	select {
	case <-h.done:
		return h.tok, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type entry struct {
	handle    *Handle
	createdAt time.Time
	settled   bool
}

// Tracker serializes token refreshes per user id. It is the only mutable
// shared state in the refresh path; all access goes through its operations,
// never raw map access.
//
// A settled entry keeps counting as "in progress" until minInterval has
// passed since it was created. That window absorbs bursts of
// near-simultaneous requests: late arrivals join the just-settled result
// instead of immediately firing another provider call.
type Tracker struct {
	mu          sync.Mutex
	entries     map[string]*entry
	minInterval time.Duration
	now         func() time.Time
}

// NewTracker creates a Tracker with the given per-user refresh floor.
func NewTracker(minInterval time.Duration) *Tracker {
	return &Tracker{
		entries:     make(map[string]*entry),
		minInterval: minInterval,
		now:         time.Now,
	}
}

// WithClock replaces the tracker's clock. Intended for tests.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
	return t
}

// live reports whether e still counts as in progress, and prunes it if not.
// Caller must hold t.mu.
func (t *Tracker) live(userID string, e *entry) bool {
	if !e.settled {
		return true
	}
	if t.now().Sub(e.createdAt) < t.minInterval {
		return true
	}
	// Only prune the entry we inspected; a newer one may have replaced it.
	if cur, ok := t.entries[userID]; ok && cur == e {
		delete(t.entries, userID)
	}
	return false
}

// IsRefreshInProgress reports whether a refresh for the user is in flight,
// or settled so recently that callers should still adopt its result.
func (t *Tracker) IsRefreshInProgress(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[userID]
	if !ok {
		return false
	}
	return t.live(userID, e)
}

// InFlight returns the handle for the user's current refresh, if any.
func (t *Tracker) InFlight(userID string) (*Handle, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[userID]
	if !ok || !t.live(userID, e) {
		return nil, false
	}
	return e.handle, true
}

// Begin records a new in-flight refresh, overwriting any prior entry for
// the user, and returns its handle.
func (t *Tracker) Begin(userID string) *Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	h := newHandle()
	t.entries[userID] = &entry{handle: h, createdAt: t.now()}
	return h
}

// BeginOrJoin atomically either joins the user's live refresh (joined=true)
// or registers a new one. Refreshers must use this instead of a
// check-then-Begin sequence, which would race.
func (t *Tracker) BeginOrJoin(userID string) (h *Handle, joined bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e, ok := t.entries[userID]; ok && t.live(userID, e) {
		return e.handle, true
	}

	h = newHandle()
	t.entries[userID] = &entry{handle: h, createdAt: t.now()}
	return h, false
}

// Clear marks the user's refresh as settled. Must be called exactly once
// when a refresh settles, on every path including panics, so a crashed
// refresh can never wedge the user's refresh capability. The entry itself
// lingers until minInterval expires (see Tracker doc) and is pruned lazily.
func (t *Tracker) Clear(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[userID]
	if !ok {
		return
	}
	e.settled = true
	if t.now().Sub(e.createdAt) >= t.minInterval {
		delete(t.entries, userID)
	}
}

// Len returns the number of tracked entries. Intended for tests and gauges.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
