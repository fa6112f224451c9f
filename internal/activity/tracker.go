package activity

import (
	"sync"
	"time"
)

// Tracker converts raw input events into an Active/Idle state with a
// debounced timer. Callers feed it qualifying events via Touch; after
// timeout with no events it flips to Idle, and any event flips it back.
//
// Start and Stop own the timer registration; this is the only component
// with side effects outside its own state.
type Tracker struct {
	mu           sync.Mutex
	timeout      time.Duration
	lastActivity time.Time
	idle         bool
	started      bool
	timer        *time.Timer
	onChange     func(idle bool)
	now          func() time.Time
}

// NewTracker creates a Tracker. onChange is invoked on every Active/Idle
// transition; it may be nil.
func NewTracker(timeout time.Duration, onChange func(idle bool)) *Tracker {
	return &Tracker{
		timeout:  timeout,
		onChange: onChange,
		now:      time.Now,
	}
}

// WithClock replaces the tracker's clock. Intended for tests; the idle
// timer itself still runs on real time.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
	return t
}

// Start arms the idle timer. Until Start is called, Touch only records the
// activity timestamp.
func (t *Tracker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started {
		return
	}
	t.started = true
	t.lastActivity = t.now()
	t.idle = false
	t.armLocked()
}

// Stop cancels the idle timer. The tracker can be restarted.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.started = false
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// Touch records a qualifying input event: the debounce timer restarts, and
// an idle tracker transitions back to active.
func (t *Tracker) Touch() {
	t.mu.Lock()
	t.lastActivity = t.now()
	wasIdle := t.idle
	t.idle = false
	if t.started {
		t.armLocked()
	}
	notify := t.onChange
	t.mu.Unlock()

	if wasIdle && notify != nil {
		notify(false)
	}
}

// armLocked (re)schedules the idle transition. Caller must hold t.mu.
func (t *Tracker) armLocked() {
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(t.timeout, t.fire)
}

// fire flips the tracker to idle when the debounce window elapses.
func (t *Tracker) fire() {
	t.mu.Lock()
	if !t.started || t.idle {
		t.mu.Unlock()
		return
	}
	t.idle = true
	notify := t.onChange
	t.mu.Unlock()

	if notify != nil {
		notify(true)
	}
}

// IsIdle reports the current state.
func (t *Tracker) IsIdle() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.idle
}

// LastActivity returns the timestamp of the last qualifying event.
func (t *Tracker) LastActivity() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastActivity
}

// MinutesIdle returns whole minutes since the last qualifying event.
func (t *Tracker) MinutesIdle() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.lastActivity.IsZero() {
		return 0
	}
	return int(t.now().Sub(t.lastActivity) / time.Minute)
}

// MarkIdle forces the idle state without waiting for the timer. Intended
// for tests and for collaborators that learn about idleness out of band.
func (t *Tracker) MarkIdle() {
	t.mu.Lock()
	wasIdle := t.idle
	t.idle = true
	notify := t.onChange
	t.mu.Unlock()

	if !wasIdle && notify != nil {
		notify(true)
	}
}
