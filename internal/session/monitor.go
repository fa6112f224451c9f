package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/go-sessiond/sessiond/internal/activity"
	"github.com/go-sessiond/sessiond/internal/token"
)

// warnDebounce delays the warning callback so a burst of checks right at
// the threshold produces a single warning.
const warnDebounce = time.Second

// TokenSource returns the current session token, or nil when no session
// exists.
type TokenSource func(ctx context.Context) *token.Token

// MonitorConfig holds the monitor's policy knobs.
type MonitorConfig struct {
	Interval         time.Duration // poll cadence
	WarningThreshold time.Duration // remaining lifetime that arms warning/refresh
	GracePeriod      time.Duration // post-login window with no expiry checks
	AutoRefresh      bool
}

// Monitor polls token expiry and idle state together and drives the
// two-track policy: an actively-working user gets a silent refresh and
// never sees an interruption; a user who walked away gets a warning before
// forced logout.
type Monitor struct {
	cfg      MonitorConfig
	source   TokenSource
	tracker  *activity.Tracker
	refresh  RefreshFunc
	onWarn   func(minutesUntilExpiry int)
	onExpire func()

	mu         sync.Mutex
	hasSession bool
	graceUntil time.Time
	warned     bool
	warnTimer  *time.Timer

	now func() time.Time
}

// NewMonitor creates a session monitor.
func NewMonitor(
	cfg MonitorConfig,
	source TokenSource,
	tracker *activity.Tracker,
	refresh RefreshFunc,
	onWarn func(minutesUntilExpiry int),
	onExpire func(),
) *Monitor {
	return &Monitor{
		cfg:      cfg,
		source:   source,
		tracker:  tracker,
		refresh:  refresh,
		onWarn:   onWarn,
		onExpire: onExpire,
		now:      time.Now,
	}
}

// WithClock replaces the monitor's clock. Intended for tests.
func (m *Monitor) WithClock(now func() time.Time) *Monitor {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
	return m
}

// Run polls until the context is cancelled, with an immediate first check.
func (m *Monitor) Run(ctx context.Context) error {
	m.Check(ctx)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.cancelWarnTimer()
			return ctx.Err()
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Check evaluates one monitor cycle. Exported so tests can drive cycles
// without waiting on the ticker.
func (m *Monitor) Check(ctx context.Context) {
	tok := m.source(ctx)
	now := m.now()

	m.mu.Lock()

	if tok == nil {
		hadSession := m.hasSession
		inGrace := now.Before(m.graceUntil)
		m.hasSession = false
		m.warned = false
		m.mu.Unlock()

		// Losing the session outside the grace window means it expired
		// underneath the user.
		if hadSession && !inGrace {
			m.fireExpired()
		}
		return
	}

	if !m.hasSession {
		// Fresh login: reset warning state and suppress expiry checks for
		// the grace period, so an artificially small expires_in cannot
		// flash a false warning before the first token settles.
		m.hasSession = true
		m.warned = false
		m.graceUntil = now.Add(m.cfg.GracePeriod)
		m.mu.Unlock()
		return
	}

	if now.Before(m.graceUntil) {
		m.mu.Unlock()
		return
	}

	remaining := tok.ExpiresIn(now)
	warned := m.warned
	m.mu.Unlock()

	if remaining <= 0 {
		m.fireExpired()
		return
	}

	if remaining > m.cfg.WarningThreshold {
		// The token was renewed, whatever path did it (modal extend,
		// request-driven refresh). Any warning episode is over; arm the
		// next one.
		if warned {
			m.mu.Lock()
			m.warned = false
			m.mu.Unlock()
		}
		return
	}

	idle := m.tracker.IsIdle()

	if !idle && m.cfg.AutoRefresh {
		// Active user: refresh silently, no interruption. On failure the
		// next cycle re-evaluates; terminal failures surface through the
		// lifecycle callback, not here.
		if err := m.refresh(ctx); err != nil {
			log.Printf("monitor: silent refresh failed: %v", err)
			return
		}
		m.mu.Lock()
		m.warned = false
		m.mu.Unlock()
		return
	}

	if idle && !warned {
		m.scheduleWarning(int(remaining / time.Minute))
	}
}

// scheduleWarning fires the warning callback after a short debounce,
// re-checking that the warning is still warranted when it fires.
func (m *Monitor) scheduleWarning(minutesUntilExpiry int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.warned || m.warnTimer != nil {
		return
	}
	m.warnTimer = time.AfterFunc(warnDebounce, func() {
		m.mu.Lock()
		m.warnTimer = nil
		if m.warned || !m.hasSession {
			m.mu.Unlock()
			return
		}
		m.warned = true
		m.mu.Unlock()

		if m.onWarn != nil {
			m.onWarn(minutesUntilExpiry)
		}
	})
}

func (m *Monitor) cancelWarnTimer() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.warnTimer != nil {
		m.warnTimer.Stop()
		m.warnTimer = nil
	}
}

func (m *Monitor) fireExpired() {
	m.cancelWarnTimer()
	if m.onExpire != nil {
		m.onExpire()
	}
}
