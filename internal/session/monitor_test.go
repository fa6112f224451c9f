package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-sessiond/sessiond/internal/activity"
	"github.com/go-sessiond/sessiond/internal/token"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type monitorFixture struct {
	monitor  *Monitor
	clock    *manualClock
	tracker  *activity.Tracker
	refresh  int64
	warns    int64
	expires  int64
	mu       sync.Mutex
	tok      *token.Token
	refErr   error
	lastWarn int
}

type manualClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func (f *monitorFixture) setToken(t *token.Token) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tok = t
}

func newMonitorFixture(cfg MonitorConfig) *monitorFixture {
	f := &monitorFixture{
		clock:   &manualClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		tracker: activity.NewTracker(time.Hour, nil),
	}
	f.monitor = NewMonitor(
		cfg,
		func(ctx context.Context) *token.Token {
			f.mu.Lock()
			defer f.mu.Unlock()
			return f.tok
		},
		f.tracker,
		func(ctx context.Context) error {
			atomic.AddInt64(&f.refresh, 1)
			f.mu.Lock()
			defer f.mu.Unlock()
			return f.refErr
		},
		func(minutes int) {
			atomic.AddInt64(&f.warns, 1)
			f.mu.Lock()
			defer f.mu.Unlock()
			f.lastWarn = minutes
		},
		func() {
			atomic.AddInt64(&f.expires, 1)
		},
	).WithClock(f.clock.Now)
	return f
}

func defaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Interval:         time.Minute,
		WarningThreshold: 2 * time.Minute,
		GracePeriod:      3 * time.Minute,
		AutoRefresh:      true,
	}
}

func (f *monitorFixture) tokenExpiringIn(d time.Duration) *token.Token {
	return &token.Token{
		UserID:       "u1",
		AccessToken:  "at",
		RefreshToken: "rt",
		ExpiresAt:    f.clock.Now().Add(d).Unix(),
	}
}

func TestMonitor_GracePeriodSuppressesExpiry(t *testing.T) {
	f := newMonitorFixture(defaultMonitorConfig())
	ctx := context.Background()

	// A token that looks expired right after login must not trigger
	// anything during the grace window.
	f.setToken(f.tokenExpiringIn(-time.Minute))
	f.monitor.Check(ctx) // first sight: arms the grace window
	f.monitor.Check(ctx)

	f.clock.Advance(2 * time.Minute)
	f.monitor.Check(ctx)

	assert.Zero(t, atomic.LoadInt64(&f.expires))
	assert.Zero(t, atomic.LoadInt64(&f.warns))
	assert.Zero(t, atomic.LoadInt64(&f.refresh))

	// Once the grace window closes the expiry fires.
	f.clock.Advance(2 * time.Minute)
	f.monitor.Check(ctx)
	assert.Equal(t, int64(1), atomic.LoadInt64(&f.expires))
}

func TestMonitor_ActiveUserGetsSilentRefresh(t *testing.T) {
	f := newMonitorFixture(defaultMonitorConfig())
	ctx := context.Background()

	f.setToken(f.tokenExpiringIn(time.Hour))
	f.monitor.Check(ctx)
	f.clock.Advance(4 * time.Minute) // leave the grace window

	// Now the token is inside the warning threshold and the user is active.
	f.setToken(f.tokenExpiringIn(90 * time.Second))
	f.monitor.Check(ctx)

	assert.Equal(t, int64(1), atomic.LoadInt64(&f.refresh))
	assert.Zero(t, atomic.LoadInt64(&f.warns))
	assert.Zero(t, atomic.LoadInt64(&f.expires))
}

func TestMonitor_AutoRefreshDisabledLeavesActiveUserAlone(t *testing.T) {
	cfg := defaultMonitorConfig()
	cfg.AutoRefresh = false
	f := newMonitorFixture(cfg)
	ctx := context.Background()

	f.setToken(f.tokenExpiringIn(time.Hour))
	f.monitor.Check(ctx)
	f.clock.Advance(4 * time.Minute)

	f.setToken(f.tokenExpiringIn(90 * time.Second))
	f.monitor.Check(ctx)

	assert.Zero(t, atomic.LoadInt64(&f.refresh))
	assert.Zero(t, atomic.LoadInt64(&f.warns))
}

func TestMonitor_IdleUserGetsWarning(t *testing.T) {
	f := newMonitorFixture(defaultMonitorConfig())
	ctx := context.Background()

	f.setToken(f.tokenExpiringIn(time.Hour))
	f.monitor.Check(ctx)
	f.clock.Advance(4 * time.Minute)

	f.tracker.MarkIdle()
	f.setToken(f.tokenExpiringIn(90 * time.Second))
	f.monitor.Check(ctx)

	// The warning is debounced; it fires shortly after, exactly once even
	// when further cycles hit the threshold meanwhile.
	f.monitor.Check(ctx)
	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&f.warns) == 1
	}, 3*time.Second, 10*time.Millisecond)

	f.monitor.Check(ctx)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(1), atomic.LoadInt64(&f.warns))
	assert.Zero(t, atomic.LoadInt64(&f.refresh))

	f.mu.Lock()
	assert.Equal(t, 1, f.lastWarn)
	f.mu.Unlock()
}

func TestMonitor_WarningRearmsAfterTokenRenewal(t *testing.T) {
	f := newMonitorFixture(defaultMonitorConfig())
	ctx := context.Background()

	f.setToken(f.tokenExpiringIn(time.Hour))
	f.monitor.Check(ctx)
	f.clock.Advance(4 * time.Minute)

	// First idle approach to expiry warns once.
	f.tracker.MarkIdle()
	f.setToken(f.tokenExpiringIn(90 * time.Second))
	f.monitor.Check(ctx)
	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&f.warns) == 1
	}, 3*time.Second, 10*time.Millisecond)

	// The user extends through the modal; the monitor only sees the renewed
	// token. A healthy cycle must close the warning episode.
	f.setToken(f.tokenExpiringIn(time.Hour))
	f.monitor.Check(ctx)

	// The user walks away again and the renewed token runs down.
	f.clock.Advance(time.Hour - 90*time.Second)
	f.setToken(f.tokenExpiringIn(90 * time.Second))
	f.monitor.Check(ctx)
	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&f.warns) == 2
	}, 3*time.Second, 10*time.Millisecond)

	assert.Zero(t, atomic.LoadInt64(&f.expires))
}

func TestMonitor_HealthyTokenNoAction(t *testing.T) {
	f := newMonitorFixture(defaultMonitorConfig())
	ctx := context.Background()

	f.setToken(f.tokenExpiringIn(time.Hour))
	f.monitor.Check(ctx)
	f.clock.Advance(4 * time.Minute)
	f.setToken(f.tokenExpiringIn(time.Hour))
	f.monitor.Check(ctx)

	assert.Zero(t, atomic.LoadInt64(&f.refresh))
	assert.Zero(t, atomic.LoadInt64(&f.warns))
	assert.Zero(t, atomic.LoadInt64(&f.expires))
}

func TestMonitor_SessionVanishingIsExpiry(t *testing.T) {
	f := newMonitorFixture(defaultMonitorConfig())
	ctx := context.Background()

	f.setToken(f.tokenExpiringIn(time.Hour))
	f.monitor.Check(ctx)
	f.clock.Advance(4 * time.Minute)

	f.setToken(nil)
	f.monitor.Check(ctx)
	assert.Equal(t, int64(1), atomic.LoadInt64(&f.expires))

	// Repeated nil cycles do not fire again.
	f.monitor.Check(ctx)
	assert.Equal(t, int64(1), atomic.LoadInt64(&f.expires))
}

func TestMonitor_NoSessionNoExpiry(t *testing.T) {
	f := newMonitorFixture(defaultMonitorConfig())
	ctx := context.Background()

	f.monitor.Check(ctx)
	f.monitor.Check(ctx)
	assert.Zero(t, atomic.LoadInt64(&f.expires))
}

func TestMonitor_SessionVanishingInGraceIsSilent(t *testing.T) {
	f := newMonitorFixture(defaultMonitorConfig())
	ctx := context.Background()

	f.setToken(f.tokenExpiringIn(time.Hour))
	f.monitor.Check(ctx)

	// Still inside the grace window when the session disappears.
	f.setToken(nil)
	f.monitor.Check(ctx)
	assert.Zero(t, atomic.LoadInt64(&f.expires))
}
