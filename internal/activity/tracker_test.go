package activity

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testTimeout = 50 * time.Millisecond
	testWait    = time.Second
	testTick    = 5 * time.Millisecond
)

func TestTracker_GoesIdleAfterTimeout(t *testing.T) {
	tr := NewTracker(testTimeout, nil)
	tr.Start()
	defer tr.Stop()

	assert.False(t, tr.IsIdle())
	require.Eventually(t, tr.IsIdle, testWait, testTick)
}

func TestTracker_TouchKeepsActive(t *testing.T) {
	tr := NewTracker(testTimeout, nil)
	tr.Start()
	defer tr.Stop()

	for i := 0; i < 6; i++ {
		time.Sleep(testTimeout / 3)
		tr.Touch()
	}
	assert.False(t, tr.IsIdle())
}

func TestTracker_TouchRevivesIdle(t *testing.T) {
	tr := NewTracker(testTimeout, nil)
	tr.Start()
	defer tr.Stop()

	require.Eventually(t, tr.IsIdle, testWait, testTick)

	tr.Touch()
	assert.False(t, tr.IsIdle())
}

func TestTracker_OnChangeFiresOnTransitions(t *testing.T) {
	var toIdle, toActive int64
	tr := NewTracker(testTimeout, func(idle bool) {
		if idle {
			atomic.AddInt64(&toIdle, 1)
		} else {
			atomic.AddInt64(&toActive, 1)
		}
	})
	tr.Start()
	defer tr.Stop()

	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&toIdle) == 1
	}, testWait, testTick)

	tr.Touch()
	assert.Equal(t, int64(1), atomic.LoadInt64(&toActive))

	// An active touch does not replay the transition.
	tr.Touch()
	assert.Equal(t, int64(1), atomic.LoadInt64(&toActive))
}

func TestTracker_StopCancelsIdleTimer(t *testing.T) {
	tr := NewTracker(testTimeout, nil)
	tr.Start()
	tr.Stop()

	time.Sleep(2 * testTimeout)
	assert.False(t, tr.IsIdle())
}

func TestTracker_MinutesIdle(t *testing.T) {
	tr := NewTracker(time.Hour, nil)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	tr.WithClock(func() time.Time { return now })

	assert.Zero(t, tr.MinutesIdle())

	tr.Touch()
	now = base.Add(150 * time.Second)
	assert.Equal(t, 2, tr.MinutesIdle())
}

func TestTracker_MarkIdle(t *testing.T) {
	var toIdle int64
	tr := NewTracker(time.Hour, func(idle bool) {
		if idle {
			atomic.AddInt64(&toIdle, 1)
		}
	})

	tr.MarkIdle()
	assert.True(t, tr.IsIdle())
	assert.Equal(t, int64(1), atomic.LoadInt64(&toIdle))

	// Idempotent.
	tr.MarkIdle()
	assert.Equal(t, int64(1), atomic.LoadInt64(&toIdle))
}
