package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/go-sessiond/sessiond/internal/metrics"
)

// RefreshFunc performs a silent token refresh. It returns an error when the
// refresh failed; terminal failures surface separately via NotifyFatal.
type RefreshFunc func(ctx context.Context) error

// LogoutFunc tears the session down (local state plus best-effort provider
// notification).
type LogoutFunc func(ctx context.Context)

// Manager owns the idle-timeout timers and the modal state for one active
// session. State changes go through the pure Transition function; the
// manager adds the side effects: timer scheduling, modal rendering,
// metrics.
//
// The warning timer fires at idleTimeout-warningBefore, the logout timer at
// idleTimeout. On every activity event both are cancelled and rescheduled
// together under one lock, so they can never drift out of their configured
// offset relationship.
type Manager struct {
	mu          sync.Mutex
	state       State
	modal       ModalState
	warned      bool
	startedAt   time.Time
	idleTimeout time.Duration
	warnBefore  time.Duration

	warningTimer *time.Timer
	logoutTimer  *time.Timer

	refreshFn RefreshFunc
	logoutFn  LogoutFunc
	metrics   metrics.Recorder
	now       func() time.Time
}

// Compile-time interface check.
var _ Modal = (*Manager)(nil)

// NewManager creates a session manager. Timers stay disarmed until Begin.
func NewManager(
	idleTimeout, warningBefore time.Duration,
	refreshFn RefreshFunc,
	logoutFn LogoutFunc,
	m metrics.Recorder,
) *Manager {
	return &Manager{
		state:       StateNormal,
		idleTimeout: idleTimeout,
		warnBefore:  warningBefore,
		refreshFn:   refreshFn,
		logoutFn:    logoutFn,
		metrics:     m,
		now:         time.Now,
	}
}

// Begin starts the timers for a fresh session.
func (m *Manager) Begin() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = StateNormal
	m.modal = ModalState{}
	m.warned = false
	m.startedAt = m.now()
	m.armTimersLocked()
	m.metrics.RecordSessionCreated()
}

// Stop disarms both timers without touching state. Used on shutdown.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopTimersLocked()
}

// State returns the current machine state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// NotifyActivity handles a qualifying input event: in Normal or Warning the
// machine returns to Normal and both timers restart from zero.
func (m *Manager) NotifyActivity() {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := Transition(m.state, EventActivity)
	if m.state.Terminal() {
		return
	}
	if m.state == StateWarning {
		m.modal = ModalState{}
	}
	m.setStateLocked(next)
	m.warned = false
	m.armTimersLocked()
}

// NotifyFatal handles a terminal refresh failure reported by the token
// lifecycle: the session is hard-expired and the modal is not dismissible.
func (m *Manager) NotifyFatal() {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := Transition(m.state, EventRefreshFatal)
	if next == m.state {
		return
	}
	m.setStateLocked(next)
	m.stopTimersLocked()
	m.modal = ModalState{IsOpen: true, Type: ModalExpired, Dismissible: false}
	m.metrics.RecordSessionEnded("hard_expired", m.now().Sub(m.startedAt))
}

// Reauthenticated resets the machine to a fresh Normal state after a
// completed full login. This is the only way out of a terminal state.
func (m *Manager) Reauthenticated() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.setStateLocked(Transition(m.state, EventReauthenticated))
	m.modal = ModalState{}
	m.warned = false
	m.startedAt = m.now()
	m.armTimersLocked()
	m.metrics.RecordSessionCreated()
}

// ShowExpired forces the non-dismissible expired modal.
func (m *Manager) ShowExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modal = ModalState{IsOpen: true, Type: ModalExpired, Dismissible: false}
}

// ShowWarning opens the warning modal with the remaining minutes.
func (m *Manager) ShowWarning(minutesLeft int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modal = ModalState{
		IsOpen:      true,
		Type:        ModalWarning,
		MinutesLeft: minutesLeft,
		Dismissible: true,
	}
	m.metrics.RecordSessionWarning()
}

// HideWarning closes the warning modal. Expired and idle modals cannot be
// hidden this way.
func (m *Manager) HideWarning() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.modal.Type == ModalWarning {
		m.modal = ModalState{}
	}
}

// RefreshSession is the "extend" action from the warning modal: attempt a
// silent refresh; on success return to Normal with both timers restarted.
// On failure the session falls back to full re-authentication rather than
// silently failing closed.
func (m *Manager) RefreshSession(ctx context.Context) bool {
	if err := m.refreshFn(ctx); err != nil {
		log.Printf("session: extend failed, requiring re-authentication: %v", err)
		m.NotifyFatal()
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Terminal() {
		// A fatal outcome raced in while the refresh was in flight.
		return false
	}
	m.setStateLocked(Transition(m.state, EventRefreshSucceeded))
	m.modal = ModalState{}
	m.warned = false
	m.armTimersLocked()
	return true
}

// Logout is the explicit sign-out action, the only legal exit from the
// expired and idle modals.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	wasTerminal := m.state.Terminal()
	m.stopTimersLocked()
	m.state = StateNormal
	m.modal = ModalState{}
	m.warned = false
	started := m.startedAt
	m.mu.Unlock()

	if !wasTerminal && !started.IsZero() {
		m.metrics.RecordSessionEnded("logout", m.now().Sub(started))
	}
	if m.logoutFn != nil {
		m.logoutFn(ctx)
	}
}

// Render returns the current modal state.
func (m *Manager) Render() ModalState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.modal
}

// onWarningTimer fires at idleTimeout-warningBefore of inactivity.
func (m *Manager) onWarningTimer() {
	m.mu.Lock()

	next := Transition(m.state, EventWarningTimer)
	if next == m.state {
		m.mu.Unlock()
		return
	}
	m.setStateLocked(next)
	minutesLeft := int(m.warnBefore / time.Minute)
	m.modal = ModalState{
		IsOpen:      true,
		Type:        ModalWarning,
		MinutesLeft: minutesLeft,
		Dismissible: true,
	}
	m.mu.Unlock()

	m.metrics.RecordSessionWarning()
}

// onLogoutTimer fires at idleTimeout of inactivity.
func (m *Manager) onLogoutTimer() {
	m.mu.Lock()

	next := Transition(m.state, EventLogoutTimer)
	if next == m.state {
		m.mu.Unlock()
		return
	}
	m.setStateLocked(next)
	m.stopTimersLocked()
	m.modal = ModalState{IsOpen: true, Type: ModalIdle, Dismissible: false}
	started := m.startedAt
	m.mu.Unlock()

	m.metrics.RecordSessionEnded("idle_expired", m.now().Sub(started))
}

// armTimersLocked cancels and reschedules both timers together so the
// warning/logout offset can never drift. Caller must hold m.mu.
func (m *Manager) armTimersLocked() {
	m.stopTimersLocked()
	m.warningTimer = time.AfterFunc(m.idleTimeout-m.warnBefore, m.onWarningTimer)
	m.logoutTimer = time.AfterFunc(m.idleTimeout, m.onLogoutTimer)
}

// stopTimersLocked cancels both timers. Caller must hold m.mu.
func (m *Manager) stopTimersLocked() {
	if m.warningTimer != nil {
		m.warningTimer.Stop()
		m.warningTimer = nil
	}
	if m.logoutTimer != nil {
		m.logoutTimer.Stop()
		m.logoutTimer = nil
	}
}

// setStateLocked updates the state and records the transition. Caller must
// hold m.mu.
func (m *Manager) setStateLocked(next State) {
	if next == m.state {
		return
	}
	m.state = next
	m.metrics.RecordManagerTransition(next.String())
}
