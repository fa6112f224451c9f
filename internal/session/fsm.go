package session

// State is the session manager's finite-state-machine state.
type State int

const (
	// StateNormal is an active session with no pending warnings.
	StateNormal State = iota

	// StateWarning means the warning timer fired; the user may extend or
	// ignore it.
	StateWarning

	// StateIdleExpired means the logout timer fired with the warning
	// unresolved. Only a completed re-authentication leaves this state.
	StateIdleExpired

	// StateHardExpired means the token refresh reported a terminal error.
	// Only a completed re-authentication leaves this state.
	StateHardExpired
)

func (s State) String() string {
	switch s {
	case StateNormal:
		return "normal"
	case StateWarning:
		return "warning"
	case StateIdleExpired:
		return "idle_expired"
	case StateHardExpired:
		return "hard_expired"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state can only be left via re-authentication.
func (s State) Terminal() bool {
	return s == StateIdleExpired || s == StateHardExpired
}

// Event is an input to the state machine.
type Event int

const (
	// EventActivity is a qualifying user input event.
	EventActivity Event = iota

	// EventWarningTimer is the warning timer firing.
	EventWarningTimer

	// EventLogoutTimer is the logout timer firing.
	EventLogoutTimer

	// EventRefreshSucceeded is a silent refresh completing successfully.
	EventRefreshSucceeded

	// EventRefreshFatal is the token lifecycle reporting a terminal error.
	EventRefreshFatal

	// EventReauthenticated is a completed full re-authentication.
	EventReauthenticated
)

// Transition is the pure state function: given the current state and an
// event it returns the next state. Timer scheduling and modal rendering are
// side effects that live in Manager, keeping this independently testable.
func Transition(s State, ev Event) State {
	switch ev {
	case EventActivity:
		if s == StateNormal || s == StateWarning {
			return StateNormal
		}
		return s

	case EventWarningTimer:
		if s == StateNormal {
			return StateWarning
		}
		return s

	case EventLogoutTimer:
		if s == StateNormal || s == StateWarning {
			return StateIdleExpired
		}
		return s

	case EventRefreshSucceeded:
		if s == StateWarning {
			return StateNormal
		}
		return s

	case EventRefreshFatal:
		// Terminal states are sticky; a fatal refresh cannot downgrade an
		// idle expiry that already happened.
		if s.Terminal() {
			return s
		}
		return StateHardExpired

	case EventReauthenticated:
		return StateNormal

	default:
		return s
	}
}
