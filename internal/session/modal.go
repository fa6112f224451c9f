package session

import "context"

// ModalType identifies which session modal is showing.
type ModalType string

const (
	ModalExpired ModalType = "expired"
	ModalWarning ModalType = "warning"
	ModalIdle    ModalType = "idle"
)

// ModalState is the rendered modal contract. Expired and idle modals are
// not dismissible: no close control is offered, only logout or a full
// re-authentication.
type ModalState struct {
	IsOpen      bool      `json:"is_open"`
	Type        ModalType `json:"type,omitempty"`
	MinutesLeft int       `json:"minutes_left,omitempty"`
	Dismissible bool      `json:"dismissible"`
}

// Modal is the single imperative surface collaborators use to drive the
// session UI. Collaborators must not bypass it to manipulate timers.
type Modal interface {
	ShowExpired()
	ShowWarning(minutesLeft int)
	HideWarning()
	RefreshSession(ctx context.Context) bool
	Logout(ctx context.Context)
	Render() ModalState
}
