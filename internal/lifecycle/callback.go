package lifecycle

import (
	"context"
	"time"

	"github.com/go-sessiond/sessiond/internal/core"
	"github.com/go-sessiond/sessiond/internal/metrics"
	"github.com/go-sessiond/sessiond/internal/refresh"
	"github.com/go-sessiond/sessiond/internal/token"
)

// Trigger identifies what caused a lifecycle evaluation.
type Trigger string

const (
	// TriggerSignIn is a fresh login: the event carries the provider's
	// exchange grant and the token is built from scratch.
	TriggerSignIn Trigger = "signin"

	// TriggerRequest is an ordinary authenticated request.
	TriggerRequest Trigger = "request"

	// TriggerRevalidate is an explicit client-driven session re-read; no
	// forced refresh, the normal expiry check decides next cycle.
	TriggerRevalidate Trigger = "revalidate"
)

// Event is one lifecycle evaluation input.
type Event struct {
	Trigger Trigger
	Token   *token.Token // current token; nil only on sign-in
	Grant   *core.Grant  // provider exchange result; sign-in only
	UserID  string       // sign-in only
}

// Callback decides, on every authenticated request, what happens to the
// session's token: pass through, refresh, or invalidate. It is independent
// of any HTTP framework; the gin adapter lives in internal/middleware.
type Callback struct {
	refresher *refresh.Refresher
	validator *token.Validator
	metrics   metrics.Recorder
	now       func() time.Time
}

// NewCallback creates a lifecycle callback.
func NewCallback(
	r *refresh.Refresher,
	v *token.Validator,
	m metrics.Recorder,
) *Callback {
	return &Callback{
		refresher: r,
		validator: v,
		metrics:   m,
		now:       time.Now,
	}
}

// WithClock replaces the callback's clock. Intended for tests.
func (c *Callback) WithClock(now func() time.Time) *Callback {
	c.now = now
	return c
}

// Handle evaluates one event and returns the token to persist for
// subsequent requests. A nil token with a non-nil error means the session
// is fatally invalid and must be torn down, not merely marked.
//
// Decision order, first match wins:
//  1. fresh sign-in: build a new token from the exchange grant
//  2. marked for signout: pass through untouched, no further network calls
//  3. explicit revalidate: pass through untouched
//  4. inside the refresh buffer: delegate to the refresher
//  5. existing non-terminal error: retry via the refresher
//  6. otherwise: pass through
func (c *Callback) Handle(ctx context.Context, ev Event) (*token.Token, error) {
	if ev.Trigger == TriggerSignIn {
		return c.buildInitialToken(ev), nil
	}

	t := ev.Token
	if t == nil {
		return nil, token.ErrSessionInvalid
	}

	verdict := c.validator.Validate(t)
	c.metrics.RecordTokenValidation(verdict.Reason)

	switch {
	case c.validator.IsMarkedForSignout(t):
		// Terminal is sticky: the session layer must treat this token as
		// fatal, but the callback never mutates it further.
		return t, nil

	case ev.Trigger == TriggerRevalidate:
		return t, nil

	case c.validator.ShouldRefresh(t):
		return c.refresher.Refresh(ctx, t)

	case t.HasError():
		return c.refresher.Refresh(ctx, t)

	default:
		return t, nil
	}
}

// buildInitialToken constructs the token for a fresh sign-in.
func (c *Callback) buildInitialToken(ev Event) *token.Token {
	now := c.now()
	return &token.Token{
		UserID:          ev.UserID,
		AccessToken:     ev.Grant.AccessToken,
		RefreshToken:    ev.Grant.RefreshToken,
		IDToken:         ev.Grant.IDToken,
		ExpiresAt:       now.Add(time.Duration(ev.Grant.ExpiresIn) * time.Second).Unix(),
		RefreshAttempts: 0,
		LastRefreshAt:   now.Unix(),
	}
}
