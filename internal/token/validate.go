package token

import (
	"time"
)

// Validator classifies token snapshots against the refresh policy. All
// methods are pure: they read the snapshot and the injected clock and never
// mutate anything. Every refresh decision in the process goes through here;
// no other component re-implements expiry math.
type Validator struct {
	refreshBuffer time.Duration
	maxAttempts   int
	maxTokenAge   time.Duration
	now           func() time.Time
}

// NewValidator creates a Validator with the given policy thresholds.
func NewValidator(refreshBuffer, maxTokenAge time.Duration, maxAttempts int) *Validator {
	return &Validator{
		refreshBuffer: refreshBuffer,
		maxAttempts:   maxAttempts,
		maxTokenAge:   maxTokenAge,
		now:           time.Now,
	}
}

// WithClock replaces the validator's clock. Intended for tests.
func (v *Validator) WithClock(now func() time.Time) *Validator {
	v.now = now
	return v
}

// IsMarkedForSignout reports whether the token is terminally dead: either
// explicitly flagged, or stuck in a refresh error with no attempts left.
func (v *Validator) IsMarkedForSignout(t *Token) bool {
	if t.ShouldSignOut {
		return true
	}
	return t.Error == RefreshError && t.RefreshAttempts >= v.maxAttempts
}

// IsTooOld reports whether the token expired longer ago than the maximum
// token age. Only meaningful for tokens that are already expired; a live
// token is never too old.
func (v *Validator) IsTooOld(t *Token) bool {
	if t.ExpiresAt == 0 {
		return false
	}
	return v.now().Sub(time.Unix(t.ExpiresAt, 0)) > v.maxTokenAge
}

// ShouldRefresh reports whether the token is inside the refresh buffer.
// Tokens with no expiry, already marked for signout, or already carrying a
// refresh error are excluded; error retries are driven by the lifecycle
// callback, not by expiry math.
func (v *Validator) ShouldRefresh(t *Token) bool {
	if t.ExpiresAt == 0 {
		return false
	}
	if v.IsMarkedForSignout(t) || t.HasError() {
		return false
	}
	return !v.now().Before(time.Unix(t.ExpiresAt, 0).Add(-v.refreshBuffer))
}

// Validate applies the checks in order and returns the composite verdict.
func (v *Validator) Validate(t *Token) Result {
	switch {
	case v.IsMarkedForSignout(t):
		return Result{IsValid: false, Reason: ReasonSignedOut}
	case v.IsTooOld(t):
		return Result{IsValid: false, Reason: ReasonTooOld}
	case t.RefreshToken == "":
		return Result{IsValid: false, Reason: ReasonNoRefreshToken}
	case v.ShouldRefresh(t):
		return Result{IsValid: true, ShouldRefresh: true, Reason: ReasonNeedsRefresh}
	default:
		return Result{IsValid: true, Reason: ReasonOK}
	}
}
