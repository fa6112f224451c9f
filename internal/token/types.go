package token

import "time"

// RefreshError is the only error marker a Token carries. Finer-grained
// classification (terminal vs retryable) happens at refresh time; a token
// that still holds this marker is awaiting an opportunistic retry.
const RefreshError = "RefreshTokenError"

// Token is the per-user credential snapshot the lifecycle callback mutates
// on every request. Timestamps are epoch seconds to survive round trips
// through the session store and the introspection API unchanged.
type Token struct {
	UserID          string `json:"user_id"`
	AccessToken     string `json:"access_token"`
	RefreshToken    string `json:"refresh_token,omitempty"`
	IDToken         string `json:"id_token,omitempty"`
	ExpiresAt       int64  `json:"expires_at"` // epoch seconds
	Error           string `json:"error,omitempty"`
	ShouldSignOut   bool   `json:"should_sign_out,omitempty"`
	RefreshAttempts int    `json:"refresh_attempts,omitempty"`
	LastRefreshAt   int64  `json:"last_refresh_at,omitempty"` // epoch seconds
}

// HasError returns true if the token carries a refresh error marker.
func (t *Token) HasError() bool {
	return t.Error != ""
}

// ExpiresIn returns the remaining lifetime of the access token relative to now.
// Negative values mean the token is already expired.
func (t *Token) ExpiresIn(now time.Time) time.Duration {
	return time.Unix(t.ExpiresAt, 0).Sub(now)
}

// Result is the validator's composite verdict for a token snapshot.
type Result struct {
	IsValid       bool
	ShouldRefresh bool
	Reason        string
}

// Validation reasons
const (
	ReasonOK             = "ok"
	ReasonSignedOut      = "marked_for_signout"
	ReasonTooOld         = "too_old"
	ReasonNoRefreshToken = "no_refresh_token"
	ReasonNeedsRefresh   = "needs_refresh"
)
