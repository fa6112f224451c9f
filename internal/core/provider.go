package core

import "context"

// Grant is a successful token-endpoint exchange result.
type Grant struct {
	AccessToken  string
	RefreshToken string // empty when the provider does not rotate
	IDToken      string
	ExpiresIn    int // seconds
	TokenType    string
}

// Provider is the identity-provider client surface the refresher depends on.
// Implementations must map provider failures onto the token package's
// sentinel errors so callers can classify terminal vs retryable outcomes
// with errors.Is.
type Provider interface {
	// Refresh exchanges a refresh token for a fresh grant.
	Refresh(ctx context.Context, refreshToken string) (*Grant, error)

	// Logout notifies the provider that the session ended. Best effort:
	// implementations log and swallow failures.
	Logout(ctx context.Context, idTokenHint string)

	// Name returns the provider name for logging
	Name() string
}
