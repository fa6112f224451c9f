package token

import "errors"

var (
	// ErrSessionInvalid indicates the token can never recover and the
	// session must be re-established via a full login
	ErrSessionInvalid = errors.New("session invalid")

	// ErrExpiredGrant indicates the identity provider rejected the refresh
	// token itself (OAuth2 invalid_grant)
	ErrExpiredGrant = errors.New("refresh token grant expired")

	// ErrAttemptsExhausted indicates the refresh attempt budget is spent
	ErrAttemptsExhausted = errors.New("refresh attempts exhausted")

	// ErrTokenTooOld indicates the token expired longer ago than the
	// maximum token age allows
	ErrTokenTooOld = errors.New("token too old to refresh")

	// ErrNoRefreshToken indicates no refresh token is available
	ErrNoRefreshToken = errors.New("no refresh token available")

	// ErrProviderConnection indicates a transport-level failure reaching
	// the identity provider (retryable)
	ErrProviderConnection = errors.New("failed to connect to identity provider")

	// ErrProviderRejected indicates the identity provider returned a
	// non-2xx response that is not an expired grant
	ErrProviderRejected = errors.New("identity provider rejected request")

	// ErrProviderInvalidResp indicates an unparseable response from the
	// identity provider
	ErrProviderInvalidResp = errors.New("invalid response from identity provider")
)
