package refresh

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-sessiond/sessiond/internal/core"
	"github.com/go-sessiond/sessiond/internal/metrics"
	"github.com/go-sessiond/sessiond/internal/token"
)

// Refresh attempt outcomes, used as metric labels
const (
	outcomeSuccess      = "success"
	outcomeRetryable    = "retryable"
	outcomeExpiredGrant = "expired_grant"
	outcomeExhausted    = "exhausted"
)

// Guard rejection reasons, used as metric labels
const (
	rejectSignedOut      = "signed_out"
	rejectNoUser         = "no_user"
	rejectTooOld         = "too_old"
	rejectNoRefreshToken = "no_refresh_token"
)

// Refresher performs token refreshes against the identity provider with
// per-user serialization and outcome classification.
//
// The contract mirrors the lifecycle callback's needs: a nil token with a
// terminal error means "invalidate the session"; a non-nil token carrying
// the RefreshError marker means "keep the session, the next request may
// retry". Retries are opportunistic: nothing here runs on a timer, the next
// inbound request that still satisfies ShouldRefresh triggers the retry.
type Refresher struct {
	provider  core.Provider
	tracker   *Tracker
	validator *token.Validator
	metrics   metrics.Recorder

	maxAttempts int
	now         func() time.Time
}

// NewRefresher creates a Refresher.
func NewRefresher(
	provider core.Provider,
	tracker *Tracker,
	validator *token.Validator,
	m metrics.Recorder,
	maxAttempts int,
) *Refresher {
	return &Refresher{
		provider:    provider,
		tracker:     tracker,
		validator:   validator,
		metrics:     m,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

// WithClock replaces the refresher's clock. Intended for tests.
func (r *Refresher) WithClock(now func() time.Time) *Refresher {
	r.now = now
	return r
}

// Refresh attempts one refresh for the given token snapshot.
//
// Terminal outcomes return (nil, err) where errors.Is(err,
// token.ErrSessionInvalid) holds; the caller must tear the session down.
// Retryable failures return the token annotated with the RefreshError
// marker and an incremented attempt count. Success returns a fresh token
// with the attempt count reset.
func (r *Refresher) Refresh(ctx context.Context, t *token.Token) (*token.Token, error) {
	// Guard checks reject without a network call.
	switch {
	case r.validator.IsMarkedForSignout(t):
		r.metrics.RecordRefreshRejected(rejectSignedOut)
		return nil, fmt.Errorf("%w: %v", token.ErrSessionInvalid, token.ErrAttemptsExhausted)
	case t.UserID == "":
		r.metrics.RecordRefreshRejected(rejectNoUser)
		return nil, fmt.Errorf("%w: token has no user id", token.ErrSessionInvalid)
	case r.validator.IsTooOld(t):
		r.metrics.RecordRefreshRejected(rejectTooOld)
		return nil, fmt.Errorf("%w: %v", token.ErrSessionInvalid, token.ErrTokenTooOld)
	case t.RefreshToken == "":
		r.metrics.RecordRefreshRejected(rejectNoRefreshToken)
		return nil, fmt.Errorf("%w: %v", token.ErrSessionInvalid, token.ErrNoRefreshToken)
	}

	handle, joined := r.tracker.BeginOrJoin(t.UserID)
	if joined {
		// Another request already holds the refresh for this user; adopt
		// its outcome instead of burning the refresh token twice.
		r.metrics.RecordRefreshDeduplicated()
		return handle.Await(ctx)
	}

	return r.doRefresh(ctx, t, handle)
}

// doRefresh owns the tracker entry: it performs the provider call,
// classifies the outcome, and settles the handle. The tracker entry is
// released on every path, including panics.
func (r *Refresher) doRefresh(
	ctx context.Context,
	t *token.Token,
	handle *Handle,
) (tok *token.Token, err error) {
	start := r.now()

	defer func() {
		r.tracker.Clear(t.UserID)
		if tok == nil && err == nil {
			// Abnormal exit, e.g. a provider panic unwinding through here.
			// Joined callers must never see a nil token with a nil error.
			err = fmt.Errorf("%w: refresh aborted", token.ErrSessionInvalid)
		}
		handle.settle(tok, err)
	}()

	attempts := t.RefreshAttempts + 1

	grant, callErr := r.provider.Refresh(ctx, t.RefreshToken)
	if callErr == nil {
		tok = r.buildToken(t, grant)
		r.metrics.RecordRefreshAttempt(outcomeSuccess, r.now().Sub(start))
		return tok, nil
	}

	switch {
	case errors.Is(callErr, token.ErrExpiredGrant):
		// The provider burned the grant; retrying can never succeed.
		r.metrics.RecordRefreshAttempt(outcomeExpiredGrant, r.now().Sub(start))
		log.Printf("refresh: expired grant for user %s: %v", t.UserID, callErr)
		return nil, fmt.Errorf("%w: %v", token.ErrSessionInvalid, callErr)

	case attempts >= r.maxAttempts:
		// Even a transient failure ends the session once the budget is
		// spent; an abandoned session must not retry forever.
		r.metrics.RecordRefreshAttempt(outcomeExhausted, r.now().Sub(start))
		log.Printf("refresh: attempts exhausted for user %s: %v", t.UserID, callErr)
		return nil, fmt.Errorf("%w: %v", token.ErrSessionInvalid, token.ErrAttemptsExhausted)

	default:
		r.metrics.RecordRefreshAttempt(outcomeRetryable, r.now().Sub(start))
		log.Printf("refresh: retryable failure for user %s (attempt %d/%d): %v",
			t.UserID, attempts, r.maxAttempts, callErr)
		annotated := *t
		annotated.Error = token.RefreshError
		annotated.ShouldSignOut = false
		annotated.RefreshAttempts = attempts
		return &annotated, nil
	}
}

// buildToken assembles the post-refresh token snapshot. The provider may or
// may not rotate the refresh token; keep the old one when it does not.
func (r *Refresher) buildToken(prev *token.Token, grant *core.Grant) *token.Token {
	now := r.now()

	refreshToken := grant.RefreshToken
	if refreshToken == "" {
		refreshToken = prev.RefreshToken
	}
	idToken := grant.IDToken
	if idToken == "" {
		idToken = prev.IDToken
	}

	return &token.Token{
		UserID:          prev.UserID,
		AccessToken:     grant.AccessToken,
		RefreshToken:    refreshToken,
		IDToken:         idToken,
		ExpiresAt:       now.Add(time.Duration(grant.ExpiresIn) * time.Second).Unix(),
		RefreshAttempts: 0,
		LastRefreshAt:   now.Unix(),
	}
}
