package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const (
	testRefreshBuffer = 60 * time.Second
	testMaxTokenAge   = 24 * time.Hour
	testMaxAttempts   = 3
)

func testValidator(now time.Time) *Validator {
	return NewValidator(testRefreshBuffer, testMaxTokenAge, testMaxAttempts).
		WithClock(func() time.Time { return now })
}

func TestShouldRefresh_BufferBoundary(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	v := testValidator(now)

	tests := []struct {
		name      string
		expiresAt int64
		want      bool
	}{
		{"well before buffer", now.Add(5 * time.Minute).Unix(), false},
		{"one second outside buffer", now.Add(61 * time.Second).Unix(), false},
		{"exactly at buffer", now.Add(60 * time.Second).Unix(), true},
		{"inside buffer", now.Add(30 * time.Second).Unix(), true},
		{"already expired", now.Add(-time.Minute).Unix(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok := &Token{UserID: "u1", RefreshToken: "rt", ExpiresAt: tt.expiresAt}
			assert.Equal(t, tt.want, v.ShouldRefresh(tok))
		})
	}
}

func TestShouldRefresh_Exclusions(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	v := testValidator(now)
	expired := now.Add(-time.Minute).Unix()

	tests := []struct {
		name string
		tok  *Token
	}{
		{"no expiry timestamp", &Token{UserID: "u1", RefreshToken: "rt"}},
		{"marked for signout", &Token{UserID: "u1", RefreshToken: "rt", ExpiresAt: expired, ShouldSignOut: true}},
		{"carrying refresh error", &Token{UserID: "u1", RefreshToken: "rt", ExpiresAt: expired, Error: RefreshError, RefreshAttempts: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, v.ShouldRefresh(tt.tok))
		})
	}
}

func TestIsMarkedForSignout(t *testing.T) {
	v := testValidator(time.Now())

	tests := []struct {
		name string
		tok  *Token
		want bool
	}{
		{"clean token", &Token{UserID: "u1"}, false},
		{"explicit flag", &Token{UserID: "u1", ShouldSignOut: true}, true},
		{"error below budget", &Token{UserID: "u1", Error: RefreshError, RefreshAttempts: 2}, false},
		{"error at budget", &Token{UserID: "u1", Error: RefreshError, RefreshAttempts: 3}, true},
		{"error over budget", &Token{UserID: "u1", Error: RefreshError, RefreshAttempts: 5}, true},
		{"attempts without error marker", &Token{UserID: "u1", RefreshAttempts: 5}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, v.IsMarkedForSignout(tt.tok))
		})
	}
}

func TestIsTooOld(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	v := testValidator(now)

	tests := []struct {
		name      string
		expiresAt int64
		want      bool
	}{
		{"no expiry", 0, false},
		{"live token", now.Add(time.Hour).Unix(), false},
		{"expired within max age", now.Add(-23 * time.Hour).Unix(), false},
		{"expired exactly at max age", now.Add(-24 * time.Hour).Unix(), false},
		{"expired past max age", now.Add(-25 * time.Hour).Unix(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, v.IsTooOld(&Token{UserID: "u1", ExpiresAt: tt.expiresAt}))
		})
	}
}

func TestValidate_Ordering(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	v := testValidator(now)

	// A token that is both marked for signout and ancient must surface the
	// signout reason, not the age.
	tok := &Token{
		UserID:        "u1",
		RefreshToken:  "rt",
		ExpiresAt:     now.Add(-48 * time.Hour).Unix(),
		ShouldSignOut: true,
	}
	verdict := v.Validate(tok)
	assert.False(t, verdict.IsValid)
	assert.Equal(t, ReasonSignedOut, verdict.Reason)

	// Too old beats the missing refresh token.
	tok = &Token{UserID: "u1", ExpiresAt: now.Add(-48 * time.Hour).Unix()}
	verdict = v.Validate(tok)
	assert.False(t, verdict.IsValid)
	assert.Equal(t, ReasonTooOld, verdict.Reason)

	// Missing refresh token on an otherwise healthy token.
	tok = &Token{UserID: "u1", ExpiresAt: now.Add(time.Hour).Unix()}
	verdict = v.Validate(tok)
	assert.False(t, verdict.IsValid)
	assert.Equal(t, ReasonNoRefreshToken, verdict.Reason)

	// Inside the buffer: valid but flagged for refresh.
	tok = &Token{UserID: "u1", RefreshToken: "rt", ExpiresAt: now.Add(30 * time.Second).Unix()}
	verdict = v.Validate(tok)
	assert.True(t, verdict.IsValid)
	assert.True(t, verdict.ShouldRefresh)
	assert.Equal(t, ReasonNeedsRefresh, verdict.Reason)

	// Healthy token.
	tok = &Token{UserID: "u1", RefreshToken: "rt", ExpiresAt: now.Add(time.Hour).Unix()}
	verdict = v.Validate(tok)
	assert.True(t, verdict.IsValid)
	assert.False(t, verdict.ShouldRefresh)
	assert.Equal(t, ReasonOK, verdict.Reason)
}

func TestExpiresIn(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tok := &Token{ExpiresAt: now.Add(90 * time.Second).Unix()}
	assert.Equal(t, 90*time.Second, tok.ExpiresIn(now))

	tok = &Token{ExpiresAt: now.Add(-time.Minute).Unix()}
	assert.Negative(t, int64(tok.ExpiresIn(now)))
}
