package models

import (
	"time"

	"github.com/go-sessiond/sessiond/internal/token"
)

// Session is the server-side session record: one row per signed-in browser
// session, holding the token snapshot the lifecycle callback mutates. The
// browser only ever holds the session id and an opaque secret; the secret
// is stored as a salted PBKDF2 hash.
type Session struct {
	ID         string `gorm:"primaryKey"`
	SecretSalt string `gorm:"not null"`
	SecretHash string `gorm:"not null"`

	UserID          string `gorm:"not null;index"`
	AccessToken     string `gorm:"not null"`
	RefreshToken    string
	IDToken         string
	ExpiresAt       int64
	TokenError      string
	ShouldSignOut   bool
	RefreshAttempts int
	LastRefreshAt   int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Token reconstructs the token snapshot from the record.
func (s *Session) Token() *token.Token {
	return &token.Token{
		UserID:          s.UserID,
		AccessToken:     s.AccessToken,
		RefreshToken:    s.RefreshToken,
		IDToken:         s.IDToken,
		ExpiresAt:       s.ExpiresAt,
		Error:           s.TokenError,
		ShouldSignOut:   s.ShouldSignOut,
		RefreshAttempts: s.RefreshAttempts,
		LastRefreshAt:   s.LastRefreshAt,
	}
}

// SetToken copies a token snapshot into the record.
func (s *Session) SetToken(t *token.Token) {
	s.UserID = t.UserID
	s.AccessToken = t.AccessToken
	s.RefreshToken = t.RefreshToken
	s.IDToken = t.IDToken
	s.ExpiresAt = t.ExpiresAt
	s.TokenError = t.Error
	s.ShouldSignOut = t.ShouldSignOut
	s.RefreshAttempts = t.RefreshAttempts
	s.LastRefreshAt = t.LastRefreshAt
}

// IsStale reports whether the session exceeded the maximum session age,
// regardless of token state.
func (s *Session) IsStale(maxAge time.Duration, now time.Time) bool {
	return now.Sub(s.CreatedAt) > maxAge
}
