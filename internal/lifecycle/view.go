package lifecycle

import (
	"github.com/go-sessiond/sessiond/internal/token"
	"github.com/go-sessiond/sessiond/internal/util"
)

// SessionView is the derived session exposed to collaborators. It strips
// the ID token and internal bookkeeping; only what clients need survives.
type SessionView struct {
	UserID       string `json:"user_id"`
	Name         string `json:"name,omitempty"`
	Email        string `json:"email,omitempty"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresAt    int64  `json:"expires_at"`
	Error        string `json:"error,omitempty"`
}

// NewSessionView derives the client-facing session from a token snapshot.
// Profile claims come from the ID token when one is present; a malformed
// ID token degrades to an id-only view rather than failing the request.
func NewSessionView(t *token.Token) *SessionView {
	view := &SessionView{
		UserID:       t.UserID,
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    t.ExpiresAt,
		Error:        t.Error,
	}

	if t.IDToken != "" {
		if claims, err := token.ParseIDClaims(t.IDToken); err == nil {
			view.Name = claims.Name
			view.Email = claims.Email
			if view.UserID == "" {
				view.UserID = claims.Subject
			}
		}
	}

	return view
}

// ViewCacheKey derives the cache key for a session's view. Hashing keeps
// raw session ids out of shared cache backends.
func ViewCacheKey(sessionID string) string {
	return util.SHA256Hex(sessionID)
}
