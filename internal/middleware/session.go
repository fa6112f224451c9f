package middleware

import (
	"errors"
	"net/http"

	"github.com/go-sessiond/sessiond/internal/lifecycle"
	"github.com/go-sessiond/sessiond/internal/store"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// Cookie session keys
const (
	SessionID     = "session_id"
	SessionSecret = "session_secret"
)

// Context keys set for downstream handlers
const (
	ContextToken     = "token"
	ContextSessionID = "current_session_id"
)

// RevalidateHeader marks an explicit client-driven session re-read: the
// lifecycle passes the token through untouched instead of refreshing.
const RevalidateHeader = "X-Session-Revalidate"

// FatalNotifier receives terminal token failures so the session manager can
// flip to the hard-expired state.
type FatalNotifier interface {
	NotifyFatal()
}

// TokenLifecycle returns the middleware that runs the token lifecycle
// callback on every authenticated request. The cookie session carries only
// the session id and an opaque secret; the token itself never leaves the
// server-side store.
func TokenLifecycle(
	st *store.Store,
	callback *lifecycle.Callback,
	notifier FatalNotifier,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie := sessions.Default(c)
		id, _ := cookie.Get(SessionID).(string)
		secret, _ := cookie.Get(SessionSecret).(string)

		if id == "" || secret == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "no_session"})
			c.Abort()
			return
		}

		record, err := st.GetSession(id, secret)
		if err != nil {
			clearCookie(cookie)
			status := http.StatusUnauthorized
			reason := "invalid_session"
			if errors.Is(err, store.ErrSessionStale) {
				reason = "session_expired"
			}
			c.JSON(status, gin.H{"error": reason})
			c.Abort()
			return
		}

		trigger := lifecycle.TriggerRequest
		if c.GetHeader(RevalidateHeader) != "" {
			trigger = lifecycle.TriggerRevalidate
		}

		prev := record.Token()
		tok, err := callback.Handle(c.Request.Context(), lifecycle.Event{
			Trigger: trigger,
			Token:   prev,
		})
		if err != nil {
			// Terminal: the session must be invalidated entirely, not
			// merely marked.
			_ = st.DeleteSession(id)
			clearCookie(cookie)
			if notifier != nil {
				notifier.NotifyFatal()
			}
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":             "session_invalid",
				"error_description": err.Error(),
			})
			c.Abort()
			return
		}

		if tok != prev {
			if err := st.UpdateToken(id, tok); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "session_store_failure"})
				c.Abort()
				return
			}
		}

		c.Set(ContextToken, tok)
		c.Set(ContextSessionID, id)
		c.Next()
	}
}

func clearCookie(cookie sessions.Session) {
	cookie.Delete(SessionID)
	cookie.Delete(SessionSecret)
	_ = cookie.Save()
}
