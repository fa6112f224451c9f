package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-sessiond/sessiond/internal/activity"
	"github.com/go-sessiond/sessiond/internal/core"
	"github.com/go-sessiond/sessiond/internal/lifecycle"
	"github.com/go-sessiond/sessiond/internal/middleware"
	"github.com/go-sessiond/sessiond/internal/session"
	"github.com/go-sessiond/sessiond/internal/store"
	"github.com/go-sessiond/sessiond/internal/token"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// viewCacheTTL bounds how stale an introspection read may be.
const viewCacheTTL = 30 * time.Second

type SessionHandler struct {
	store     *store.Store
	callback  *lifecycle.Callback
	validator *token.Validator
	manager   *session.Manager
	current   *session.Current
	tracker   *activity.Tracker
	viewCache core.Cache[lifecycle.SessionView]
}

func NewSessionHandler(
	st *store.Store,
	callback *lifecycle.Callback,
	validator *token.Validator,
	manager *session.Manager,
	current *session.Current,
	tracker *activity.Tracker,
	viewCache core.Cache[lifecycle.SessionView],
) *SessionHandler {
	return &SessionHandler{
		store:     st,
		callback:  callback,
		validator: validator,
		manager:   manager,
		current:   current,
		tracker:   tracker,
		viewCache: viewCache,
	}
}

// SignInRequest is the identity-provider exchange result the login flow
// hands to sessiond to establish a session.
type SignInRequest struct {
	UserID       string `json:"user_id" binding:"required"`
	AccessToken  string `json:"access_token" binding:"required"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token"`
	ExpiresIn    int    `json:"expires_in" binding:"required"`
	TokenType    string `json:"token_type"`
}

// Create establishes a session from a completed login exchange.
//
// POST /session
func (h *SessionHandler) Create(c *gin.Context) {
	var req SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": err.Error(),
		})
		return
	}

	tok, err := h.callback.Handle(c.Request.Context(), lifecycle.Event{
		Trigger: lifecycle.TriggerSignIn,
		UserID:  req.UserID,
		Grant: &core.Grant{
			AccessToken:  req.AccessToken,
			RefreshToken: req.RefreshToken,
			IDToken:      req.IDToken,
			ExpiresIn:    req.ExpiresIn,
			TokenType:    req.TokenType,
		},
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session_create_failure"})
		return
	}

	id, secret, err := h.store.CreateSession(tok)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session_store_failure"})
		return
	}

	cookie := sessions.Default(c)
	cookie.Set(middleware.SessionID, id)
	cookie.Set(middleware.SessionSecret, secret)
	if err := cookie.Save(); err != nil {
		_ = h.store.DeleteSession(id)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cookie_failure"})
		return
	}

	h.current.Set(id, secret)
	h.tracker.Start()
	h.tracker.Touch()
	// Re-authentication is the only exit from a terminal manager state;
	// for a first login this is equivalent to starting fresh.
	h.manager.Reauthenticated()
	_ = h.viewCache.Delete(c.Request.Context(), lifecycle.ViewCacheKey(id))

	c.JSON(http.StatusCreated, lifecycle.NewSessionView(tok))
}

// Get returns the derived session view, or an error envelope when the
// token is fatally invalid. Runs behind the token lifecycle middleware.
//
// GET /session
func (h *SessionHandler) Get(c *gin.Context) {
	tok := mustToken(c)
	id := c.GetString(middleware.ContextSessionID)

	if verdict := h.validator.Validate(tok); !verdict.IsValid {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":             "session_invalid",
			"error_description": verdict.Reason,
		})
		return
	}

	view, err := h.viewCache.GetWithFetch(
		c.Request.Context(),
		lifecycle.ViewCacheKey(id),
		viewCacheTTL,
		func(ctx context.Context, key string) (lifecycle.SessionView, error) {
			return *lifecycle.NewSessionView(tok), nil
		},
	)
	if err != nil {
		// Cache trouble must not break introspection; serve the direct view.
		view = *lifecycle.NewSessionView(tok)
	}

	c.JSON(http.StatusOK, view)
}

// Refresh is the "extend" action from the warning modal: a silent refresh
// that, on success, returns the manager to Normal with timers restarted.
//
// POST /session/refresh
func (h *SessionHandler) Refresh(c *gin.Context) {
	id, _, ok := h.current.Get()
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no_session"})
		return
	}

	refreshed := h.manager.RefreshSession(c.Request.Context())
	_ = h.viewCache.Delete(c.Request.Context(), lifecycle.ViewCacheKey(id))

	status := http.StatusOK
	if !refreshed {
		status = http.StatusUnauthorized
	}
	c.JSON(status, gin.H{
		"refreshed": refreshed,
		"modal":     h.manager.Render(),
	})
}

// Activity reports a qualifying user input event: the idle timer restarts
// and the manager's warning/logout timers are rescheduled together.
//
// POST /session/activity
func (h *SessionHandler) Activity(c *gin.Context) {
	h.tracker.Touch()
	h.manager.NotifyActivity()
	c.Status(http.StatusNoContent)
}

// Modal renders the current modal state for the client UI.
//
// GET /session/modal
func (h *SessionHandler) Modal(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"state": h.manager.State().String(),
		"modal": h.manager.Render(),
	})
}

// Logout tears the session down: local state, cookie, and a best-effort
// provider notification. This is the only legal exit from the expired and
// idle modals.
//
// POST /logout
func (h *SessionHandler) Logout(c *gin.Context) {
	if id, _, ok := h.current.Get(); ok {
		_ = h.viewCache.Delete(c.Request.Context(), lifecycle.ViewCacheKey(id))
	}
	h.manager.Logout(c.Request.Context())
	h.tracker.Stop()

	cookie := sessions.Default(c)
	cookie.Delete(middleware.SessionID)
	cookie.Delete(middleware.SessionSecret)
	_ = cookie.Save()

	c.Status(http.StatusNoContent)
}

// mustToken pulls the lifecycle token out of the request context. The
// lifecycle middleware guarantees it is present on routes that use it.
func mustToken(c *gin.Context) *token.Token {
	v, _ := c.Get(middleware.ContextToken)
	tok, _ := v.(*token.Token)
	return tok
}
