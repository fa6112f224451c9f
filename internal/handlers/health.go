package handlers

import (
	"net/http"

	"github.com/go-sessiond/sessiond/internal/core"
	"github.com/go-sessiond/sessiond/internal/lifecycle"
	"github.com/go-sessiond/sessiond/internal/store"
	"github.com/go-sessiond/sessiond/internal/version"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	store *store.Store
	cache core.Cache[lifecycle.SessionView]
}

func NewHealthHandler(st *store.Store, cache core.Cache[lifecycle.SessionView]) *HealthHandler {
	return &HealthHandler{store: st, cache: cache}
}

// Healthz reports process health: database reachable, cache reachable.
//
// GET /healthz
func (h *HealthHandler) Healthz(c *gin.Context) {
	if _, err := h.store.CountActive(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "degraded",
			"reason": "database unavailable",
		})
		return
	}
	if err := h.cache.Health(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "degraded",
			"reason": "cache unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": version.App,
	})
}
