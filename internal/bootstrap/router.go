package bootstrap

import (
	"log"
	"net/http"

	"github.com/go-sessiond/sessiond/internal/config"
	"github.com/go-sessiond/sessiond/internal/lifecycle"
	"github.com/go-sessiond/sessiond/internal/metrics"
	"github.com/go-sessiond/sessiond/internal/middleware"
	"github.com/go-sessiond/sessiond/internal/session"
	"github.com/go-sessiond/sessiond/internal/store"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// ginModeMap maps production flag to Gin mode.
var ginModeMap = map[bool]string{
	true:  gin.ReleaseMode,
	false: gin.DebugMode,
}

// setupRouter configures the Gin router with all routes and middleware.
func setupRouter(
	cfg *config.Config,
	db *store.Store,
	h handlerSet,
	callback *lifecycle.Callback,
	manager *session.Manager,
	recorder metrics.Recorder,
	rateLimitRedisClient *redis.Client,
) (*gin.Engine, error) {
	gin.SetMode(ginModeMap[cfg.IsProduction])
	r := gin.New()

	r.Use(metrics.HTTPMetricsMiddleware(recorder))
	r.Use(gin.Logger(), gin.Recovery())

	setupSessionMiddleware(r, cfg)

	r.GET("/healthz", h.Health.Healthz)
	setupMetricsEndpoint(r, cfg)

	rateLimit, err := setupRateLimiting(cfg, rateLimitRedisClient)
	if err != nil {
		return nil, err
	}

	// Session establishment and modal-driven actions authenticate through
	// the daemon's own state, not the lifecycle middleware: the expired
	// modal must stay reachable after the stored session is gone.
	r.POST("/session", rateLimit, h.Session.Create)
	r.POST("/session/refresh", rateLimit, h.Session.Refresh)
	r.GET("/session/modal", h.Session.Modal)
	r.POST("/logout", h.Session.Logout)

	// Authenticated routes run the token lifecycle callback per request.
	auth := r.Group("/", middleware.TokenLifecycle(db, callback, manager))
	auth.GET("/session", h.Session.Get)
	auth.POST("/session/activity", h.Session.Activity)

	logServerStartup(cfg)

	return r, nil
}

// setupSessionMiddleware configures the cookie session middleware. The
// cookie carries only the session id and an opaque secret.
func setupSessionMiddleware(r *gin.Engine, cfg *config.Config) {
	sessionStore := cookie.NewStore([]byte(cfg.SessionSecret))
	sessionStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.SessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   cfg.IsProduction,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(cfg.SessionCookieName, sessionStore))
}

// setupMetricsEndpoint configures the Prometheus metrics endpoint.
func setupMetricsEndpoint(r *gin.Engine, cfg *config.Config) {
	if !cfg.MetricsEnabled {
		log.Printf("Prometheus metrics disabled")
		return
	}
	log.Printf("Prometheus metrics enabled at /metrics")
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// setupRateLimiting builds the rate limit middleware for the session
// endpoints, or a pass-through handler when disabled.
func setupRateLimiting(
	cfg *config.Config,
	redisClient *redis.Client,
) (gin.HandlerFunc, error) {
	if !cfg.RateLimitEnabled {
		return func(c *gin.Context) { c.Next() }, nil
	}

	storeType := middleware.RateLimitStoreMemory
	if cfg.RateLimitRedis {
		storeType = middleware.RateLimitStoreRedis
	}

	return middleware.NewRateLimiter(middleware.RateLimitConfig{
		Rate:        cfg.RateLimitRate,
		StoreType:   storeType,
		RedisClient: redisClient,
	})
}

// logServerStartup logs server startup information.
func logServerStartup(cfg *config.Config) {
	log.Printf("Starting server on %s", cfg.ServerAddr)
	log.Printf("Base URL: %s", cfg.BaseURL)
	if cfg.IssuerURL != "" {
		log.Printf("Identity provider: %s", cfg.IssuerURL)
	}
}
