package bootstrap

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/go-sessiond/sessiond/internal/activity"
	"github.com/go-sessiond/sessiond/internal/cache"
	"github.com/go-sessiond/sessiond/internal/config"
	"github.com/go-sessiond/sessiond/internal/core"
	"github.com/go-sessiond/sessiond/internal/handlers"
	"github.com/go-sessiond/sessiond/internal/idp"
	"github.com/go-sessiond/sessiond/internal/lifecycle"
	"github.com/go-sessiond/sessiond/internal/metrics"
	"github.com/go-sessiond/sessiond/internal/refresh"
	"github.com/go-sessiond/sessiond/internal/session"
	"github.com/go-sessiond/sessiond/internal/store"
	"github.com/go-sessiond/sessiond/internal/token"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Application holds all initialized components.
type Application struct {
	Config *config.Config

	// Core infrastructure
	DB                   *store.Store
	MetricsRecorder      metrics.Recorder
	ViewCache            core.Cache[lifecycle.SessionView]
	RateLimitRedisClient *redis.Client

	// Token lifecycle
	Provider  core.Provider
	Validator *token.Validator
	Tracker   *refresh.Tracker
	Refresher *refresh.Refresher
	Callback  *lifecycle.Callback

	// Session state
	Current  *session.Current
	Activity *activity.Tracker
	Manager  *session.Manager
	Monitor  *session.Monitor

	// HTTP
	HandlerSet handlerSet
	Router     *gin.Engine
	Server     *http.Server
}

type handlerSet struct {
	Session *handlers.SessionHandler
	Health  *handlers.HealthHandler
}

// Run initializes and starts the application.
func Run(cfg *config.Config) error {
	app := &Application{Config: cfg}

	// Phase 1: Initialize infrastructure
	if err := app.initializeInfrastructure(); err != nil {
		return err
	}

	// Phase 2: Initialize the token lifecycle layer
	if err := app.initializeLifecycleLayer(); err != nil {
		return err
	}

	// Phase 3: Initialize the session state layer
	app.initializeSessionLayer()

	// Phase 4: Initialize HTTP layer
	if err := app.initializeHTTPLayer(); err != nil {
		return err
	}

	// Phase 5: Start server with graceful shutdown
	app.startWithGracefulShutdown()

	return nil
}

// initializeInfrastructure sets up the database, metrics, view cache, and
// Redis.
func (app *Application) initializeInfrastructure() error {
	var err error

	app.DB, err = initializeDatabase(app.Config)
	if err != nil {
		return err
	}

	app.MetricsRecorder = metrics.Init(app.Config.MetricsEnabled)

	viewCache, err := initializeViewCache(app.Config)
	if err != nil {
		return err
	}
	app.ViewCache = cache.NewInstrumented(viewCache, app.MetricsRecorder, "view")

	app.RateLimitRedisClient, err = initializeRateLimitRedisClient(app.Config)
	if err != nil {
		return err
	}

	return nil
}

// initializeLifecycleLayer sets up token validation and refresh.
func (app *Application) initializeLifecycleLayer() error {
	provider, err := idp.New(app.Config)
	if err != nil {
		return err
	}
	app.Provider = provider

	app.Validator = token.NewValidator(
		app.Config.RefreshBuffer,
		app.Config.MaxTokenAge,
		app.Config.MaxRefreshAttempts,
	)
	app.Tracker = refresh.NewTracker(app.Config.MinRefreshInterval)
	app.Refresher = refresh.NewRefresher(
		app.Provider,
		app.Tracker,
		app.Validator,
		app.MetricsRecorder,
		app.Config.MaxRefreshAttempts,
	)
	app.Callback = lifecycle.NewCallback(app.Refresher, app.Validator, app.MetricsRecorder)

	return nil
}

// initializeSessionLayer sets up activity tracking, the session manager,
// and the expiry monitor for the daemon's interactive session.
func (app *Application) initializeSessionLayer() {
	app.Current = session.NewCurrent()

	app.Activity = activity.NewTracker(app.Config.ActivityTimeout, func(idle bool) {
		if idle {
			log.Printf("User went idle")
		} else {
			log.Printf("User active again")
		}
	})

	app.Manager = session.NewManager(
		app.Config.IdleTimeout,
		app.Config.WarningBeforeLogout,
		app.refreshCurrentSession,
		app.logoutCurrentSession,
		app.MetricsRecorder,
	)

	app.Monitor = session.NewMonitor(
		session.MonitorConfig{
			Interval:         app.Config.MonitorInterval,
			WarningThreshold: app.Config.WarningBeforeLogout,
			GracePeriod:      app.Config.LoginGracePeriod,
			AutoRefresh:      app.Config.AutoRefresh,
		},
		app.currentSessionToken,
		app.Activity,
		app.refreshCurrentSession,
		app.Manager.ShowWarning,
		app.Manager.NotifyFatal,
	)
}

// initializeHTTPLayer sets up handlers, the router, and the server.
func (app *Application) initializeHTTPLayer() error {
	app.HandlerSet = handlerSet{
		Session: handlers.NewSessionHandler(
			app.DB,
			app.Callback,
			app.Validator,
			app.Manager,
			app.Current,
			app.Activity,
			app.ViewCache,
		),
		Health: handlers.NewHealthHandler(app.DB, app.ViewCache),
	}

	router, err := setupRouter(
		app.Config,
		app.DB,
		app.HandlerSet,
		app.Callback,
		app.Manager,
		app.MetricsRecorder,
		app.RateLimitRedisClient,
	)
	if err != nil {
		return err
	}
	app.Router = router
	app.Server = createHTTPServer(app.Config, app.Router)

	return nil
}

// currentSessionToken is the monitor's token source: the token snapshot of
// the daemon's interactive session, or nil when nobody is signed in.
func (app *Application) currentSessionToken(ctx context.Context) *token.Token {
	id, secret, ok := app.Current.Get()
	if !ok {
		return nil
	}
	record, err := app.DB.GetSession(id, secret)
	if err != nil {
		return nil
	}
	return record.Token()
}

// refreshCurrentSession performs a silent refresh of the interactive
// session and persists the outcome. Used by both the auto-refresh track of
// the monitor and the "extend session" action of the warning modal.
func (app *Application) refreshCurrentSession(ctx context.Context) error {
	id, secret, ok := app.Current.Get()
	if !ok {
		return token.ErrSessionInvalid
	}

	record, err := app.DB.GetSession(id, secret)
	if err != nil {
		app.Current.Clear()
		return err
	}

	tok, err := app.Refresher.Refresh(ctx, record.Token())
	if err != nil {
		// Terminal failure: the stored session is no longer usable.
		_ = app.DB.DeleteSession(id)
		app.Current.Clear()
		_ = app.ViewCache.Delete(ctx, lifecycle.ViewCacheKey(id))
		return err
	}

	if updateErr := app.DB.UpdateToken(id, tok); updateErr != nil {
		return updateErr
	}
	_ = app.ViewCache.Delete(ctx, lifecycle.ViewCacheKey(id))

	if tok.HasError() {
		return fmt.Errorf("refresh incomplete after %d attempts", tok.RefreshAttempts)
	}
	return nil
}

// logoutCurrentSession tears down the interactive session's server-side
// state and notifies the identity provider on a best-effort basis.
func (app *Application) logoutCurrentSession(ctx context.Context) {
	id, secret, ok := app.Current.Get()
	if !ok {
		return
	}

	if record, err := app.DB.GetSession(id, secret); err == nil {
		app.Provider.Logout(ctx, record.IDToken)
	}
	_ = app.DB.DeleteSession(id)
	_ = app.ViewCache.Delete(ctx, lifecycle.ViewCacheKey(id))
	app.Current.Clear()
}
