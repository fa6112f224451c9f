package bootstrap

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-sessiond/sessiond/internal/activity"
	"github.com/go-sessiond/sessiond/internal/config"
	"github.com/go-sessiond/sessiond/internal/core"
	"github.com/go-sessiond/sessiond/internal/lifecycle"
	"github.com/go-sessiond/sessiond/internal/metrics"
	"github.com/go-sessiond/sessiond/internal/session"
	"github.com/go-sessiond/sessiond/internal/store"

	"github.com/appleboy/graceful"
	"github.com/redis/go-redis/v9"
)

// createHTTPServer creates the HTTP server instance.
func createHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// startWithGracefulShutdown starts the server and background jobs, then
// blocks until shutdown completes.
func (app *Application) startWithGracefulShutdown() {
	m := graceful.NewManager()

	addServerRunningJob(m, app.Server)
	addServerShutdownJob(m, app.Server)
	addMonitorJob(m, app.Monitor)
	addStaleSessionCleanupJob(m, app.Config, app.DB)
	addSessionsGaugeJob(m, app.DB, app.MetricsRecorder)
	addSessionStateShutdownJob(m, app.Manager, app.Activity)
	addViewCacheShutdownJob(m, app.ViewCache)
	addRedisClientShutdownJob(m, app.RateLimitRedisClient)

	<-m.Done()
}

// addServerRunningJob adds the HTTP server running job.
func addServerRunningJob(m *graceful.Manager, srv *http.Server) {
	m.AddRunningJob(func(ctx context.Context) error {
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Failed to start server: %v", err)
			}
		}()
		<-ctx.Done()
		return nil
	})
}

// addServerShutdownJob adds the HTTP server shutdown handler.
func addServerShutdownJob(m *graceful.Manager, srv *http.Server) {
	m.AddShutdownJob(func() error {
		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server forced to shutdown: %v", err)
			return err
		}

		log.Println("Server exited")
		return nil
	})
}

// addMonitorJob runs the session expiry monitor for the process lifetime.
func addMonitorJob(m *graceful.Manager, monitor *session.Monitor) {
	m.AddRunningJob(func(ctx context.Context) error {
		if err := monitor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
}

// addStaleSessionCleanupJob periodically deletes session rows whose tokens
// expired past the maximum age. Runs hourly with an immediate first pass.
func addStaleSessionCleanupJob(m *graceful.Manager, cfg *config.Config, db *store.Store) {
	m.AddRunningJob(func(ctx context.Context) error {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()

		cleanup := func() {
			if deleted, err := db.DeleteStale(); err != nil {
				log.Printf("Failed to delete stale sessions: %v", err)
			} else if deleted > 0 {
				log.Printf("Deleted %d stale sessions", deleted)
			}
		}
		cleanup()

		for {
			select {
			case <-ticker.C:
				cleanup()
			case <-ctx.Done():
				return nil
			}
		}
	})
}

// addSessionsGaugeJob keeps the active sessions gauge in sync with the
// session store.
func addSessionsGaugeJob(m *graceful.Manager, db *store.Store, recorder metrics.Recorder) {
	m.AddRunningJob(func(ctx context.Context) error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()

		update := func() {
			count, err := db.CountActive()
			if err != nil {
				recorder.RecordDatabaseQueryError("count_active")
				log.Printf("Failed to count active sessions: %v", err)
				return
			}
			recorder.SetActiveSessionsCount(int(count))
		}
		update()

		for {
			select {
			case <-ticker.C:
				update()
			case <-ctx.Done():
				return nil
			}
		}
	})
}

// addSessionStateShutdownJob disarms the session timers on shutdown.
func addSessionStateShutdownJob(
	m *graceful.Manager,
	manager *session.Manager,
	tracker *activity.Tracker,
) {
	m.AddShutdownJob(func() error {
		manager.Stop()
		tracker.Stop()
		return nil
	})
}

// addViewCacheShutdownJob closes the view cache on shutdown.
func addViewCacheShutdownJob(m *graceful.Manager, cache core.Cache[lifecycle.SessionView]) {
	if cache == nil {
		return
	}

	m.AddShutdownJob(func() error {
		if err := cache.Close(); err != nil {
			log.Printf("Error closing view cache: %v", err)
		} else {
			log.Println("View cache closed")
		}
		return nil
	})
}

// addRedisClientShutdownJob adds the Redis client shutdown handler.
func addRedisClientShutdownJob(m *graceful.Manager, redisClient *redis.Client) {
	if redisClient == nil {
		return
	}

	m.AddShutdownJob(func() error {
		log.Println("Closing Redis connection...")
		if err := redisClient.Close(); err != nil {
			log.Printf("Error closing Redis client: %v", err)
			return err
		}
		log.Println("Redis connection closed")
		return nil
	})
}
