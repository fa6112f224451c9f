package bootstrap

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-sessiond/sessiond/internal/cache"
	"github.com/go-sessiond/sessiond/internal/config"
	"github.com/go-sessiond/sessiond/internal/core"
	"github.com/go-sessiond/sessiond/internal/lifecycle"
)

// initializeViewCache selects the session view cache backend.
//
// The memory backend is the default and suits a single instance. The redis
// backend shares views across instances; rueidis-aside adds client-side
// caching with automatic invalidation on top of that.
func initializeViewCache(cfg *config.Config) (core.Cache[lifecycle.SessionView], error) {
	switch cfg.CacheBackend {
	case config.CacheBackendMemory:
		log.Printf("View cache: memory")
		return cache.NewMemoryCache[lifecycle.SessionView](), nil

	case config.CacheBackendRedis:
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		c, err := cache.NewRueidisCache[lifecycle.SessionView](
			ctx,
			cfg.RedisAddr,
			cfg.RedisPassword,
			cfg.RedisDB,
			cfg.CacheKeyPrefix+":view",
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis view cache: %w", err)
		}
		log.Printf("View cache: redis (%s)", cfg.RedisAddr)
		return c, nil

	case config.CacheBackendRueidisSide:
		c, err := cache.NewRueidisAsideCache[lifecycle.SessionView](
			cfg.RedisAddr,
			cfg.RedisPassword,
			cfg.RedisDB,
			cfg.CacheKeyPrefix+":view",
			cfg.CacheTTL,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize rueidis-aside view cache: %w", err)
		}
		log.Printf("View cache: rueidis-aside (%s)", cfg.RedisAddr)
		return c, nil

	default:
		return nil, fmt.Errorf("unknown cache backend: %q", cfg.CacheBackend)
	}
}
