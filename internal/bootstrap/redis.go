package bootstrap

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-sessiond/sessiond/internal/config"

	"github.com/redis/go-redis/v9"
)

// initializeRateLimitRedisClient creates the Redis client used by the
// distributed rate limit store. Returns nil when rate limiting runs on the
// in-memory store.
func initializeRateLimitRedisClient(cfg *config.Config) (*redis.Client, error) {
	if !cfg.RateLimitEnabled || !cfg.RateLimitRedis {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis for rate limiting: %w", err)
	}

	log.Printf("Rate limit store: redis (%s)", cfg.RedisAddr)
	return client, nil
}
