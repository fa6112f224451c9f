package cache

import (
	"context"
	"errors"
	"time"

	"github.com/go-sessiond/sessiond/internal/core"
	"github.com/go-sessiond/sessiond/internal/metrics"
)

// Compile-time interface check.
var _ core.Cache[struct{}] = (*Instrumented[struct{}])(nil)

// Instrumented decorates a Cache with hit/miss metrics. The label keeps
// backends distinguishable when several caches share a registry.
type Instrumented[T any] struct {
	inner   core.Cache[T]
	metrics metrics.Recorder
	label   string
}

// NewInstrumented wraps a cache with metrics recording.
func NewInstrumented[T any](inner core.Cache[T], m metrics.Recorder, label string) *Instrumented[T] {
	return &Instrumented[T]{inner: inner, metrics: m, label: label}
}

func (c *Instrumented[T]) Get(ctx context.Context, key string) (T, error) {
	value, err := c.inner.Get(ctx, key)
	switch {
	case err == nil:
		c.metrics.RecordCacheHit(c.label)
	case errors.Is(err, ErrCacheMiss):
		c.metrics.RecordCacheMiss(c.label)
	}
	return value, err
}

func (c *Instrumented[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) error {
	return c.inner.Set(ctx, key, value, ttl)
}

func (c *Instrumented[T]) Delete(ctx context.Context, key string) error {
	return c.inner.Delete(ctx, key)
}

func (c *Instrumented[T]) Close() error {
	return c.inner.Close()
}

func (c *Instrumented[T]) Health(ctx context.Context) error {
	return c.inner.Health(ctx)
}

// GetWithFetch records the hit/miss before delegating the fetch, so the
// cache-aside path counts the same way a plain Get does.
func (c *Instrumented[T]) GetWithFetch(
	ctx context.Context,
	key string,
	ttl time.Duration,
	fetchFunc func(ctx context.Context, key string) (T, error),
) (T, error) {
	if value, err := c.inner.Get(ctx, key); err == nil {
		c.metrics.RecordCacheHit(c.label)
		return value, nil
	}
	c.metrics.RecordCacheMiss(c.label)
	return c.inner.GetWithFetch(ctx, key, ttl, fetchFunc)
}
