package cache

import (
	"context"
	"sync"
	"time"

	"github.com/go-sessiond/sessiond/internal/core"
)

// Compile-time interface check.
var _ core.Cache[struct{}] = (*MemoryCache[struct{}])(nil)

type entry[T any] struct {
	value     T
	expiresAt time.Time
}

// MemoryCache keeps session views in process memory. Entries expire lazily,
// on the next Get; there is no janitor goroutine. A single daemon instance
// needs nothing more.
type MemoryCache[T any] struct {
	mu    sync.RWMutex
	items map[string]entry[T]
}

func NewMemoryCache[T any]() *MemoryCache[T] {
	return &MemoryCache[T]{items: make(map[string]entry[T])}
}

func (m *MemoryCache[T]) Get(ctx context.Context, key string) (T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var zero T
	e, ok := m.items[key]
	if !ok || time.Now().After(e.expiresAt) {
		return zero, ErrCacheMiss
	}
	return e.value, nil
}

// GetWithFetch is plain cache-aside. Concurrent misses for the same key may
// each run fetchFunc; with one process and a cheap fetch that is acceptable.
func (m *MemoryCache[T]) GetWithFetch(
	ctx context.Context,
	key string,
	ttl time.Duration,
	fetchFunc func(ctx context.Context, key string) (T, error),
) (T, error) {
	if value, err := m.Get(ctx, key); err == nil {
		return value, nil
	}
	value, err := fetchFunc(ctx, key)
	if err != nil {
		var zero T
		return zero, err
	}
	_ = m.Set(ctx, key, value, ttl)
	return value, nil
}

func (m *MemoryCache[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[key] = entry[T]{value: value, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (m *MemoryCache[T]) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.items, key)
	return nil
}

// Close drops all entries. The cache remains usable afterwards.
func (m *MemoryCache[T]) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items = make(map[string]entry[T])
	return nil
}

// Health is trivially healthy; there is no backend to probe.
func (m *MemoryCache[T]) Health(ctx context.Context) error {
	return nil
}
