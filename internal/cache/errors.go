package cache

import "errors"

// Sentinel errors shared by every cache backend. Callers branch on
// ErrCacheMiss; the other two only ever surface in logs.
var (
	ErrCacheMiss        = errors.New("cache: key not found")
	ErrCacheUnavailable = errors.New("cache: backend unavailable")
	ErrInvalidValue     = errors.New("cache: invalid value")
)
