package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Backend.Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Backend stores raw cache values.
type Backend interface {
	// Get returns the value for key, or ErrMiss.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// DeleteByPrefix removes every key starting with prefix and returns how many were removed.
	DeleteByPrefix(ctx context.Context, prefix string) (int, error)
	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
}
