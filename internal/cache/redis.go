package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// scanBatch is the COUNT hint for SCAN during prefix deletion.
const scanBatch = 500

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

// RedisBackend stores values in Redis.
type RedisBackend struct {
	client redis.UniversalClient
}

// NewRedisBackend wraps an existing client.
func NewRedisBackend(client redis.UniversalClient) *RedisBackend {
	return &RedisBackend{client: client}
}

// NewRedisBackendFromURL connects using a redis:// or rediss:// URL.
func NewRedisBackendFromURL(url string) (*RedisBackend, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	return NewRedisBackend(redis.NewClient(opts)), nil
}

// Get returns the value for key.
func (r *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return val, nil
}

// Set stores value with an expiry of ttl.
func (r *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return r.client.Del(ctx, key).Err()
	}
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// DeleteByPrefix collects matching keys with SCAN, then deletes them in batches.
// The scan completes before any DEL so the cursor never walks a shrinking keyspace.
func (r *RedisBackend) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, globEscaper.Replace(prefix)+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("redis scan: %w", err)
	}

	var deleted int
	for start := 0; start < len(keys); start += scanBatch {
		end := min(start+scanBatch, len(keys))
		n, err := r.client.Del(ctx, keys[start:end]...).Result()
		if err != nil {
			return deleted, fmt.Errorf("redis del: %w", err)
		}
		deleted += int(n)
	}
	return deleted, nil
}

// Ping checks connectivity.
func (r *RedisBackend) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the client's connections.
func (r *RedisBackend) Close() error {
	return r.client.Close()
}
