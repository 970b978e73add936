// Package cache provides the TTL response cache for note listings and searches.
// Backend failures never reach callers: reads degrade to misses and writes to no-ops.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"diary-assistant/internal/contextutil"
	"diary-assistant/internal/metrics"
)

// Cache stores JSON-encoded responses in a Backend.
type Cache struct {
	backend Backend
}

// New creates a Cache over backend.
func New(backend Backend) *Cache {
	return &Cache{backend: backend}
}

// Get decodes the value under key into dst and reports whether it was found.
func (c *Cache) Get(ctx context.Context, key string, dst any) bool {
	prefix := keyPrefix(key)
	raw, err := c.backend.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrMiss) {
			metrics.ResponseCacheLookupsTotal.WithLabelValues(prefix, "miss").Inc()
		} else {
			metrics.ResponseCacheLookupsTotal.WithLabelValues(prefix, "error").Inc()
			contextutil.LoggerFromContext(ctx).WarnContext(ctx, "cache get failed", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		metrics.ResponseCacheLookupsTotal.WithLabelValues(prefix, "error").Inc()
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "discarding undecodable cache entry", "key", key, "error", err)
		return false
	}
	metrics.ResponseCacheLookupsTotal.WithLabelValues(prefix, "hit").Inc()
	return true
}

// Set stores value under key for ttl.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "cache value not serializable", "key", key, "error", err)
		return
	}
	if err := c.backend.Set(ctx, key, raw, ttl); err != nil {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "cache set failed", "key", key, "error", err)
	}
}

// DeleteByPrefix removes every entry under prefix and returns how many were removed.
func (c *Cache) DeleteByPrefix(ctx context.Context, prefix string) int {
	n, err := c.backend.DeleteByPrefix(ctx, prefix)
	if err != nil {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "cache delete failed", "prefix", prefix, "error", err)
	}
	return n
}

// InvalidateTenant drops every cached note listing and search of tenantID.
func (c *Cache) InvalidateTenant(ctx context.Context, tenantID string) int {
	var total int
	for _, prefix := range []string{PrefixNotes, PrefixSearch} {
		total += c.DeleteByPrefix(ctx, TenantPrefix(prefix, tenantID))
	}
	metrics.ResponseCacheInvalidationsTotal.Add(float64(total))
	contextutil.LoggerFromContext(ctx).DebugContext(ctx, "tenant cache invalidated", "tenant_id", tenantID, "entries", total)
	return total
}

// InvalidateSearches drops the tenant's cached search responses. It runs after
// a rebuild publishes, so answers cached while the rebuild was running expire with it.
func (c *Cache) InvalidateSearches(ctx context.Context, tenantID string) int {
	n := c.DeleteByPrefix(ctx, TenantPrefix(PrefixSearch, tenantID))
	metrics.ResponseCacheInvalidationsTotal.Add(float64(n))
	return n
}

// Ping reports whether the backend is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	return c.backend.Ping(ctx)
}

func keyPrefix(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}
