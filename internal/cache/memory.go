package cache

import (
	"context"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMaxEntries bounds the in-process backend when no size is configured.
const DefaultMaxEntries = 10000

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// MemoryBackend is an in-process LRU backend with per-entry expiry.
type MemoryBackend struct {
	entries *lru.Cache[string, memoryEntry]
	now     func() time.Time
}

// NewMemoryBackend creates a backend holding at most maxEntries values.
func NewMemoryBackend(maxEntries int) *MemoryBackend {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	entries, _ := lru.New[string, memoryEntry](maxEntries)
	return &MemoryBackend{
		entries: entries,
		now:     time.Now,
	}
}

// Get returns the live value for key.
func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	entry, ok := m.entries.Get(key)
	if !ok {
		return nil, ErrMiss
	}
	if !m.now().Before(entry.expires) {
		m.entries.Remove(key)
		return nil, ErrMiss
	}
	return entry.value, nil
}

// Set stores a copy of value until ttl elapses. A non-positive ttl stores nothing.
func (m *MemoryBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		m.entries.Remove(key)
		return nil
	}
	m.entries.Add(key, memoryEntry{
		value:   append([]byte(nil), value...),
		expires: m.now().Add(ttl),
	})
	return nil
}

// DeleteByPrefix removes matching keys, expired or not.
func (m *MemoryBackend) DeleteByPrefix(_ context.Context, prefix string) (int, error) {
	var deleted int
	for _, key := range m.entries.Keys() {
		if strings.HasPrefix(key, prefix) && m.entries.Remove(key) {
			deleted++
		}
	}
	return deleted, nil
}

// Ping always succeeds.
func (m *MemoryBackend) Ping(context.Context) error {
	return nil
}

// Len returns the number of stored entries, including expired ones not yet evicted.
func (m *MemoryBackend) Len() int {
	return m.entries.Len()
}
