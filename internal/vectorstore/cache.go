package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"diary-assistant/internal/contextutil"
	"diary-assistant/internal/metrics"
	"diary-assistant/internal/storage"
)

var (
	// ErrNotIndexed is returned when a tenant has no persisted index.
	ErrNotIndexed = errors.New("tenant not indexed")
	// ErrCorruptIndex is returned when a tenant's artifacts cannot be paired up.
	ErrCorruptIndex = errors.New("corrupt tenant index")
)

// Cache owns the resident tenant indexes and their persistence.
// Reads run concurrently; Publish, Remove and Invalidate swap entries exclusively.
type Cache struct {
	store storage.IndexStore

	mu      sync.RWMutex
	entries map[string]*TenantIndex
	// generation is bumped on every swap so a slow cold load started
	// before the swap cannot install stale artifacts afterwards.
	generation map[string]uint64

	loads singleflight.Group
	// writeMu serializes persist-then-swap so the stored artifacts and the
	// resident entry always come from the same rebuild.
	writeMu sync.Mutex
}

// NewCache creates a Cache backed by store.
func NewCache(store storage.IndexStore) *Cache {
	return &Cache{
		store:      store,
		entries:    make(map[string]*TenantIndex),
		generation: make(map[string]uint64),
	}
}

// Load returns the tenant's index, reading it from storage on first use.
// Returns ErrNotIndexed when nothing is persisted and ErrCorruptIndex when the
// persisted artifacts are unusable.
func (c *Cache) Load(ctx context.Context, tenantID string) (*TenantIndex, error) {
	c.mu.RLock()
	idx, ok := c.entries[tenantID]
	c.mu.RUnlock()
	if ok {
		metrics.IndexCacheLoadsTotal.WithLabelValues("hit").Inc()
		return idx, nil
	}

	v, err, _ := c.loads.Do(tenantID, func() (any, error) {
		return c.loadFromStore(context.WithoutCancel(ctx), tenantID)
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrNotIndexed):
			metrics.IndexCacheLoadsTotal.WithLabelValues("not_indexed").Inc()
		case errors.Is(err, ErrCorruptIndex):
			metrics.IndexCacheLoadsTotal.WithLabelValues("corrupt").Inc()
		default:
			metrics.IndexCacheLoadsTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}
	metrics.IndexCacheLoadsTotal.WithLabelValues("loaded").Inc()
	return v.(*TenantIndex), nil
}

func (c *Cache) loadFromStore(ctx context.Context, tenantID string) (*TenantIndex, error) {
	c.mu.RLock()
	gen := c.generation[tenantID]
	if idx, ok := c.entries[tenantID]; ok {
		c.mu.RUnlock()
		return idx, nil
	}
	c.mu.RUnlock()

	artifacts, err := c.store.Load(ctx, tenantID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotIndexed
	}
	if errors.Is(err, storage.ErrCorruptIndex) {
		return nil, fmt.Errorf("%w: %v", ErrCorruptIndex, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load index for tenant %s: %w", tenantID, err)
	}

	idx, err := tenantIndexFromArtifacts(artifacts)
	if err != nil {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "discarding unusable tenant index",
			"tenant_id", tenantID, "error", err)
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if current, ok := c.entries[tenantID]; ok {
		return current, nil
	}
	if c.generation[tenantID] == gen {
		c.entries[tenantID] = idx
	}
	return idx, nil
}

// Publish persists idx and then makes it the resident index for its tenant.
// On persistence failure the previous artifacts and resident entry are kept.
func (c *Cache) Publish(ctx context.Context, idx *TenantIndex) error {
	artifacts, err := idx.artifacts()
	if err != nil {
		return fmt.Errorf("failed to serialize index for tenant %s: %w", idx.tenantID, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.store.Save(ctx, artifacts); err != nil {
		return fmt.Errorf("failed to persist index for tenant %s: %w", idx.tenantID, err)
	}

	c.mu.Lock()
	c.generation[idx.tenantID]++
	c.entries[idx.tenantID] = idx
	c.mu.Unlock()
	return nil
}

// Remove deletes the tenant's persisted index and evicts it.
func (c *Cache) Remove(ctx context.Context, tenantID string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.store.Delete(ctx, tenantID); err != nil {
		return fmt.Errorf("failed to delete index for tenant %s: %w", tenantID, err)
	}
	c.evict(tenantID)
	return nil
}

// Invalidate evicts the resident entry so the next Load reads storage again.
func (c *Cache) Invalidate(tenantID string) {
	c.evict(tenantID)
}

// Resident reports how many tenant indexes are held in memory.
func (c *Cache) Resident() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) evict(tenantID string) {
	c.mu.Lock()
	c.generation[tenantID]++
	delete(c.entries, tenantID)
	c.mu.Unlock()
}
