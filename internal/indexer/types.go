package indexer

import (
	"context"

	"diary-assistant/internal/vectorstore"
)

// Embedder turns a single text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// IndexPublisher receives finished tenant indexes.
// vectorstore.Cache implements it.
type IndexPublisher interface {
	Publish(ctx context.Context, idx *vectorstore.TenantIndex) error
	Remove(ctx context.Context, tenantID string) error
}

// Rebuilder performs one full rebuild of a tenant's index.
type Rebuilder interface {
	Rebuild(ctx context.Context, tenantID string) (*RebuildStats, error)
}

// SearchInvalidator drops a tenant's cached search responses.
// cache.Cache implements it.
type SearchInvalidator interface {
	InvalidateSearches(ctx context.Context, tenantID string) int
}
