package rag

import (
	"context"
	"errors"
	"fmt"

	"diary-assistant/internal/contextutil"
	"diary-assistant/internal/vectorstore"
)

// ErrQueryEmbedding is returned when the query text cannot be embedded.
var ErrQueryEmbedding = errors.New("query embedding failed")

// overfetchFactor multiplies top_k when filters may discard candidates.
const overfetchFactor = 3

// Embedder turns a single text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// IndexLoader returns a tenant's resident index.
// vectorstore.Cache implements it.
type IndexLoader interface {
	Load(ctx context.Context, tenantID string) (*vectorstore.TenantIndex, error)
}

// Retriever runs semantic search against a tenant's ANN index.
type Retriever struct {
	indexes  IndexLoader
	embedder Embedder
}

// NewRetriever creates a Retriever.
func NewRetriever(indexes IndexLoader, embedder Embedder) *Retriever {
	return &Retriever{
		indexes:  indexes,
		embedder: embedder,
	}
}

// SemanticSearch returns up to topK chunks nearest to text that satisfy filters,
// in the index's candidate order. A tenant without a usable index yields no results.
func (r *Retriever) SemanticSearch(ctx context.Context, tenantID, text string, topK int, filters Filters) ([]SearchResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	idx, err := r.indexes.Load(ctx, tenantID)
	if err != nil {
		switch {
		case errors.Is(err, vectorstore.ErrNotIndexed):
			logger.DebugContext(ctx, "tenant not indexed", "tenant_id", tenantID)
			return []SearchResult{}, nil
		case errors.Is(err, vectorstore.ErrCorruptIndex):
			logger.WarnContext(ctx, "ignoring corrupt tenant index until next rebuild", "tenant_id", tenantID, "error", err)
			return []SearchResult{}, nil
		default:
			return nil, fmt.Errorf("load index: %w", err)
		}
	}

	queryVec, err := r.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryEmbedding, err)
	}

	if topK <= 0 {
		return []SearchResult{}, nil
	}
	fetch := topK
	if !filters.IsZero() {
		fetch = topK * overfetchFactor
	}
	if fetch > idx.Len() {
		fetch = idx.Len()
	}

	neighbors, err := idx.Search(queryVec, fetch)
	if err != nil {
		if errors.Is(err, vectorstore.ErrZeroVector) || errors.Is(err, vectorstore.ErrDimensionMismatch) {
			logger.WarnContext(ctx, "query vector unusable for tenant index", "tenant_id", tenantID, "error", err)
			return []SearchResult{}, nil
		}
		return nil, fmt.Errorf("search index: %w", err)
	}

	results := make([]SearchResult, 0, topK)
	for _, n := range neighbors {
		rec, ok := idx.Record(n.ID)
		if !ok {
			logger.WarnContext(ctx, "neighbor without record", "tenant_id", tenantID, "vector_id", n.ID)
			continue
		}
		if !filters.matches(rec.UserID, rec.CreatedAt, rec.Tags) {
			continue
		}
		results = append(results, SearchResult{
			NoteID:    rec.NoteID,
			UserID:    rec.UserID,
			TenantID:  rec.TenantID,
			Text:      rec.ChunkText,
			CreatedAt: rec.CreatedAt,
			Tags:      rec.Tags,
			Score:     vectorstore.Similarity(n.Distance),
		})
		if len(results) == topK {
			break
		}
	}

	logger.DebugContext(ctx, "semantic search completed",
		"tenant_id", tenantID,
		"candidates", len(neighbors),
		"results", len(results),
	)
	return results, nil
}
