package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultEmbeddingCacheSize is the default number of embeddings to cache.
const DefaultEmbeddingCacheSize = 4096

// TextEmbedder produces embeddings for single texts.
type TextEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	ModelName() string
}

// CachedEmbedder wraps a TextEmbedder with an LRU cache. Rebuilds re-embed
// every chunk of a tenant, so unchanged chunks are served from memory.
type CachedEmbedder struct {
	inner TextEmbedder
	cache *lru.Cache[string, []float32]
}

// NewCachedEmbedder creates a cached embedder holding up to cacheSize vectors.
func NewCachedEmbedder(inner TextEmbedder, cacheSize int) *CachedEmbedder {
	if cacheSize <= 0 {
		cacheSize = DefaultEmbeddingCacheSize
	}
	cache, _ := lru.New[string, []float32](cacheSize)
	return &CachedEmbedder{
		inner: inner,
		cache: cache,
	}
}

// ModelName returns the wrapped model name.
func (c *CachedEmbedder) ModelName() string {
	return c.inner.ModelName()
}

// Embed returns a cached embedding if available, otherwise computes and caches it.
// Failures are never cached.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, vec)
	return vec, nil
}

// Len returns the number of cached embeddings.
func (c *CachedEmbedder) Len() int {
	return c.cache.Len()
}

func (c *CachedEmbedder) cacheKey(text string) string {
	hash := sha256.Sum256([]byte(c.inner.ModelName() + "\x00" + text))
	return hex.EncodeToString(hash[:])
}
