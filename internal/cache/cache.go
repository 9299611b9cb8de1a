// Package cache stores query embeddings so repeated descriptions skip the embedding provider.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/jonathan/job-pricer/internal/llm"
	"github.com/jonathan/job-pricer/internal/logger"
	"github.com/jonathan/job-pricer/internal/metrics"
	"go.uber.org/zap"
)

// EmbeddingCache stores vectors by key. A miss returns (nil, false, nil).
type EmbeddingCache interface {
	GetEmbedding(ctx context.Context, key string) ([]float32, bool, error)
	SetEmbedding(ctx context.Context, key string, embedding []float32) error
}

// Key derives the cache key for text embedded with model.
func Key(model, text string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// MemoryCache is a bounded in-process cache. When full, the oldest entry is evicted.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string][]float32
	order   []string
	limit   int
}

// NewMemoryCache creates a cache holding at most limit vectors. limit <= 0 means 1024.
func NewMemoryCache(limit int) *MemoryCache {
	if limit <= 0 {
		limit = 1024
	}
	return &MemoryCache{entries: make(map[string][]float32), limit: limit}
}

// GetEmbedding returns a copy of the cached vector.
func (c *MemoryCache) GetEmbedding(_ context.Context, key string) ([]float32, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out, true, nil
}

// SetEmbedding stores a copy of the vector.
func (c *MemoryCache) SetEmbedding(_ context.Context, key string, embedding []float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		if len(c.order) >= c.limit {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, key)
	}
	v := make([]float32, len(embedding))
	copy(v, embedding)
	c.entries[key] = v
	return nil
}

// Len returns the number of cached vectors.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// CachedEmbedder wraps an Embedder with a cache. Cache failures are logged and treated as misses.
type CachedEmbedder struct {
	inner   llm.Embedder
	cache   EmbeddingCache
	log     *zap.Logger
	metrics *metrics.Metrics
}

// NewCachedEmbedder wraps inner. log and m may be nil.
func NewCachedEmbedder(inner llm.Embedder, cache EmbeddingCache, log *zap.Logger, m *metrics.Metrics) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: cache, log: logger.OrNop(log), metrics: m}
}

// Embed returns the cached vector or computes and stores it.
func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := Key(e.inner.Model(), text)

	v, ok, err := e.cache.GetEmbedding(ctx, key)
	if err != nil {
		e.log.Warn("embedding cache read failed", zap.Error(err))
	}
	if ok {
		e.metrics.CacheResult("embedding", true)
		return v, nil
	}
	e.metrics.CacheResult("embedding", false)

	v, err = e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := e.cache.SetEmbedding(ctx, key, v); err != nil {
		e.log.Warn("embedding cache write failed", zap.Error(err))
	}
	return v, nil
}

// Model returns the wrapped embedder's model.
func (e *CachedEmbedder) Model() string {
	return e.inner.Model()
}
