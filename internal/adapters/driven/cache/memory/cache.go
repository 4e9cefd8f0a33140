// Package memory provides an in-process embedding cache backed by go-cache.
package memory

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/custodia-labs/folio/internal/core/ports/driven"
)

// Ensure Cache implements the interface.
var _ driven.EmbeddingCache = (*Cache)(nil)

// Cache stores vectors in process memory.
type Cache struct {
	cache *cache.Cache
}

// New creates a cache whose entries expire after ttl and which purges expired
// entries every ttl/6.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{cache: cache.New(ttl, ttl/6)}
}

// Get returns a cached vector.
func (c *Cache) Get(_ context.Context, key string) ([]float32, bool, error) {
	if x, found := c.cache.Get(key); found {
		if v, ok := x.([]float32); ok {
			return v, true, nil
		}
	}
	return nil, false, nil
}

// Set stores a vector. A zero ttl uses the default expiration.
func (c *Cache) Set(_ context.Context, key string, vector []float32, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = cache.DefaultExpiration
	}
	c.cache.Set(key, append([]float32(nil), vector...), ttl)
	return nil
}

// Len returns the number of cached entries, expired ones included until purged.
func (c *Cache) Len() int {
	return c.cache.ItemCount()
}

// Close empties the cache.
func (c *Cache) Close() error {
	c.cache.Flush()
	return nil
}
