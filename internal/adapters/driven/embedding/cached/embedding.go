// Package cached decorates an embedding service with a query embedding cache.
package cached

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/custodia-labs/folio/internal/core/ports/driven"
	"github.com/custodia-labs/folio/internal/logger"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// EmbeddingService serves Embed from the cache and falls through on a miss.
// EmbedBatch bypasses the cache; it is used by ingestion.
type EmbeddingService struct {
	driven.EmbeddingService
	cache driven.EmbeddingCache
	ttl   time.Duration
}

// New wraps next with cache.
func New(next driven.EmbeddingService, cache driven.EmbeddingCache, ttl time.Duration) *EmbeddingService {
	return &EmbeddingService{EmbeddingService: next, cache: cache, ttl: ttl}
}

// Key returns the cache key for text under model.
func Key(model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return model + ":" + hex.EncodeToString(sum[:])
}

// Embed returns the cached vector or embeds and caches it.
// Cache failures are logged and never fail the call.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	key := Key(s.ModelName(), text)

	vec, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		logger.Warn("Embedding cache read failed: %v", err)
	}
	if ok {
		logger.Debug("Embedding cache hit for %s", key)
		return vec, nil
	}

	vec, err = s.EmbeddingService.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, vec, s.ttl); err != nil {
		logger.Warn("Embedding cache write failed: %v", err)
	}
	return vec, nil
}

// Close closes the cache and the wrapped service.
func (s *EmbeddingService) Close() error {
	cacheErr := s.cache.Close()
	if err := s.EmbeddingService.Close(); err != nil {
		return err
	}
	return cacheErr
}
