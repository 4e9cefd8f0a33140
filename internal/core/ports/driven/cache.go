package driven

import (
	"context"
	"time"
)

// EmbeddingCache stores query embeddings keyed by model and text hash.
// A miss is reported with ok == false, not an error.
type EmbeddingCache interface {
	// Get returns a cached vector.
	Get(ctx context.Context, key string) (vector []float32, ok bool, err error)

	// Set stores a vector for ttl. A zero ttl uses the cache default.
	Set(ctx context.Context, key string, vector []float32, ttl time.Duration) error

	// Close releases resources.
	Close() error
}

// RateLimiter paces calls to an external service shared by several workers.
type RateLimiter interface {
	// Wait blocks until a call may proceed or ctx is done.
	Wait(ctx context.Context) error

	// RecordRateLimitError backs off every caller after the service reported throttling.
	RecordRateLimitError(retryAfter time.Duration)
}
