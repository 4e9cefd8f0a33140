package driven

import (
	"context"

	"github.com/custodia-labs/folio/internal/core/domain"
)

// ContentStore maps chunk ids to full chunks and their summaries.
// It has pure key-value semantics; nothing in it is embedded or ranked.
type ContentStore interface {
	// Put stores a chunk, replacing any chunk with the same id.
	Put(ctx context.Context, chunk domain.Chunk) error

	// Get returns the chunk. Returns domain.ErrNotFound for unknown ids.
	Get(ctx context.Context, id string) (*domain.Chunk, error)

	// PutSummary stores the summary of an existing chunk, replacing the previous one.
	PutSummary(ctx context.Context, summary domain.Summary) error

	// GetSummary returns a chunk's summary. Returns domain.ErrNotFound if none.
	GetSummary(ctx context.Context, chunkID string) (*domain.Summary, error)

	// Delete removes a chunk and its summary.
	Delete(ctx context.Context, id string) error

	// DeleteSource removes every chunk of a source document.
	DeleteSource(ctx context.Context, source string) error

	// Reset removes every chunk and summary.
	Reset(ctx context.Context) error

	// IDs returns all chunk ids in insertion order.
	IDs(ctx context.Context) ([]string, error)

	// Degraded returns the ids of chunks whose summary is degraded.
	Degraded(ctx context.Context) ([]string, error)

	// Count returns the number of chunks per type.
	Count(ctx context.Context) (map[domain.ChunkType]int, error)

	// Close releases resources.
	Close() error
}
