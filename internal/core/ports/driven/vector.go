package driven

import (
	"context"

	"github.com/custodia-labs/folio/internal/core/domain"
)

// VectorIndex embeds summary text and ranks records by similarity to a query.
// It never stores full chunk content, only vectors and denormalised filter fields.
type VectorIndex interface {
	// EmbedAndAdd embeds each record's text and inserts it.
	// Re-adding an id replaces its vector and keeps its original position.
	EmbedAndAdd(ctx context.Context, records []domain.IndexRecord) error

	// Search returns at most k ids ranked by descending similarity to text.
	// Ties keep insertion order. Returns domain.ErrIndexNotReady when the
	// index holds no records and domain.ErrInvalidInput when k < 1.
	Search(ctx context.Context, text string, k int, filter domain.TypeFilter) ([]VectorHit, error)

	// Delete removes a record. Unknown ids are ignored.
	Delete(ctx context.Context, id string) error

	// DeleteSource removes every record of a source and returns how many were removed.
	DeleteSource(ctx context.Context, source string) int

	// Len returns the number of records.
	Len() int
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Similarity is the cosine similarity score.
	Similarity float64

	// Type, PageNumber and Source are the record's filter fields.
	Type       domain.ChunkType
	PageNumber int
	Source     string
}

// CorpusSaver persists the vector index of a corpus after ingestion.
type CorpusSaver interface {
	// Save writes the index with a manifest stamped with runID.
	Save(ctx context.Context, runID string) error
}
