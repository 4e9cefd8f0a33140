package driven

import (
	"context"

	"github.com/custodia-labs/folio/internal/core/domain"
)

// PostProcessor turns page content into chunks.
// PostProcessors are chained in a pipeline; each appends its chunks to those
// produced by the previous stages (text windows, then images, then tables).
type PostProcessor interface {
	// Name returns the processor name for logging and configuration.
	Name() string

	// Process returns chunks with this processor's output appended.
	// Failures of individual items are isolated and logged by the processor;
	// a returned error aborts the page.
	Process(ctx context.Context, page *domain.Page, chunks []domain.Chunk) ([]domain.Chunk, error)
}

// PostProcessorPipeline chains multiple PostProcessors.
type PostProcessorPipeline interface {
	// Process runs the page through all processors in order.
	Process(ctx context.Context, page *domain.Page) ([]domain.Chunk, error)
}

// ChunkLog is the append-only human-readable record of text chunks.
// Implementations must be safe for concurrent use.
type ChunkLog interface {
	// Append writes one chunk block.
	Append(chunk domain.Chunk) error
}

// ImageStore persists extracted rasters.
type ImageStore interface {
	// Save writes an image for a chunk id and returns the path to reference it by.
	Save(chunkID string, img domain.DecodedImage) (string, error)

	// Read returns the bytes behind a path returned by Save.
	Read(path string) ([]byte, error)
}
