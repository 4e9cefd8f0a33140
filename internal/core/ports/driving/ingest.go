package driving

import (
	"context"

	"github.com/custodia-labs/folio/internal/core/domain"
)

// IngestService builds the persisted corpus from source documents.
type IngestService interface {
	// Ingest processes every supported document in dir.
	// Individual document failures are recorded in the report, not returned.
	Ingest(ctx context.Context, dir string) (*domain.IngestReport, error)

	// IngestFiles processes the given documents in append mode.
	IngestFiles(ctx context.Context, paths []string) (*domain.IngestReport, error)

	// Remove deletes every chunk of the given documents from the corpus.
	Remove(ctx context.Context, paths []string) error
}
