package driving

import (
	"context"

	"github.com/custodia-labs/folio/internal/core/domain"
)

// QueryService answers questions over the loaded corpus.
type QueryService interface {
	// Ask routes the query, retrieves evidence and synthesises an answer.
	// Retrieval step failures are reported in Answer.Partial, not as an error.
	Ask(ctx context.Context, query string) (*domain.Answer, error)

	// Retrieve routes the query and returns the evidence without synthesis.
	Retrieve(ctx context.Context, query string) (*domain.Retrieval, error)

	// Search ranks chunks for text directly, bypassing the router.
	Search(ctx context.Context, text string, k int, filter domain.TypeFilter) (domain.EvidenceSet, error)
}
