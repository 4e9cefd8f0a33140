package driven

import (
	"context"

	"github.com/custodia-labs/folio/internal/core/domain"
)

// Normaliser turns a raw document into its pages.
// Each normaliser handles specific MIME types (e.g., PDF, plain text).
type Normaliser interface {
	// SupportedMIMETypes returns the MIME types this normaliser handles.
	SupportedMIMETypes() []string

	// Normalise splits a raw document into pages. A document with no
	// pages is valid and yields an empty slice.
	Normalise(ctx context.Context, raw *domain.RawDocument) ([]domain.Page, error)
}
