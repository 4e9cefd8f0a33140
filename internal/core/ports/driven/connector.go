package driven

import (
	"context"

	"github.com/custodia-labs/folio/internal/core/domain"
)

// Connector finds and reads source documents in a local directory.
type Connector interface {
	// List returns every visible regular file under dir, sorted by path.
	// Callers filter by MIME type.
	List(ctx context.Context, dir string) ([]domain.DocumentRef, error)

	// Ref describes a single file without reading it.
	Ref(path string) domain.DocumentRef

	// Read loads the bytes of a listed document.
	Read(ctx context.Context, ref domain.DocumentRef) (*domain.RawDocument, error)

	// Watch emits changes to files under dir until ctx is cancelled,
	// then closes the channel.
	Watch(ctx context.Context, dir string) (<-chan domain.DocumentChange, error)

	// Close stops all watches. Watch fails after Close.
	Close() error
}
