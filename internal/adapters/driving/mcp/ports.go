package mcp

import (
	"context"

	"github.com/custodia-labs/folio/internal/core/domain"
	"github.com/custodia-labs/folio/internal/core/ports/driving"
)

// ChunkReader resolves chunk ids against the content store.
type ChunkReader interface {
	Get(ctx context.Context, id string) (*domain.Chunk, error)
	GetSummary(ctx context.Context, chunkID string) (*domain.Summary, error)
	Count(ctx context.Context) (map[domain.ChunkType]int, error)
	Degraded(ctx context.Context) ([]string, error)
}

// Ports aggregates everything the MCP server talks to.
type Ports struct {
	// Query answers questions and ranks chunks.
	Query driving.QueryService

	// Chunks backs the corpus and chunk resources. Optional.
	Chunks ChunkReader
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Query == nil {
		return ErrMissingQueryService
	}
	return nil
}
