package postprocessors

import (
	"github.com/custodia-labs/folio/internal/core/domain"
	"github.com/custodia-labs/folio/internal/core/ports/driven"
	"github.com/custodia-labs/folio/internal/postprocessors/chunker"
	"github.com/custodia-labs/folio/internal/postprocessors/images"
	"github.com/custodia-labs/folio/internal/postprocessors/table"
)

// Deps are the collaborators of the built-in processors. Log and Metrics may be nil.
type Deps struct {
	Images  driven.ImageStore
	Log     driven.ChunkLog
	Metrics driven.Metrics
}

// NewDefaultPipeline builds the text, image and table processors, in that
// order, from settings. Image and table extraction can be disabled.
func NewDefaultPipeline(s domain.Settings, deps Deps) *Pipeline {
	chunkOpts := []chunker.Option{
		chunker.WithChunkSize(s.Chunking.MaxChars),
		chunker.WithOverlap(s.Chunking.OverlapChars),
	}
	if deps.Log != nil {
		chunkOpts = append(chunkOpts, chunker.WithLog(deps.Log))
	}
	p := NewPipeline(chunker.New(chunkOpts...))

	if s.Images.Enabled && deps.Images != nil {
		imgOpts := []images.Option{images.WithMinSize(s.Images.MinWidth, s.Images.MinHeight)}
		if deps.Metrics != nil {
			imgOpts = append(imgOpts, images.WithMetrics(deps.Metrics))
		}
		p.Add(images.New(deps.Images, imgOpts...))
	}

	if s.Tables.Enabled {
		p.Add(table.New(
			table.WithMinDoubleSpaces(s.Tables.MinDoubleSpaces),
			table.WithDelimiters(s.Tables.Delimiters),
		))
	}

	return p
}
