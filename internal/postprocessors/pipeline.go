// Package postprocessors turns normalised pages into typed chunks.
package postprocessors

import (
	"context"
	"fmt"

	"github.com/custodia-labs/folio/internal/core/domain"
	"github.com/custodia-labs/folio/internal/core/ports/driven"
)

// Ensure Pipeline implements the interface.
var _ driven.PostProcessorPipeline = (*Pipeline)(nil)

// documentScoped is implemented by processors that keep per-document state.
type documentScoped interface {
	StartDocument(source string)
}

// Pipeline chains multiple PostProcessors and runs them in order.
// It implements the PostProcessorPipeline interface.
type Pipeline struct {
	processors []driven.PostProcessor
}

// NewPipeline creates a new processing pipeline with the given processors.
// Processors are executed in the order provided.
func NewPipeline(processors ...driven.PostProcessor) *Pipeline {
	return &Pipeline{
		processors: processors,
	}
}

// StartDocument resets per-document state (such as image sequence numbers)
// before the first page of source is processed.
func (p *Pipeline) StartDocument(source string) {
	for _, processor := range p.processors {
		if s, ok := processor.(documentScoped); ok {
			s.StartDocument(source)
		}
	}
}

// Process runs the page through all processors in order.
// The first processor receives nil chunks; each appends its own.
func (p *Pipeline) Process(ctx context.Context, page *domain.Page) ([]domain.Chunk, error) {
	if page == nil {
		return nil, fmt.Errorf("page is nil")
	}

	var chunks []domain.Chunk

	for _, processor := range p.processors {
		var err error
		chunks, err = processor.Process(ctx, page, chunks)
		if err != nil {
			return nil, fmt.Errorf("processor %s: %w", processor.Name(), err)
		}
	}

	return chunks, nil
}

// Add appends a processor to the pipeline.
func (p *Pipeline) Add(processor driven.PostProcessor) {
	p.processors = append(p.processors, processor)
}

// Len returns the number of processors in the pipeline.
func (p *Pipeline) Len() int {
	return len(p.processors)
}

// Names returns the processor names in execution order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.processors))
	for i, processor := range p.processors {
		names[i] = processor.Name()
	}
	return names
}
