// Package images turns the raster objects of a page into image chunks.
package images

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/folio/internal/core/domain"
	"github.com/custodia-labs/folio/internal/core/ports/driven"
	"github.com/custodia-labs/folio/internal/logger"
)

// Extractor decodes page images, stores them and emits image chunks.
// Image sequence numbers continue across the pages of a document.
// It implements the PostProcessor interface and is safe for concurrent use
// by workers handling different documents.
type Extractor struct {
	store     driven.ImageStore
	metrics   driven.Metrics
	minWidth  int
	minHeight int

	mu       sync.Mutex
	counters map[string]int
}

// Option configures the extractor.
type Option func(*Extractor)

// WithMinSize skips images smaller than w x h pixels.
func WithMinSize(w, h int) Option {
	return func(e *Extractor) {
		e.minWidth, e.minHeight = w, h
	}
}

// WithMetrics records extraction failures.
func WithMetrics(m driven.Metrics) Option {
	return func(e *Extractor) {
		e.metrics = m
	}
}

// New creates an extractor writing rasters to store.
func New(store driven.ImageStore, opts ...Option) *Extractor {
	e := &Extractor{
		store:    store,
		counters: make(map[string]int),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the processor name.
func (e *Extractor) Name() string {
	return "images"
}

// StartDocument restarts the sequence for source.
func (e *Extractor) StartDocument(source string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.counters, source)
}

// Process appends the page's image chunks to chunks.
func (e *Extractor) Process(ctx context.Context, page *domain.Page, chunks []domain.Chunk) ([]domain.Chunk, error) {
	return append(chunks, e.Extract(ctx, page)...), nil
}

// Extract returns one chunk per successfully extracted image.
// A failing image is logged and skipped; the rest of the page continues.
func (e *Extractor) Extract(ctx context.Context, page *domain.Page) []domain.Chunk {
	var out []domain.Chunk
	for _, img := range page.Images {
		if ctx.Err() != nil {
			return out
		}
		c, ok, err := e.extractOne(page, img)
		if err != nil {
			logger.Warn("%v", err)
			if e.metrics != nil {
				e.metrics.ExtractionFailed("image")
			}
			continue
		}
		if ok {
			out = append(out, c)
		}
	}
	return out
}

// extractOne handles a single image. ok is false for images filtered out by size.
func (e *Extractor) extractOne(page *domain.Page, img domain.PageImage) (c domain.Chunk, ok bool, err error) {
	fail := func(cause error) *domain.ExtractionError {
		return &domain.ExtractionError{Source: page.Source, Page: page.Number, Item: "image " + img.Name, Err: cause}
	}

	defer func() {
		if r := recover(); r != nil {
			err = fail(fmt.Errorf("decoder panic: %v", r))
		}
	}()

	if img.Decode == nil {
		return c, false, fail(fmt.Errorf("no decoder"))
	}
	decoded, decErr := img.Decode()
	if decErr != nil {
		return c, false, fail(decErr)
	}
	if len(decoded.Data) == 0 {
		return c, false, fail(fmt.Errorf("empty image data"))
	}
	if decoded.Width < e.minWidth || decoded.Height < e.minHeight {
		logger.Debug("skip %s page %d image %s: %dx%d below minimum", page.Source, page.Number, img.Name, decoded.Width, decoded.Height)
		return c, false, nil
	}

	// Numbers count saved images only. A failed save may leave a file
	// behind; the next image of the document overwrites it.
	seq := e.peek(page.Source)
	id := domain.ImageChunkID(page.Source, page.Number, seq)
	path, saveErr := e.store.Save(id, decoded)
	if saveErr != nil {
		return c, false, fail(fmt.Errorf("save: %w", saveErr))
	}

	c, err = domain.NewImageChunk(page.Source, page.Number, seq, path, domain.ImageMeta{
		Format: decoded.Format,
		Width:  decoded.Width,
		Height: decoded.Height,
	})
	if err != nil {
		return c, false, fail(err)
	}
	e.claim(page.Source, seq)
	return c, true, nil
}

// peek returns the next image number for source without taking it.
// Pages of one document are processed in order by a single worker.
func (e *Extractor) peek(source string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.counters[source] + 1
}

func (e *Extractor) claim(source string, seq int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if seq > e.counters[source] {
		e.counters[source] = seq
	}
}
