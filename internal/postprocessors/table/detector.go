// Package table classifies tabular text blocks as table chunks.
package table

import (
	"context"
	"strings"

	"github.com/custodia-labs/folio/internal/core/domain"
)

// DefaultMinDoubleSpaces is the number of "  " runs a block must exceed.
const DefaultMinDoubleSpaces = 3

// DefaultDelimiters mark a block as tabular when present.
const DefaultDelimiters = "\t|"

// Detector turns tabular blocks into table chunks.
// It implements the PostProcessor interface.
type Detector struct {
	minDoubleSpaces int
	delimiters      string
}

// Option configures the detector.
type Option func(*Detector)

// WithMinDoubleSpaces sets the double-space threshold.
func WithMinDoubleSpaces(n int) Option {
	return func(d *Detector) {
		if n >= 0 {
			d.minDoubleSpaces = n
		}
	}
}

// WithDelimiters sets the delimiter characters.
func WithDelimiters(chars string) Option {
	return func(d *Detector) {
		d.delimiters = chars
	}
}

// New creates a detector with the given options.
func New(opts ...Option) *Detector {
	d := &Detector{
		minDoubleSpaces: DefaultMinDoubleSpaces,
		delimiters:      DefaultDelimiters,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Name returns the processor name.
func (d *Detector) Name() string {
	return "table"
}

// Process appends the page's table chunks to chunks.
func (d *Detector) Process(_ context.Context, page *domain.Page, chunks []domain.Chunk) ([]domain.Chunk, error) {
	return append(chunks, d.Detect(page)...), nil
}

// Detect returns one table chunk per tabular block, numbered from 1 per page.
func (d *Detector) Detect(page *domain.Page) []domain.Chunk {
	var out []domain.Chunk
	seq := 1
	for _, block := range page.Blocks {
		text := strings.TrimSpace(block.Text)
		if text == "" || !d.IsTabular(text) {
			continue
		}
		c, err := domain.NewTableChunk(page.Source, page.Number, seq, text, block.BBox)
		if err != nil {
			continue
		}
		out = append(out, c)
		seq++
	}
	return out
}

// IsTabular reports whether text contains a delimiter or more than the
// threshold of double-space runs.
func (d *Detector) IsTabular(text string) bool {
	if d.delimiters != "" && strings.ContainsAny(text, d.delimiters) {
		return true
	}
	return strings.Count(text, "  ") > d.minDoubleSpaces
}
