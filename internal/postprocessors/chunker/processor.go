// Package chunker provides the word-window text chunking processor.
package chunker

import (
	"context"
	"strings"

	"github.com/custodia-labs/folio/internal/core/domain"
	"github.com/custodia-labs/folio/internal/core/ports/driven"
	"github.com/custodia-labs/folio/internal/logger"
)

// DefaultChunkSize is the default character budget per chunk.
const DefaultChunkSize = domain.DefaultMaxChars

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = domain.DefaultOverlapChars

// Processor packs whole words of a page into windows of at most chunkSize
// characters, seeding each window with trailing words of the previous one.
// It implements the PostProcessor interface.
type Processor struct {
	chunkSize int
	overlap   int
	log       driven.ChunkLog
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// WithLog appends every emitted chunk to log.
func WithLog(log driven.ChunkLog) Option {
	return func(p *Processor) {
		p.log = log
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(p)
	}

	// Ensure overlap doesn't exceed chunk size
	if p.overlap >= p.chunkSize {
		p.overlap = p.chunkSize / 4
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Process appends the page's text chunks to chunks.
func (p *Processor) Process(_ context.Context, page *domain.Page, chunks []domain.Chunk) ([]domain.Chunk, error) {
	for _, c := range p.Split(page.Source, page.Number, page.Text) {
		if p.log != nil {
			if err := p.log.Append(c); err != nil {
				logger.Warn("text log %s: %v", c.ID, err)
			}
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}

// Split turns one page of text into text chunks numbered from 1.
// A page without words yields no chunks.
func (p *Processor) Split(source string, page int, text string) []domain.Chunk {
	windows := p.Windows(text)
	chunks := make([]domain.Chunk, 0, len(windows))
	for i, w := range windows {
		c, err := domain.NewTextChunk(source, page, i+1, w)
		if err != nil {
			// Windows never yields empty content; keep the page going regardless.
			logger.Warn("text chunk %s page %d: %v", source, page, err)
			continue
		}
		chunks = append(chunks, c)
	}
	return chunks
}

// Windows packs the words of text greedily. Each word costs len(word)+1.
// When the next word would exceed the budget the window is closed and
// floor(len(window) * overlap / chunkSize) trailing words seed the next one.
// A word longer than the budget becomes a window of its own.
//
// The carried words are kept even when they plus the next word exceed the
// budget, so with overlap close to chunkSize a window can run over it.
func (p *Processor) Windows(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var (
		windows []string
		current []string
		length  int
	)

	for _, word := range words {
		wordLen := len(word) + 1
		if length+wordLen > p.chunkSize && len(current) > 0 {
			windows = append(windows, strings.Join(current, " "))

			carry := len(current) * p.overlap / p.chunkSize
			current = append([]string(nil), current[len(current)-carry:]...)
			length = 0
			for _, w := range current {
				length += len(w) + 1
			}
		}
		current = append(current, word)
		length += wordLen
	}

	if len(current) > 0 {
		windows = append(windows, strings.Join(current, " "))
	}
	return windows
}
