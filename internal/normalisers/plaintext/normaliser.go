// Package plaintext splits plain text documents into pages.
package plaintext

import (
	"context"
	"strings"

	"github.com/custodia-labs/folio/internal/core/domain"
	"github.com/custodia-labs/folio/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// PageBreak separates pages in a plain text document.
const PageBreak = "\f"

// Normaliser handles plain text documents.
type Normaliser struct{}

// New creates a new plain text normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{
		"text/plain",
		"text/markdown",
	}
}

// Normalise splits the content on form feeds. Blocks are blank-line
// separated paragraphs. Empty content yields no pages.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) ([]domain.Page, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	content := strings.ReplaceAll(string(raw.Content), "\r\n", "\n")
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	parts := strings.Split(content, PageBreak)
	pages := make([]domain.Page, 0, len(parts))
	for i, text := range parts {
		pages = append(pages, domain.Page{
			Source: raw.Source,
			Number: i + 1,
			Text:   text,
			Blocks: paragraphs(text),
		})
	}
	return pages, nil
}

// paragraphs splits text on blank lines.
func paragraphs(text string) []domain.TextBlock {
	var blocks []domain.TextBlock
	for _, p := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(p) == "" {
			continue
		}
		blocks = append(blocks, domain.TextBlock{Text: strings.Trim(p, "\n")})
	}
	return blocks
}
