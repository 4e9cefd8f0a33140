package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/custodia-labs/folio/internal/core/domain"
	"github.com/custodia-labs/folio/internal/core/ports/driven"
	"github.com/custodia-labs/folio/internal/logger"
)

// decomposePrompt is used when no prompt store is configured.
const decomposePrompt = "Break the following research question into %d focused sub-questions:\n\n" +
	"Question:\n%s\n\nReturn only the sub-questions as bullet points."

// ErrNoSubQueries is returned when the model response holds no usable line.
var ErrNoSubQueries = errors.New("no usable sub-queries")

// SubQueryGenerator asks the language model to split a question.
type SubQueryGenerator struct {
	llm     driven.LLMService
	prompts driven.PromptStore
	limit   int
}

// NewSubQueryGenerator creates a generator returning at most limit sub-queries.
// llm and prompts may be nil; without an LLM every call fails.
func NewSubQueryGenerator(llm driven.LLMService, prompts driven.PromptStore, limit int) *SubQueryGenerator {
	if limit < 1 {
		limit = domain.DefaultMaxSubQueries
	}
	return &SubQueryGenerator{llm: llm, prompts: prompts, limit: limit}
}

// Generate returns 1..limit sub-queries in the order the model gave them.
func (g *SubQueryGenerator) Generate(ctx context.Context, query string) ([]string, error) {
	if g.llm == nil {
		return nil, domain.ErrLLMUnavailable
	}

	template := decomposePrompt
	if g.prompts != nil {
		if p, err := g.prompts.Load(driven.PromptDecompose); err == nil && p != "" {
			template = p
		}
	}

	resp, err := g.llm.Generate(ctx, fmt.Sprintf(template, g.limit, query), driven.GenerateOptions{})
	if err != nil {
		return nil, fmt.Errorf("generate sub-queries: %w", err)
	}

	subs := ParseSubQueries(resp, g.limit)
	if len(subs) == 0 {
		return nil, ErrNoSubQueries
	}
	logger.Debug("Sub-queries: %q", subs)
	return subs, nil
}

// ParseSubQueries extracts one question per non-empty line, removing bullet
// and numbering markers and repeated lines. At most limit are returned;
// limit <= 0 means no bound.
func ParseSubQueries(text string, limit int) []string {
	var subs []string
	seen := make(map[string]struct{})
	for _, line := range strings.Split(text, "\n") {
		line = stripMarker(strings.TrimSpace(line))
		if strings.Trim(line, "-*• ") == "" {
			continue
		}
		key := strings.ToLower(line)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		subs = append(subs, line)
		if limit > 0 && len(subs) == limit {
			break
		}
	}
	return subs
}

// stripMarker removes a leading "- ", "* ", "• ", "1. " or "1) ".
func stripMarker(line string) string {
	for _, p := range []string{"- ", "* ", "• "} {
		if strings.HasPrefix(line, p) {
			return strings.TrimSpace(line[len(p):])
		}
	}

	i := 0
	for i < len(line) && unicode.IsDigit(rune(line[i])) {
		i++
	}
	if i > 0 && i+1 < len(line) && (line[i] == '.' || line[i] == ')') && line[i+1] == ' ' {
		return strings.TrimSpace(line[i+2:])
	}
	return line
}
