package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/folio/internal/core/domain"
	"github.com/custodia-labs/folio/internal/core/ports/driven"
)

// answerPrompt is used when no prompt store is configured.
const answerPrompt = "Context:\n%s\n\nQuestion:\n%s\n\nAnswer clearly, accurately, and safely."

// AnswerConfig bounds answer synthesis.
type AnswerConfig struct {
	// MaxEvidence is the number of leading evidence items given to the model.
	MaxEvidence int

	MaxTokens   int
	Temperature float64
}

// AnswerSynthesizer turns a query and its evidence into an answer.
// It never inspects the answer it returns.
type AnswerSynthesizer struct {
	llm     driven.LLMService
	prompts driven.PromptStore
	cfg     AnswerConfig
}

// NewAnswerSynthesizer creates a synthesizer. llm and prompts may be nil.
func NewAnswerSynthesizer(llm driven.LLMService, prompts driven.PromptStore, cfg AnswerConfig) *AnswerSynthesizer {
	if cfg.MaxEvidence < 1 {
		cfg.MaxEvidence = domain.DefaultMaxEvidence
	}
	return &AnswerSynthesizer{llm: llm, prompts: prompts, cfg: cfg}
}

// Available reports whether an LLM is configured.
func (a *AnswerSynthesizer) Available() bool {
	return a != nil && a.llm != nil
}

// MaxEvidence returns the evidence bound.
func (a *AnswerSynthesizer) MaxEvidence() int {
	return a.cfg.MaxEvidence
}

// Synthesize answers query from the first MaxEvidence items of evidence.
// An empty evidence set is valid; the model is still asked.
func (a *AnswerSynthesizer) Synthesize(ctx context.Context, query string, evidence domain.EvidenceSet) (string, error) {
	if !a.Available() {
		return "", domain.ErrLLMUnavailable
	}

	answer, err := a.llm.Generate(ctx, a.Prompt(query, evidence), driven.GenerateOptions{
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("synthesize answer: %w", err)
	}
	return strings.TrimSpace(answer), nil
}

// Prompt renders the synthesis prompt.
func (a *AnswerSynthesizer) Prompt(query string, evidence domain.EvidenceSet) string {
	template := answerPrompt
	if a.prompts != nil {
		if p, err := a.prompts.Load(driven.PromptAnswer); err == nil && p != "" {
			template = p
		}
	}
	return fmt.Sprintf(template, ContextText(evidence.Truncate(a.cfg.MaxEvidence)), query)
}

// ContextText joins the evidence texts with blank lines.
func ContextText(evidence domain.EvidenceSet) string {
	parts := make([]string, len(evidence))
	for i, e := range evidence {
		parts[i] = e.ContextText()
	}
	return strings.Join(parts, "\n\n")
}
