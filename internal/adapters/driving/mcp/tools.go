package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/folio/internal/core/domain"
)

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question string `json:"question" jsonschema:"the question to answer from the ingested documents"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer     string           `json:"answer"`
	Strategy   string           `json:"strategy"`
	SubQueries []string         `json:"sub_queries,omitempty"`
	Evidence   []EvidenceOutput `json:"evidence"`
	Warning    string           `json:"warning,omitempty"`
}

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query string   `json:"query" jsonschema:"the text to rank chunks against"`
	Limit int      `json:"limit,omitempty" jsonschema:"maximum number of results to return (default 5)"`
	Types []string `json:"types,omitempty" jsonschema:"restrict results to chunk types: text, table, image"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []EvidenceOutput `json:"results"`
	Count   int              `json:"count"`
}

// EvidenceOutput represents one retrieved chunk.
type EvidenceOutput struct {
	ChunkID string  `json:"chunk_id"`
	Type    string  `json:"type,omitempty"`
	Source  string  `json:"source,omitempty"`
	Page    int     `json:"page,omitempty"`
	Score   float64 `json:"score"`
	Content string  `json:"content,omitempty"`
	Summary string  `json:"summary,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question from the ingested documents, citing the chunks used",
	}, s.handleAsk)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Rank document chunks by similarity to a text, without answer synthesis",
	}, s.handleSearch)
}

// handleAsk handles the ask tool invocation.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	answer, err := s.ports.Query.Ask(ctx, input.Question)
	if err != nil {
		return nil, AskOutput{}, err
	}

	output := AskOutput{
		Answer:     answer.Text,
		Strategy:   answer.Strategy.String(),
		SubQueries: answer.SubQueries,
		Evidence:   evidenceOutputs(answer.Evidence),
	}
	if answer.Partial != nil {
		output.Warning = answer.Partial.Error()
	}
	return nil, output, nil
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = domain.DefaultDirectK
	}

	filter, err := parseTypes(input.Types)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	evidence, err := s.ports.Query.Search(ctx, input.Query, limit, filter)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	results := evidenceOutputs(evidence)
	return nil, SearchOutput{Results: results, Count: len(results)}, nil
}

func parseTypes(names []string) (domain.TypeFilter, error) {
	var filter domain.TypeFilter
	for _, name := range names {
		t, err := domain.ParseChunkType(name)
		if err != nil {
			return nil, fmt.Errorf("types: %w", err)
		}
		filter = append(filter, t)
	}
	return filter, nil
}

func evidenceOutputs(evidence domain.EvidenceSet) []EvidenceOutput {
	out := make([]EvidenceOutput, len(evidence))
	for i, e := range evidence {
		out[i] = EvidenceOutput{
			ChunkID: e.ChunkID,
			Score:   e.Score,
			Summary: e.Summary,
		}
		if e.Chunk != nil {
			out[i].Type = e.Chunk.Type.String()
			out[i].Source = e.Chunk.Source
			out[i].Page = e.Chunk.PageNumber
			out[i].Content = e.Chunk.Content
		}
	}
	return out
}
