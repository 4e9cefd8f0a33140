package mcp

import (
	"context"

	"github.com/custodia-labs/folio/internal/core/domain"
)

// mockQueryService is a mock implementation of driving.QueryService.
type mockQueryService struct {
	answer   *domain.Answer
	evidence domain.EvidenceSet
	err      error

	lastText   string
	lastK      int
	lastFilter domain.TypeFilter
}

func (m *mockQueryService) Ask(_ context.Context, query string) (*domain.Answer, error) {
	m.lastText = query
	return m.answer, m.err
}

func (m *mockQueryService) Retrieve(_ context.Context, query string) (*domain.Retrieval, error) {
	m.lastText = query
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Retrieval{Query: domain.NewQuery(query), Evidence: m.evidence}, nil
}

func (m *mockQueryService) Search(
	_ context.Context,
	text string,
	k int,
	filter domain.TypeFilter,
) (domain.EvidenceSet, error) {
	m.lastText = text
	m.lastK = k
	m.lastFilter = filter
	return m.evidence, m.err
}

// mockChunkReader is a mock implementation of ChunkReader.
type mockChunkReader struct {
	chunks    map[string]domain.Chunk
	summaries map[string]domain.Summary
	degraded  []string
	err       error
}

func (m *mockChunkReader) Get(_ context.Context, id string) (*domain.Chunk, error) {
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.chunks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (m *mockChunkReader) GetSummary(_ context.Context, id string) (*domain.Summary, error) {
	s, ok := m.summaries[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &s, nil
}

func (m *mockChunkReader) Count(_ context.Context) (map[domain.ChunkType]int, error) {
	if m.err != nil {
		return nil, m.err
	}
	counts := make(map[domain.ChunkType]int)
	for _, c := range m.chunks {
		counts[c.Type]++
	}
	return counts, nil
}

func (m *mockChunkReader) Degraded(_ context.Context) ([]string, error) {
	return m.degraded, m.err
}
