package cli

import (
	"github.com/custodia-labs/folio/internal/core/domain"
)

// evidenceItem is the JSON form of one evidence entry.
type evidenceItem struct {
	ChunkID string  `json:"chunk_id"`
	Score   float64 `json:"score"`
	Type    string  `json:"type,omitempty"`
	Source  string  `json:"source,omitempty"`
	Page    int     `json:"page,omitempty"`
	Content string  `json:"content,omitempty"`
	Summary string  `json:"summary,omitempty"`
}

// answerItem is the JSON form of an answer.
type answerItem struct {
	Query      string         `json:"query"`
	Answer     string         `json:"answer"`
	Strategy   string         `json:"strategy"`
	SubQueries []string       `json:"sub_queries,omitempty"`
	Warning    string         `json:"warning,omitempty"`
	ElapsedMS  int64          `json:"elapsed_ms"`
	Evidence   []evidenceItem `json:"evidence"`
}

func evidenceJSON(evidence domain.EvidenceSet) []evidenceItem {
	items := make([]evidenceItem, len(evidence))
	for i, e := range evidence {
		items[i] = evidenceItem{ChunkID: e.ChunkID, Score: e.Score, Summary: e.Summary}
		if e.Chunk != nil {
			items[i].Type = e.Chunk.Type.String()
			items[i].Source = e.Chunk.Source
			items[i].Page = e.Chunk.PageNumber
			items[i].Content = e.Chunk.Content
		}
	}
	return items
}

func answerJSON(a *domain.Answer) answerItem {
	item := answerItem{
		Query:      a.Query,
		Answer:     a.Text,
		Strategy:   a.Strategy.String(),
		SubQueries: a.SubQueries,
		ElapsedMS:  a.Elapsed.Milliseconds(),
		Evidence:   evidenceJSON(a.Evidence),
	}
	if a.Partial != nil {
		item.Warning = a.Partial.Error()
	}
	return item
}
