package domain

import (
	"strings"
	"time"
)

// Query is a natural-language question. It is never persisted.
type Query struct {
	Text string
}

// NewQuery trims the text and returns a Query.
func NewQuery(text string) Query {
	return Query{Text: strings.TrimSpace(text)}
}

// WordCount returns the number of whitespace-separated words.
func (q Query) WordCount() int {
	return len(strings.Fields(q.Text))
}

// Strategy is the retrieval path chosen for a query.
type Strategy string

// Available strategies.
const (
	// StrategyDirect is a single index search with the original query.
	StrategyDirect Strategy = "direct"

	// StrategyDecomposed splits the query into sub-queries and unions their evidence.
	StrategyDecomposed Strategy = "decomposed"
)

// IsValid returns true if the strategy is recognised.
func (s Strategy) IsValid() bool {
	switch s {
	case StrategyDirect, StrategyDecomposed:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (s Strategy) String() string {
	return string(s)
}

// Description returns a human-readable description of the strategy.
func (s Strategy) Description() string {
	switch s {
	case StrategyDirect:
		return "Direct (single retrieval)"
	case StrategyDecomposed:
		return "Decomposed (sub-queries + aggregation)"
	default:
		return unknownDescription
	}
}

// Evidence is one resolved retrieval hit.
type Evidence struct {
	// ChunkID is the hit's identifier.
	ChunkID string

	// Score is the similarity reported by the index.
	Score float64

	// Chunk is the full chunk, nil when the content store has no entry.
	Chunk *Chunk

	// Summary is the chunk's summary text, if known.
	Summary string
}

// Resolved returns true if the full chunk content is available.
func (e Evidence) Resolved() bool {
	return e.Chunk != nil
}

// ContextText returns the text handed to answer synthesis.
// Images contribute their description, unresolved hits only their id.
func (e Evidence) ContextText() string {
	if e.Chunk == nil {
		return "[" + e.ChunkID + "]"
	}
	if e.Chunk.Type == ChunkTypeImage {
		if e.Summary != "" {
			return "[image " + e.Chunk.Content + "] " + e.Summary
		}
		return "[image " + e.Chunk.Content + "]"
	}
	return e.Chunk.Content
}

// EvidenceSet is the ordered evidence assembled for one query.
type EvidenceSet []Evidence

// Dedupe keeps the first occurrence of every chunk id, preserving order.
func (s EvidenceSet) Dedupe() EvidenceSet {
	seen := make(map[string]struct{}, len(s))
	out := make(EvidenceSet, 0, len(s))
	for _, e := range s {
		if _, ok := seen[e.ChunkID]; ok {
			continue
		}
		seen[e.ChunkID] = struct{}{}
		out = append(out, e)
	}
	return out
}

// Truncate returns at most n leading items. n <= 0 means no limit.
func (s EvidenceSet) Truncate(n int) EvidenceSet {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}

// IDs returns the chunk ids in order.
func (s EvidenceSet) IDs() []string {
	ids := make([]string, len(s))
	for i, e := range s {
		ids[i] = e.ChunkID
	}
	return ids
}

// Retrieval is the outcome of routing and retrieving for one query.
type Retrieval struct {
	Query      Query
	Strategy   Strategy
	SubQueries []string
	Evidence   EvidenceSet

	// Partial is set when sub-query generation or searches failed.
	// It is a warning; Evidence holds whatever was collected.
	Partial *StrategyPartialFailure
}

// Answer is the final response to a query.
type Answer struct {
	Query      string
	Text       string
	Strategy   Strategy
	SubQueries []string

	// Evidence is the truncated set actually given to synthesis.
	Evidence EvidenceSet

	// Partial carries the degraded-retrieval warning, if any.
	Partial *StrategyPartialFailure

	Elapsed time.Duration
}
