package domain

// IndexRecord is one embedding-addressable unit.
// The vector is computed by the index from Text; full content never enters the index.
type IndexRecord struct {
	// ID equals the chunk id.
	ID string

	// Text is the summary text to embed.
	Text string

	// Type, PageNumber and Source are denormalised from the chunk for filtering.
	Type       ChunkType
	PageNumber int
	Source     string
}

// NewIndexRecord builds the index record for a chunk and its summary.
func NewIndexRecord(c Chunk, s Summary) IndexRecord {
	return IndexRecord{
		ID:         c.ID,
		Text:       s.Text,
		Type:       c.Type,
		PageNumber: c.PageNumber,
		Source:     c.Source,
	}
}

// TypeFilter restricts a search to chunk types. An empty filter matches all.
type TypeFilter []ChunkType

// Matches returns true if t passes the filter.
func (f TypeFilter) Matches(t ChunkType) bool {
	if len(f) == 0 {
		return true
	}
	for _, want := range f {
		if want == t {
			return true
		}
	}
	return false
}
