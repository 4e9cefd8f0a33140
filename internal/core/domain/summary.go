package domain

// SummaryStatus records whether a summary is usable for embedding.
type SummaryStatus string

// Available summary states.
const (
	// SummaryOK is a usable summary.
	SummaryOK SummaryStatus = "ok"

	// SummaryDegraded marks a failed summarisation; Text holds the error marker.
	SummaryDegraded SummaryStatus = "degraded"
)

// DegradedPrefix starts the text of every degraded summary.
const DegradedPrefix = "Error: "

// Summary is the short textual surrogate of a chunk used for embedding.
// There is at most one summary per chunk.
type Summary struct {
	// ChunkID references the summarised chunk.
	ChunkID string

	// Text is the surrogate text. Never empty.
	Text string

	// Status tells whether Text is a real summary or an error marker.
	Status SummaryStatus
}

// NewSummary returns a healthy summary.
func NewSummary(chunkID, text string) Summary {
	return Summary{ChunkID: chunkID, Text: text, Status: SummaryOK}
}

// DegradedSummary returns a summary recording the failure cause.
func DegradedSummary(chunkID string, cause error) Summary {
	msg := "unknown failure"
	if cause != nil {
		msg = cause.Error()
	}
	return Summary{ChunkID: chunkID, Text: DegradedPrefix + msg, Status: SummaryDegraded}
}

// IsDegraded returns true if summarisation failed for the chunk.
func (s Summary) IsDegraded() bool {
	return s.Status == SummaryDegraded
}
