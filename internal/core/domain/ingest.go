package domain

import "time"

// IngestMode controls how an ingestion run treats an existing corpus.
type IngestMode string

// Available ingestion modes.
const (
	// IngestModeRebuild starts from an empty corpus.
	IngestModeRebuild IngestMode = "rebuild"

	// IngestModeAppend loads the existing corpus and replaces chunks by id.
	IngestModeAppend IngestMode = "append"
)

// IsValid returns true if the mode is recognised.
func (m IngestMode) IsValid() bool {
	return m == IngestModeRebuild || m == IngestModeAppend
}

// DocumentFailure records a document that could not be ingested.
type DocumentFailure struct {
	Path string
	Err  error
}

// IngestReport summarises one ingestion run.
type IngestReport struct {
	RunID     string
	Mode      IngestMode
	Documents int
	Failed    []DocumentFailure
	Pages     int

	// Chunks counts extracted chunks per type.
	Chunks map[ChunkType]int

	// ExtractionFailures counts isolated page, image and table failures.
	ExtractionFailures int

	// Degraded lists chunk ids whose summarisation failed.
	Degraded []string

	// Indexed is the number of records in the index after the run.
	Indexed int

	Elapsed time.Duration
}

// NewIngestReport returns an empty report for a run.
func NewIngestReport(runID string, mode IngestMode) *IngestReport {
	return &IngestReport{
		RunID:  runID,
		Mode:   mode,
		Chunks: make(map[ChunkType]int),
	}
}

// TotalChunks returns the number of chunks across all types.
func (r *IngestReport) TotalChunks() int {
	total := 0
	for _, n := range r.Chunks {
		total += n
	}
	return total
}
