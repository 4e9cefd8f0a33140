package driven

import (
	"time"

	"github.com/custodia-labs/folio/internal/core/domain"
)

// Metrics records pipeline events. Implementations must be safe for concurrent use.
type Metrics interface {
	// ChunkExtracted counts one extracted chunk.
	ChunkExtracted(t domain.ChunkType)

	// ExtractionFailed counts an isolated page, image or table failure.
	ExtractionFailed(item string)

	// DocumentFailed counts a document that could not be ingested.
	DocumentFailed()

	// SummaryDone records one summarisation and whether it degraded.
	SummaryDone(t domain.ChunkType, degraded bool, elapsed time.Duration)

	// StrategyChosen counts a routing decision.
	StrategyChosen(s domain.Strategy)

	// SubQueryFailed counts a failed retrieval step.
	SubQueryFailed()

	// EvidenceSize records the size of an evidence set handed to synthesis.
	EvidenceSize(n int)
}
