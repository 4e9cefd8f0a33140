package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidChunk indicates a chunk violates its variant's invariants.
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrUnsupportedType indicates no normaliser handles a document type.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrIndexNotReady indicates a search on an index with no records.
	// It separates an unconfigured corpus from a legitimately empty result.
	ErrIndexNotReady = errors.New("vector index not initialised")

	// ErrCorpusMissing indicates no persisted corpus exists at the path.
	ErrCorpusMissing = errors.New("corpus not found")

	// ErrCorpusMismatch indicates the index and content store share no ids.
	ErrCorpusMismatch = errors.New("corpus index and content store do not match")

	// ErrDimensionMismatch indicates vectors from different embedding models.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrLLMUnavailable indicates the LLM service is not configured or unreachable.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured or unreachable.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrVisionUnavailable indicates no vision-capable model is configured.
	ErrVisionUnavailable = errors.New("vision service unavailable")

	// ErrRateLimited indicates the API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")

	// Ingestion and query-time failure kinds.

	// ErrExtraction matches every ExtractionError.
	ErrExtraction = errors.New("extraction failed")

	// ErrSummarization matches every SummarizationError.
	ErrSummarization = errors.New("summarization failed")

	// ErrPartialFailure matches every StrategyPartialFailure.
	ErrPartialFailure = errors.New("retrieval partially failed")
)

// ExtractionError reports one page, image or table that could not be extracted.
type ExtractionError struct {
	Source string
	Page   int

	// Item names the failed element, e.g. "image Im3" or "page".
	Item string

	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s page %d %s: %v", e.Source, e.Page, e.Item, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Is reports whether target is ErrExtraction.
func (e *ExtractionError) Is(target error) bool { return target == ErrExtraction }

// SummarizationError reports a chunk whose summary could not be produced.
type SummarizationError struct {
	ChunkID string
	Err     error
}

func (e *SummarizationError) Error() string {
	return fmt.Sprintf("summarize %s: %v", e.ChunkID, e.Err)
}

func (e *SummarizationError) Unwrap() error { return e.Err }

// Is reports whether target is ErrSummarization.
func (e *SummarizationError) Is(target error) bool { return target == ErrSummarization }

// SubQueryFailure is one failed step of the decomposed strategy.
// An empty SubQuery denotes the generation step.
type SubQueryFailure struct {
	SubQuery string
	Err      error
}

// StrategyPartialFailure lists the steps of a retrieval that failed.
// The retrieval still returns the evidence that was collected.
type StrategyPartialFailure struct {
	Failures []SubQueryFailure
}

func (e *StrategyPartialFailure) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		if f.SubQuery == "" {
			parts[i] = fmt.Sprintf("sub-query generation: %v", f.Err)
		} else {
			parts[i] = fmt.Sprintf("sub-query %q: %v", f.SubQuery, f.Err)
		}
	}
	return fmt.Sprintf("%d retrieval step(s) failed: %s", len(e.Failures), strings.Join(parts, "; "))
}

// Is reports whether target is ErrPartialFailure.
func (e *StrategyPartialFailure) Is(target error) bool { return target == ErrPartialFailure }

// Add records a failure.
func (e *StrategyPartialFailure) Add(subQuery string, err error) {
	e.Failures = append(e.Failures, SubQueryFailure{SubQuery: subQuery, Err: err})
}

// OrNil returns nil when nothing failed.
func (e *StrategyPartialFailure) OrNil() *StrategyPartialFailure {
	if e == nil || len(e.Failures) == 0 {
		return nil
	}
	return e
}

// RateLimitError reports throttling by an external service.
type RateLimitError struct {
	Service    string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: rate limited, retry after %s", e.Service, e.RetryAfter)
	}
	return e.Service + ": rate limited"
}

// Is reports whether target is ErrRateLimited.
func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }

// ParseRetryAfter parses a Retry-After header given in seconds.
func ParseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// IsRateLimited reports whether err carries throttling by an external service.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}
