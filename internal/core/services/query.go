package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/folio/internal/core/domain"
	"github.com/custodia-labs/folio/internal/core/ports/driven"
	"github.com/custodia-labs/folio/internal/core/ports/driving"
	"github.com/custodia-labs/folio/internal/logger"
)

// Ensure QueryService implements the interface.
var _ driving.QueryService = (*QueryService)(nil)

// QueryConfig sets retrieval depth per strategy.
type QueryConfig struct {
	// DirectK is the number of hits for the direct strategy.
	DirectK int

	// SubQueryK is the number of hits per sub-query.
	SubQueryK int

	// SubQueryTimeout bounds one sub-query search. Zero means no bound.
	SubQueryTimeout time.Duration
}

// QueryService routes questions, collects evidence and synthesises answers.
// It holds no per-query state, so concurrent calls need no coordination.
type QueryService struct {
	router      *Router
	generator   *SubQueryGenerator
	index       driven.VectorIndex
	store       driven.ContentStore
	synthesizer *AnswerSynthesizer
	metrics     driven.Metrics
	cfg         QueryConfig
}

// NewQueryService creates a query service.
// The synthesizer is optional; without it Ask returns evidence and no text.
func NewQueryService(
	router *Router,
	generator *SubQueryGenerator,
	index driven.VectorIndex,
	store driven.ContentStore,
	synthesizer *AnswerSynthesizer,
	cfg QueryConfig,
) *QueryService {
	if cfg.DirectK < 1 {
		cfg.DirectK = domain.DefaultDirectK
	}
	if cfg.SubQueryK < 1 {
		cfg.SubQueryK = domain.DefaultSubQueryK
	}
	return &QueryService{
		router:      router,
		generator:   generator,
		index:       index,
		store:       store,
		synthesizer: synthesizer,
		cfg:         cfg,
	}
}

// SetMetrics sets the metrics recorder.
func (s *QueryService) SetMetrics(m driven.Metrics) {
	s.metrics = m
}

// Ask retrieves evidence for query and synthesises an answer from it.
func (s *QueryService) Ask(ctx context.Context, query string) (*domain.Answer, error) {
	start := time.Now()

	r, err := s.Retrieve(ctx, query)
	if err != nil {
		return nil, err
	}

	maxEvidence := domain.DefaultMaxEvidence
	if s.synthesizer != nil {
		maxEvidence = s.synthesizer.MaxEvidence()
	}
	evidence := r.Evidence.Truncate(maxEvidence)
	if s.metrics != nil {
		s.metrics.EvidenceSize(len(evidence))
	}

	answer := &domain.Answer{
		Query:      r.Query.Text,
		Strategy:   r.Strategy,
		SubQueries: r.SubQueries,
		Evidence:   evidence,
		Partial:    r.Partial,
	}

	if s.synthesizer.Available() {
		logger.Debug("Synthesising from %d evidence items", len(evidence))
		text, err := s.synthesizer.Synthesize(ctx, r.Query.Text, evidence)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrLLMUnavailable, err)
		}
		answer.Text = text
	} else {
		logger.Debug("No LLM configured, returning evidence only")
	}

	answer.Elapsed = time.Since(start)
	return answer, nil
}

// Retrieve routes query and collects its evidence set.
func (s *QueryService) Retrieve(ctx context.Context, query string) (*domain.Retrieval, error) {
	logger.Section("Retrieval")

	q := domain.NewQuery(query)
	if q.Text == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}

	strategy := s.router.Decide(q)
	if s.metrics != nil {
		s.metrics.StrategyChosen(strategy)
	}
	logger.Info("Strategy: %s (%d words, threshold %d)", strategy.Description(), q.WordCount(), s.router.Threshold())

	r := &domain.Retrieval{Query: q, Strategy: strategy}

	if strategy == domain.StrategyDirect {
		evidence, err := s.Search(ctx, q.Text, s.cfg.DirectK, nil)
		if err != nil {
			return nil, err
		}
		r.Evidence = evidence
		return r, nil
	}

	partial := &domain.StrategyPartialFailure{}

	subs, err := s.generator.Generate(ctx, q.Text)
	if err != nil {
		logger.Warn("Sub-query generation failed, using the original query: %v", err)
		partial.Add("", err)
		subs = []string{q.Text}
	}
	r.SubQueries = subs

	results := make([]domain.EvidenceSet, len(subs))
	errs := make([]error, len(subs))

	var wg sync.WaitGroup
	for i, sub := range subs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = s.searchSubQuery(ctx, sub)
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	notReady := 0
	var evidence domain.EvidenceSet
	for i, sub := range subs {
		if errs[i] != nil {
			logger.Warn("Sub-query %q failed: %v", sub, errs[i])
			partial.Add(sub, errs[i])
			if s.metrics != nil {
				s.metrics.SubQueryFailed()
			}
			if errors.Is(errs[i], domain.ErrIndexNotReady) {
				notReady++
			}
			continue
		}
		evidence = append(evidence, results[i]...)
	}

	// An index with no records is a configuration problem, not partial evidence.
	if notReady == len(subs) {
		return nil, domain.ErrIndexNotReady
	}

	r.Evidence = evidence.Dedupe()
	r.Partial = partial.OrNil()
	logger.Debug("Evidence: %d items from %d sub-queries", len(r.Evidence), len(subs))
	return r, nil
}

// searchSubQuery runs one bounded sub-query search.
func (s *QueryService) searchSubQuery(ctx context.Context, sub string) (domain.EvidenceSet, error) {
	if s.cfg.SubQueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.SubQueryTimeout)
		defer cancel()
	}
	return s.Search(ctx, sub, s.cfg.SubQueryK, nil)
}

// Search ranks chunks for text and resolves them against the content store,
// preserving rank order. Ids missing from the store are returned unresolved.
func (s *QueryService) Search(
	ctx context.Context, text string, k int, filter domain.TypeFilter,
) (domain.EvidenceSet, error) {
	hits, err := s.index.Search(ctx, text, k, filter)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return s.resolve(ctx, hits)
}

// resolve looks up the full chunk of every hit.
func (s *QueryService) resolve(ctx context.Context, hits []driven.VectorHit) (domain.EvidenceSet, error) {
	evidence := make(domain.EvidenceSet, 0, len(hits))
	for _, hit := range hits {
		e := domain.Evidence{ChunkID: hit.ChunkID, Score: hit.Similarity}

		chunk, err := s.store.Get(ctx, hit.ChunkID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			logger.Debug("Chunk %s not in content store", hit.ChunkID)
		case err != nil:
			return nil, fmt.Errorf("resolve %s: %w", hit.ChunkID, err)
		default:
			e.Chunk = chunk
			if chunk.Type == domain.ChunkTypeImage {
				if sum, err := s.store.GetSummary(ctx, hit.ChunkID); err == nil {
					e.Summary = sum.Text
				}
			}
		}

		evidence = append(evidence, e)
	}
	return evidence, nil
}
