package services

import "github.com/custodia-labs/folio/internal/core/domain"

// Router picks the retrieval strategy from the query length alone.
// It never consults the corpus.
type Router struct {
	threshold int
}

// NewRouter creates a router. Queries with more than threshold words are
// decomposed; a threshold below 1 uses the default.
func NewRouter(threshold int) *Router {
	if threshold < 1 {
		threshold = domain.DefaultDecomposeThreshold
	}
	return &Router{threshold: threshold}
}

// Threshold returns the word count above which queries are decomposed.
func (r *Router) Threshold() int {
	return r.threshold
}

// Decide returns the strategy for q.
func (r *Router) Decide(q domain.Query) domain.Strategy {
	if q.WordCount() > r.threshold {
		return domain.StrategyDecomposed
	}
	return domain.StrategyDirect
}
