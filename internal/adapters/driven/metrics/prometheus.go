// Package metrics records pipeline events as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/custodia-labs/folio/internal/core/domain"
	"github.com/custodia-labs/folio/internal/core/ports/driven"
	"github.com/custodia-labs/folio/internal/logger"
)

// Ensure Recorder implements the interface.
var _ driven.Metrics = (*Recorder)(nil)

// Namespace prefixes every metric name.
const Namespace = "folio"

// Recorder implements driven.Metrics on a Prometheus registry.
type Recorder struct {
	registry *prometheus.Registry

	chunksExtracted    *prometheus.CounterVec
	extractionFailures *prometheus.CounterVec
	documentsFailed    prometheus.Counter
	summaries          *prometheus.CounterVec
	summariesDegraded  *prometheus.CounterVec
	summaryLatency     *prometheus.HistogramVec
	strategies         *prometheus.CounterVec
	subQueryFailures   prometheus.Counter
	evidenceSize       prometheus.Histogram
}

// New creates a recorder on its own registry, which also carries the Go
// runtime and process collectors.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	f := promauto.With(reg)
	return &Recorder{
		registry: reg,
		chunksExtracted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "chunks_extracted_total",
			Help:      "Chunks extracted from source pages, by chunk type.",
		}, []string{"type"}),
		extractionFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "extraction_failures_total",
			Help:      "Isolated page, image or table extraction failures.",
		}, []string{"item"}),
		documentsFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "documents_failed_total",
			Help:      "Documents that could not be ingested.",
		}),
		summaries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "summaries_total",
			Help:      "Summaries produced, by chunk type.",
		}, []string{"type"}),
		summariesDegraded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "summaries_degraded_total",
			Help:      "Summaries replaced by an error marker, by chunk type.",
		}, []string{"type"}),
		summaryLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "summarization_duration_seconds",
			Help:      "Time spent summarising one chunk.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"type"}),
		strategies: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "strategies_total",
			Help:      "Retrieval strategies chosen by the router.",
		}, []string{"strategy"}),
		subQueryFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "subquery_failures_total",
			Help:      "Failed sub-query generation or sub-query searches.",
		}),
		evidenceSize: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "evidence_size",
			Help:      "Evidence items handed to answer synthesis.",
			Buckets:   prometheus.LinearBuckets(0, 2, 8),
		}),
	}
}

// ChunkExtracted counts one extracted chunk.
func (r *Recorder) ChunkExtracted(t domain.ChunkType) {
	r.chunksExtracted.WithLabelValues(t.String()).Inc()
}

// ExtractionFailed counts an isolated failure.
func (r *Recorder) ExtractionFailed(item string) {
	r.extractionFailures.WithLabelValues(item).Inc()
}

// DocumentFailed counts a document that could not be ingested.
func (r *Recorder) DocumentFailed() {
	r.documentsFailed.Inc()
}

// SummaryDone records one summarisation.
func (r *Recorder) SummaryDone(t domain.ChunkType, degraded bool, elapsed time.Duration) {
	r.summaries.WithLabelValues(t.String()).Inc()
	if degraded {
		r.summariesDegraded.WithLabelValues(t.String()).Inc()
	}
	r.summaryLatency.WithLabelValues(t.String()).Observe(elapsed.Seconds())
}

// StrategyChosen counts a routing decision.
func (r *Recorder) StrategyChosen(s domain.Strategy) {
	r.strategies.WithLabelValues(s.String()).Inc()
}

// SubQueryFailed counts a failed retrieval step.
func (r *Recorder) SubQueryFailed() {
	r.subQueryFailures.Inc()
}

// EvidenceSize records the size of an evidence set.
func (r *Recorder) EvidenceSize(n int) {
	r.evidenceSize.Observe(float64(n))
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (r *Recorder) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Serving metrics on %s/metrics", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
