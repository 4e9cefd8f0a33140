package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/folio/internal/adapters/driven/ai"
	"github.com/custodia-labs/folio/internal/adapters/driven/config/file"
	"github.com/custodia-labs/folio/internal/adapters/driven/corpus"
	"github.com/custodia-labs/folio/internal/adapters/driven/metrics"
	"github.com/custodia-labs/folio/internal/adapters/driven/ratelimit"
	"github.com/custodia-labs/folio/internal/adapters/driven/storage/textlog"
	"github.com/custodia-labs/folio/internal/adapters/driven/vectorindex"
	"github.com/custodia-labs/folio/internal/connectors/filesystem"
	"github.com/custodia-labs/folio/internal/core/domain"
	"github.com/custodia-labs/folio/internal/core/ports/driven"
	"github.com/custodia-labs/folio/internal/core/ports/driving"
	"github.com/custodia-labs/folio/internal/core/services"
	"github.com/custodia-labs/folio/internal/logger"
	"github.com/custodia-labs/folio/internal/normalisers/pdf"
	"github.com/custodia-labs/folio/internal/normalisers/plaintext"
	"github.com/custodia-labs/folio/internal/postprocessors"
)

// openMode selects how the corpus directory is opened.
type openMode int

const (
	// openLoad requires an existing corpus. Ingestion is not wired.
	openLoad openMode = iota

	// openRebuild builds a new corpus that replaces the old one on save.
	openRebuild

	// openAppend loads the corpus, or creates it, and upserts into it.
	openAppend
)

// corpusStats is implemented by *corpus.Corpus.
type corpusStats interface {
	Stats(ctx context.Context) (*corpus.Stats, error)
}

// runtime holds the services one command works with.
type runtime struct {
	Query     driving.QueryService
	Ingest    driving.IngestService
	Connector driven.Connector
	Store     driven.ContentStore
	Corpus    corpusStats
	Metrics   *metrics.Recorder

	closers []func() error
}

// Close releases everything opened by bootstrap, last opened first.
func (r *runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *runtime) onClose(fn func() error) {
	r.closers = append(r.closers, fn)
}

// bootstrap builds the runtime. Tests replace it to inject mocks.
var bootstrap = newRuntime

// newRuntime wires adapters and services from the settings.
func newRuntime(ctx context.Context, s domain.Settings, mode openMode) (_ *runtime, err error) {
	if err := s.Prepare(); err != nil {
		return nil, err
	}

	rt := &runtime{Metrics: metrics.New()}
	defer func() {
		if err != nil {
			rt.Close() //nolint:errcheck // original error is more useful
		}
	}()

	models, err := ai.Initialise(&s)
	if err != nil {
		return nil, err
	}
	rt.onClose(func() error {
		models.Close()
		return nil
	})

	opts := []vectorindex.Option{
		vectorindex.WithBatchSize(s.Embedding.BatchSize),
		vectorindex.WithQueryEmbedder(ai.WithQueryCache(models.Embedding, &s.Embedding.Cache)),
	}

	var c *corpus.Corpus
	switch mode {
	case openRebuild:
		c, err = corpus.Create(ctx, s.Corpus.Dir, models.Embedding, opts...)
	case openAppend:
		c, err = corpus.Open(ctx, s.Corpus.Dir, models.Embedding, opts...)
	default:
		c, err = corpus.Load(ctx, s.Corpus.Dir, models.Embedding, opts...)
	}
	if err != nil {
		if errors.Is(err, domain.ErrCorpusMissing) {
			return nil, fmt.Errorf("%w. Run 'folio ingest <dir>' first", err)
		}
		return nil, err
	}
	rt.onClose(c.Close)
	rt.Store = c.Store
	rt.Corpus = c

	prompts, err := file.NewPromptStore(s.PromptsDir())
	if err != nil {
		return nil, err
	}

	query := services.NewQueryService(
		services.NewRouter(s.Router.DecomposeThreshold),
		services.NewSubQueryGenerator(models.LLM, prompts, s.Router.MaxSubQueries),
		c.Index,
		c.Store,
		services.NewAnswerSynthesizer(models.LLM, prompts, services.AnswerConfig{
			MaxEvidence: s.Answer.MaxEvidence,
			MaxTokens:   s.Answer.MaxTokens,
			Temperature: s.Answer.Temperature,
		}),
		services.QueryConfig{
			DirectK:         s.Router.DirectK,
			SubQueryK:       s.Router.SubQueryK,
			SubQueryTimeout: s.Router.SubQueryTimeout(),
		},
	)
	query.SetMetrics(rt.Metrics)
	rt.Query = query

	if mode == openLoad {
		return rt, nil
	}

	images := c.Images
	deps := postprocessors.Deps{Images: images, Metrics: rt.Metrics}
	if s.Ingest.TextLog {
		log, err := textlog.Open(s.TextLogPath(), mode == openRebuild)
		if err != nil {
			return nil, err
		}
		rt.onClose(log.Close)
		deps.Log = log
	}

	connector := filesystem.New()
	rt.onClose(connector.Close)
	rt.Connector = connector

	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerSecond: s.Summarization.RequestsPerSecond,
		Burst:             s.Summarization.Burst,
	})

	ingestMode := domain.IngestModeRebuild
	if mode == openAppend {
		ingestMode = domain.IngestModeAppend
	}

	ingest := services.NewIngestService(
		connector,
		services.NewNormaliserRegistry(pdf.New(), plaintext.New()),
		postprocessors.NewDefaultPipeline(s, deps),
		services.NewSummarizer(models.Vision, images, limiter, prompts, rt.Metrics, services.SummarizerConfig{
			Workers: s.Summarization.Workers,
			Timeout: s.Summarization.Timeout(),
		}),
		c.Store,
		c.Index,
		c,
		services.IngestConfig{Workers: s.Ingest.Workers, Mode: ingestMode},
	)
	ingest.SetMetrics(rt.Metrics)
	rt.Ingest = ingest
	return rt, nil
}

// serveMetrics exposes /metrics in the background when an address is configured.
func serveMetrics(ctx context.Context, rt *runtime, addr string) {
	if addr == "" || rt.Metrics == nil {
		return
	}
	go func() {
		if err := rt.Metrics.Serve(ctx, addr); err != nil {
			logger.Error("Metrics server: %v", err)
		}
	}()
}
