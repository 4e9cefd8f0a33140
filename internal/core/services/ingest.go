package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/folio/internal/core/domain"
	"github.com/custodia-labs/folio/internal/core/ports/driven"
	"github.com/custodia-labs/folio/internal/core/ports/driving"
	"github.com/custodia-labs/folio/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// documentStarter is implemented by pipelines with per-document state.
type documentStarter interface {
	StartDocument(source string)
}

// IngestConfig controls an ingestion service.
type IngestConfig struct {
	// Workers is the number of documents extracted concurrently.
	Workers int

	// Mode is recorded in reports. The corpus handed to the service
	// decides whether the run starts empty.
	Mode domain.IngestMode
}

// IngestService builds the corpus: extract, store, summarise, index, persist.
type IngestService struct {
	connector  driven.Connector
	registry   driven.NormaliserRegistry
	pipeline   driven.PostProcessorPipeline
	summarizer *Summarizer
	store      driven.ContentStore
	index      driven.VectorIndex
	saver      driven.CorpusSaver
	metrics    driven.Metrics
	cfg        IngestConfig
}

// NewIngestService creates an ingestion service.
// The saver is optional; without it the run is not persisted.
func NewIngestService(
	connector driven.Connector,
	registry driven.NormaliserRegistry,
	pipeline driven.PostProcessorPipeline,
	summarizer *Summarizer,
	store driven.ContentStore,
	index driven.VectorIndex,
	saver driven.CorpusSaver,
	cfg IngestConfig,
) *IngestService {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if !cfg.Mode.IsValid() {
		cfg.Mode = domain.IngestModeRebuild
	}
	return &IngestService{
		connector:  connector,
		registry:   registry,
		pipeline:   pipeline,
		summarizer: summarizer,
		store:      store,
		index:      index,
		saver:      saver,
		cfg:        cfg,
	}
}

// SetMetrics sets the metrics recorder.
func (s *IngestService) SetMetrics(m driven.Metrics) {
	s.metrics = m
}

// documentResult is the extraction outcome of one document.
type documentResult struct {
	ref      domain.DocumentRef
	chunks   []domain.Chunk
	pages    int
	failures int
	err      error
}

// Ingest processes every supported document in dir.
func (s *IngestService) Ingest(ctx context.Context, dir string) (*domain.IngestReport, error) {
	logger.Section("Ingestion")
	logger.Debug("Directory: %s, mode: %s, workers: %d", dir, s.cfg.Mode, s.cfg.Workers)

	refs, err := s.connector.List(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	report := domain.NewIngestReport(uuid.NewString(), s.cfg.Mode)
	if err := s.run(ctx, s.supported(refs), report, false); err != nil {
		return report, err
	}
	return report, nil
}

// IngestFiles re-ingests the given documents in append mode. Every chunk of
// a document is removed before its new chunks are stored, so pages or images
// that disappeared do not linger.
func (s *IngestService) IngestFiles(ctx context.Context, paths []string) (*domain.IngestReport, error) {
	refs := make([]domain.DocumentRef, 0, len(paths))
	for _, p := range paths {
		refs = append(refs, s.connector.Ref(p))
	}

	report := domain.NewIngestReport(uuid.NewString(), domain.IngestModeAppend)
	if err := s.run(ctx, s.supported(refs), report, true); err != nil {
		return report, err
	}
	return report, nil
}

// Remove deletes the chunks, summaries and index records of the given documents
// and persists the corpus.
func (s *IngestService) Remove(ctx context.Context, paths []string) error {
	removed := 0
	for _, p := range paths {
		ref := s.connector.Ref(p)
		if err := s.store.DeleteSource(ctx, ref.Source); err != nil {
			return fmt.Errorf("remove %s: %w", ref.Source, err)
		}
		n := s.index.DeleteSource(ctx, ref.Source)
		logger.Info("Removed %s (%d index records)", ref.Source, n)
		removed += n
	}
	if removed == 0 || s.saver == nil {
		return nil
	}
	if err := s.saver.Save(ctx, uuid.NewString()); err != nil {
		return fmt.Errorf("save corpus: %w", err)
	}
	return nil
}

// supported drops documents no normaliser handles.
func (s *IngestService) supported(refs []domain.DocumentRef) []domain.DocumentRef {
	types := make(map[string]struct{})
	for _, t := range s.registry.SupportedMIMETypes() {
		types[t] = struct{}{}
	}

	out := refs[:0:0]
	for _, ref := range refs {
		if _, ok := types[ref.MIMEType]; !ok {
			logger.Debug("Skipping %s: %s not supported", ref.Path, ref.MIMEType)
			continue
		}
		out = append(out, ref)
	}
	return out
}

// run extracts documents in parallel, then stores, summarises and indexes
// their chunks in document order. Document and page failures are recorded in
// the report; storage, embedding and persistence failures abort the run.
//
//nolint:gocognit // Pipeline orchestration with sequential steps
func (s *IngestService) run(ctx context.Context, refs []domain.DocumentRef, report *domain.IngestReport, replace bool) error {
	start := time.Now()
	defer func() { report.Elapsed = time.Since(start) }()

	// 1. EXTRACT (per-document isolation)
	results := make([]documentResult, len(refs))
	owners := make(map[string]string, len(refs))
	g := new(errgroup.Group)
	g.SetLimit(s.cfg.Workers)
	for i, ref := range refs {
		results[i].ref = ref
		if owner, ok := owners[ref.Source]; ok {
			results[i].err = fmt.Errorf("%w: document name %q already used by %s",
				domain.ErrInvalidInput, ref.Source, owner)
			continue
		}
		owners[ref.Source] = ref.Path

		g.Go(func() error {
			if ctx.Err() != nil {
				results[i].err = ctx.Err()
				return nil
			}
			s.extract(ctx, &results[i])
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}

	var chunks []domain.Chunk
	for _, r := range results {
		if r.err != nil {
			logger.Warn("Skipping %s: %v", r.ref.Path, r.err)
			report.Failed = append(report.Failed, domain.DocumentFailure{Path: r.ref.Path, Err: r.err})
			if s.metrics != nil {
				s.metrics.DocumentFailed()
			}
			continue
		}
		report.Documents++
		report.Pages += r.pages
		report.ExtractionFailures += r.failures
		chunks = append(chunks, r.chunks...)
	}

	// 2. STORE full content
	for _, r := range results {
		if r.err != nil || !replace {
			continue
		}
		if err := s.store.DeleteSource(ctx, r.ref.Source); err != nil {
			return fmt.Errorf("replace %s: %w", r.ref.Source, err)
		}
		s.index.DeleteSource(ctx, r.ref.Source)
	}
	for _, c := range chunks {
		if err := s.store.Put(ctx, c); err != nil {
			return fmt.Errorf("store chunk %s: %w", c.ID, err)
		}
		report.Chunks[c.Type]++
		if s.metrics != nil {
			s.metrics.ChunkExtracted(c.Type)
		}
	}

	// 3. SUMMARISE
	summaries := s.summarizer.Summarize(ctx, chunks)
	if err := ctx.Err(); err != nil {
		return err
	}

	// 4. INDEX healthy summaries; degraded ones stay in the content store only.
	records := make([]domain.IndexRecord, 0, len(chunks))
	for i, sum := range summaries {
		if err := s.store.PutSummary(ctx, sum); err != nil {
			return fmt.Errorf("store summary %s: %w", sum.ChunkID, err)
		}
		if sum.IsDegraded() {
			report.Degraded = append(report.Degraded, sum.ChunkID)
			if err := s.index.Delete(ctx, sum.ChunkID); err != nil {
				return fmt.Errorf("unindex %s: %w", sum.ChunkID, err)
			}
			continue
		}
		records = append(records, domain.NewIndexRecord(chunks[i], sum))
	}
	if len(records) > 0 {
		logger.Debug("Embedding %d summaries", len(records))
		if err := s.index.EmbedAndAdd(ctx, records); err != nil {
			return fmt.Errorf("index summaries: %w", err)
		}
	}
	report.Indexed = s.index.Len()

	// 5. PERSIST
	if s.saver != nil {
		if err := s.saver.Save(ctx, report.RunID); err != nil {
			return fmt.Errorf("save corpus: %w", err)
		}
	}

	logger.Info("Ingested %d documents (%d failed): %d chunks, %d degraded, %d indexed",
		report.Documents, len(report.Failed), report.TotalChunks(), len(report.Degraded), report.Indexed)
	return nil
}

// extract reads, normalises and chunks one document. A failing page is
// logged and skipped; the rest of the document continues.
func (s *IngestService) extract(ctx context.Context, r *documentResult) {
	logger.Debug("Processing: %s", r.ref.Path)

	raw, err := s.connector.Read(ctx, r.ref)
	if err != nil {
		r.err = err
		return
	}

	pages, err := s.registry.Normalise(ctx, raw)
	if err != nil {
		r.err = fmt.Errorf("normalise: %w", err)
		return
	}
	r.pages = len(pages)

	if starter, ok := s.pipeline.(documentStarter); ok {
		starter.StartDocument(raw.Source)
	}

	for i := range pages {
		if err := ctx.Err(); err != nil {
			r.err = err
			return
		}
		chunks, err := s.pipeline.Process(ctx, &pages[i])
		if err != nil {
			xerr := &domain.ExtractionError{Source: raw.Source, Page: pages[i].Number, Item: "page", Err: err}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				r.err = err
				return
			}
			logger.Warn("%v", xerr)
			r.failures++
			if s.metrics != nil {
				s.metrics.ExtractionFailed("page")
			}
			continue
		}
		r.chunks = append(r.chunks, chunks...)
	}
	logger.Debug("%s: %d pages, %d chunks", raw.Source, len(pages), len(r.chunks))
}
