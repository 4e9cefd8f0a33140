package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/folio/internal/core/domain"
	"github.com/custodia-labs/folio/internal/core/ports/driven"
	"github.com/custodia-labs/folio/internal/logger"
)

// describeImagePrompt is used when no prompt store is configured.
const describeImagePrompt = "Describe this image in detail. Focus on its key features, " +
	"any text, labels or data it shows, and what it is relevant to."

// rateLimitAttempts is how often a throttled image is tried in total.
const rateLimitAttempts = 2

// SummarizerConfig bounds image summarisation.
type SummarizerConfig struct {
	// Workers is the number of images described concurrently.
	Workers int

	// Timeout bounds one vision call. Zero means no bound.
	Timeout time.Duration
}

// Summarizer produces the embedding surrogate of every chunk.
// Text and table summaries are the chunk content. Image summaries come from
// the vision service through a bounded worker pool paced by a shared limiter;
// a failure degrades that chunk only.
type Summarizer struct {
	vision  driven.VisionService
	images  driven.ImageStore
	limiter driven.RateLimiter
	prompts driven.PromptStore
	metrics driven.Metrics
	cfg     SummarizerConfig
}

// NewSummarizer creates a summarizer. vision, limiter, prompts and metrics may be nil;
// without vision every image summary is degraded.
func NewSummarizer(
	vision driven.VisionService,
	images driven.ImageStore,
	limiter driven.RateLimiter,
	prompts driven.PromptStore,
	metrics driven.Metrics,
	cfg SummarizerConfig,
) *Summarizer {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Summarizer{
		vision:  vision,
		images:  images,
		limiter: limiter,
		prompts: prompts,
		metrics: metrics,
		cfg:     cfg,
	}
}

// Summarize returns one summary per chunk, in chunk order. It never fails:
// chunks that could not be summarised get a degraded summary.
func (s *Summarizer) Summarize(ctx context.Context, chunks []domain.Chunk) []domain.Summary {
	summaries := make([]domain.Summary, len(chunks))

	var images []int
	for i, c := range chunks {
		if c.Type == domain.ChunkTypeImage {
			images = append(images, i)
			continue
		}
		summaries[i] = domain.NewSummary(c.ID, c.Content)
		s.record(c.Type, false, 0)
	}
	if len(images) == 0 {
		return summaries
	}

	logger.Debug("Describing %d images with %d workers", len(images), s.cfg.Workers)
	prompt := s.prompt()

	g := new(errgroup.Group)
	g.SetLimit(s.cfg.Workers)
	for _, i := range images {
		g.Go(func() error {
			start := time.Now()
			text, err := s.describe(ctx, chunks[i], prompt)
			if err != nil {
				serr := &domain.SummarizationError{ChunkID: chunks[i].ID, Err: err}
				logger.Warn("%v", serr)
				summaries[i] = domain.DegradedSummary(chunks[i].ID, err)
				s.record(domain.ChunkTypeImage, true, time.Since(start))
				return nil
			}
			summaries[i] = domain.NewSummary(chunks[i].ID, text)
			s.record(domain.ChunkTypeImage, false, time.Since(start))
			return nil
		})
	}
	_ = g.Wait()

	return summaries
}

// describe runs one image through the vision service, retrying once after
// the service reports throttling.
func (s *Summarizer) describe(ctx context.Context, c domain.Chunk, prompt string) (string, error) {
	if s.vision == nil {
		return "", domain.ErrVisionUnavailable
	}
	if s.images == nil {
		return "", fmt.Errorf("%w: no image store", domain.ErrInvalidInput)
	}

	data, err := s.images.Read(c.Content)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	mimeType := "image/png"
	if c.Image != nil && c.Image.Format != "" {
		mimeType = "image/" + c.Image.Format
	}

	for attempt := 1; ; attempt++ {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return "", err
			}
		}

		text, err := s.call(ctx, data, mimeType, prompt)
		if err == nil {
			return text, nil
		}

		var rle *domain.RateLimitError
		if !errors.As(err, &rle) || attempt >= rateLimitAttempts {
			return "", err
		}
		logger.Debug("Vision service throttled on %s, backing off %s", c.ID, rle.RetryAfter)
		if s.limiter != nil {
			s.limiter.RecordRateLimitError(rle.RetryAfter)
		}
	}
}

// call performs one bounded vision request.
func (s *Summarizer) call(ctx context.Context, data []byte, mimeType, prompt string) (string, error) {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	text, err := s.vision.DescribeImage(ctx, data, mimeType, prompt)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("empty description")
	}
	return text, nil
}

func (s *Summarizer) prompt() string {
	if s.prompts == nil {
		return describeImagePrompt
	}
	p, err := s.prompts.Load(driven.PromptDescribeImage)
	if err != nil || p == "" {
		return describeImagePrompt
	}
	return p
}

func (s *Summarizer) record(t domain.ChunkType, degraded bool, elapsed time.Duration) {
	if s.metrics != nil {
		s.metrics.SummaryDone(t, degraded, elapsed)
	}
}
