// Package ai provides factory functions for creating AI service adapters.
package ai

import (
	"context"
	"fmt"
	"time"

	memorycache "github.com/custodia-labs/folio/internal/adapters/driven/cache/memory"
	rediscache "github.com/custodia-labs/folio/internal/adapters/driven/cache/redis"
	"github.com/custodia-labs/folio/internal/adapters/driven/embedding/cached"
	"github.com/custodia-labs/folio/internal/adapters/driven/embedding/hashing"
	ollamaembed "github.com/custodia-labs/folio/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/folio/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/custodia-labs/folio/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/custodia-labs/folio/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/folio/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/folio/internal/core/domain"
	"github.com/custodia-labs/folio/internal/core/ports/driven"
	"github.com/custodia-labs/folio/internal/logger"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// fixHint is appended to configuration errors.
const fixHint = "Check the provider settings in folio.toml and run 'folio check'"

// pinger is implemented by every remote adapter.
type pinger interface {
	Ping(ctx context.Context) error
}

// closer is implemented by adapters holding resources.
type closer interface {
	Close() error
}

// InitResult contains the result of AI service initialisation.
type InitResult struct {
	Embedding driven.EmbeddingService
	LLM       driven.LLMService
	Vision    driven.VisionService
	Warnings  []string // Non-fatal issues that caused fallback.
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() {
	if r.Embedding != nil {
		r.Embedding.Close()
	}
	if r.LLM != nil {
		r.LLM.Close()
	}
	if c, ok := r.Vision.(closer); ok {
		c.Close()
	}
}

// Initialise creates the services a run needs. The embedding service is
// required; the LLM and vision services degrade to nil with a warning.
func Initialise(settings *domain.Settings) (*InitResult, error) {
	result := &InitResult{}

	emb, err := CreateAndValidateEmbeddingService(&settings.Embedding)
	if err != nil {
		return nil, err
	}
	if emb == nil {
		return nil, fmt.Errorf("%w: embedding provider %q is not configured. %s",
			domain.ErrEmbeddingUnavailable, settings.Embedding.Provider, fixHint)
	}
	result.Embedding = emb

	llm, err := CreateAndValidateLLMService(&settings.LLM)
	if err != nil {
		result.Warnings = append(result.Warnings, err.Error())
	}
	result.LLM = llm

	vision, err := CreateAndValidateVisionService(&settings.Vision)
	if err != nil {
		result.Warnings = append(result.Warnings, err.Error())
	}
	result.Vision = vision

	for _, w := range result.Warnings {
		logger.Warn("%s", w)
	}
	return result, nil
}

// CreateAndValidateEmbeddingService creates an embedding service and validates connectivity.
// Returns the service if successful, or an error with guidance.
func CreateAndValidateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. %s", domain.ErrEmbeddingUnavailable, err, fixHint)
	}

	if svc == nil {
		return nil, nil
	}

	// Validate connectivity.
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w). %s",
			domain.ErrEmbeddingUnavailable, err, fixHint)
	}

	return svc, nil
}

// CreateAndValidateLLMService creates an LLM service and validates connectivity.
// Returns the service if successful, or an error with guidance.
func CreateAndValidateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	svc, err := CreateLLMService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. %s", domain.ErrLLMUnavailable, err, fixHint)
	}

	if svc == nil {
		return nil, nil
	}

	// Validate connectivity.
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w). %s",
			domain.ErrLLMUnavailable, err, fixHint)
	}

	return svc, nil
}

// CreateAndValidateVisionService creates a vision service and validates connectivity.
func CreateAndValidateVisionService(settings *domain.LLMSettings) (driven.VisionService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	svc, err := CreateVisionService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. %s", domain.ErrVisionUnavailable, err, fixHint)
	}

	if p, ok := svc.(pinger); ok {
		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		defer cancel()

		if err := p.Ping(ctx); err != nil {
			if c, ok := svc.(closer); ok {
				c.Close()
			}
			return nil, fmt.Errorf("%w: service unreachable (%w). %s",
				domain.ErrVisionUnavailable, err, fixHint)
		}
	}

	return svc, nil
}

// ValidateEmbeddingConfig validates an embedding configuration by creating a service and pinging it.
// This is intended for use by the check command.
func ValidateEmbeddingConfig(settings *domain.EmbeddingSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}

	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return err
	}
	if svc == nil {
		return nil
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return svc.Ping(ctx)
}

// ValidateLLMConfig validates an LLM configuration by creating a service and pinging it.
// This is intended for use by the check command.
func ValidateLLMConfig(settings *domain.LLMSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}

	svc, err := CreateLLMService(settings)
	if err != nil {
		return err
	}
	if svc == nil {
		return nil
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return svc.Ping(ctx)
}

// CreateEmbeddingService creates the appropriate embedding service based on settings.
// Returns nil if the provider is not configured.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderLocal:
		return hashing.NewEmbeddingService(settings.Dimensions), nil

	case domain.AIProviderOllama:
		return createOllamaEmbedding(settings), nil

	case domain.AIProviderOpenAI:
		return createOpenAIEmbedding(settings)

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", settings.Provider)
	}
}

// CreateLLMService creates the appropriate LLM service based on settings.
// Returns nil if the provider is not configured.
func CreateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}
	return createChatModel(settings)
}

// CreateVisionService creates an image-capable model client.
// An empty model selects the provider's default vision model.
func CreateVisionService(settings *domain.LLMSettings) (driven.VisionService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	s := *settings
	if s.Model == "" {
		s.Model = domain.DefaultVisionModels()[s.Provider]
	}
	return createChatModel(&s)
}

// CreateEmbeddingCache creates the query embedding cache selected by settings.
// Returns nil for the none backend.
func CreateEmbeddingCache(settings *domain.CacheSettings) (driven.EmbeddingCache, error) {
	if settings == nil {
		return nil, nil
	}

	switch settings.Backend {
	case domain.CacheNone, "":
		return nil, nil

	case domain.CacheMemory:
		return memorycache.New(settings.TTL()), nil

	case domain.CacheRedis:
		c, err := rediscache.New(settings.RedisURL, settings.TTL())
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		defer cancel()
		if err := c.Ping(ctx); err != nil {
			c.Close()
			return nil, fmt.Errorf("redis cache unreachable: %w", err)
		}
		return c, nil

	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", settings.Backend)
	}
}

// WithQueryCache wraps svc with the configured embedding cache.
// When the cache cannot be created, svc is returned unchanged with a warning.
func WithQueryCache(svc driven.EmbeddingService, settings *domain.CacheSettings) driven.EmbeddingService {
	cache, err := CreateEmbeddingCache(settings)
	if err != nil {
		logger.Warn("Query embedding cache disabled: %v", err)
		return svc
	}
	if cache == nil {
		return svc
	}
	return cached.New(svc, cache, settings.TTL())
}

// embeddingDimensions resolves the vector size from explicit settings or known models.
func embeddingDimensions(settings *domain.EmbeddingSettings) int {
	if settings.Dimensions > 0 {
		return settings.Dimensions
	}
	return domain.EmbeddingDimensions()[settings.Model]
}

// createOllamaEmbedding creates an Ollama embedding service.
func createOllamaEmbedding(settings *domain.EmbeddingSettings) driven.EmbeddingService {
	dimensions := embeddingDimensions(settings)
	if dimensions == 0 {
		dimensions = ollamaembed.DefaultDimensions
	}

	return ollamaembed.NewEmbeddingService(ollamaembed.Config{
		BaseURL:    settings.BaseURL,
		Model:      settings.Model,
		Dimensions: dimensions,
		BatchSize:  settings.BatchSize,
	})
}

// createOpenAIEmbedding creates an OpenAI embedding service.
func createOpenAIEmbedding(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	svc, err := openaiembed.NewEmbeddingService(openaiembed.Config{
		APIKey:     settings.APIKey,
		BaseURL:    settings.BaseURL,
		Model:      settings.Model,
		Dimensions: embeddingDimensions(settings),
	})
	if err != nil {
		return nil, err
	}
	return svc, nil
}

// chatModel is implemented by every LLM adapter.
type chatModel interface {
	driven.LLMService
	driven.VisionService
}

// createChatModel creates the LLM adapter for the provider.
func createChatModel(settings *domain.LLMSettings) (chatModel, error) {
	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamallm.NewLLMService(ollamallm.LLMConfig{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		}), nil

	case domain.AIProviderOpenAI:
		svc, err := openaillm.NewLLMService(openaillm.LLMConfig{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})
		if err != nil {
			return nil, err
		}
		return svc, nil

	case domain.AIProviderAnthropic:
		svc, err := anthropicllm.NewLLMService(anthropicllm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})
		if err != nil {
			return nil, err
		}
		return svc, nil

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", settings.Provider)
	}
}
