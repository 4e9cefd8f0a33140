package ai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/folio/internal/adapters/driven/embedding/cached"
	"github.com/custodia-labs/folio/internal/core/domain"
)

func ollamaServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestInitResult_Close(t *testing.T) {
	t.Run("close with nil services", func(t *testing.T) {
		result := &InitResult{}
		// Should not panic
		result.Close()
	})
}

func TestCreateEmbeddingService(t *testing.T) {
	tests := []struct {
		name     string
		settings *domain.EmbeddingSettings
		wantNil  bool
		wantDims int
	}{
		{name: "nil settings returns nil", settings: nil, wantNil: true},
		{name: "unconfigured settings returns nil", settings: &domain.EmbeddingSettings{}, wantNil: true},
		{
			name:     "local provider uses hashing embedder",
			settings: &domain.EmbeddingSettings{Provider: domain.AIProviderLocal, Dimensions: 64},
			wantDims: 64,
		},
		{
			name:     "local provider defaults dimensions",
			settings: &domain.EmbeddingSettings{Provider: domain.AIProviderLocal},
			wantDims: 512,
		},
		{
			name: "ollama provider uses known model dimensions",
			settings: &domain.EmbeddingSettings{
				Provider: domain.AIProviderOllama,
				BaseURL:  "http://localhost:11434",
				Model:    "mxbai-embed-large",
			},
			wantDims: 1024,
		},
		{
			name: "openai provider creates service",
			settings: &domain.EmbeddingSettings{
				Provider: domain.AIProviderOpenAI,
				APIKey:   "test-key",
				Model:    "text-embedding-3-small",
			},
			wantDims: 1536,
		},
		{
			name: "explicit dimensions win over known model",
			settings: &domain.EmbeddingSettings{
				Provider:   domain.AIProviderOpenAI,
				APIKey:     "test-key",
				Model:      "text-embedding-3-large",
				Dimensions: 256,
			},
			wantDims: 256,
		},
		{
			name:     "anthropic is not an embedding provider",
			settings: &domain.EmbeddingSettings{Provider: domain.AIProviderAnthropic, APIKey: "k"},
			wantNil:  true,
		},
		{
			name:     "openai without key is not configured",
			settings: &domain.EmbeddingSettings{Provider: domain.AIProviderOpenAI},
			wantNil:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := CreateEmbeddingService(tt.settings)
			require.NoError(t, err)

			if tt.wantNil {
				assert.Nil(t, svc)
				return
			}
			require.NotNil(t, svc)
			defer svc.Close()
			assert.Equal(t, tt.wantDims, svc.Dimensions())
		})
	}
}

func TestCreateLLMService(t *testing.T) {
	tests := []struct {
		name      string
		settings  *domain.LLMSettings
		wantNil   bool
		wantModel string
	}{
		{name: "nil settings returns nil", settings: nil, wantNil: true},
		{name: "unconfigured settings returns nil", settings: &domain.LLMSettings{}, wantNil: true},
		{
			name:     "local provider has no LLM",
			settings: &domain.LLMSettings{Provider: domain.AIProviderLocal},
			wantNil:  true,
		},
		{
			name:      "ollama provider creates service",
			settings:  &domain.LLMSettings{Provider: domain.AIProviderOllama, Model: "llama3.2"},
			wantModel: "llama3.2",
		},
		{
			name:      "openai provider creates service",
			settings:  &domain.LLMSettings{Provider: domain.AIProviderOpenAI, APIKey: "k", Model: "gpt-4o-mini"},
			wantModel: "gpt-4o-mini",
		},
		{
			name: "anthropic provider creates service",
			settings: &domain.LLMSettings{
				Provider: domain.AIProviderAnthropic,
				APIKey:   "k",
				Model:    "claude-3-5-sonnet-latest",
			},
			wantModel: "claude-3-5-sonnet-latest",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := CreateLLMService(tt.settings)
			require.NoError(t, err)

			if tt.wantNil {
				assert.Nil(t, svc)
				return
			}
			require.NotNil(t, svc)
			defer svc.Close()
			assert.Equal(t, tt.wantModel, svc.ModelName())
		})
	}
}

func TestCreateVisionService(t *testing.T) {
	t.Run("empty model selects the vision default", func(t *testing.T) {
		svc, err := CreateVisionService(&domain.LLMSettings{Provider: domain.AIProviderOllama})
		require.NoError(t, err)
		require.NotNil(t, svc)
		assert.Equal(t, "llava", svc.ModelName())
	})

	t.Run("explicit model is kept", func(t *testing.T) {
		svc, err := CreateVisionService(&domain.LLMSettings{
			Provider: domain.AIProviderOpenAI,
			APIKey:   "k",
			Model:    "gpt-4o",
		})
		require.NoError(t, err)
		require.NotNil(t, svc)
		assert.Equal(t, "gpt-4o", svc.ModelName())
	})

	t.Run("settings are not modified", func(t *testing.T) {
		settings := &domain.LLMSettings{Provider: domain.AIProviderOllama}
		_, err := CreateVisionService(settings)
		require.NoError(t, err)
		assert.Empty(t, settings.Model)
	})

	t.Run("unconfigured returns nil", func(t *testing.T) {
		svc, err := CreateVisionService(&domain.LLMSettings{})
		require.NoError(t, err)
		assert.Nil(t, svc)
	})
}

func TestCreateAndValidateEmbeddingService(t *testing.T) {
	t.Run("reachable ollama", func(t *testing.T) {
		srv := ollamaServer(t, http.StatusOK)
		svc, err := CreateAndValidateEmbeddingService(&domain.EmbeddingSettings{
			Provider: domain.AIProviderOllama,
			BaseURL:  srv.URL,
		})
		require.NoError(t, err)
		require.NotNil(t, svc)
	})

	t.Run("unreachable ollama", func(t *testing.T) {
		srv := ollamaServer(t, http.StatusInternalServerError)
		svc, err := CreateAndValidateEmbeddingService(&domain.EmbeddingSettings{
			Provider: domain.AIProviderOllama,
			BaseURL:  srv.URL,
		})
		require.Error(t, err)
		assert.Nil(t, svc)
		assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
		assert.Contains(t, err.Error(), "folio check")
	})
}

func TestCreateAndValidateVisionService_Unreachable(t *testing.T) {
	srv := ollamaServer(t, http.StatusServiceUnavailable)

	svc, err := CreateAndValidateVisionService(&domain.LLMSettings{
		Provider: domain.AIProviderOllama,
		BaseURL:  srv.URL,
	})

	require.Error(t, err)
	assert.Nil(t, svc)
	assert.ErrorIs(t, err, domain.ErrVisionUnavailable)
}

func TestInitialise(t *testing.T) {
	t.Run("defaults give a local embedder and no LLM", func(t *testing.T) {
		settings := domain.DefaultSettings()

		result, err := Initialise(&settings)
		require.NoError(t, err)
		defer result.Close()

		require.NotNil(t, result.Embedding)
		assert.Equal(t, "hashing-512", result.Embedding.ModelName())
		assert.Nil(t, result.LLM)
		assert.Nil(t, result.Vision)
		assert.Empty(t, result.Warnings)
	})

	t.Run("unreachable LLM degrades with a warning", func(t *testing.T) {
		srv := ollamaServer(t, http.StatusBadGateway)
		settings := domain.DefaultSettings()
		settings.LLM = domain.LLMSettings{Provider: domain.AIProviderOllama, BaseURL: srv.URL}

		result, err := Initialise(&settings)
		require.NoError(t, err)
		defer result.Close()

		assert.Nil(t, result.LLM)
		require.Len(t, result.Warnings, 1)
		assert.Contains(t, result.Warnings[0], domain.ErrLLMUnavailable.Error())
	})

	t.Run("missing embedding provider is fatal", func(t *testing.T) {
		settings := domain.DefaultSettings()
		settings.Embedding.Provider = domain.AIProviderOpenAI

		_, err := Initialise(&settings)
		assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	})
}

func TestCreateEmbeddingCache(t *testing.T) {
	t.Run("none", func(t *testing.T) {
		c, err := CreateEmbeddingCache(&domain.CacheSettings{Backend: domain.CacheNone})
		require.NoError(t, err)
		assert.Nil(t, c)
	})

	t.Run("memory", func(t *testing.T) {
		c, err := CreateEmbeddingCache(&domain.CacheSettings{Backend: domain.CacheMemory, TTLSeconds: 60})
		require.NoError(t, err)
		require.NotNil(t, c)
		defer c.Close()

		require.NoError(t, c.Set(context.Background(), "k", []float32{1}, 0))
		v, ok, err := c.Get(context.Background(), "k")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []float32{1}, v)
	})

	t.Run("redis with bad url", func(t *testing.T) {
		_, err := CreateEmbeddingCache(&domain.CacheSettings{Backend: domain.CacheRedis, RedisURL: "not a url"})
		assert.Error(t, err)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := CreateEmbeddingCache(&domain.CacheSettings{Backend: "disk"})
		assert.Error(t, err)
	})
}

func TestWithQueryCache(t *testing.T) {
	settings := domain.DefaultSettings()
	base, err := CreateEmbeddingService(&settings.Embedding)
	require.NoError(t, err)

	t.Run("memory backend wraps", func(t *testing.T) {
		svc := WithQueryCache(base, &domain.CacheSettings{Backend: domain.CacheMemory, TTLSeconds: 60})
		_, ok := svc.(*cached.EmbeddingService)
		assert.True(t, ok)
		assert.Equal(t, base.ModelName(), svc.ModelName())
	})

	t.Run("none backend returns the service", func(t *testing.T) {
		svc := WithQueryCache(base, &domain.CacheSettings{Backend: domain.CacheNone})
		assert.Same(t, base, svc)
	})

	t.Run("failing backend returns the service", func(t *testing.T) {
		svc := WithQueryCache(base, &domain.CacheSettings{Backend: domain.CacheRedis, RedisURL: "::"})
		assert.Same(t, base, svc)
	})
}
