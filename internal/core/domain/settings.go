package domain

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings, LLM or vision.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"

	// AIProviderLocal is the in-process hashing embedder. Embeddings only.
	AIProviderLocal AIProvider = "local"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic, AIProviderLocal:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama || p == AIProviderLocal
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	case AIProviderLocal:
		return "Hashing embedder (in-process)"
	default:
		return unknownDescription
	}
}

// CorpusSettings locates the persisted corpus.
type CorpusSettings struct {
	// Dir holds index.json, content.db, images/ and the text log.
	Dir string `toml:"dir" yaml:"dir"`
}

// ChunkingSettings is the text window budget.
type ChunkingSettings struct {
	MaxChars     int `toml:"max_chars" yaml:"max_chars"`
	OverlapChars int `toml:"overlap_chars" yaml:"overlap_chars"`
}

// TableSettings tunes the tabular block heuristic.
type TableSettings struct {
	Enabled bool `toml:"enabled" yaml:"enabled"`

	// MinDoubleSpaces is the number of "  " runs a block must exceed.
	MinDoubleSpaces int `toml:"min_double_spaces" yaml:"min_double_spaces"`

	// Delimiters are characters whose presence marks a block as tabular.
	Delimiters string `toml:"delimiters" yaml:"delimiters"`
}

// ImageSettings controls image extraction.
type ImageSettings struct {
	Enabled bool `toml:"enabled" yaml:"enabled"`

	// MinWidth and MinHeight skip decorations smaller than this, in pixels.
	MinWidth  int `toml:"min_width" yaml:"min_width"`
	MinHeight int `toml:"min_height" yaml:"min_height"`
}

// SummarizationSettings bounds calls to the vision service.
type SummarizationSettings struct {
	Workers           int     `toml:"workers" yaml:"workers"`
	RequestsPerSecond float64 `toml:"requests_per_second" yaml:"requests_per_second"`
	Burst             int     `toml:"burst" yaml:"burst"`
	TimeoutSeconds    int     `toml:"timeout_seconds" yaml:"timeout_seconds"`
}

// Timeout returns the per-image timeout.
func (s SummarizationSettings) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// IngestSettings controls ingestion runs.
type IngestSettings struct {
	Workers int        `toml:"workers" yaml:"workers"`
	Mode    IngestMode `toml:"mode" yaml:"mode"`

	// TextLog enables all_text_chunks.txt.
	TextLog bool `toml:"text_log" yaml:"text_log"`
}

// RouterSettings is the retrieval strategy policy.
type RouterSettings struct {
	// DecomposeThreshold: queries with more words than this are decomposed.
	DecomposeThreshold    int `toml:"decompose_threshold" yaml:"decompose_threshold"`
	DirectK               int `toml:"direct_k" yaml:"direct_k"`
	SubQueryK             int `toml:"sub_query_k" yaml:"sub_query_k"`
	MaxSubQueries         int `toml:"max_sub_queries" yaml:"max_sub_queries"`
	SubQueryTimeoutSecond int `toml:"sub_query_timeout_seconds" yaml:"sub_query_timeout_seconds"`
}

// SubQueryTimeout returns the bound on one sub-query search.
func (r RouterSettings) SubQueryTimeout() time.Duration {
	return time.Duration(r.SubQueryTimeoutSecond) * time.Second
}

// AnswerSettings controls answer synthesis.
type AnswerSettings struct {
	MaxEvidence int     `toml:"max_evidence" yaml:"max_evidence"`
	MaxTokens   int     `toml:"max_tokens" yaml:"max_tokens"`
	Temperature float64 `toml:"temperature" yaml:"temperature"`
}

// CacheBackend selects where query embeddings are cached.
type CacheBackend string

// Available cache backends.
const (
	CacheNone   CacheBackend = "none"
	CacheMemory CacheBackend = "memory"
	CacheRedis  CacheBackend = "redis"
)

// IsValid returns true if the backend is recognised.
func (b CacheBackend) IsValid() bool {
	return b == CacheNone || b == CacheMemory || b == CacheRedis
}

// CacheSettings configures the query embedding cache.
type CacheSettings struct {
	Backend    CacheBackend `toml:"backend" yaml:"backend"`
	TTLSeconds int          `toml:"ttl_seconds" yaml:"ttl_seconds"`
	RedisURL   string       `toml:"redis_url" yaml:"redis_url"`
}

// TTL returns the cache entry lifetime.
func (c CacheSettings) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider `toml:"provider" yaml:"provider"`

	// Model is the embedding model name.
	Model string `toml:"model" yaml:"model"`

	// BaseURL is the API endpoint (for Ollama or compatible servers).
	BaseURL string `toml:"base_url" yaml:"base_url"`

	// APIKey is the API key (for OpenAI).
	APIKey string `toml:"api_key" yaml:"api_key"`

	// Dimensions overrides the model's known vector size.
	Dimensions int `toml:"dimensions" yaml:"dimensions"`

	// BatchSize is the number of summaries embedded per request.
	BatchSize int `toml:"batch_size" yaml:"batch_size"`

	Cache CacheSettings `toml:"cache" yaml:"cache"`
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() || e.Provider == AIProviderAnthropic {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds LLM provider configuration. It is also used for the
// vision model, which must accept image input.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider `toml:"provider" yaml:"provider"`

	// Model is the LLM model name.
	Model string `toml:"model" yaml:"model"`

	// BaseURL is the API endpoint (for Ollama or compatible servers).
	BaseURL string `toml:"base_url" yaml:"base_url"`

	// APIKey is the API key (for OpenAI/Anthropic).
	APIKey string `toml:"api_key" yaml:"api_key"`
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() || l.Provider == AIProviderLocal {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// LoggingSettings controls log output.
type LoggingSettings struct {
	Verbose bool   `toml:"verbose" yaml:"verbose"`
	File    string `toml:"file" yaml:"file"`
}

// MetricsSettings controls the Prometheus endpoint.
type MetricsSettings struct {
	// Addr serves /metrics when non-empty, e.g. ":9090".
	Addr string `toml:"addr" yaml:"addr"`
}

// Settings is the complete configuration of a folio process.
// It is built once at startup and passed to constructors.
type Settings struct {
	Corpus        CorpusSettings        `toml:"corpus" yaml:"corpus"`
	Chunking      ChunkingSettings      `toml:"chunking" yaml:"chunking"`
	Tables        TableSettings         `toml:"tables" yaml:"tables"`
	Images        ImageSettings         `toml:"images" yaml:"images"`
	Summarization SummarizationSettings `toml:"summarization" yaml:"summarization"`
	Ingest        IngestSettings        `toml:"ingest" yaml:"ingest"`
	Router        RouterSettings        `toml:"router" yaml:"router"`
	Answer        AnswerSettings        `toml:"answer" yaml:"answer"`
	Embedding     EmbeddingSettings     `toml:"embedding" yaml:"embedding"`
	LLM           LLMSettings           `toml:"llm" yaml:"llm"`
	Vision        LLMSettings           `toml:"vision" yaml:"vision"`
	Logging       LoggingSettings       `toml:"logging" yaml:"logging"`
	Metrics       MetricsSettings       `toml:"metrics" yaml:"metrics"`
}

// Default values.
const (
	DefaultMaxChars           = 4000
	DefaultOverlapChars       = 200
	DefaultDecomposeThreshold = 12
	DefaultDirectK            = 5
	DefaultSubQueryK          = 4
	DefaultMaxSubQueries      = 3
	DefaultMaxEvidence        = 6
)

// DefaultSettings returns settings with sensible defaults.
// The LLM and vision providers are left unconfigured.
func DefaultSettings() Settings {
	return Settings{
		Corpus:   CorpusSettings{Dir: "corpus"},
		Chunking: ChunkingSettings{MaxChars: DefaultMaxChars, OverlapChars: DefaultOverlapChars},
		Tables:   TableSettings{Enabled: true, MinDoubleSpaces: 3, Delimiters: "\t|"},
		Images:   ImageSettings{Enabled: true, MinWidth: 32, MinHeight: 32},
		Summarization: SummarizationSettings{
			Workers:           4,
			RequestsPerSecond: 2,
			Burst:             1,
			TimeoutSeconds:    60,
		},
		Ingest: IngestSettings{Workers: 2, Mode: IngestModeRebuild, TextLog: true},
		Router: RouterSettings{
			DecomposeThreshold:    DefaultDecomposeThreshold,
			DirectK:               DefaultDirectK,
			SubQueryK:             DefaultSubQueryK,
			MaxSubQueries:         DefaultMaxSubQueries,
			SubQueryTimeoutSecond: 30,
		},
		Answer: AnswerSettings{MaxEvidence: DefaultMaxEvidence, MaxTokens: 1024, Temperature: 0.2},
		Embedding: EmbeddingSettings{
			Provider:  AIProviderLocal,
			BatchSize: 32,
			Cache:     CacheSettings{Backend: CacheMemory, TTLSeconds: 3600},
		},
	}
}

// Validate checks the settings for values no component can work with.
func (s Settings) Validate() error {
	var errs []error
	if s.Corpus.Dir == "" {
		errs = append(errs, errors.New("corpus.dir is required"))
	}
	if s.Chunking.MaxChars < 1 {
		errs = append(errs, fmt.Errorf("chunking.max_chars must be positive, got %d", s.Chunking.MaxChars))
	}
	if s.Chunking.OverlapChars < 0 || s.Chunking.OverlapChars >= s.Chunking.MaxChars {
		errs = append(errs, fmt.Errorf("chunking.overlap_chars must be in [0, max_chars), got %d", s.Chunking.OverlapChars))
	}
	if s.Summarization.Workers < 1 || s.Ingest.Workers < 1 {
		errs = append(errs, errors.New("worker counts must be at least 1"))
	}
	if s.Summarization.RequestsPerSecond <= 0 {
		errs = append(errs, errors.New("summarization.requests_per_second must be positive"))
	}
	if !s.Ingest.Mode.IsValid() {
		errs = append(errs, fmt.Errorf("ingest.mode %q is not rebuild or append", s.Ingest.Mode))
	}
	if s.Router.DecomposeThreshold < 0 {
		errs = append(errs, errors.New("router.decompose_threshold must not be negative"))
	}
	if s.Router.DirectK < 1 || s.Router.SubQueryK < 1 || s.Router.MaxSubQueries < 1 {
		errs = append(errs, errors.New("router k values and max_sub_queries must be at least 1"))
	}
	if s.Answer.MaxEvidence < 1 {
		errs = append(errs, errors.New("answer.max_evidence must be at least 1"))
	}
	if !s.Embedding.Provider.IsValid() || s.Embedding.Provider == AIProviderAnthropic {
		errs = append(errs, fmt.Errorf("embedding.provider %q does not support embeddings", s.Embedding.Provider))
	}
	if !s.Embedding.Cache.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("embedding.cache.backend %q is not none, memory or redis", s.Embedding.Cache.Backend))
	}
	if s.Embedding.Cache.Backend == CacheRedis && s.Embedding.Cache.RedisURL == "" {
		errs = append(errs, errors.New("embedding.cache.redis_url is required for the redis backend"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return nil
}

// Prepare creates the corpus directories.
func (s Settings) Prepare() error {
	if err := os.MkdirAll(s.ImagesDir(), 0700); err != nil {
		return fmt.Errorf("create corpus directory: %w", err)
	}
	return nil
}

// ImagesDir is where extracted rasters are written.
func (s Settings) ImagesDir() string { return filepath.Join(s.Corpus.Dir, "images") }

// TextLogPath is the append-only text chunk log.
func (s Settings) TextLogPath() string { return filepath.Join(s.Corpus.Dir, "all_text_chunks.txt") }

// PromptsDir holds prompt overrides.
func (s Settings) PromptsDir() string { return filepath.Join(s.Corpus.Dir, "prompts") }

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
		AIProviderLocal:  "hashing-512",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
	}
}

// DefaultVisionModels returns default image-capable models for each provider.
func DefaultVisionModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llava",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
	}
}
