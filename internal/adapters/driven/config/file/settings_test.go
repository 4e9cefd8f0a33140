package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/folio/internal/core/domain"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvOpenAIKey, EnvAnthropicKey, EnvCorpusDir, EnvOllamaHost} {
		t.Setenv(k, "")
	}
}

func TestLoadSettings_NoFileGivesDefaults(t *testing.T) {
	clearEnv(t)

	s, err := LoadSettings("")

	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSettings(), s)
}

func TestLoadSettings_TOML(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "folio.toml", `
[corpus]
dir = "/data/corpus"

[chunking]
max_chars = 1000

[router]
decompose_threshold = 8

[embedding]
provider = "ollama"
model = "all-minilm"
base_url = "http://gpu:11434"

[embedding.cache]
backend = "none"
`)

	s, err := LoadSettings(path)

	require.NoError(t, err)
	assert.Equal(t, "/data/corpus", s.Corpus.Dir)
	assert.Equal(t, 1000, s.Chunking.MaxChars)
	assert.Equal(t, domain.DefaultOverlapChars, s.Chunking.OverlapChars, "unset keys keep defaults")
	assert.Equal(t, 8, s.Router.DecomposeThreshold)
	assert.Equal(t, domain.DefaultDirectK, s.Router.DirectK)
	assert.Equal(t, domain.AIProviderOllama, s.Embedding.Provider)
	assert.Equal(t, "http://gpu:11434", s.Embedding.BaseURL)
	assert.Equal(t, domain.CacheNone, s.Embedding.Cache.Backend)
	assert.Equal(t, 3600, s.Embedding.Cache.TTLSeconds)
}

func TestLoadSettings_YAML(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "folio.yaml", `
corpus:
  dir: ./corpus
ingest:
  mode: append
  workers: 3
llm:
  provider: anthropic
  model: claude-3-5-haiku-latest
`)

	s, err := LoadSettings(path)

	require.NoError(t, err)
	assert.Equal(t, "./corpus", s.Corpus.Dir)
	assert.Equal(t, domain.IngestModeAppend, s.Ingest.Mode)
	assert.Equal(t, 3, s.Ingest.Workers)
	assert.True(t, s.Ingest.TextLog)
	assert.Equal(t, domain.AIProviderAnthropic, s.LLM.Provider)
}

func TestLoadSettings_EmptyYAML(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "folio.yml", "")

	s, err := LoadSettings(path)

	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSettings(), s)
}

func TestLoadSettings_Errors(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name    string
		file    string
		content string
	}{
		{name: "unknown extension", file: "folio.json", content: "{}"},
		{name: "invalid toml", file: "folio.toml", content: "[[corpus"},
		{name: "unknown toml key", file: "folio.toml", content: "[chunking]\nmax_char = 10\n"},
		{name: "unknown yaml key", file: "folio.yaml", content: "router:\n  treshold: 3\n"},
		{name: "overlap not below max", file: "folio.toml", content: "[chunking]\nmax_chars = 100\noverlap_chars = 100\n"},
		{name: "anthropic embeddings", file: "folio.toml", content: "[embedding]\nprovider = \"anthropic\"\n"},
		{name: "redis without url", file: "folio.yaml", content: "embedding:\n  cache:\n    backend: redis\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSettings(writeFile(t, tt.file, tt.content))
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestLoadSettings_MissingFile(t *testing.T) {
	clearEnv(t)

	_, err := LoadSettings(filepath.Join(t.TempDir(), "folio.toml"))

	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadSettings_EnvironmentOverlay(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvCorpusDir, "/env/corpus")
	t.Setenv(EnvOpenAIKey, "sk-env")
	t.Setenv(EnvOllamaHost, "gpu:11434")
	path := writeFile(t, "folio.toml", `
[embedding]
provider = "openai"

[llm]
provider = "openai"
api_key = "sk-file"

[vision]
provider = "ollama"
`)

	s, err := LoadSettings(path)

	require.NoError(t, err)
	assert.Equal(t, "/env/corpus", s.Corpus.Dir)
	assert.Equal(t, "sk-env", s.Embedding.APIKey)
	assert.Equal(t, "sk-file", s.LLM.APIKey, "file value wins over environment")
	assert.Equal(t, "http://gpu:11434", s.Vision.BaseURL)
}

func TestApplyEnv_OnlyMatchingProviders(t *testing.T) {
	s := domain.DefaultSettings()
	s.LLM.Provider = domain.AIProviderAnthropic
	env := map[string]string{EnvOpenAIKey: "sk-openai", EnvAnthropicKey: "sk-ant"}

	ApplyEnv(&s, func(k string) string { return env[k] })

	assert.Empty(t, s.Embedding.APIKey, "local embedder needs no key")
	assert.Equal(t, "sk-ant", s.LLM.APIKey)
	assert.Empty(t, s.Vision.APIKey)
}

func TestFindSettingsFile(t *testing.T) {
	dir := t.TempDir()
	assert.Empty(t, FindSettingsFile(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "folio.yml"), nil, 0600))
	assert.Equal(t, filepath.Join(dir, "folio.yml"), FindSettingsFile(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "folio.toml"), nil, 0600))
	assert.Equal(t, filepath.Join(dir, "folio.toml"), FindSettingsFile(dir), "toml is preferred")
}

func TestSaveSettings_RoundTripsWithoutKeys(t *testing.T) {
	clearEnv(t)

	for _, name := range []string{"folio.toml", "folio.yaml"} {
		t.Run(name, func(t *testing.T) {
			s := domain.DefaultSettings()
			s.Corpus.Dir = "/srv/corpus"
			s.LLM = domain.LLMSettings{Provider: domain.AIProviderOpenAI, Model: "gpt-4o-mini", APIKey: "secret"}
			path := filepath.Join(t.TempDir(), "nested", name)

			require.NoError(t, SaveSettings(path, s))

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.NotContains(t, string(data), "secret")

			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

			loaded, err := LoadSettings(path)
			require.NoError(t, err)
			s.LLM.APIKey = ""
			assert.Equal(t, s, loaded)
		})
	}
}
