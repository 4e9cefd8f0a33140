package file

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/folio/internal/core/domain"
)

// DefaultFileNames are searched in the working directory when no path is given.
var DefaultFileNames = []string{"folio.toml", "folio.yaml", "folio.yml"}

// Environment variables overlaid on the file.
const (
	EnvOpenAIKey    = "OPENAI_API_KEY"
	EnvAnthropicKey = "ANTHROPIC_API_KEY"
	EnvCorpusDir    = "FOLIO_CORPUS_DIR"
	EnvOllamaHost   = "OLLAMA_HOST"
)

// format is a settings file encoding.
type format int

const (
	formatTOML format = iota
	formatYAML
)

// formatOf selects the encoding by file extension.
func formatOf(path string) (format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return formatTOML, nil
	case ".yaml", ".yml":
		return formatYAML, nil
	default:
		return 0, fmt.Errorf("%w: unsupported settings file %q (want .toml, .yaml or .yml)",
			domain.ErrInvalidInput, path)
	}
}

// FindSettingsFile returns the first default settings file in dir, or "".
func FindSettingsFile(dir string) string {
	for _, name := range DefaultFileNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// LoadSettings builds the process settings: defaults, then the file at path
// (when non-empty), then the environment. The result is validated.
// Unknown keys in the file are rejected.
func LoadSettings(path string) (domain.Settings, error) {
	s := domain.DefaultSettings()

	if path != "" {
		if err := decodeFile(path, &s); err != nil {
			return domain.Settings{}, err
		}
	}

	ApplyEnv(&s, os.Getenv)

	if err := s.Validate(); err != nil {
		if path != "" {
			return domain.Settings{}, fmt.Errorf("%s: %w", path, err)
		}
		return domain.Settings{}, err
	}
	return s, nil
}

// decodeFile decodes path onto s, keeping values the file does not set.
func decodeFile(path string, s *domain.Settings) error {
	f, err := formatOf(path)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read settings: %w", err)
	}

	switch f {
	case formatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(s); err != nil {
			return fmt.Errorf("%w: parse %s: %w", domain.ErrInvalidInput, path, err)
		}
	case formatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		// An empty document decodes to io.EOF.
		if err := dec.Decode(s); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: parse %s: %w", domain.ErrInvalidInput, path, err)
		}
	}
	return nil
}

// ApplyEnv overlays environment values. API keys only fill providers that
// need them and have none configured.
func ApplyEnv(s *domain.Settings, getenv func(string) string) {
	if dir := getenv(EnvCorpusDir); dir != "" {
		s.Corpus.Dir = dir
	}

	openai := getenv(EnvOpenAIKey)
	anthropic := getenv(EnvAnthropicKey)
	ollama := getenv(EnvOllamaHost)
	if ollama != "" && !strings.Contains(ollama, "://") {
		ollama = "http://" + ollama
	}

	fill := func(provider domain.AIProvider, apiKey, baseURL *string) {
		switch provider {
		case domain.AIProviderOpenAI:
			if *apiKey == "" {
				*apiKey = openai
			}
		case domain.AIProviderAnthropic:
			if *apiKey == "" {
				*apiKey = anthropic
			}
		case domain.AIProviderOllama:
			if *baseURL == "" {
				*baseURL = ollama
			}
		}
	}

	fill(s.Embedding.Provider, &s.Embedding.APIKey, &s.Embedding.BaseURL)
	fill(s.LLM.Provider, &s.LLM.APIKey, &s.LLM.BaseURL)
	fill(s.Vision.Provider, &s.Vision.APIKey, &s.Vision.BaseURL)
}

// SaveSettings writes s to path in the encoding chosen by its extension.
// API keys are never written; they belong in the environment.
func SaveSettings(path string, s domain.Settings) error {
	f, err := formatOf(path)
	if err != nil {
		return err
	}

	s.Embedding.APIKey = ""
	s.LLM.APIKey = ""
	s.Vision.APIKey = ""

	var data []byte
	switch f {
	case formatTOML:
		data, err = toml.Marshal(s)
	case formatYAML:
		data, err = yaml.Marshal(s)
	}
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create settings directory: %w", err)
		}
	}
	// Write with restricted permissions
	return os.WriteFile(path, data, 0600)
}
