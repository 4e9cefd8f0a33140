// Package ollama provides LLM and vision adapters using a local Ollama daemon.
package ollama

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/folio/internal/adapters/driven/apiclient"
	"github.com/custodia-labs/folio/internal/core/domain"
	"github.com/custodia-labs/folio/internal/core/ports/driven"
)

var (
	_ driven.LLMService    = (*LLMService)(nil)
	_ driven.VisionService = (*LLMService)(nil)
)

// Default configuration values.
const (
	DefaultBaseURL    = "http://localhost:11434"
	DefaultLLMModel   = "llama3.2"
	DefaultLLMTimeout = 120 * time.Second
)

// LLMConfig holds configuration for the Ollama LLM service.
type LLMConfig struct {
	// BaseURL is the Ollama API base URL (default: http://localhost:11434).
	BaseURL string

	// Model is the model to use (default: llama3.2).
	// Image description needs a multimodal model such as llava.
	Model string

	// Timeout is the per-request timeout (default: 120s). Local models
	// loading into memory on first use can take a while.
	Timeout time.Duration
}

// LLMService answers prompts and describes images with one local model.
type LLMService struct {
	api   *apiclient.Client
	model string
}

// Requests always disable streaming so one JSON object comes back.
type generateRequest struct {
	Model   string   `json:"model"`
	Prompt  string   `json:"prompt"`
	Images  []string `json:"images,omitempty"`
	Stream  bool     `json:"stream"`
	Options *options `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  *options      `json:"options,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
}

type options struct {
	NumPredict  int      `json:"num_predict,omitempty"`
	Temperature float64  `json:"temperature,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

// newOptions returns nil when every parameter is at its default.
func newOptions(maxTokens int, temperature float64, stop []string) *options {
	if maxTokens <= 0 && temperature <= 0 && len(stop) == 0 {
		return nil
	}
	return &options{NumPredict: maxTokens, Temperature: temperature, Stop: stop}
}

// NewLLMService creates a new Ollama LLM service.
func NewLLMService(cfg LLMConfig) *LLMService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultLLMModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultLLMTimeout
	}

	return &LLMService{
		api:   apiclient.New("ollama", cfg.BaseURL, apiclient.WithTimeout(cfg.Timeout)),
		model: cfg.Model,
	}
}

// Generate produces a completion for prompt.
func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	text, err := s.generate(ctx, generateRequest{
		Prompt:  prompt,
		Options: newOptions(opts.MaxTokens, opts.Temperature, opts.StopWords),
	})
	return text, apiclient.Wrap(domain.ErrLLMUnavailable, err)
}

// Chat conducts a multi-turn conversation.
func (s *LLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	req := chatRequest{
		Model:    s.model,
		Messages: make([]chatMessage, len(messages)),
		Options:  newOptions(opts.MaxTokens, opts.Temperature, nil),
	}
	for i, m := range messages {
		req.Messages[i] = chatMessage{Role: m.Role, Content: m.Content}
	}

	var resp chatResponse
	if err := s.api.PostJSON(ctx, "/api/chat", req, &resp); err != nil {
		return "", apiclient.Wrap(domain.ErrLLMUnavailable, err)
	}
	return resp.Message.Content, nil
}

// DescribeImage attaches the image to a generate request. mimeType is
// ignored; Ollama detects the encoding itself.
func (s *LLMService) DescribeImage(ctx context.Context, image []byte, _ string, prompt string) (string, error) {
	if len(image) == 0 {
		return "", fmt.Errorf("%w: empty image", domain.ErrInvalidInput)
	}
	text, err := s.generate(ctx, generateRequest{
		Prompt: prompt,
		Images: []string{base64.StdEncoding.EncodeToString(image)},
	})
	if err != nil {
		return "", apiclient.Wrap(domain.ErrVisionUnavailable, err)
	}
	return strings.TrimSpace(text), nil
}

func (s *LLMService) generate(ctx context.Context, req generateRequest) (string, error) {
	req.Model = s.model
	var resp generateResponse
	if err := s.api.PostJSON(ctx, "/api/generate", req, &resp); err != nil {
		return "", err
	}
	return resp.Response, nil
}

// ModelName returns the name of the LLM model being used.
func (s *LLMService) ModelName() string {
	return s.model
}

// Ping lists local models, which checks the daemon without running inference.
func (s *LLMService) Ping(ctx context.Context) error {
	return apiclient.Wrap(domain.ErrLLMUnavailable, s.api.Get(ctx, "/api/tags", nil))
}

// Close releases resources.
func (s *LLMService) Close() error {
	return nil
}
