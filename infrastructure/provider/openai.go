package provider

import (
	"context"
	"errors"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Defaults for the OpenAI backend.
const (
	DefaultOpenAIModel   = "gpt-4o-mini"
	DefaultOllamaURL     = "http://localhost:11434/v1"
	DefaultOllamaModel   = "phi3:mini"
	defaultHTTPTimeout   = 120 * time.Second
	ollamaPlaceholderKey = "ollama"
)

// OpenAIGenerator generates text via the OpenAI chat completions API, or any
// endpoint speaking the same protocol when BaseURL is set.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
	local  bool
}

// NewOpenAIGenerator creates a generator for the OpenAI API.
func NewOpenAIGenerator(cfg Config) *OpenAIGenerator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = newHTTPClient(cfg)

	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}

	return &OpenAIGenerator{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
	}
}

// NewOllamaGenerator creates a generator for a local Ollama server, which
// exposes an OpenAI-compatible endpoint. No API key is required; the client
// library wants a non-empty one, so a placeholder is used.
func NewOllamaGenerator(cfg Config) *OpenAIGenerator {
	clientCfg := openai.DefaultConfig(ollamaPlaceholderKey)
	clientCfg.BaseURL = cfg.BaseURL
	if clientCfg.BaseURL == "" {
		clientCfg.BaseURL = DefaultOllamaURL
	}
	clientCfg.HTTPClient = newHTTPClient(cfg)

	model := cfg.Model
	if model == "" {
		model = DefaultOllamaModel
	}

	return &OpenAIGenerator{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
		local:  true,
	}
}

// newHTTPClient builds the HTTP client shared by the OpenAI-protocol
// backends, optionally wrapping the transport with the disk cache.
func newHTTPClient(cfg Config) *http.Client {
	timeout := defaultHTTPTimeout
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}

	client := &http.Client{Timeout: timeout}
	if cfg.CacheDir != "" {
		client.Transport = NewCachingTransport(cfg.CacheDir, nil)
	}
	return client
}

// Model returns the model identifier in use.
func (g *OpenAIGenerator) Model() string { return g.model }

// Local reports whether this generator talks to a local server.
func (g *OpenAIGenerator) Local() bool { return g.local }

// Close is a no-op.
func (g *OpenAIGenerator) Close() error { return nil }

// ChatCompletion performs a single chat completion call. Retry and pacing
// are the caller's responsibility.
func (g *OpenAIGenerator) ChatCompletion(ctx context.Context, req ChatCompletionRequest) (ChatCompletionResponse, error) {
	messages := make([]openai.ChatCompletionMessage, len(req.Messages()))
	for i, m := range req.Messages() {
		messages[i] = openai.ChatCompletionMessage{
			Role:    m.Role(),
			Content: m.Content(),
		}
	}

	openaiReq := openai.ChatCompletionRequest{
		Model:    g.model,
		Messages: messages,
	}
	if req.MaxTokens() > 0 {
		openaiReq.MaxTokens = req.MaxTokens()
	}
	if req.Temperature() > 0 {
		openaiReq.Temperature = float32(req.Temperature())
	}

	resp, err := g.client.CreateChatCompletion(ctx, openaiReq)
	if err != nil {
		return ChatCompletionResponse{}, wrapOpenAIError("chat_completion", err)
	}

	if len(resp.Choices) == 0 {
		return ChatCompletionResponse{}, NewProviderError(
			"chat_completion", 0, "no choices in response", nil,
		)
	}

	usage := NewUsage(
		resp.Usage.PromptTokens,
		resp.Usage.CompletionTokens,
		resp.Usage.TotalTokens,
	)

	return NewChatCompletionResponse(
		resp.Choices[0].Message.Content,
		string(resp.Choices[0].FinishReason),
		usage,
	), nil
}

// wrapOpenAIError converts client library errors into ProviderError so the
// status code survives for classification.
func wrapOpenAIError(operation string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return NewProviderError(operation, apiErr.HTTPStatusCode, apiErr.Message, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return NewProviderError(operation, reqErr.HTTPStatusCode, reqErr.Error(), err)
	}

	return NewProviderError(operation, 0, err.Error(), err)
}

var _ TextGenerator = (*OpenAIGenerator)(nil)
