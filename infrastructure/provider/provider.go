// Package provider provides text generation backends for summarization.
// The backend is chosen by configuration; callers only see TextGenerator.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/diffsum/diffsum/internal/ratelimit"
)

// Common errors.
var (
	// ErrUnsupportedProvider indicates an unknown provider name in configuration.
	ErrUnsupportedProvider = errors.New("unsupported provider")

	// ErrMissingAPIKey indicates the selected provider requires an API key
	// that was not configured.
	ErrMissingAPIKey = errors.New("missing API key")
)

// Message represents a chat message.
type Message struct {
	role    string
	content string
}

// NewMessage creates a new Message.
func NewMessage(role, content string) Message {
	return Message{role: role, content: content}
}

// Role returns the message role (e.g., "system", "user", "assistant").
func (m Message) Role() string { return m.role }

// Content returns the message content.
func (m Message) Content() string { return m.content }

// SystemMessage creates a system message.
func SystemMessage(content string) Message {
	return NewMessage("system", content)
}

// UserMessage creates a user message.
func UserMessage(content string) Message {
	return NewMessage("user", content)
}

// ChatCompletionRequest represents a request for text generation.
type ChatCompletionRequest struct {
	messages    []Message
	maxTokens   int
	temperature float64
}

// NewChatCompletionRequest creates a new ChatCompletionRequest.
func NewChatCompletionRequest(messages []Message) ChatCompletionRequest {
	msgs := make([]Message, len(messages))
	copy(msgs, messages)
	return ChatCompletionRequest{messages: msgs}
}

// WithMaxTokens returns a new request with the specified max tokens.
func (r ChatCompletionRequest) WithMaxTokens(n int) ChatCompletionRequest {
	r.maxTokens = n
	return r
}

// WithTemperature returns a new request with the specified temperature.
func (r ChatCompletionRequest) WithTemperature(t float64) ChatCompletionRequest {
	r.temperature = t
	return r
}

// Messages returns the messages.
func (r ChatCompletionRequest) Messages() []Message {
	msgs := make([]Message, len(r.messages))
	copy(msgs, r.messages)
	return msgs
}

// MaxTokens returns the max tokens setting. Zero means provider default.
func (r ChatCompletionRequest) MaxTokens() int { return r.maxTokens }

// Temperature returns the temperature setting. Zero means provider default.
func (r ChatCompletionRequest) Temperature() float64 { return r.temperature }

// ChatCompletionResponse represents a text generation response.
type ChatCompletionResponse struct {
	content      string
	finishReason string
	usage        Usage
}

// NewChatCompletionResponse creates a new ChatCompletionResponse.
func NewChatCompletionResponse(content, finishReason string, usage Usage) ChatCompletionResponse {
	return ChatCompletionResponse{
		content:      content,
		finishReason: finishReason,
		usage:        usage,
	}
}

// Content returns the generated content.
func (r ChatCompletionResponse) Content() string { return r.content }

// FinishReason returns why generation stopped.
func (r ChatCompletionResponse) FinishReason() string { return r.finishReason }

// Usage returns token usage information.
func (r ChatCompletionResponse) Usage() Usage { return r.usage }

// Usage represents token usage information.
type Usage struct {
	promptTokens     int
	completionTokens int
	totalTokens      int
}

// NewUsage creates a new Usage.
func NewUsage(prompt, completion, total int) Usage {
	return Usage{
		promptTokens:     prompt,
		completionTokens: completion,
		totalTokens:      total,
	}
}

// PromptTokens returns the number of prompt tokens.
func (u Usage) PromptTokens() int { return u.promptTokens }

// CompletionTokens returns the number of completion tokens.
func (u Usage) CompletionTokens() int { return u.completionTokens }

// TotalTokens returns the total number of tokens.
func (u Usage) TotalTokens() int { return u.totalTokens }

// TextGenerator generates text completions. Implementations perform exactly
// one upstream call per ChatCompletion invocation; pacing and retry belong
// to the caller's rate limiter.
type TextGenerator interface {
	// ChatCompletion generates a text completion for the given messages.
	ChatCompletion(ctx context.Context, req ChatCompletionRequest) (ChatCompletionResponse, error)

	// Model returns the model identifier in use.
	Model() string

	// Close releases any resources held by the generator.
	Close() error
}

// ProviderError wraps provider errors with additional context.
type ProviderError struct {
	operation  string
	statusCode int
	message    string
	cause      error
}

// NewProviderError creates a new ProviderError.
func NewProviderError(operation string, statusCode int, message string, cause error) *ProviderError {
	return &ProviderError{
		operation:  operation,
		statusCode: statusCode,
		message:    message,
		cause:      cause,
	}
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.cause != nil {
		return e.message + ": " + e.cause.Error()
	}
	return e.message
}

// Unwrap returns the underlying cause.
func (e *ProviderError) Unwrap() error { return e.cause }

// Operation returns the operation that failed.
func (e *ProviderError) Operation() string { return e.operation }

// StatusCode returns the HTTP status code if available.
func (e *ProviderError) StatusCode() int { return e.statusCode }

// Message returns the error message.
func (e *ProviderError) Message() string { return e.message }

// IsRateLimited returns true if the error is due to rate limiting.
func (e *ProviderError) IsRateLimited() bool {
	return e.statusCode == http.StatusTooManyRequests
}

// ClassifyError maps provider failures onto retry categories. It is the
// Classifier handed to the rate limiter, so the retry loop itself stays free
// of provider-specific branching.
func ClassifyError(err error) ratelimit.Category {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ratelimit.CategoryPermanent
	}

	var provErr *ProviderError
	if errors.As(err, &provErr) {
		switch code := provErr.StatusCode(); {
		case code == http.StatusTooManyRequests:
			return ratelimit.CategoryRateLimited
		case code == http.StatusInternalServerError,
			code == http.StatusBadGateway,
			code == http.StatusServiceUnavailable,
			code == http.StatusGatewayTimeout:
			return ratelimit.CategoryTransient
		case code >= 400 && code < 500:
			return ratelimit.CategoryPermanent
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ratelimit.CategoryTransient
	}

	return ratelimit.CategoryTransient
}

// Name identifies a text generation backend.
type Name string

// Supported backends.
const (
	NameOpenAI    Name = "openai"
	NameAnthropic Name = "anthropic"
	NameOllama    Name = "ollama"
)

// Config selects and configures a backend. Selection happens here, at
// construction time, never by inspecting model name strings at call sites.
type Config struct {
	Provider  Name
	Model     string
	APIKey    string
	BaseURL   string
	Timeout   int // seconds; zero means default
	CacheDir  string
	MaxTokens int
}

// NewGenerator constructs the TextGenerator named by cfg.Provider.
func NewGenerator(cfg Config) (TextGenerator, error) {
	switch cfg.Provider {
	case NameOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: openai requires OPENAI_API_KEY", ErrMissingAPIKey)
		}
		return NewOpenAIGenerator(cfg), nil
	case NameAnthropic:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: anthropic requires ANTHROPIC_API_KEY", ErrMissingAPIKey)
		}
		return NewAnthropicGenerator(cfg), nil
	case NameOllama:
		return NewOllamaGenerator(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, cfg.Provider)
	}
}
