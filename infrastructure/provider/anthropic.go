package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
)

// Defaults for the Anthropic backend.
const (
	DefaultAnthropicURL    = "https://api.anthropic.com"
	DefaultAnthropicModel  = "claude-sonnet-4-20250514"
	anthropicVersion       = "2023-06-01"
	anthropicDefaultTokens = 4096
)

// AnthropicGenerator generates text using the Anthropic Claude messages API.
type AnthropicGenerator struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewAnthropicGenerator creates a generator for the Anthropic API.
func NewAnthropicGenerator(cfg Config) *AnthropicGenerator {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultAnthropicURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultAnthropicModel
	}

	return &AnthropicGenerator{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		model:      model,
		httpClient: newHTTPClient(cfg),
	}
}

// Model returns the model identifier in use.
func (g *AnthropicGenerator) Model() string { return g.model }

// Close is a no-op.
func (g *AnthropicGenerator) Close() error { return nil }

// anthropicRequest represents the Anthropic API request body.
type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
	System    string             `json:"system,omitempty"`
}

// anthropicMessage represents a message in the Anthropic API.
type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// anthropicResponse represents the Anthropic API response.
type anthropicResponse struct {
	ID         string           `json:"id"`
	Type       string           `json:"type"`
	Role       string           `json:"role"`
	Content    []anthropicBlock `json:"content"`
	Model      string           `json:"model"`
	StopReason string           `json:"stop_reason"`
	Usage      anthropicUsage   `json:"usage"`
}

// anthropicBlock represents a content block in the response.
type anthropicBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// anthropicUsage represents token usage in the response.
type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// anthropicError represents an Anthropic API error response.
type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ChatCompletion performs a single messages API call. System messages are
// lifted into the top-level system field as the API requires.
func (g *AnthropicGenerator) ChatCompletion(ctx context.Context, req ChatCompletionRequest) (ChatCompletionResponse, error) {
	messages := req.Messages()
	if len(messages) == 0 {
		return ChatCompletionResponse{}, NewProviderError("chat_completion", 0, "no messages provided", nil)
	}

	var systemMessage string
	var apiMessages []anthropicMessage
	for _, m := range messages {
		if m.Role() == "system" {
			systemMessage = m.Content()
			continue
		}
		apiMessages = append(apiMessages, anthropicMessage{
			Role:    m.Role(),
			Content: m.Content(),
		})
	}

	maxTokens := req.MaxTokens()
	if maxTokens == 0 {
		maxTokens = anthropicDefaultTokens
	}

	apiReq := anthropicRequest{
		Model:     g.model,
		MaxTokens: maxTokens,
		Messages:  apiMessages,
		System:    systemMessage,
	}

	resp, err := g.doRequest(ctx, apiReq)
	if err != nil {
		return ChatCompletionResponse{}, err
	}

	var content string
	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	usage := NewUsage(
		resp.Usage.InputTokens,
		resp.Usage.OutputTokens,
		resp.Usage.InputTokens+resp.Usage.OutputTokens,
	)

	return NewChatCompletionResponse(content, resp.StopReason, usage), nil
}

// doRequest performs the HTTP request to the Anthropic API.
func (g *AnthropicGenerator) doRequest(ctx context.Context, req anthropicRequest) (anthropicResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return anthropicResponse{}, NewProviderError("chat_completion", 0, "failed to marshal request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return anthropicResponse{}, NewProviderError("chat_completion", 0, "failed to create request", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", g.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return anthropicResponse{}, NewProviderError("chat_completion", 0, "request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return anthropicResponse{}, NewProviderError("chat_completion", resp.StatusCode, "failed to read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr anthropicError
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Message != "" {
			return anthropicResponse{}, NewProviderError("chat_completion", resp.StatusCode, apiErr.Message, nil)
		}
		return anthropicResponse{}, NewProviderError("chat_completion", resp.StatusCode, string(respBody), nil)
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return anthropicResponse{}, NewProviderError("chat_completion", 0, "failed to unmarshal response", err)
	}

	return apiResp, nil
}

var _ TextGenerator = (*AnthropicGenerator)(nil)
