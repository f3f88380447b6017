package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diffsum/diffsum/internal/ratelimit"
)

func TestNewGeneratorSelectsBackend(t *testing.T) {
	gen, err := NewGenerator(Config{Provider: NameOpenAI, APIKey: "sk-test"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIGenerator{}, gen)
	assert.Equal(t, DefaultOpenAIModel, gen.Model())

	gen, err = NewGenerator(Config{Provider: NameAnthropic, APIKey: "sk-ant-test"})
	require.NoError(t, err)
	assert.IsType(t, &AnthropicGenerator{}, gen)
	assert.Equal(t, DefaultAnthropicModel, gen.Model())

	gen, err = NewGenerator(Config{Provider: NameOllama})
	require.NoError(t, err)
	openAI, ok := gen.(*OpenAIGenerator)
	require.True(t, ok)
	assert.True(t, openAI.Local())
	assert.Equal(t, DefaultOllamaModel, gen.Model())
}

func TestNewGeneratorRequiresAPIKey(t *testing.T) {
	_, err := NewGenerator(Config{Provider: NameOpenAI})
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	_, err = NewGenerator(Config{Provider: NameAnthropic})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestNewGeneratorUnknownProvider(t *testing.T) {
	_, err := NewGenerator(Config{Provider: "bard"})
	assert.ErrorIs(t, err, ErrUnsupportedProvider)
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ratelimit.Category
	}{
		{"canceled", context.Canceled, ratelimit.CategoryPermanent},
		{"deadline", context.DeadlineExceeded, ratelimit.CategoryPermanent},
		{"wrapped canceled", fmt.Errorf("call: %w", context.Canceled), ratelimit.CategoryPermanent},
		{"rate limited", NewProviderError("chat", http.StatusTooManyRequests, "slow down", nil), ratelimit.CategoryRateLimited},
		{"server error", NewProviderError("chat", http.StatusInternalServerError, "oops", nil), ratelimit.CategoryTransient},
		{"bad gateway", NewProviderError("chat", http.StatusBadGateway, "oops", nil), ratelimit.CategoryTransient},
		{"unavailable", NewProviderError("chat", http.StatusServiceUnavailable, "oops", nil), ratelimit.CategoryTransient},
		{"gateway timeout", NewProviderError("chat", http.StatusGatewayTimeout, "oops", nil), ratelimit.CategoryTransient},
		{"bad request", NewProviderError("chat", http.StatusBadRequest, "nope", nil), ratelimit.CategoryPermanent},
		{"unauthorized", NewProviderError("chat", http.StatusUnauthorized, "nope", nil), ratelimit.CategoryPermanent},
		{"no status", NewProviderError("chat", 0, "connection reset", nil), ratelimit.CategoryTransient},
		{"plain error", errors.New("boom"), ratelimit.CategoryTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyError(tt.err))
		})
	}
}

func TestProviderError(t *testing.T) {
	cause := errors.New("underlying")
	err := NewProviderError("chat_completion", http.StatusTooManyRequests, "too many requests", cause)

	assert.Equal(t, "chat_completion", err.Operation())
	assert.Equal(t, http.StatusTooManyRequests, err.StatusCode())
	assert.True(t, err.IsRateLimited())
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "too many requests")
	assert.Contains(t, err.Error(), "underlying")
}

func TestChatCompletionRequestImmutable(t *testing.T) {
	base := NewChatCompletionRequest([]Message{UserMessage("hi")})

	withTokens := base.WithMaxTokens(100).WithTemperature(0.5)

	assert.Zero(t, base.MaxTokens())
	assert.Zero(t, base.Temperature())
	assert.Equal(t, 100, withTokens.MaxTokens())
	assert.Equal(t, 0.5, withTokens.Temperature())

	msgs := base.Messages()
	msgs[0] = SystemMessage("mutated")
	assert.Equal(t, "hi", base.Messages()[0].Content())
}

func TestMessageHelpers(t *testing.T) {
	assert.Equal(t, "system", SystemMessage("s").Role())
	assert.Equal(t, "user", UserMessage("u").Role())
	assert.Equal(t, "u", UserMessage("u").Content())
}
