package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAppConfigDefaults(t *testing.T) {
	cfg := NewAppConfig()

	assert.Equal(t, DefaultProvider, cfg.Provider())
	assert.Equal(t, DefaultModel, cfg.Model())
	assert.Equal(t, DefaultLanguage, cfg.Language())
	assert.Equal(t, LogFormatPretty, cfg.LogFormat())
	assert.Equal(t, DefaultChunkingThreshold, cfg.Chunking().Threshold())
	assert.Equal(t, DefaultChunkSizeTokens, cfg.Chunking().ChunkSize())
	assert.Equal(t, DefaultOverlapTokens, cfg.Chunking().OverlapTokens())
	assert.Equal(t, DefaultMaxRetries, cfg.Retry().MaxRetries())
	assert.Equal(t, DefaultMinInterval, cfg.Retry().MinInterval())
	assert.Equal(t, DefaultTimeout, cfg.Timeout())
	assert.True(t, cfg.Ticket().Enabled())
	assert.Equal(t, DefaultTicketPattern, cfg.Ticket().Pattern())
	assert.False(t, cfg.IsLocal())
}

func TestAppConfigOptions(t *testing.T) {
	cfg := NewAppConfigWithOptions(
		WithProvider("Anthropic"),
		WithModel("claude-test"),
		WithAnthropicKey("sk-ant"),
		WithLanguage("de"),
		WithMaxParallel(8),
		WithTimeout(30*time.Second),
	)

	assert.Equal(t, "anthropic", cfg.Provider())
	assert.Equal(t, "claude-test", cfg.Model())
	assert.Equal(t, "sk-ant", cfg.APIKey())
	assert.Equal(t, "de", cfg.Language())
	assert.Equal(t, 8, cfg.MaxParallel())
	assert.Equal(t, 30*time.Second, cfg.Timeout())
}

func TestAppConfigEmptyOptionsIgnored(t *testing.T) {
	cfg := NewAppConfig().Apply(
		WithProvider(""),
		WithModel(""),
		WithLanguage(""),
		WithMaxParallel(0),
	)

	assert.Equal(t, DefaultProvider, cfg.Provider())
	assert.Equal(t, DefaultModel, cfg.Model())
	assert.Equal(t, DefaultLanguage, cfg.Language())
	assert.Equal(t, DefaultMaxParallel, cfg.MaxParallel())
}

func TestParallelismDependsOnBackend(t *testing.T) {
	remote := NewAppConfig()
	assert.Equal(t, DefaultMaxParallel, remote.Parallelism())

	local := remote.Apply(WithProvider("ollama"))
	assert.True(t, local.IsLocal())
	assert.Equal(t, DefaultLocalMaxParallel, local.Parallelism())

	// Routing only the map phase to a local model still lifts the bound.
	mixed := remote.Apply(WithUseLocalForChunks(true))
	assert.False(t, mixed.IsLocal())
	assert.Equal(t, DefaultLocalMaxParallel, mixed.Parallelism())
}

func TestLocalChunkRoutingConfig(t *testing.T) {
	cfg := NewAppConfig()
	assert.False(t, cfg.UseLocalForChunks())
	assert.Equal(t, DefaultOllamaModel, cfg.LocalModel())
	assert.Equal(t, DefaultOllamaBaseURL, cfg.LocalBaseURL())

	cfg = cfg.Apply(
		WithUseLocalForChunks(true),
		WithLocalModel("qwen2.5-coder:3b"),
		WithLocalBaseURL("http://gpu-box:11434/v1"),
	)
	assert.True(t, cfg.UseLocalForChunks())
	assert.Equal(t, "qwen2.5-coder:3b", cfg.LocalModel())
	assert.Equal(t, "http://gpu-box:11434/v1", cfg.LocalBaseURL())

	// Empty values leave the defaults in place.
	cfg = cfg.Apply(WithLocalModel(""), WithLocalBaseURL(""))
	assert.Equal(t, "qwen2.5-coder:3b", cfg.LocalModel())
	assert.Equal(t, "http://gpu-box:11434/v1", cfg.LocalBaseURL())
}

func TestAPIKeySelection(t *testing.T) {
	cfg := NewAppConfigWithOptions(
		WithOpenAIKey("sk-openai"),
		WithAnthropicKey("sk-ant"),
	)

	assert.Equal(t, "sk-openai", cfg.APIKey())
	assert.Equal(t, "sk-ant", cfg.Apply(WithProvider("anthropic")).APIKey())
	assert.Equal(t, "sk-openai", cfg.Apply(WithProvider("ollama")).APIKey())
}

func TestValidate(t *testing.T) {
	assert.Error(t, NewAppConfig().Validate(), "openai without key")

	ok := NewAppConfigWithOptions(WithOpenAIKey("sk"))
	assert.NoError(t, ok.Validate())

	assert.Error(t, NewAppConfigWithOptions(WithProvider("anthropic")).Validate())
	assert.NoError(t, NewAppConfigWithOptions(WithProvider("anthropic"), WithAnthropicKey("sk")).Validate())
	assert.NoError(t, NewAppConfigWithOptions(WithProvider("ollama")).Validate())
	assert.Error(t, NewAppConfigWithOptions(WithProvider("bard")).Validate())

	badChunking := ok.Apply(WithChunkingConfig(
		NewChunkingConfig().WithChunkSize(100).WithOverlapTokens(100),
	))
	assert.Error(t, badChunking.Validate())
}

func TestChunkingConfigImmutable(t *testing.T) {
	base := NewChunkingConfig()
	modified := base.WithThreshold(5000).WithChunkSize(1024).WithOverlapTokens(64)

	assert.Equal(t, DefaultChunkingThreshold, base.Threshold())
	assert.Equal(t, 5000, modified.Threshold())
	assert.Equal(t, 1024, modified.ChunkSize())
	assert.Equal(t, 64, modified.OverlapTokens())

	// Invalid values are ignored.
	assert.Equal(t, 5000, modified.WithThreshold(-1).Threshold())
}

func TestRetryConfigImmutable(t *testing.T) {
	base := NewRetryConfig()
	modified := base.
		WithMaxRetries(2).
		WithInitialDelay(100 * time.Millisecond).
		WithMaxDelay(time.Second).
		WithBackoffMultiplier(3.0).
		WithMinInterval(50 * time.Millisecond)

	assert.Equal(t, DefaultMaxRetries, base.MaxRetries())
	assert.Equal(t, 2, modified.MaxRetries())
	assert.Equal(t, 100*time.Millisecond, modified.InitialDelay())
	assert.Equal(t, time.Second, modified.MaxDelay())
	assert.Equal(t, 3.0, modified.BackoffMultiplier())
	assert.Equal(t, 50*time.Millisecond, modified.MinInterval())

	assert.Equal(t, 3.0, modified.WithBackoffMultiplier(0.5).BackoffMultiplier())
}

func TestLogAttrsHidesKeys(t *testing.T) {
	cfg := NewAppConfigWithOptions(WithOpenAIKey("sk-secret-value"))

	for _, attr := range cfg.LogAttrs() {
		assert.NotContains(t, attr.Value.String(), "sk-secret-value")
	}
}

func TestParseLogFormat(t *testing.T) {
	assert.Equal(t, LogFormatJSON, ParseLogFormat("json"))
	assert.Equal(t, LogFormatJSON, ParseLogFormat("JSON"))
	assert.Equal(t, LogFormatPretty, ParseLogFormat("pretty"))
	assert.Equal(t, LogFormatPretty, ParseLogFormat(""))
	assert.Equal(t, LogFormatPretty, ParseLogFormat("weird"))
}

func TestGlobalConfigPath(t *testing.T) {
	path := GlobalConfigPath()
	require.NotEmpty(t, path)
	assert.Contains(t, path, ".diffsum")
	assert.Contains(t, path, "config.yaml")
}
