// Package config provides application configuration.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix for all application environment variables.
// API keys are the exception: OPENAI_API_KEY and ANTHROPIC_API_KEY are read
// unprefixed, matching the conventional names the vendors document.
const EnvPrefix = "DIFFSUM"

// EnvConfig holds all environment-based configuration.
// Field names map to environment variables with the DIFFSUM_ prefix.
type EnvConfig struct {
	// Provider selects the text generation backend (openai, anthropic, ollama).
	// Env: DIFFSUM_PROVIDER
	Provider string `envconfig:"PROVIDER"`

	// Model is the model identifier.
	// Env: DIFFSUM_MODEL
	Model string `envconfig:"MODEL"`

	// BaseURL overrides the backend base URL.
	// Env: DIFFSUM_BASE_URL
	BaseURL string `envconfig:"BASE_URL"`

	// Language is the output language code.
	// Env: DIFFSUM_LANGUAGE
	Language string `envconfig:"LANGUAGE"`

	// LogLevel is the log verbosity level.
	// Env: DIFFSUM_LOG_LEVEL
	LogLevel string `envconfig:"LOG_LEVEL"`

	// LogFormat is the log output format (pretty or json).
	// Env: DIFFSUM_LOG_FORMAT
	LogFormat string `envconfig:"LOG_FORMAT"`

	// UseLocalForChunks routes map-phase chunk calls to a local model.
	// Env: DIFFSUM_USE_LOCAL_FOR_CHUNKS
	UseLocalForChunks *bool `envconfig:"USE_LOCAL_FOR_CHUNKS"`

	// LocalModel is the model for local chunk calls.
	// Env: DIFFSUM_LOCAL_MODEL
	LocalModel string `envconfig:"LOCAL_MODEL"`

	// LocalBaseURL is the local server URL for local chunk calls.
	// Env: DIFFSUM_LOCAL_BASE_URL
	LocalBaseURL string `envconfig:"LOCAL_BASE_URL"`

	// ChunkingThreshold is the token count above which a diff is chunked.
	// Env: DIFFSUM_CHUNKING_THRESHOLD
	ChunkingThreshold int `envconfig:"CHUNKING_THRESHOLD"`

	// ChunkSize is the per-chunk token budget.
	// Env: DIFFSUM_CHUNK_SIZE
	ChunkSize int `envconfig:"CHUNK_SIZE"`

	// OverlapTokens is the inter-chunk overlap budget.
	// Env: DIFFSUM_OVERLAP_TOKENS
	OverlapTokens int `envconfig:"OVERLAP_TOKENS"`

	// MaxParallel bounds concurrent requests to remote backends.
	// Env: DIFFSUM_MAX_PARALLEL
	MaxParallel int `envconfig:"MAX_PARALLEL"`

	// LocalMaxParallel bounds concurrent requests to local backends.
	// Env: DIFFSUM_LOCAL_MAX_PARALLEL
	LocalMaxParallel int `envconfig:"LOCAL_MAX_PARALLEL"`

	// MaxInputTokens guards the size of unchunked prompts.
	// Env: DIFFSUM_MAX_INPUT_TOKENS
	MaxInputTokens int `envconfig:"MAX_INPUT_TOKENS"`

	// MaxContextLines is the diff optimization context window.
	// Env: DIFFSUM_MAX_CONTEXT_LINES
	MaxContextLines int `envconfig:"MAX_CONTEXT_LINES"`

	// MaxRetries is the retry count after the initial attempt.
	// Env: DIFFSUM_MAX_RETRIES
	MaxRetries int `envconfig:"MAX_RETRIES"`

	// InitialDelaySeconds is the first backoff delay.
	// Env: DIFFSUM_INITIAL_DELAY_SECONDS
	InitialDelaySeconds float64 `envconfig:"INITIAL_DELAY_SECONDS"`

	// MaxDelaySeconds caps the backoff delay.
	// Env: DIFFSUM_MAX_DELAY_SECONDS
	MaxDelaySeconds float64 `envconfig:"MAX_DELAY_SECONDS"`

	// BackoffMultiplier scales the delay per retry.
	// Env: DIFFSUM_BACKOFF_MULTIPLIER
	BackoffMultiplier float64 `envconfig:"BACKOFF_MULTIPLIER"`

	// MinIntervalSeconds spaces request starts.
	// Env: DIFFSUM_MIN_INTERVAL_SECONDS
	MinIntervalSeconds float64 `envconfig:"MIN_INTERVAL_SECONDS"`

	// TimeoutSeconds is the per-request HTTP timeout.
	// Env: DIFFSUM_TIMEOUT_SECONDS
	TimeoutSeconds float64 `envconfig:"TIMEOUT_SECONDS"`

	// CacheDir enables disk caching of HTTP responses when set.
	// Env: DIFFSUM_CACHE_DIR
	CacheDir string `envconfig:"CACHE_DIR"`

	// TicketEnabled controls issue-tracker context extraction.
	// Env: DIFFSUM_TICKET_ENABLED
	TicketEnabled *bool `envconfig:"TICKET_ENABLED"`

	// TicketPattern is the ticket ID regular expression.
	// Env: DIFFSUM_TICKET_PATTERN
	TicketPattern string `envconfig:"TICKET_PATTERN"`

	// OpenAIKey is read from OPENAI_API_KEY, unprefixed.
	OpenAIKey string `ignored:"true"`

	// AnthropicKey is read from ANTHROPIC_API_KEY, unprefixed.
	AnthropicKey string `ignored:"true"`
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return EnvConfig{}, err
	}
	cfg.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	cfg.AnthropicKey = os.Getenv("ANTHROPIC_API_KEY")
	return cfg, nil
}

// Options converts the environment overrides into config options. Unset
// variables contribute nothing, so earlier layers survive.
func (e EnvConfig) Options(base AppConfig) []AppConfigOption {
	opts := []AppConfigOption{
		WithProvider(e.Provider),
		WithModel(e.Model),
		WithLanguage(e.Language),
		WithLogLevel(e.LogLevel),
	}

	if e.BaseURL != "" {
		opts = append(opts, WithBaseURL(e.BaseURL))
	}
	if e.UseLocalForChunks != nil {
		opts = append(opts, WithUseLocalForChunks(*e.UseLocalForChunks))
	}
	if e.LocalModel != "" {
		opts = append(opts, WithLocalModel(e.LocalModel))
	}
	if e.LocalBaseURL != "" {
		opts = append(opts, WithLocalBaseURL(e.LocalBaseURL))
	}
	if e.LogFormat != "" {
		opts = append(opts, WithLogFormat(ParseLogFormat(e.LogFormat)))
	}
	if e.CacheDir != "" {
		opts = append(opts, WithCacheDir(e.CacheDir))
	}
	if e.OpenAIKey != "" {
		opts = append(opts, WithOpenAIKey(e.OpenAIKey))
	}
	if e.AnthropicKey != "" {
		opts = append(opts, WithAnthropicKey(e.AnthropicKey))
	}
	if e.MaxParallel > 0 {
		opts = append(opts, WithMaxParallel(e.MaxParallel))
	}
	if e.LocalMaxParallel > 0 {
		opts = append(opts, WithLocalMaxParallel(e.LocalMaxParallel))
	}
	if e.MaxInputTokens > 0 {
		opts = append(opts, WithMaxInputTokens(e.MaxInputTokens))
	}
	if e.MaxContextLines > 0 {
		opts = append(opts, WithMaxContextLines(e.MaxContextLines))
	}
	if e.TimeoutSeconds > 0 {
		opts = append(opts, WithTimeout(secondsToDuration(e.TimeoutSeconds)))
	}

	chunking := base.Chunking()
	if e.ChunkingThreshold > 0 {
		chunking = chunking.WithThreshold(e.ChunkingThreshold)
	}
	if e.ChunkSize > 0 {
		chunking = chunking.WithChunkSize(e.ChunkSize)
	}
	if e.OverlapTokens > 0 {
		chunking = chunking.WithOverlapTokens(e.OverlapTokens)
	}
	opts = append(opts, WithChunkingConfig(chunking))

	retry := base.Retry()
	if e.MaxRetries > 0 {
		retry = retry.WithMaxRetries(e.MaxRetries)
	}
	if e.InitialDelaySeconds > 0 {
		retry = retry.WithInitialDelay(secondsToDuration(e.InitialDelaySeconds))
	}
	if e.MaxDelaySeconds > 0 {
		retry = retry.WithMaxDelay(secondsToDuration(e.MaxDelaySeconds))
	}
	if e.BackoffMultiplier >= 1 {
		retry = retry.WithBackoffMultiplier(e.BackoffMultiplier)
	}
	if e.MinIntervalSeconds > 0 {
		retry = retry.WithMinInterval(secondsToDuration(e.MinIntervalSeconds))
	}
	opts = append(opts, WithRetryConfig(retry))

	ticket := base.Ticket()
	if e.TicketEnabled != nil {
		ticket = ticket.WithEnabled(*e.TicketEnabled)
	}
	if e.TicketPattern != "" {
		ticket = ticket.WithPattern(e.TicketPattern)
	}
	opts = append(opts, WithTicketConfig(ticket))

	return opts
}

// ParseLogFormat parses a log format string.
func ParseLogFormat(s string) LogFormat {
	switch strings.ToLower(s) {
	case "json":
		return LogFormatJSON
	default:
		return LogFormatPretty
	}
}

// secondsToDuration converts fractional seconds to a Duration.
func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
