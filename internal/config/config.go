// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Default configuration values.
const (
	DefaultProvider          = "openai"
	DefaultModel             = "gpt-4o-mini"
	DefaultOllamaModel       = "phi3:mini"
	DefaultOllamaBaseURL     = "http://localhost:11434/v1"
	DefaultLanguage          = "en"
	DefaultLogLevel          = "INFO"
	DefaultChunkingThreshold = 12000
	DefaultChunkSizeTokens   = 2048
	DefaultOverlapTokens     = 150
	DefaultMaxParallel       = 4
	DefaultLocalMaxParallel  = 16
	DefaultMaxRetries        = 5
	DefaultInitialDelay      = 1 * time.Second
	DefaultMaxDelay          = 60 * time.Second
	DefaultBackoffMultiplier = 2.0
	DefaultMinInterval       = 500 * time.Millisecond
	DefaultMaxContextLines   = 3
	DefaultMaxInputTokens    = 8000
	DefaultTimeout           = 120 * time.Second
	DefaultTicketPattern     = `[A-Z]+-\d+`
)

// LogFormat represents the log output format.
type LogFormat string

// LogFormat values.
const (
	LogFormatPretty LogFormat = "pretty"
	LogFormatJSON   LogFormat = "json"
)

// ChunkingConfig configures diff splitting.
type ChunkingConfig struct {
	threshold     int
	chunkSize     int
	overlapTokens int
}

// NewChunkingConfig creates a ChunkingConfig with defaults.
func NewChunkingConfig() ChunkingConfig {
	return ChunkingConfig{
		threshold:     DefaultChunkingThreshold,
		chunkSize:     DefaultChunkSizeTokens,
		overlapTokens: DefaultOverlapTokens,
	}
}

// Threshold returns the token count above which a diff is chunked.
func (c ChunkingConfig) Threshold() int { return c.threshold }

// ChunkSize returns the per-chunk token budget.
func (c ChunkingConfig) ChunkSize() int { return c.chunkSize }

// OverlapTokens returns the token budget for inter-chunk overlap.
func (c ChunkingConfig) OverlapTokens() int { return c.overlapTokens }

// WithThreshold returns a new config with the specified threshold.
func (c ChunkingConfig) WithThreshold(n int) ChunkingConfig {
	if n > 0 {
		c.threshold = n
	}
	return c
}

// WithChunkSize returns a new config with the specified chunk size.
func (c ChunkingConfig) WithChunkSize(n int) ChunkingConfig {
	if n > 0 {
		c.chunkSize = n
	}
	return c
}

// WithOverlapTokens returns a new config with the specified overlap.
func (c ChunkingConfig) WithOverlapTokens(n int) ChunkingConfig {
	if n >= 0 {
		c.overlapTokens = n
	}
	return c
}

// RetryConfig configures request pacing and retry behavior.
type RetryConfig struct {
	maxRetries        int
	initialDelay      time.Duration
	maxDelay          time.Duration
	backoffMultiplier float64
	minInterval       time.Duration
}

// NewRetryConfig creates a RetryConfig with defaults.
func NewRetryConfig() RetryConfig {
	return RetryConfig{
		maxRetries:        DefaultMaxRetries,
		initialDelay:      DefaultInitialDelay,
		maxDelay:          DefaultMaxDelay,
		backoffMultiplier: DefaultBackoffMultiplier,
		minInterval:       DefaultMinInterval,
	}
}

// MaxRetries returns the maximum retry count.
func (r RetryConfig) MaxRetries() int { return r.maxRetries }

// InitialDelay returns the first backoff delay.
func (r RetryConfig) InitialDelay() time.Duration { return r.initialDelay }

// MaxDelay returns the backoff cap.
func (r RetryConfig) MaxDelay() time.Duration { return r.maxDelay }

// BackoffMultiplier returns the backoff multiplier.
func (r RetryConfig) BackoffMultiplier() float64 { return r.backoffMultiplier }

// MinInterval returns the minimum spacing between request starts.
func (r RetryConfig) MinInterval() time.Duration { return r.minInterval }

// WithMaxRetries returns a new config with the specified retry count.
func (r RetryConfig) WithMaxRetries(n int) RetryConfig {
	if n >= 0 {
		r.maxRetries = n
	}
	return r
}

// WithInitialDelay returns a new config with the specified initial delay.
func (r RetryConfig) WithInitialDelay(d time.Duration) RetryConfig {
	if d > 0 {
		r.initialDelay = d
	}
	return r
}

// WithMaxDelay returns a new config with the specified delay cap.
func (r RetryConfig) WithMaxDelay(d time.Duration) RetryConfig {
	if d > 0 {
		r.maxDelay = d
	}
	return r
}

// WithBackoffMultiplier returns a new config with the specified multiplier.
func (r RetryConfig) WithBackoffMultiplier(f float64) RetryConfig {
	if f >= 1 {
		r.backoffMultiplier = f
	}
	return r
}

// WithMinInterval returns a new config with the specified spacing.
func (r RetryConfig) WithMinInterval(d time.Duration) RetryConfig {
	if d >= 0 {
		r.minInterval = d
	}
	return r
}

// TicketConfig configures issue-tracker context extraction.
type TicketConfig struct {
	enabled bool
	pattern string
}

// NewTicketConfig creates a TicketConfig with defaults.
func NewTicketConfig() TicketConfig {
	return TicketConfig{enabled: true, pattern: DefaultTicketPattern}
}

// Enabled returns whether ticket extraction is enabled.
func (t TicketConfig) Enabled() bool { return t.enabled }

// Pattern returns the ticket ID regular expression.
func (t TicketConfig) Pattern() string { return t.pattern }

// WithEnabled returns a new config with the specified enabled state.
func (t TicketConfig) WithEnabled(enabled bool) TicketConfig {
	t.enabled = enabled
	return t
}

// WithPattern returns a new config with the specified pattern.
func (t TicketConfig) WithPattern(pattern string) TicketConfig {
	if pattern != "" {
		t.pattern = pattern
	}
	return t
}

// AppConfig holds the main application configuration.
type AppConfig struct {
	provider          string
	model             string
	baseURL           string
	openAIKey         string
	anthropicKey      string
	useLocalForChunks bool
	localModel        string
	localBaseURL      string
	language          string
	logLevel          string
	logFormat         LogFormat
	maxParallel       int
	localMaxParallel  int
	maxInputTokens    int
	maxContextLines   int
	timeout           time.Duration
	cacheDir          string
	chunking          ChunkingConfig
	retry             RetryConfig
	ticket            TicketConfig
}

// DefaultDataDir returns the default data directory.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".diffsum"
	}
	return filepath.Join(home, ".diffsum")
}

// GlobalConfigPath returns the path of the user-level config file.
func GlobalConfigPath() string {
	return filepath.Join(DefaultDataDir(), "config.yaml")
}

// ProjectConfigPath returns the path of the repository-level config file.
func ProjectConfigPath() string {
	return ".diffsum.yaml"
}

// NewAppConfig creates a new AppConfig with defaults.
func NewAppConfig() AppConfig {
	return AppConfig{
		provider:         DefaultProvider,
		model:            DefaultModel,
		localModel:       DefaultOllamaModel,
		localBaseURL:     DefaultOllamaBaseURL,
		language:         DefaultLanguage,
		logLevel:         DefaultLogLevel,
		logFormat:        LogFormatPretty,
		maxParallel:      DefaultMaxParallel,
		localMaxParallel: DefaultLocalMaxParallel,
		maxInputTokens:   DefaultMaxInputTokens,
		maxContextLines:  DefaultMaxContextLines,
		timeout:          DefaultTimeout,
		chunking:         NewChunkingConfig(),
		retry:            NewRetryConfig(),
		ticket:           NewTicketConfig(),
	}
}

// Provider returns the configured backend name.
func (c AppConfig) Provider() string { return c.provider }

// Model returns the model identifier.
func (c AppConfig) Model() string { return c.model }

// BaseURL returns the backend base URL override.
func (c AppConfig) BaseURL() string { return c.baseURL }

// OpenAIKey returns the OpenAI API key.
func (c AppConfig) OpenAIKey() string { return c.openAIKey }

// AnthropicKey returns the Anthropic API key.
func (c AppConfig) AnthropicKey() string { return c.anthropicKey }

// UseLocalForChunks reports whether map-phase chunk calls run on a local
// model while the reduce call stays on the configured provider.
func (c AppConfig) UseLocalForChunks() bool { return c.useLocalForChunks }

// LocalModel returns the model used for local chunk calls.
func (c AppConfig) LocalModel() string { return c.localModel }

// LocalBaseURL returns the local server URL used for local chunk calls.
func (c AppConfig) LocalBaseURL() string { return c.localBaseURL }

// Language returns the output language code.
func (c AppConfig) Language() string { return c.language }

// LogLevel returns the log level.
func (c AppConfig) LogLevel() string { return c.logLevel }

// LogFormat returns the log format.
func (c AppConfig) LogFormat() LogFormat { return c.logFormat }

// MaxParallel returns the map-phase concurrency bound for remote backends.
func (c AppConfig) MaxParallel() int { return c.maxParallel }

// LocalMaxParallel returns the map-phase concurrency bound for local backends.
func (c AppConfig) LocalMaxParallel() int { return c.localMaxParallel }

// MaxInputTokens returns the prompt size guard for unchunked requests.
func (c AppConfig) MaxInputTokens() int { return c.maxInputTokens }

// MaxContextLines returns the context window for diff optimization.
func (c AppConfig) MaxContextLines() int { return c.maxContextLines }

// Timeout returns the per-request HTTP timeout.
func (c AppConfig) Timeout() time.Duration { return c.timeout }

// CacheDir returns the HTTP response cache directory. Empty disables caching.
func (c AppConfig) CacheDir() string { return c.cacheDir }

// Chunking returns the chunking config.
func (c AppConfig) Chunking() ChunkingConfig { return c.chunking }

// Retry returns the retry config.
func (c AppConfig) Retry() RetryConfig { return c.retry }

// Ticket returns the ticket config.
func (c AppConfig) Ticket() TicketConfig { return c.ticket }

// IsLocal reports whether the configured backend runs on this machine.
func (c AppConfig) IsLocal() bool { return c.provider == "ollama" }

// Parallelism returns the map-phase concurrency bound. Local servers
// tolerate far more simultaneous requests than metered APIs, so the local
// bound applies both when the whole run is local and when only the map
// phase is routed to a local model.
func (c AppConfig) Parallelism() int {
	if c.IsLocal() || c.useLocalForChunks {
		return c.localMaxParallel
	}
	return c.maxParallel
}

// APIKey returns the key for the configured backend.
func (c AppConfig) APIKey() string {
	switch c.provider {
	case "anthropic":
		return c.anthropicKey
	default:
		return c.openAIKey
	}
}

// AppConfigOption is a functional option for AppConfig.
type AppConfigOption func(*AppConfig)

// WithProvider sets the backend name.
func WithProvider(provider string) AppConfigOption {
	return func(c *AppConfig) {
		if provider != "" {
			c.provider = strings.ToLower(provider)
		}
	}
}

// WithModel sets the model identifier.
func WithModel(model string) AppConfigOption {
	return func(c *AppConfig) {
		if model != "" {
			c.model = model
		}
	}
}

// WithBaseURL sets the backend base URL.
func WithBaseURL(url string) AppConfigOption {
	return func(c *AppConfig) { c.baseURL = url }
}

// WithOpenAIKey sets the OpenAI API key.
func WithOpenAIKey(key string) AppConfigOption {
	return func(c *AppConfig) { c.openAIKey = key }
}

// WithAnthropicKey sets the Anthropic API key.
func WithAnthropicKey(key string) AppConfigOption {
	return func(c *AppConfig) { c.anthropicKey = key }
}

// WithUseLocalForChunks toggles local-model routing of map-phase calls.
func WithUseLocalForChunks(enabled bool) AppConfigOption {
	return func(c *AppConfig) { c.useLocalForChunks = enabled }
}

// WithLocalModel sets the model for local chunk calls.
func WithLocalModel(model string) AppConfigOption {
	return func(c *AppConfig) {
		if model != "" {
			c.localModel = model
		}
	}
}

// WithLocalBaseURL sets the local server URL for local chunk calls.
func WithLocalBaseURL(url string) AppConfigOption {
	return func(c *AppConfig) {
		if url != "" {
			c.localBaseURL = url
		}
	}
}

// WithLanguage sets the output language code.
func WithLanguage(lang string) AppConfigOption {
	return func(c *AppConfig) {
		if lang != "" {
			c.language = lang
		}
	}
}

// WithLogLevel sets the log level.
func WithLogLevel(level string) AppConfigOption {
	return func(c *AppConfig) {
		if level != "" {
			c.logLevel = level
		}
	}
}

// WithLogFormat sets the log format.
func WithLogFormat(format LogFormat) AppConfigOption {
	return func(c *AppConfig) { c.logFormat = format }
}

// WithMaxParallel sets the remote concurrency bound.
func WithMaxParallel(n int) AppConfigOption {
	return func(c *AppConfig) {
		if n > 0 {
			c.maxParallel = n
		}
	}
}

// WithLocalMaxParallel sets the local concurrency bound.
func WithLocalMaxParallel(n int) AppConfigOption {
	return func(c *AppConfig) {
		if n > 0 {
			c.localMaxParallel = n
		}
	}
}

// WithMaxInputTokens sets the unchunked prompt size guard.
func WithMaxInputTokens(n int) AppConfigOption {
	return func(c *AppConfig) {
		if n > 0 {
			c.maxInputTokens = n
		}
	}
}

// WithMaxContextLines sets the diff optimization context window.
func WithMaxContextLines(n int) AppConfigOption {
	return func(c *AppConfig) {
		if n > 0 {
			c.maxContextLines = n
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) AppConfigOption {
	return func(c *AppConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithCacheDir sets the HTTP response cache directory.
func WithCacheDir(dir string) AppConfigOption {
	return func(c *AppConfig) { c.cacheDir = dir }
}

// WithChunkingConfig sets the chunking config.
func WithChunkingConfig(ch ChunkingConfig) AppConfigOption {
	return func(c *AppConfig) { c.chunking = ch }
}

// WithRetryConfig sets the retry config.
func WithRetryConfig(r RetryConfig) AppConfigOption {
	return func(c *AppConfig) { c.retry = r }
}

// WithTicketConfig sets the ticket config.
func WithTicketConfig(t TicketConfig) AppConfigOption {
	return func(c *AppConfig) { c.ticket = t }
}

// NewAppConfigWithOptions creates an AppConfig with functional options.
func NewAppConfigWithOptions(opts ...AppConfigOption) AppConfig {
	c := NewAppConfig()
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Apply returns a new AppConfig with the given options applied.
func (c AppConfig) Apply(opts ...AppConfigOption) AppConfig {
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// LogAttrs returns slog attributes for logging the configuration.
// API keys are reported as presence flags, never as values.
func (c AppConfig) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("provider", c.provider),
		slog.String("model", c.model),
		slog.String("base_url", c.baseURL),
		slog.String("language", c.language),
		slog.String("log_level", c.logLevel),
		slog.Bool("openai_key_set", c.openAIKey != ""),
		slog.Bool("anthropic_key_set", c.anthropicKey != ""),
		slog.Bool("local_chunks", c.useLocalForChunks),
		slog.Int("chunking_threshold", c.chunking.Threshold()),
		slog.Int("chunk_size", c.chunking.ChunkSize()),
		slog.Int("overlap_tokens", c.chunking.OverlapTokens()),
		slog.Int("parallelism", c.Parallelism()),
		slog.Int("max_retries", c.retry.MaxRetries()),
		slog.Duration("min_interval", c.retry.MinInterval()),
	}
}

// Validate checks that the configuration can drive a run.
func (c AppConfig) Validate() error {
	switch c.provider {
	case "openai":
		if c.openAIKey == "" {
			return fmt.Errorf("provider %q requires OPENAI_API_KEY", c.provider)
		}
	case "anthropic":
		if c.anthropicKey == "" {
			return fmt.Errorf("provider %q requires ANTHROPIC_API_KEY", c.provider)
		}
	case "ollama":
	default:
		return fmt.Errorf("unknown provider %q", c.provider)
	}
	if c.chunking.ChunkSize() <= c.chunking.OverlapTokens() {
		return fmt.Errorf("chunk size %d must exceed overlap %d",
			c.chunking.ChunkSize(), c.chunking.OverlapTokens())
	}
	return nil
}
