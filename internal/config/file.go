package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileConfig mirrors the YAML config file layout. All fields are optional;
// zero values leave the current configuration untouched.
type FileConfig struct {
	Provider string `yaml:"provider,omitempty"`
	Model    string `yaml:"model,omitempty"`
	BaseURL  string `yaml:"base_url,omitempty"`
	Language string `yaml:"language,omitempty"`

	LogLevel  string `yaml:"log_level,omitempty"`
	LogFormat string `yaml:"log_format,omitempty"`

	Local struct {
		UseForChunks *bool  `yaml:"use_for_chunks,omitempty"`
		Model        string `yaml:"model,omitempty"`
		BaseURL      string `yaml:"base_url,omitempty"`
	} `yaml:"local,omitempty"`

	Chunking struct {
		Threshold     int `yaml:"threshold,omitempty"`
		ChunkSize     int `yaml:"chunk_size,omitempty"`
		OverlapTokens int `yaml:"overlap_tokens,omitempty"`
	} `yaml:"chunking,omitempty"`

	MaxParallel      int `yaml:"max_parallel,omitempty"`
	LocalMaxParallel int `yaml:"local_max_parallel,omitempty"`
	MaxInputTokens   int `yaml:"max_input_tokens,omitempty"`
	MaxContextLines  int `yaml:"max_context_lines,omitempty"`

	Retry struct {
		MaxRetries          int     `yaml:"max_retries,omitempty"`
		InitialDelaySeconds float64 `yaml:"initial_delay_seconds,omitempty"`
		MaxDelaySeconds     float64 `yaml:"max_delay_seconds,omitempty"`
		BackoffMultiplier   float64 `yaml:"backoff_multiplier,omitempty"`
		MinIntervalSeconds  float64 `yaml:"min_interval_seconds,omitempty"`
	} `yaml:"retry,omitempty"`

	TimeoutSeconds float64 `yaml:"timeout_seconds,omitempty"`
	CacheDir       string  `yaml:"cache_dir,omitempty"`

	Ticket struct {
		Enabled *bool  `yaml:"enabled,omitempty"`
		Pattern string `yaml:"pattern,omitempty"`
	} `yaml:"ticket,omitempty"`
}

// LoadFile reads a YAML config file. A missing file is not an error and
// yields an empty FileConfig.
func LoadFile(path string) (FileConfig, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return FileConfig{}, nil
	}
	if err != nil {
		return FileConfig{}, fmt.Errorf("read config file %s: %w", path, err)
	}

	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Options converts the file values into config options, skipping anything
// unset so earlier layers survive.
func (f FileConfig) Options(base AppConfig) []AppConfigOption {
	opts := []AppConfigOption{
		WithProvider(f.Provider),
		WithModel(f.Model),
		WithLanguage(f.Language),
		WithLogLevel(f.LogLevel),
	}

	if f.BaseURL != "" {
		opts = append(opts, WithBaseURL(f.BaseURL))
	}
	if f.Local.UseForChunks != nil {
		opts = append(opts, WithUseLocalForChunks(*f.Local.UseForChunks))
	}
	if f.Local.Model != "" {
		opts = append(opts, WithLocalModel(f.Local.Model))
	}
	if f.Local.BaseURL != "" {
		opts = append(opts, WithLocalBaseURL(f.Local.BaseURL))
	}
	if f.LogFormat != "" {
		opts = append(opts, WithLogFormat(ParseLogFormat(f.LogFormat)))
	}
	if f.CacheDir != "" {
		opts = append(opts, WithCacheDir(f.CacheDir))
	}
	if f.MaxParallel > 0 {
		opts = append(opts, WithMaxParallel(f.MaxParallel))
	}
	if f.LocalMaxParallel > 0 {
		opts = append(opts, WithLocalMaxParallel(f.LocalMaxParallel))
	}
	if f.MaxInputTokens > 0 {
		opts = append(opts, WithMaxInputTokens(f.MaxInputTokens))
	}
	if f.MaxContextLines > 0 {
		opts = append(opts, WithMaxContextLines(f.MaxContextLines))
	}
	if f.TimeoutSeconds > 0 {
		opts = append(opts, WithTimeout(secondsToDuration(f.TimeoutSeconds)))
	}

	chunking := base.Chunking()
	if f.Chunking.Threshold > 0 {
		chunking = chunking.WithThreshold(f.Chunking.Threshold)
	}
	if f.Chunking.ChunkSize > 0 {
		chunking = chunking.WithChunkSize(f.Chunking.ChunkSize)
	}
	if f.Chunking.OverlapTokens > 0 {
		chunking = chunking.WithOverlapTokens(f.Chunking.OverlapTokens)
	}
	opts = append(opts, WithChunkingConfig(chunking))

	retry := base.Retry()
	if f.Retry.MaxRetries > 0 {
		retry = retry.WithMaxRetries(f.Retry.MaxRetries)
	}
	if f.Retry.InitialDelaySeconds > 0 {
		retry = retry.WithInitialDelay(secondsToDuration(f.Retry.InitialDelaySeconds))
	}
	if f.Retry.MaxDelaySeconds > 0 {
		retry = retry.WithMaxDelay(secondsToDuration(f.Retry.MaxDelaySeconds))
	}
	if f.Retry.BackoffMultiplier >= 1 {
		retry = retry.WithBackoffMultiplier(f.Retry.BackoffMultiplier)
	}
	if f.Retry.MinIntervalSeconds > 0 {
		retry = retry.WithMinInterval(secondsToDuration(f.Retry.MinIntervalSeconds))
	}
	opts = append(opts, WithRetryConfig(retry))

	ticket := base.Ticket()
	if f.Ticket.Enabled != nil {
		ticket = ticket.WithEnabled(*f.Ticket.Enabled)
	}
	if f.Ticket.Pattern != "" {
		ticket = ticket.WithPattern(f.Ticket.Pattern)
	}
	opts = append(opts, WithTicketConfig(ticket))

	return opts
}

// WriteFile marshals the config to YAML at path, creating parent directories.
func (f FileConfig) WriteFile(path string) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file %s: %w", path, err)
	}
	return nil
}
