package main

import (
	"fmt"

	"github.com/diffsum/diffsum/application/summarize"
	"github.com/diffsum/diffsum/infrastructure/chunking"
	"github.com/diffsum/diffsum/infrastructure/optimizer"
	"github.com/diffsum/diffsum/infrastructure/provider"
	"github.com/diffsum/diffsum/infrastructure/tokenizer"
	"github.com/diffsum/diffsum/internal/config"
	"github.com/diffsum/diffsum/internal/log"
	"github.com/diffsum/diffsum/internal/ratelimit"
)

// buildSummarizer wires the pipeline from configuration. The returned
// cleanup function releases the generator.
func buildSummarizer(cfg config.AppConfig, logger *log.Logger) (*summarize.Summarizer, func() error, error) {
	generator, err := provider.NewGenerator(provider.Config{
		Provider: provider.Name(cfg.Provider()),
		Model:    cfg.Model(),
		APIKey:   cfg.APIKey(),
		BaseURL:  cfg.BaseURL(),
		Timeout:  int(cfg.Timeout().Seconds()),
		CacheDir: cfg.CacheDir(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create generator: %w", err)
	}

	retry := cfg.Retry()
	limiter := ratelimit.NewLimiter(ratelimit.Config{
		MaxRetries:        retry.MaxRetries(),
		InitialDelay:      retry.InitialDelay(),
		MaxDelay:          retry.MaxDelay(),
		BackoffMultiplier: retry.BackoffMultiplier(),
		MinInterval:       retry.MinInterval(),
	}, provider.ClassifyError, logger.Slog())

	counter := tokenizer.NewCounter(cfg.Model(), logger.Slog())
	opt := optimizer.New(cfg.MaxContextLines())

	chunker := chunking.NewSmartChunker(counter, chunking.Params{
		MaxTokens:     cfg.Chunking().ChunkSize(),
		OverlapTokens: cfg.Chunking().OverlapTokens(),
	}, logger.Slog())

	var opts []summarize.Option
	cleanup := generator.Close

	// Map-phase chunk calls can run on a cheap local model while the reduce
	// call stays on the configured provider.
	if cfg.UseLocalForChunks() && !cfg.IsLocal() {
		local, err := provider.NewGenerator(provider.Config{
			Provider: provider.NameOllama,
			Model:    cfg.LocalModel(),
			BaseURL:  cfg.LocalBaseURL(),
			Timeout:  int(cfg.Timeout().Seconds()),
			CacheDir: cfg.CacheDir(),
		})
		if err != nil {
			_ = generator.Close()
			return nil, nil, fmt.Errorf("create local chunk generator: %w", err)
		}
		opts = append(opts, summarize.WithMapGenerator(local))

		primaryClose := generator.Close
		cleanup = func() error {
			localErr := local.Close()
			if err := primaryClose(); err != nil {
				return err
			}
			return localErr
		}
	}

	summarizer := summarize.New(generator, limiter, counter, opt, chunker, summarize.Params{
		ChunkingThreshold: cfg.Chunking().Threshold(),
		MaxInputTokens:    cfg.MaxInputTokens(),
		Parallelism:       cfg.Parallelism(),
		Language:          cfg.Language(),
	}, logger, opts...)

	return summarizer, cleanup, nil
}
