package summarize

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/diffsum/diffsum/infrastructure/chunking"
	"github.com/diffsum/diffsum/infrastructure/jira"
	"github.com/diffsum/diffsum/infrastructure/optimizer"
	"github.com/diffsum/diffsum/infrastructure/provider"
	"github.com/diffsum/diffsum/infrastructure/tokenizer"
	"github.com/diffsum/diffsum/internal/log"
	"github.com/diffsum/diffsum/internal/ratelimit"
)

// defaultTemperature keeps generation close to deterministic; commit
// messages should describe the diff, not improvise.
const defaultTemperature = 0.2

// Params configures a Summarizer.
type Params struct {
	// ChunkingThreshold is the token count above which a diff is split and
	// processed in parallel.
	ChunkingThreshold int

	// MaxInputTokens guards the size of unchunked prompts.
	MaxInputTokens int

	// Parallelism bounds concurrent map calls. It is clamped to the batch
	// size per run.
	Parallelism int

	// Language is the output language code.
	Language string
}

// Summarizer runs the summarization pipeline: optimize the diff, measure it,
// then either summarize directly or chunk it and map-reduce the pieces.
type Summarizer struct {
	generator      provider.TextGenerator
	mapGenerator   provider.TextGenerator
	limiter        *ratelimit.Limiter
	counter        *tokenizer.Counter
	optimizer      *optimizer.Optimizer
	chunker        *chunking.SmartChunker
	threshold      int
	maxInputTokens int
	parallelism    int
	language       string
	log            *log.Logger
}

// Option adjusts a Summarizer beyond the required collaborators.
type Option func(*Summarizer)

// WithMapGenerator routes map-phase chunk calls to a separate generator,
// typically a cheap local model that tolerates high parallelism. Direct and
// reduce calls stay on the primary generator.
func WithMapGenerator(g provider.TextGenerator) Option {
	return func(s *Summarizer) { s.mapGenerator = g }
}

// New creates a Summarizer.
func New(
	generator provider.TextGenerator,
	limiter *ratelimit.Limiter,
	counter *tokenizer.Counter,
	opt *optimizer.Optimizer,
	chunker *chunking.SmartChunker,
	params Params,
	logger *log.Logger,
	opts ...Option,
) *Summarizer {
	if params.ChunkingThreshold <= 0 {
		params.ChunkingThreshold = 12000
	}
	if params.MaxInputTokens <= 0 {
		params.MaxInputTokens = 8000
	}
	if params.Parallelism <= 0 {
		params.Parallelism = 4
	}
	if params.Language == "" {
		params.Language = "en"
	}
	if logger == nil {
		logger = log.Default()
	}
	s := &Summarizer{
		generator:      generator,
		limiter:        limiter,
		counter:        counter,
		optimizer:      opt,
		chunker:        chunker,
		threshold:      params.ChunkingThreshold,
		maxInputTokens: params.MaxInputTokens,
		parallelism:    params.Parallelism,
		language:       params.Language,
		log:            logger,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// mapGen returns the generator used for map-phase calls.
func (s *Summarizer) mapGen() provider.TextGenerator {
	if s.mapGenerator != nil {
		return s.mapGenerator
	}
	return s.generator
}

// Result reports one summarization run.
type Result struct {
	message      string
	chunked      bool
	chunkCount   int
	failedChunks int
}

// Message returns the generated text.
func (r Result) Message() string { return r.message }

// Chunked reports whether the diff was split.
func (r Result) Chunked() bool { return r.chunked }

// ChunkCount returns the number of chunks processed.
func (r Result) ChunkCount() int { return r.chunkCount }

// FailedChunks returns the number of chunks absorbed as placeholders.
func (r Result) FailedChunks() int { return r.failedChunks }

// Degraded reports whether the result was produced with missing parts.
func (r Result) Degraded() bool { return r.failedChunks > 0 }

// CommitMessage generates a commit message for the staged diff. Small diffs
// go through a single call after aggressive optimization; large diffs are
// lightly optimized, chunked, summarized in parallel, and combined.
func (s *Summarizer) CommitMessage(ctx context.Context, diffText string, tctx jira.Context) (Result, error) {
	if strings.TrimSpace(diffText) == "" {
		return Result{}, NewPipelineError(PhaseInit, errors.New("empty diff"))
	}

	light, lightStats := s.optimizer.Optimize(diffText, false)
	tokens := s.counter.Count(light)

	s.log.InfoContext(ctx, "diff measured",
		slog.Int("tokens", tokens),
		slog.Int("threshold", s.threshold),
		slog.Bool("approximate", s.counter.Approximate()),
		slog.Int("files", lightStats.FilesProcessed),
	)

	if tokens <= s.threshold {
		// Aggressive optimization is reserved for the direct path. Chunked
		// diffs stay verbose so each chunk keeps enough context to stand
		// alone.
		direct, stats := s.optimizer.Optimize(diffText, true)
		if !s.counter.Within(direct, s.maxInputTokens) {
			direct = s.optimizer.SmartTruncate(direct, s.maxInputTokens)
		}
		s.log.DebugContext(ctx, "direct summarization",
			slog.Float64("compression", stats.CompressionRatio),
		)
		message, err := s.directCall(ctx, decorateDirect(commitPrompt(direct, s.language), tctx))
		if err != nil {
			return Result{}, err
		}
		return Result{message: message, chunkCount: 1}, nil
	}

	batch := s.chunker.Chunk(light)
	if batch.Len() == 0 {
		return Result{}, NewPipelineError(PhaseInit, errors.New("chunking produced no chunks"))
	}
	if batch.Len() == 1 {
		message, err := s.directCall(ctx, decorateDirect(commitPrompt(batch.At(0).Content(), s.language), tctx))
		if err != nil {
			return Result{}, err
		}
		return Result{message: message, chunkCount: 1}, nil
	}

	s.log.InfoContext(ctx, "map phase started",
		slog.Int("chunks", batch.Len()),
		slog.Int("parallelism", min(s.parallelism, batch.Len())),
	)

	summaries, failures := s.mapChunks(ctx, batch)
	if failures == batch.Len() {
		return Result{}, NewPipelineError(PhaseMap, errors.New("every chunk failed"))
	}
	if failures > 0 {
		s.log.WarnContext(ctx, "map phase degraded",
			slog.Int("failed", failures),
			slog.Int("total", batch.Len()),
		)
	}

	message, err := s.reduceSummaries(ctx, summaries, tctx)
	if err != nil {
		return Result{}, err
	}

	return Result{
		message:      strings.TrimSpace(message),
		chunked:      true,
		chunkCount:   batch.Len(),
		failedChunks: failures,
	}, nil
}

// Changelog generates a changelog over the given commit messages.
func (s *Summarizer) Changelog(ctx context.Context, messages []string) (string, error) {
	if len(messages) == 0 {
		return "", NewPipelineError(PhaseInit, errors.New("no commits in range"))
	}

	req := provider.NewChatCompletionRequest([]provider.Message{
		provider.SystemMessage(changelogSystemPrompt),
		provider.UserMessage(changelogPrompt(messages, s.language)),
	}).WithTemperature(defaultTemperature)

	var out string
	err := s.limiter.Do(ctx, func(ctx context.Context) error {
		resp, err := s.generator.ChatCompletion(ctx, req)
		if err != nil {
			return err
		}
		out = resp.Content()
		return nil
	})
	if err != nil {
		return "", NewPipelineError(PhaseDirect, err)
	}
	return strings.TrimSpace(out), nil
}

// directCall runs one rate-limited completion over a full prompt.
func (s *Summarizer) directCall(ctx context.Context, prompt string) (string, error) {
	req := provider.NewChatCompletionRequest([]provider.Message{
		provider.SystemMessage(commitSystemPrompt),
		provider.UserMessage(prompt),
	}).WithTemperature(defaultTemperature)

	var out string
	err := s.limiter.Do(ctx, func(ctx context.Context) error {
		resp, err := s.generator.ChatCompletion(ctx, req)
		if err != nil {
			return err
		}
		out = resp.Content()
		return nil
	})
	if err != nil {
		return "", NewPipelineError(PhaseDirect, err)
	}
	return strings.TrimSpace(out), nil
}
