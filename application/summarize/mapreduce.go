package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/diffsum/diffsum/domain/diff"
	"github.com/diffsum/diffsum/infrastructure/jira"
	"github.com/diffsum/diffsum/infrastructure/provider"
)

// mapChunks summarizes every chunk of the batch concurrently, bounded by the
// configured parallelism clamped to the batch size. Each worker writes only
// its own index, so the returned slice preserves batch order exactly. A
// failed chunk leaves a placeholder instead of aborting the run; the number
// of failures is returned alongside.
func (s *Summarizer) mapChunks(ctx context.Context, batch diff.Batch) ([]string, int) {
	n := batch.Len()

	bound := s.parallelism
	if bound > n {
		bound = n
	}
	if bound < 1 {
		bound = 1
	}

	sem := semaphore.NewWeighted(int64(bound))
	results := make([]string, n)
	var failures atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int, chunk diff.Chunk) {
			defer wg.Done()

			if err := sem.Acquire(ctx, 1); err != nil {
				results[idx] = fmt.Sprintf("%s: %v", chunkFailurePrefix, err)
				failures.Add(1)
				return
			}
			defer sem.Release(1)

			summary, err := s.summarizeChunk(ctx, chunk)
			if err != nil {
				s.log.WarnContext(ctx, "chunk summarization failed",
					slog.Int("chunk", idx),
					slog.String("file", chunk.FilePath()),
					slog.String("error", err.Error()),
				)
				results[idx] = fmt.Sprintf("%s: %v", chunkFailurePrefix, err)
				failures.Add(1)
				return
			}
			results[idx] = summary
		}(i, batch.At(i))
	}

	wg.Wait()
	return results, int(failures.Load())
}

// summarizeChunk runs one rate-limited map call.
func (s *Summarizer) summarizeChunk(ctx context.Context, chunk diff.Chunk) (string, error) {
	req := provider.NewChatCompletionRequest([]provider.Message{
		provider.SystemMessage(commitSystemPrompt),
		provider.UserMessage(mapPrompt(chunk.Content(), chunk.FilePath(), s.language)),
	}).WithTemperature(defaultTemperature)

	var summary string
	err := s.limiter.Do(ctx, func(ctx context.Context) error {
		resp, err := s.mapGen().ChatCompletion(ctx, req)
		if err != nil {
			return err
		}
		summary = resp.Content()
		return nil
	})
	if err != nil {
		return "", err
	}
	return summary, nil
}

// reduceSummaries runs the single combine call over the ordered part
// summaries. Its failure is fatal for the run.
func (s *Summarizer) reduceSummaries(ctx context.Context, summaries []string, tctx jira.Context) (string, error) {
	req := provider.NewChatCompletionRequest([]provider.Message{
		provider.SystemMessage(commitSystemPrompt),
		provider.UserMessage(combinePrompt(summaries, s.language, tctx)),
	}).WithTemperature(defaultTemperature)

	var message string
	err := s.limiter.Do(ctx, func(ctx context.Context) error {
		resp, err := s.generator.ChatCompletion(ctx, req)
		if err != nil {
			return err
		}
		message = resp.Content()
		return nil
	})
	if err != nil {
		return "", NewPipelineError(PhaseReduce, err)
	}
	return message, nil
}
