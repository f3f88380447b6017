// Package ratelimit provides request pacing and classified retry with
// exponential backoff for outbound model calls.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"
)

// Default retry and pacing parameters.
const (
	DefaultMaxRetries        = 5
	DefaultInitialDelay      = 1 * time.Second
	DefaultMaxDelay          = 60 * time.Second
	DefaultBackoffMultiplier = 2.0
	DefaultMinInterval       = 500 * time.Millisecond
)

// Category classifies a failure for retry purposes.
type Category int

const (
	// CategoryTransient errors are retried with backoff.
	CategoryTransient Category = iota

	// CategoryRateLimited errors are retried with backoff; they indicate the
	// upstream is shedding load rather than a fault in the request.
	CategoryRateLimited

	// CategoryPermanent errors are returned immediately without retry.
	CategoryPermanent
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryRateLimited:
		return "rate_limited"
	case CategoryPermanent:
		return "permanent"
	default:
		return "transient"
	}
}

// Classifier maps an error to a retry category. Classification lives with
// the code that knows the error shape, not inside the retry loop.
type Classifier func(err error) Category

// Config holds retry and pacing parameters.
type Config struct {
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int

	// InitialDelay is the backoff before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps the backoff between retries.
	MaxDelay time.Duration

	// BackoffMultiplier scales the delay on each successive retry.
	BackoffMultiplier float64

	// MinInterval is the minimum spacing between request starts across all
	// goroutines sharing the limiter.
	MinInterval time.Duration
}

// DefaultConfig returns the default retry and pacing parameters.
func DefaultConfig() Config {
	return Config{
		MaxRetries:        DefaultMaxRetries,
		InitialDelay:      DefaultInitialDelay,
		MaxDelay:          DefaultMaxDelay,
		BackoffMultiplier: DefaultBackoffMultiplier,
		MinInterval:       DefaultMinInterval,
	}
}

// RetriesExhaustedError reports that every permitted attempt failed. It wraps
// the error from the final attempt.
type RetriesExhaustedError struct {
	Attempts int
	LastErr  error
}

// Error implements the error interface.
func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.LastErr)
}

// Unwrap returns the error from the final attempt.
func (e *RetriesExhaustedError) Unwrap() error { return e.LastErr }

// Limiter paces and retries units of work. A single Limiter is shared by all
// workers targeting the same upstream, so MinInterval holds across
// concurrent callers.
type Limiter struct {
	cfg      Config
	classify Classifier
	log      *slog.Logger

	mu   sync.Mutex
	next time.Time
}

// NewLimiter creates a Limiter. A nil classifier treats context errors as
// permanent and everything else as transient.
func NewLimiter(cfg Config, classify Classifier, logger *slog.Logger) *Limiter {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = DefaultInitialDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultMaxDelay
	}
	if cfg.BackoffMultiplier < 1 {
		cfg.BackoffMultiplier = DefaultBackoffMultiplier
	}
	if classify == nil {
		classify = defaultClassify
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{cfg: cfg, classify: classify, log: logger}
}

// defaultClassify treats context cancellation as permanent and everything
// else as transient.
func defaultClassify(err error) Category {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CategoryPermanent
	}
	return CategoryTransient
}

// Do runs fn, pacing its start and retrying classified failures with
// exponential backoff. Permanent errors return immediately. When retries run
// out the last error is wrapped in a RetriesExhaustedError.
func (l *Limiter) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= l.cfg.MaxRetries; attempt++ {
		if err := l.waitTurn(ctx); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		category := l.classify(lastErr)
		if category == CategoryPermanent {
			return lastErr
		}
		if attempt == l.cfg.MaxRetries {
			break
		}

		delay := l.backoff(attempt)
		l.log.Debug("retrying after failure",
			slog.Int("attempt", attempt+1),
			slog.String("category", category.String()),
			slog.Duration("delay", delay),
			slog.String("error", lastErr.Error()),
		)
		if err := sleepContext(ctx, delay); err != nil {
			return err
		}
	}

	return &RetriesExhaustedError{Attempts: l.cfg.MaxRetries + 1, LastErr: lastErr}
}

// waitTurn reserves the next request slot and sleeps until it arrives. The
// slot is reserved under the lock but the sleep happens outside it, so
// concurrent callers queue up at MinInterval spacing without serializing
// their requests end to end.
func (l *Limiter) waitTurn(ctx context.Context) error {
	if l.cfg.MinInterval <= 0 {
		return ctx.Err()
	}

	l.mu.Lock()
	now := time.Now()
	target := l.next
	if target.Before(now) {
		target = now
	}
	l.next = target.Add(l.cfg.MinInterval)
	l.mu.Unlock()

	return sleepContext(ctx, time.Until(target))
}

// backoff computes the jittered delay before retry number attempt+1. The
// base doubles per attempt (by the configured multiplier) and is capped at
// MaxDelay; jitter scales it by a uniform factor in [0.5, 1.0).
func (l *Limiter) backoff(attempt int) time.Duration {
	base := float64(l.cfg.InitialDelay) * math.Pow(l.cfg.BackoffMultiplier, float64(attempt))
	if capped := float64(l.cfg.MaxDelay); base > capped {
		base = capped
	}
	return time.Duration(base * (0.5 + 0.5*rand.Float64()))
}

// sleepContext sleeps for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
