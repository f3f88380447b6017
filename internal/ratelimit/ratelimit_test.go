package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() Config {
	return Config{
		MaxRetries:        3,
		InitialDelay:      time.Millisecond,
		MaxDelay:          5 * time.Millisecond,
		BackoffMultiplier: 2.0,
		MinInterval:       0,
	}
}

func TestDoSucceedsFirstTry(t *testing.T) {
	l := NewLimiter(fastConfig(), nil, nil)

	calls := 0
	err := l.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesTransientFailures(t *testing.T) {
	l := NewLimiter(fastConfig(), nil, nil)

	calls := 0
	err := l.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("connection reset")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoPermanentErrorReturnsImmediately(t *testing.T) {
	permanent := func(err error) Category { return CategoryPermanent }
	l := NewLimiter(fastConfig(), permanent, nil)

	boom := errors.New("bad request")
	calls := 0
	err := l.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return boom
	})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls, "permanent errors must not be retried")

	var exhausted *RetriesExhaustedError
	assert.False(t, errors.As(err, &exhausted))
}

func TestDoExhaustedWrapsLastError(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxRetries = 2
	l := NewLimiter(cfg, nil, nil)

	boom := errors.New("still down")
	calls := 0
	err := l.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return boom
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)

	var exhausted *RetriesExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "retries exhausted after 3 attempts")
}

func TestDoContextCanceledDuringBackoff(t *testing.T) {
	cfg := fastConfig()
	cfg.InitialDelay = time.Second
	cfg.MaxDelay = time.Second
	l := NewLimiter(cfg, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := l.Do(ctx, func(ctx context.Context) error {
		return fmt.Errorf("flaky")
	})

	require.ErrorIs(t, err, context.Canceled)
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	l := NewLimiter(Config{
		MaxRetries:        5,
		InitialDelay:      time.Second,
		MaxDelay:          60 * time.Second,
		BackoffMultiplier: 2.0,
	}, nil, nil)

	bases := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		32 * time.Second,
		60 * time.Second,
		60 * time.Second,
	}
	for attempt, base := range bases {
		for i := 0; i < 50; i++ {
			d := l.backoff(attempt)
			assert.GreaterOrEqual(t, d, base/2, "attempt %d", attempt)
			assert.Less(t, d, base, "attempt %d", attempt)
		}
	}
}

func TestMinIntervalSpacesConcurrentCallers(t *testing.T) {
	const (
		callers  = 4
		interval = 20 * time.Millisecond
	)
	cfg := fastConfig()
	cfg.MinInterval = interval
	l := NewLimiter(cfg, nil, nil)

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Do(context.Background(), func(ctx context.Context) error {
				return nil
			})
		}()
	}
	wg.Wait()

	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, time.Duration(callers-1)*interval,
		"request starts must be at least MinInterval apart")
}

func TestDefaultClassify(t *testing.T) {
	assert.Equal(t, CategoryPermanent, defaultClassify(context.Canceled))
	assert.Equal(t, CategoryPermanent, defaultClassify(context.DeadlineExceeded))
	assert.Equal(t, CategoryPermanent, defaultClassify(fmt.Errorf("call: %w", context.Canceled)))
	assert.Equal(t, CategoryTransient, defaultClassify(errors.New("connection refused")))
}

func TestCategoryString(t *testing.T) {
	assert.Equal(t, "transient", CategoryTransient.String())
	assert.Equal(t, "rate_limited", CategoryRateLimited.String())
	assert.Equal(t, "permanent", CategoryPermanent.String())
}

func TestNewLimiterNormalizesConfig(t *testing.T) {
	l := NewLimiter(Config{MaxRetries: -1, BackoffMultiplier: 0.1}, nil, nil)

	assert.Equal(t, 0, l.cfg.MaxRetries)
	assert.Equal(t, DefaultInitialDelay, l.cfg.InitialDelay)
	assert.Equal(t, DefaultMaxDelay, l.cfg.MaxDelay)
	assert.Equal(t, DefaultBackoffMultiplier, l.cfg.BackoffMultiplier)
	assert.NotNil(t, l.classify)
}
