package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"
)

// RetryConfig controls how often and how patiently an operation is retried.
// Zero values take defaults.
type RetryConfig struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	JitterFraction float64
	// Permanent, when set, stops retrying as soon as it reports true.
	Permanent func(error) bool
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 10 * time.Second
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2
	}
	if c.JitterFraction <= 0 {
		c.JitterFraction = 0.1
	}
	return c
}

// Backoff returns the wait after the given failed attempt (1-based):
// InitialDelay * Multiplier^(attempt-1), jittered by up to JitterFraction in
// either direction and capped at MaxDelay.
func (c RetryConfig) Backoff(attempt int) time.Duration {
	c = c.withDefaults()
	base := float64(c.InitialDelay) * math.Pow(c.Multiplier, float64(attempt-1))
	d := base + base*c.JitterFraction*(2*rand.Float64()-1)
	switch {
	case d > float64(c.MaxDelay):
		d = float64(c.MaxDelay)
	case d <= 0:
		d = float64(c.InitialDelay)
	}
	return time.Duration(d)
}

// Do calls fn until it succeeds and returns its value. It gives up when the
// attempts run out, when cfg.Permanent reports the error as permanent or
// when ctx is done.
func Do[T any](ctx context.Context, name string, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = cfg.withDefaults()
	logger := slog.Default().With("component", "retry", "operation", name)

	var zero T
	for attempt := 1; ; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Info("succeeded after retry", "attempt", attempt)
			}
			return v, nil
		}
		if cfg.Permanent != nil && cfg.Permanent(err) {
			return zero, fmt.Errorf("%s: %w", name, err)
		}
		if attempt >= cfg.MaxAttempts {
			return zero, fmt.Errorf("all %d attempts failed for %s: %w", cfg.MaxAttempts, name, err)
		}
		if ctx.Err() != nil {
			return zero, fmt.Errorf("retry aborted: %w", ctx.Err())
		}

		delay := cfg.Backoff(attempt)
		logger.Warn("operation failed, retrying",
			"attempt", attempt,
			"max_attempts", cfg.MaxAttempts,
			"next_delay", delay,
			"error", err,
		)
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("retry aborted during backoff: %w", ctx.Err())
		}
	}
}

// Retry is Do for operations without a result.
func Retry(ctx context.Context, name string, cfg RetryConfig, fn func() error) error {
	_, err := Do(ctx, name, cfg, func(context.Context) (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}
