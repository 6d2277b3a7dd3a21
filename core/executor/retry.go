package executor

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/luislascano01/Stratvithor/core/promptgraph"
	"github.com/luislascano01/Stratvithor/providers/observability"
)

// RetryConfig holds the tuning parameters for WithRetry. Zero values are
// replaced with the defaults documented below.
type RetryConfig struct {
	// MaxRetries is the maximum number of retries after the first failure.
	// A value of 3 means the fetcher is called at most 4 times.
	// Default: 3.
	MaxRetries int

	// InitialBackoff is the wait before the first retry.
	// Default: 2s.
	InitialBackoff time.Duration

	// MaxBackoff caps the computed backoff.
	// Default: 30s.
	MaxBackoff time.Duration

	// BackoffFactor is the growth multiplier applied per retry
	// (backoff = min(InitialBackoff * BackoffFactor^attempt, MaxBackoff)).
	// Default: 2.0.
	BackoffFactor float64

	// JitterFraction adds random noise in [0, JitterFraction * backoff].
	// Default: 0.1.
	JitterFraction float64

	// RetryableFunc reports whether an error should be retried.
	// Default: IsTransient.
	RetryableFunc func(error) bool

	// Sleep waits between attempts. Tests replace it to avoid real delays.
	// Default: a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

func applyRetryDefaults(config *RetryConfig) {
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.InitialBackoff == 0 {
		config.InitialBackoff = 2 * time.Second
	}
	if config.MaxBackoff == 0 {
		config.MaxBackoff = 30 * time.Second
	}
	if config.BackoffFactor == 0 {
		config.BackoffFactor = 2.0
	}
	if config.JitterFraction == 0 {
		config.JitterFraction = 0.1
	}
	if config.RetryableFunc == nil {
		config.RetryableFunc = IsTransient
	}
	if config.Sleep == nil {
		config.Sleep = sleepContext
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// computeBackoff returns the backoff for the given attempt (0-indexed).
func computeBackoff(config RetryConfig, attempt int) time.Duration {
	base := float64(config.InitialBackoff) * math.Pow(config.BackoffFactor, float64(attempt))
	if base > float64(config.MaxBackoff) {
		base = float64(config.MaxBackoff)
	}

	jitter := base * config.JitterFraction * rand.Float64() //nolint:gosec // non-cryptographic jitter is intentional
	return time.Duration(base + jitter)
}

// WithRetry retries transient fetch failures with exponential backoff and
// jitter. Non-retryable errors propagate immediately. On exhaustion the error
// wraps both ErrRetryExhausted and the last failure.
//
// Retries are counted on the observer carried by the context, if any.
func WithRetry(config RetryConfig) FetchMiddleware {
	applyRetryDefaults(&config)

	return func(next FetchFunc) FetchFunc {
		return func(ctx context.Context, node promptgraph.PromptNode, accumulated Accumulated) (RawData, error) {
			var lastErr error

			for attempt := 0; attempt <= config.MaxRetries; attempt++ {
				if attempt > 0 {
					recordRetry(ctx, node, attempt, lastErr)
					if err := config.Sleep(ctx, computeBackoff(config, attempt-1)); err != nil {
						return RawData{}, err
					}
				}

				raw, err := next(ctx, node, accumulated)
				if err == nil {
					return raw, nil
				}
				lastErr = err

				if ctx.Err() != nil {
					return RawData{}, ctx.Err()
				}
				if !config.RetryableFunc(err) {
					return RawData{}, err
				}
			}

			return RawData{}, fmt.Errorf("%w after %d retries: %w", ErrRetryExhausted, config.MaxRetries, lastErr)
		}
	}
}

func recordRetry(ctx context.Context, node promptgraph.PromptNode, attempt int, lastErr error) {
	if span := observability.SpanFromContext(ctx); span != nil {
		span.AddEvent(observability.EventRetry,
			observability.Attempt(attempt+1),
			observability.Error(lastErr),
		)
	}
	if observer := observability.ObserverFromContext(ctx); observer != nil {
		observer.Counter(observability.MetricFetchRetries).Add(ctx, 1,
			observability.NodeID(node.ID),
		)
	}
}
