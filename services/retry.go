package services

import (
	"context"
	"fmt"
	"time"

	"fii-monitor/observability"
)

type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// Retryable decides whether an error is worth another attempt; nil retries everything.
	Retryable func(error) bool
}

var DefaultRetryConfig = RetryConfig{
	MaxRetries:     3,
	InitialBackoff: 100 * time.Millisecond,
	MaxBackoff:     5 * time.Second,
}

// SearchRetryConfig gives ticker search a single second chance after 500ms
var SearchRetryConfig = RetryConfig{
	MaxRetries:     1,
	InitialBackoff: 500 * time.Millisecond,
	MaxBackoff:     500 * time.Millisecond,
}

func WithRetry(ctx context.Context, config RetryConfig, fn func() error) error {
	return WithRetryAttempt(ctx, config, func(int) error { return fn() })
}

// WithRetryAttempt is WithRetry for callers that change their request on later
// attempts. attempt is 0 for the first call.
func WithRetryAttempt(ctx context.Context, config RetryConfig, fn func(attempt int) error) error {
	var lastErr error
	backoff := config.InitialBackoff

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled during retry: %w", ctx.Err())
			case <-time.After(backoff):
			}

			backoff *= 2
			if backoff > config.MaxBackoff {
				backoff = config.MaxBackoff
			}
		}

		err := fn(attempt)
		if err == nil {
			return nil
		}

		lastErr = err
		if config.Retryable != nil && !config.Retryable(err) {
			return err
		}
		if attempt < config.MaxRetries {
			observability.Warn("retry attempt failed",
				"attempt", attempt+1,
				"max_retries", config.MaxRetries,
				"error", err)
		}
	}

	return fmt.Errorf("failed after %d retries: %w", config.MaxRetries, lastErr)
}
