package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stock-pulse/observability"
)

type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

var DefaultRetryConfig = RetryConfig{
	MaxRetries:     2,
	InitialBackoff: 500 * time.Millisecond,
	MaxBackoff:     5 * time.Second,
}

// WithRetry retries fn with exponential backoff until it succeeds, returns a
// non-retryable error, or runs out of attempts.
func WithRetry(ctx context.Context, config RetryConfig, fn func() error) error {
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

		err := fn()
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}

		lastErr = err
		if attempt < config.MaxRetries {
			observability.Debug("retrying provider call",
				"attempt", attempt+1,
				"max_retries", config.MaxRetries,
				"error", err)
		}
	}

	return fmt.Errorf("failed after %d retries: %w", config.MaxRetries, lastErr)
}

// isRetryable is true for transport failures and 5xx responses. Rate limits,
// missing data, 4xx answers and context errors are returned immediately.
func isRetryable(err error) bool {
	if IsTransient(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.StatusCode >= 500
	}
	var derr *decodeError
	return !errors.As(err, &derr)
}

// decodeError marks a 200 response whose body could not be parsed
type decodeError struct {
	provider string
	err      error
}

func (e *decodeError) Error() string {
	return fmt.Sprintf("%s: failed to decode response: %v", e.provider, e.err)
}

func (e *decodeError) Unwrap() error { return e.err }
