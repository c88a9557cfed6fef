package llm

import (
	"context"
	"fmt"
	"time"

	"drover/internal/logger"
)

const maxAttempts = 3

// retryBaseDelay is a var so tests can shrink the backoff.
var retryBaseDelay = time.Second

// SetRetryBaseDelayForTest shrinks the backoff for the duration of a test.
func SetRetryBaseDelayForTest(t interface{ Cleanup(func()) }) {
	prev := retryBaseDelay
	retryBaseDelay = time.Millisecond
	t.Cleanup(func() { retryBaseDelay = prev })
}

// Retry runs fn up to three times, sleeping with exponential backoff
// between attempts. Only transient failures are retried; a fatal error or
// a context cancellation is returned immediately.
func Retry(ctx context.Context, provider string, fn func() (Completion, error)) (Completion, error) {
	delay := retryBaseDelay
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		comp, err := fn()
		if err == nil {
			return comp, nil
		}
		if ctx.Err() != nil {
			return Completion{}, ctx.Err()
		}
		if !IsTransient(err) {
			return Completion{}, err
		}
		lastErr = err
		logger.L.Warn("llm call failed", "provider", provider, "attempt", attempt, "error", err)

		if attempt == maxAttempts {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return Completion{}, ctx.Err()
		}
		delay *= 2
	}
	return Completion{}, fmt.Errorf("failed to call %s API after %d attempts: %w", provider, maxAttempts, lastErr)
}
