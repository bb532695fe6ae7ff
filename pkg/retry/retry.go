// Package retry provides a generic exponential-backoff helper for flaky
// external calls. It is intentionally not wired into the customer-facing
// booking flow, which degrades to fallback data instead of retrying.
package retry

import (
	"context"
	"fmt"
	"time"
)

const (
	// DefaultAttempts is the total number of tries, including the first.
	DefaultAttempts = 3
	// DefaultBaseDelay is the delay before the first retry; it doubles each attempt.
	DefaultBaseDelay = time.Second
)

// Do invokes fn up to attempts times, sleeping baseDelay, 2*baseDelay,
// 4*baseDelay, ... between tries. The last error is returned when all
// attempts fail. Context cancellation aborts the wait.
func Do(ctx context.Context, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}

	var lastErr error
	delay := baseDelay
	for i := 0; i < attempts; i++ {
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("retry: aborted after %d attempts: %w", i+1, ctx.Err())
		}
		delay *= 2
	}
	return fmt.Errorf("retry: all %d attempts failed: %w", attempts, lastErr)
}
