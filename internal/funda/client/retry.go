package client

import (
	"context"
	"time"

	"valora_backend/platform/apperr"
)

const retryAttempts = 3

// retryDelays are the bounded backoff waits between navigation attempts.
var retryDelays = []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}

// withRetry runs fn up to three times, backing off 2s/4s/8s between
// attempts. Only transient transport errors are retried; anything else
// propagates immediately.
func withRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < retryAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !apperr.IsRetryable(lastErr) {
			return lastErr
		}

		if attempt < retryAttempts-1 {
			timer := time.NewTimer(retryDelays[attempt])
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	return lastErr
}
