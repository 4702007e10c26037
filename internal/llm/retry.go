package llm

import (
	"context"
	"time"
)

const maxAttempts = 3

// isRetryableStatus classifies retryable HTTP status codes from inference
// backends.
func isRetryableStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// backoff computes a deterministic capped exponential backoff duration.
func backoff(attempt int, base, cap time.Duration) time.Duration {
	if attempt <= 0 {
		return base
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	return d
}

// sleepBackoff waits for the backoff interval or until the context is done.
func sleepBackoff(ctx context.Context, attempt int) error {
	timer := time.NewTimer(backoff(attempt, 200*time.Millisecond, 2*time.Second))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
