package provider

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"
)

// Retry tuning for transient provider failures.
const (
	retryInitialDelay  = 2 * time.Second
	retryBackoffFactor = 2
	retryMaxDelay      = 30 * time.Second
	retryMaxAttempts   = 3
)

// retryDelay calculates the wait before the next attempt. Retry-After-Ms and
// Retry-After headers take precedence over exponential backoff.
func retryDelay(attempt int, headers http.Header) time.Duration {
	if headers != nil {
		if ms := headers.Get("Retry-After-Ms"); ms != "" {
			if v, err := strconv.ParseFloat(ms, 64); err == nil {
				return time.Duration(v) * time.Millisecond
			}
		}
		if ra := headers.Get("Retry-After"); ra != "" {
			if seconds, err := strconv.ParseFloat(ra, 64); err == nil {
				return time.Duration(seconds*1000) * time.Millisecond
			}
			if t, err := http.ParseTime(ra); err == nil {
				if delay := time.Until(t); delay > 0 {
					return delay
				}
			}
		}
	}

	delay := retryInitialDelay * time.Duration(math.Pow(retryBackoffFactor, float64(attempt-1)))
	if delay > retryMaxDelay {
		delay = retryMaxDelay
	}
	return delay
}

// isRetryable reports whether a request should be retried. Only rate limits
// are retryable, and only for model discovery: refusals and auth failures
// have their own handling, and completion requests are never replayed.
func isRetryable(err error) bool {
	ce, ok := err.(*ClassifiedError)
	return ok && ce.Type == ErrorTypeRateLimit
}

// sleepCtx waits for the given duration or until the context is canceled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// withRetry runs fn, retrying rate-limited attempts with backoff guided by
// the response headers fn reports. fn returns the headers of the failed
// response (nil when none) alongside its error.
func withRetry(ctx context.Context, fn func() (http.Header, error)) error {
	var lastErr error
	for attempt := 1; attempt <= retryMaxAttempts; attempt++ {
		headers, err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isRetryable(err) || attempt == retryMaxAttempts {
			return err
		}
		if err := sleepCtx(ctx, retryDelay(attempt, headers)); err != nil {
			return lastErr
		}
	}
	return lastErr
}
