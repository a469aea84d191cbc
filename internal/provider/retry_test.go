package provider

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestRetryDelayHonorsHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("Retry-After-Ms", "250")
	if got := retryDelay(1, h); got != 250*time.Millisecond {
		t.Errorf("Retry-After-Ms delay = %v, want 250ms", got)
	}

	h = http.Header{}
	h.Set("Retry-After", "3")
	if got := retryDelay(1, h); got != 3*time.Second {
		t.Errorf("Retry-After delay = %v, want 3s", got)
	}
}

func TestRetryDelayBackoff(t *testing.T) {
	if got := retryDelay(1, nil); got != retryInitialDelay {
		t.Errorf("attempt 1 delay = %v, want %v", got, retryInitialDelay)
	}
	if got := retryDelay(2, nil); got != 2*retryInitialDelay {
		t.Errorf("attempt 2 delay = %v, want %v", got, 2*retryInitialDelay)
	}
	if got := retryDelay(10, nil); got != retryMaxDelay {
		t.Errorf("attempt 10 delay = %v, want cap %v", got, retryMaxDelay)
	}
}

func TestWithRetryRetriesRateLimitOnly(t *testing.T) {
	attempts := 0
	rateLimited := &ClassifiedError{Type: ErrorTypeRateLimit, Message: "rate limited"}
	h := http.Header{}
	h.Set("Retry-After-Ms", "1")

	err := withRetry(context.Background(), func() (http.Header, error) {
		attempts++
		if attempts < 3 {
			return h, rateLimited
		}
		return nil, nil
	})
	if err != nil {
		t.Fatalf("withRetry: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}

	attempts = 0
	plain := errors.New("boom")
	err = withRetry(context.Background(), func() (http.Header, error) {
		attempts++
		return nil, plain
	})
	if !errors.Is(err, plain) {
		t.Errorf("err = %v, want %v", err, plain)
	}
	if attempts != 1 {
		t.Errorf("non-retryable error retried %d times", attempts)
	}
}

func TestWithRetryStopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rateLimited := &ClassifiedError{Type: ErrorTypeRateLimit, Message: "rate limited"}
	attempts := 0
	err := withRetry(ctx, func() (http.Header, error) {
		attempts++
		return nil, rateLimited
	})
	if err == nil {
		t.Fatal("expected error after cancellation")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 after cancellation", attempts)
	}
}
