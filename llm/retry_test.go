// ABOUTME: Tests for retry policy delay calculation, retryability decisions, and the Retry wrapper.
// ABOUTME: Uses zero delays so the backoff paths run without slowing the suite down.

package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func noDelayPolicy(maxRetries int) RetryPolicy {
	return RetryPolicy{
		MaxRetries:        maxRetries,
		BaseDelay:         0,
		MaxDelay:          time.Second,
		BackoffMultiplier: 2.0,
	}
}

func TestCalculateDelay(t *testing.T) {
	policy := RetryPolicy{
		BaseDelay:         100 * time.Millisecond,
		MaxDelay:          time.Second,
		BackoffMultiplier: 2.0,
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 0, want: 100 * time.Millisecond},
		{attempt: 1, want: 200 * time.Millisecond},
		{attempt: 2, want: 400 * time.Millisecond},
		{attempt: 3, want: 800 * time.Millisecond},
		{attempt: 4, want: time.Second}, // capped at MaxDelay
		{attempt: 10, want: time.Second},
	}

	for _, tc := range tests {
		if got := policy.CalculateDelay(tc.attempt); got != tc.want {
			t.Errorf("CalculateDelay(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestCalculateDelayJitterStaysBounded(t *testing.T) {
	policy := RetryPolicy{
		BaseDelay:         100 * time.Millisecond,
		MaxDelay:          time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}

	for i := 0; i < 50; i++ {
		got := policy.CalculateDelay(2)
		if got < 0 || got > 400*time.Millisecond {
			t.Fatalf("jittered delay %v outside [0, 400ms]", got)
		}
	}
}

func TestShouldRetry(t *testing.T) {
	policy := noDelayPolicy(2)

	rateLimited := &RateLimitError{ProviderError: ProviderError{SDKError: SDKError{Message: "slow down"}, Retryable: true}}
	badRequest := &InvalidRequestError{ProviderError: ProviderError{SDKError: SDKError{Message: "bad"}}}

	tests := []struct {
		name    string
		err     error
		attempt int
		want    bool
	}{
		{name: "nil error", err: nil, attempt: 0, want: false},
		{name: "retryable under budget", err: rateLimited, attempt: 0, want: true},
		{name: "retryable at budget", err: rateLimited, attempt: 2, want: false},
		{name: "non-retryable", err: badRequest, attempt: 0, want: false},
		{name: "plain error", err: fmt.Errorf("boom"), attempt: 0, want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := policy.ShouldRetry(tc.err, tc.attempt); got != tc.want {
				t.Errorf("ShouldRetry = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), noDelayPolicy(3), func() error {
		calls++
		if calls < 3 {
			return &ServerError{ProviderError: ProviderError{SDKError: SDKError{Message: "upstream down"}, Retryable: true}}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if calls != 3 {
		t.Errorf("fn called %d times, want 3", calls)
	}
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	calls := 0
	wantErr := &AuthenticationError{ProviderError: ProviderError{SDKError: SDKError{Message: "bad key"}}}
	err := Retry(context.Background(), noDelayPolicy(3), func() error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) && err != wantErr {
		t.Fatalf("err = %v, want the auth error", err)
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
}

func TestRetryExhaustsBudget(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), noDelayPolicy(2), func() error {
		calls++
		return &ServerError{ProviderError: ProviderError{SDKError: SDKError{Message: "still down"}, Retryable: true}}
	})
	if err == nil {
		t.Fatal("expected error after budget exhausted")
	}
	if calls != 3 {
		t.Errorf("fn called %d times, want 3 (initial + 2 retries)", calls)
	}
}

func TestRetryDoesNotRetryPlainErrors(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), noDelayPolicy(3), func() error {
		calls++
		return context.DeadlineExceeded
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
}

func TestRetryOnRetryCallback(t *testing.T) {
	policy := noDelayPolicy(2)
	var attempts []int
	policy.OnRetry = func(err error, attempt int, delay time.Duration) {
		attempts = append(attempts, attempt)
	}

	calls := 0
	_ = Retry(context.Background(), policy, func() error {
		calls++
		return &ServerError{ProviderError: ProviderError{SDKError: SDKError{Message: "down"}, Retryable: true}}
	})
	if len(attempts) != 2 || attempts[0] != 0 || attempts[1] != 1 {
		t.Errorf("OnRetry attempts = %v, want [0 1]", attempts)
	}
}

func TestRetryHonorsRetryAfterHint(t *testing.T) {
	retryAfter := 0.5
	err := &RateLimitError{ProviderError: ProviderError{
		SDKError:   SDKError{Message: "slow down"},
		Retryable:  true,
		RetryAfter: &retryAfter,
	}}

	if got := applyRetryAfter(err, 10*time.Millisecond); got != 500*time.Millisecond {
		t.Errorf("applyRetryAfter = %v, want 500ms", got)
	}
	// A larger calculated delay wins over the hint.
	if got := applyRetryAfter(err, time.Second); got != time.Second {
		t.Errorf("applyRetryAfter = %v, want 1s", got)
	}
}

func TestRetryContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	policy := noDelayPolicy(5)
	policy.BaseDelay = time.Hour

	calls := 0
	err := Retry(ctx, policy, func() error {
		calls++
		return &ServerError{ProviderError: ProviderError{SDKError: SDKError{Message: "down"}, Retryable: true}}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
}
