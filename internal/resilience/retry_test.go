package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func fastRetryConfig(attempts int) *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       attempts,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
		Jitter:            false,
	}
}

func TestRetry_Success(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), func(ctx context.Context) error {
		attempts++
		return nil
	}, fastRetryConfig(3), nil)

	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
}

func TestRetry_FailureThenSuccess(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	}, fastRetryConfig(3), nil)

	if err != nil {
		t.Errorf("Expected no error after retries, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestRetry_MaxAttempts(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), func(ctx context.Context) error {
		attempts++
		return errors.New("persistent error")
	}, fastRetryConfig(2), nil)

	if err == nil {
		t.Error("Expected error after max attempts")
	}
	if attempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts)
	}
}

func TestRetry_NonRetryableError(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), func(ctx context.Context) error {
		attempts++
		return errors.New("bad request")
	}, fastRetryConfig(3), IsRetryableNetworkError)

	if err == nil {
		t.Error("Expected error")
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt for non-retryable error, got %d", attempts)
	}
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	config := &RetryConfig{
		MaxAttempts:       5,
		InitialBackoff:    time.Second,
		MaxBackoff:        time.Second,
		BackoffMultiplier: 1,
	}

	attempts := 0
	done := make(chan error, 1)
	go func() {
		done <- Retry(ctx, func(ctx context.Context) error {
			attempts++
			return errors.New("timeout")
		}, config, nil)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled in error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected Retry to return promptly after cancel")
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt before cancel, got %d", attempts)
	}
}

func TestCalculateBackoff(t *testing.T) {
	initial := 100 * time.Millisecond
	max := 1 * time.Second

	if got := CalculateBackoff(0, initial, max, 2.0); got != 100*time.Millisecond {
		t.Errorf("Expected 100ms for attempt 0, got %v", got)
	}
	if got := CalculateBackoff(2, initial, max, 2.0); got != 400*time.Millisecond {
		t.Errorf("Expected 400ms for attempt 2, got %v", got)
	}
	if got := CalculateBackoff(10, initial, max, 2.0); got != max {
		t.Errorf("Expected backoff capped at %v, got %v", max, got)
	}
}

func TestIsRetryableNetworkError(t *testing.T) {
	tests := []struct {
		err      error
		expected bool
	}{
		{nil, false},
		{errors.New("connection refused"), true},
		{errors.New("Error 429: Resource exhausted"), true},
		{errors.New("i/o timeout"), true},
		{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), true},
		{context.Canceled, false},
		{errors.New("invalid api key"), false},
		{NewRetryableError(errors.New("custom")), true},
	}

	for _, tt := range tests {
		if got := IsRetryableNetworkError(tt.err); got != tt.expected {
			t.Errorf("IsRetryableNetworkError(%v): expected %v, got %v", tt.err, tt.expected, got)
		}
	}
}

func TestRetryableError(t *testing.T) {
	base := errors.New("base error")
	err := NewRetryableError(base)

	if !IsRetryable(err) {
		t.Error("Expected error to be retryable")
	}
	if !errors.Is(err, base) {
		t.Error("Expected retryable error to unwrap to base error")
	}
	if NewRetryableError(nil) != nil {
		t.Error("Expected nil for nil error")
	}
}
