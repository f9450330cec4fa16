package provider

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rusel95/AstroSvitla-sub001/internal/apperr"
)

func testPolicy(sleeps *[]time.Duration) retryPolicy {
	return retryPolicy{
		maxAttempts: 3,
		baseDelay:   time.Second,
		retryable:   isRetryable,
		sleep: func(ctx context.Context, d time.Duration) error {
			*sleeps = append(*sleeps, d)
			return nil
		},
	}
}

func TestRetryBackoffSchedule(t *testing.T) {
	var sleeps []time.Duration
	calls := 0
	err := testPolicy(&sleeps).do(context.Background(), func(context.Context) error {
		calls++
		return fmt.Errorf("boom: %w", apperr.ErrServiceUnavailable)
	})
	if !errors.Is(err, apperr.ErrServiceUnavailable) {
		t.Fatalf("err = %v, want service unavailable", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(sleeps) != len(want) {
		t.Fatalf("sleeps = %v, want %v", sleeps, want)
	}
	for i := range want {
		if sleeps[i] != want[i] {
			t.Fatalf("sleeps = %v, want %v", sleeps, want)
		}
	}
}

func TestRetryHonorsServerWaitHint(t *testing.T) {
	var sleeps []time.Duration
	err := testPolicy(&sleeps).do(context.Background(), func(context.Context) error {
		return &retryAfterError{wait: 5 * time.Second}
	})
	if !errors.Is(err, apperr.ErrServerRateLimited) {
		t.Fatalf("err = %v, want server rate limited", err)
	}
	for _, d := range sleeps {
		if d != 5*time.Second {
			t.Fatalf("sleeps = %v, want the 5s hint for every delay", sleeps)
		}
	}
}

func TestRetryStopsOnTerminalError(t *testing.T) {
	var sleeps []time.Duration
	calls := 0
	err := testPolicy(&sleeps).do(context.Background(), func(context.Context) error {
		calls++
		return fmt.Errorf("no: %w", apperr.ErrUnauthorized)
	})
	if !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("err = %v, want unauthorized", err)
	}
	if calls != 1 || len(sleeps) != 0 {
		t.Fatalf("calls = %d sleeps = %v, terminal errors must not retry", calls, sleeps)
	}
}

func TestRetrySucceedsMidway(t *testing.T) {
	var sleeps []time.Duration
	calls := 0
	err := testPolicy(&sleeps).do(context.Background(), func(context.Context) error {
		calls++
		if calls < 2 {
			return fmt.Errorf("flaky: %w", apperr.ErrNetwork)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("err = %v, want nil", err)
	}
	if calls != 2 || len(sleeps) != 1 {
		t.Fatalf("calls = %d sleeps = %v, want one retry", calls, sleeps)
	}
}

func TestRetryStopsWhenSleepCancelled(t *testing.T) {
	p := retryPolicy{
		maxAttempts: 3,
		baseDelay:   time.Second,
		retryable:   isRetryable,
		sleep: func(ctx context.Context, d time.Duration) error {
			return context.Canceled
		},
	}
	err := p.do(context.Background(), func(context.Context) error {
		return fmt.Errorf("flaky: %w", apperr.ErrNetwork)
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
