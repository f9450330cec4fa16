package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rusel95/AstroSvitla-sub001/internal/apperr"
)

// retryPolicy reissues an operation on transient failures with
// exponential backoff. A server-provided wait hint overrides the
// schedule for that attempt.
type retryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	retryable   func(error) bool
	sleep       func(ctx context.Context, d time.Duration) error
	onRetry     func(attempt int, delay time.Duration, err error)
}

// do runs op until it succeeds, fails terminally, or attempts run out.
// The final error is returned as-is so callers keep its category.
func (p retryPolicy) do(ctx context.Context, op func(context.Context) error) error {
	var lastErr error
	for attempt := 1; ; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt >= p.maxAttempts || !p.retryable(lastErr) {
			return lastErr
		}
		delay := p.baseDelay << (attempt - 1)
		if hint, ok := waitHint(lastErr); ok && hint > 0 {
			delay = hint
		}
		if p.onRetry != nil {
			p.onRetry(attempt, delay, lastErr)
		}
		if err := p.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func isRetryable(err error) bool {
	return errors.Is(err, apperr.ErrNetwork) ||
		errors.Is(err, apperr.ErrServiceUnavailable) ||
		errors.Is(err, apperr.ErrServerRateLimited)
}

// retryAfterError carries the server's Retry-After hint through the
// retry loop.
type retryAfterError struct {
	wait time.Duration
}

func (e *retryAfterError) Error() string {
	if e.wait > 0 {
		return fmt.Sprintf("%v, retry after %s", apperr.ErrServerRateLimited, e.wait)
	}
	return apperr.ErrServerRateLimited.Error()
}

func (e *retryAfterError) Unwrap() error { return apperr.ErrServerRateLimited }

func waitHint(err error) (time.Duration, bool) {
	var ra *retryAfterError
	if errors.As(err, &ra) {
		return ra.wait, true
	}
	return 0, false
}
