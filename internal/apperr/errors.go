// Package apperr defines the sentinel errors shared across the chart
// pipeline. Callers classify failures with errors.Is / errors.As instead
// of inspecting messages.
package apperr

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrConnectivityRequired means there is no cached chart and the
	// provider is unreachable, so nothing can be served.
	ErrConnectivityRequired = errors.New("connectivity required")

	// ErrUnauthorized means the provider rejected our credentials.
	// Never retried.
	ErrUnauthorized = errors.New("provider rejected credentials")

	// ErrServerRateLimited means the provider itself throttled us (HTTP
	// 429), as opposed to the local quota.
	ErrServerRateLimited = errors.New("provider rate limited")

	// ErrServiceUnavailable means the provider kept answering 5xx.
	ErrServiceUnavailable = errors.New("provider unavailable")

	// ErrNetwork means the request never produced an HTTP response:
	// DNS, dial, TLS or timeout failures.
	ErrNetwork = errors.New("network failure")

	// ErrInvalidResponse means the provider answered but the payload
	// could not be used. Never retried.
	ErrInvalidResponse = errors.New("invalid provider response")
)

// RateLimitedError reports a local quota denial together with how long
// the caller has to wait before the next request can fit in the window.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter.Round(time.Millisecond))
}

// RetryAfter extracts the wait hint when err is a local quota denial.
func RetryAfter(err error) (time.Duration, bool) {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl.RetryAfter, true
	}
	return 0, false
}
