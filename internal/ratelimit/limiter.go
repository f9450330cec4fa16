// Package ratelimit enforces the provider request quota: a sliding
// per-minute window plus calendar-month usage accounting. Timestamps are
// persisted through a Store so a restart cannot reset the window.
package ratelimit

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Store persists request timestamps. RequestTimes must return them in
// ascending order.
type Store interface {
	AppendRequest(ts time.Time) error
	RequestTimes() ([]time.Time, error)
	PruneRequests(before time.Time) error
}

// Config tunes the limiter. Zero fields fall back to the stock quota of
// five requests per rolling minute, two requests per chart, and a 5000
// credit month.
type Config struct {
	Window           time.Duration
	Limit            int
	RequestsPerChart int
	MonthlyCredits   int
	Clock            func() time.Time
}

// Decision is the outcome of a window check. RetryAfter is set only on
// denials and names the earliest instant a slot can open; callers must
// still re-check, since more than Limit requests can sit in the window
// after a chart reservation.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Usage summarizes the current calendar month in provider credits.
// Months are bounded in UTC.
type Usage struct {
	RequestCount    int `json:"request_count"`
	EstimatedCharts int `json:"estimated_charts"`
	CreditsConsumed int `json:"credits_consumed"`
	CreditLimit     int `json:"credit_limit"`
}

// Limiter is safe for concurrent use. The window check and the recording
// of a chart's requests happen under one lock, so parallel callers
// cannot both squeeze into the last slot.
type Limiter struct {
	mu    sync.Mutex
	store Store
	cfg   Config
	times []time.Time
}

// New loads the persisted request log and returns a ready limiter.
func New(store Store, cfg Config) (*Limiter, error) {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 5
	}
	if cfg.RequestsPerChart <= 0 {
		cfg.RequestsPerChart = 2
	}
	if cfg.MonthlyCredits <= 0 {
		cfg.MonthlyCredits = 5000
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	times, err := store.RequestTimes()
	if err != nil {
		return nil, fmt.Errorf("ratelimit: load request log: %w", err)
	}
	return &Limiter{store: store, cfg: cfg, times: times}, nil
}

func (l *Limiter) now() time.Time { return l.cfg.Clock().UTC() }

// CanMakeRequest reports whether one more provider request fits in the
// window right now, without recording anything.
func (l *Limiter) CanMakeRequest() Decision {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.decide(l.now())
}

// RecordRequest appends one dispatched request to the log. The in-memory
// window advances even when persisting fails, so the quota holds for the
// life of the process; the store error comes back for logging.
func (l *Limiter) RecordRequest() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.record(l.now(), 1)
}

// ReserveChart atomically checks the window and, when allowed, records
// the full request cost of one chart before anything is dispatched.
func (l *Limiter) ReserveChart() (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	d := l.decide(now)
	if !d.Allowed {
		return d, nil
	}
	return d, l.record(now, l.cfg.RequestsPerChart)
}

// WindowRemaining returns how many requests still fit in the window.
func (l *Limiter) WindowRemaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	in := l.inWindow(l.now())
	if len(in) >= l.cfg.Limit {
		return 0
	}
	return l.cfg.Limit - len(in)
}

// MonthlyUsage reports the current month's consumption. Charts are
// estimated from the request count, two requests per chart.
func (l *Limiter) MonthlyUsage() Usage {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	count := 0
	for _, ts := range l.times {
		if ts.Year() == now.Year() && ts.Month() == now.Month() {
			count++
		}
	}
	return Usage{
		RequestCount:    count,
		EstimatedCharts: count / l.cfg.RequestsPerChart,
		CreditsConsumed: count,
		CreditLimit:     l.cfg.MonthlyCredits,
	}
}

func (l *Limiter) decide(now time.Time) Decision {
	in := l.inWindow(now)
	if len(in) < l.cfg.Limit {
		return Decision{Allowed: true}
	}
	oldest := in[0]
	return Decision{RetryAfter: l.cfg.Window - now.Sub(oldest)}
}

// inWindow returns the suffix of times younger than the window.
func (l *Limiter) inWindow(now time.Time) []time.Time {
	cutoff := now.Add(-l.cfg.Window)
	i := sort.Search(len(l.times), func(i int) bool { return l.times[i].After(cutoff) })
	return l.times[i:]
}

func (l *Limiter) record(now time.Time, n int) error {
	var firstErr error
	for i := 0; i < n; i++ {
		l.times = append(l.times, now)
		if err := l.store.AppendRequest(now); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("ratelimit: persist request: %w", err)
		}
	}
	l.prune(now)
	return firstErr
}

// prune drops timestamps that matter neither for the window nor for the
// current month's usage. Store pruning is best effort.
func (l *Limiter) prune(now time.Time) {
	cutoff := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	if wc := now.Add(-l.cfg.Window); wc.Before(cutoff) {
		cutoff = wc
	}
	i := sort.Search(len(l.times), func(i int) bool { return !l.times[i].Before(cutoff) })
	if i > 0 {
		l.times = append(l.times[:0:0], l.times[i:]...)
		_ = l.store.PruneRequests(cutoff)
	}
}
