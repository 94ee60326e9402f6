// Package ratelimit enforces the per-client query quota using a sliding
// window over request timestamps, so a burst at a window boundary cannot
// double the effective allowance.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"ecplacas/internal/platform/metrics"
)

// Result describes the outcome of a quota check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Limiter tracks query timestamps per client key.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	limit   int
	span    time.Duration
	metrics *metrics.Metrics
	now     func() time.Time
}

type window struct {
	timestamps []time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithMetrics wires rejection counters into the limiter.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Limiter) { l.metrics = m }
}

// WithClock overrides the time source. Test hook.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a limiter allowing at most limit requests per span per key.
func New(limit int, span time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		windows: make(map[string]*window),
		limit:   limit,
		span:    span,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow records one request against the key if the quota permits it. A
// rejected result carries RetryAfter, the wait until the oldest in-window
// request ages out.
func (l *Limiter) Allow(_ context.Context, key string) (*Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w := l.windows[key]
	if w == nil {
		w = &window{}
		l.windows[key] = w
	}
	w.prune(now, l.span)

	if len(w.timestamps) >= l.limit {
		resetAt := w.timestamps[0].Add(l.span)
		l.metrics.RecordRateLimitRejection()
		return &Result{
			Allowed:    false,
			Limit:      l.limit,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: resetAt.Sub(now),
		}, nil
	}

	w.timestamps = append(w.timestamps, now)
	return &Result{
		Allowed:   true,
		Limit:     l.limit,
		Remaining: l.limit - len(w.timestamps),
		ResetAt:   w.timestamps[0].Add(l.span),
	}, nil
}

// Reset clears the quota for a key.
func (l *Limiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
	return nil
}

// CurrentCount returns the number of in-window requests for a key.
func (l *Limiter) CurrentCount(_ context.Context, key string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.windows[key]
	if w == nil {
		return 0, nil
	}
	w.prune(l.now(), l.span)
	return len(w.timestamps), nil
}

// prune drops timestamps that have aged out of the window.
func (w *window) prune(now time.Time, span time.Duration) {
	cutoff := now.Add(-span)
	i := 0
	for ; i < len(w.timestamps); i++ {
		if w.timestamps[i].After(cutoff) {
			break
		}
	}
	w.timestamps = w.timestamps[i:]
}
