// Package ratelimit implements per-provider admission control over three
// sliding calendar windows (minute, hour, day). A request is admissible
// only when every window is strictly under its configured budget. Window
// buckets are keyed by calendar fields so they roll over naturally without
// timers; a background sweep drops buckets that can never be current again.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/spectorhq/spector/internal/logger"
	"github.com/spectorhq/spector/internal/models"
)

// granularity identifies one of the three admission windows
type granularity int

const (
	perMinute granularity = iota
	perHour
	perDay
)

// bucket is the recorded state for one provider/window pair
type bucket struct {
	requests  int
	resetTime time.Time
}

type bucketKey struct {
	providerID string
	gran       granularity
	window     string
}

// Limiter tracks request counts per provider across all three windows and
// paces admissible bursts through a token bucket per provider.
type Limiter struct {
	mu       sync.Mutex
	limits   map[string]models.RateLimit
	buckets  map[bucketKey]*bucket
	smoother map[string]*rate.Limiter
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

// Option customizes a Limiter
type Option func(*Limiter)

// WithClock replaces the wall clock, for tests
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// NewLimiter creates a rate limiter with no providers configured
func NewLimiter(opts ...Option) *Limiter {
	l := &Limiter{
		limits:   make(map[string]models.RateLimit),
		buckets:  make(map[bucketKey]*bucket),
		smoother: make(map[string]*rate.Limiter),
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Configure sets (or replaces) the budgets for a provider
func (l *Limiter) Configure(providerID string, limits models.RateLimit) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.limits[providerID] = limits
	if limits.RequestsPerMinute > 0 {
		// Refill at the minute budget spread across the minute, burst up
		// to the full minute budget
		l.smoother[providerID] = rate.NewLimiter(rate.Limit(float64(limits.RequestsPerMinute)/60.0), limits.RequestsPerMinute)
	} else {
		delete(l.smoother, providerID)
	}
}

// CheckLimit reports whether a request to the provider is admissible right
// now. Providers with no configured budget are always admissible.
func (l *Limiter) CheckLimit(providerID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	limits, ok := l.limits[providerID]
	if !ok {
		return true
	}

	now := l.now()
	for _, w := range windows(limits) {
		if w.budget <= 0 {
			continue
		}
		key := bucketKey{providerID, w.gran, windowID(now, w.gran)}
		if b, ok := l.buckets[key]; ok && b.requests >= w.budget {
			return false
		}
	}

	return true
}

// Wait paces an already-admitted request through the provider's token
// bucket so bursts inside an admissible minute are still spread out.
// Providers without a minute budget pass through immediately.
func (l *Limiter) Wait(ctx context.Context, providerID string) error {
	l.mu.Lock()
	sm := l.smoother[providerID]
	l.mu.Unlock()

	if sm == nil {
		return nil
	}
	return sm.Wait(ctx)
}

// RecordRequest counts one request against all three of the provider's
// windows, creating the current buckets lazily
func (l *Limiter) RecordRequest(providerID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	limits, ok := l.limits[providerID]
	if !ok {
		return
	}

	now := l.now()
	for _, w := range windows(limits) {
		if w.budget <= 0 {
			continue
		}
		key := bucketKey{providerID, w.gran, windowID(now, w.gran)}
		b, ok := l.buckets[key]
		if !ok {
			b = &bucket{resetTime: windowReset(now, w.gran)}
			l.buckets[key] = b
		}
		b.requests++
	}
}

// GetRemainingRequests returns the remaining budget of the most
// restrictive window
func (l *Limiter) GetRemainingRequests(providerID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	limits, ok := l.limits[providerID]
	if !ok {
		return -1
	}

	now := l.now()
	remaining := -1
	for _, w := range windows(limits) {
		if w.budget <= 0 {
			continue
		}
		used := 0
		key := bucketKey{providerID, w.gran, windowID(now, w.gran)}
		if b, ok := l.buckets[key]; ok {
			used = b.requests
		}
		left := w.budget - used
		if left < 0 {
			left = 0
		}
		if remaining == -1 || left < remaining {
			remaining = left
		}
	}
	return remaining
}

// GetResetTime returns when the most restrictive window rolls over
func (l *Limiter) GetResetTime(providerID string) time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()

	limits, ok := l.limits[providerID]
	if !ok {
		return time.Time{}
	}

	now := l.now()
	var resetAt time.Time
	binding := -1
	for _, w := range windows(limits) {
		if w.budget <= 0 {
			continue
		}
		used := 0
		key := bucketKey{providerID, w.gran, windowID(now, w.gran)}
		if b, ok := l.buckets[key]; ok {
			used = b.requests
		}
		left := w.budget - used
		if left < 0 {
			left = 0
		}
		if binding == -1 || left < binding {
			binding = left
			resetAt = windowReset(now, w.gran)
		}
	}
	return resetAt
}

// StartSweeper launches the periodic cleanup of expired buckets. Call
// Close to stop it.
func (l *Limiter) StartSweeper(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-l.stop:
				return
			case <-ticker.C:
				removed := l.sweep()
				if removed > 0 {
					logger.Debug("Rate limiter sweep removed %d expired buckets", removed)
				}
			}
		}
	}()
}

// Close stops the sweeper
func (l *Limiter) Close() {
	l.stopOnce.Do(func() {
		close(l.stop)
	})
}

// sweep drops buckets whose window has already rolled over. Their calendar
// keys can never be current again, so this bounds memory to at most one
// day of live buckets per provider.
func (l *Limiter) sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for key, b := range l.buckets {
		if b.resetTime.Before(now) {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// windowSpec pairs a granularity with its budget
type windowSpec struct {
	gran   granularity
	budget int
}

func windows(limits models.RateLimit) [3]windowSpec {
	return [3]windowSpec{
		{perMinute, limits.RequestsPerMinute},
		{perHour, limits.RequestsPerHour},
		{perDay, limits.RequestsPerDay},
	}
}

// windowID derives the calendar bucket key for a point in time
func windowID(t time.Time, g granularity) string {
	switch g {
	case perMinute:
		return t.Format("2006-01-02-15-04")
	case perHour:
		return t.Format("2006-01-02-15")
	default:
		return t.Format("2006-01-02")
	}
}

// windowReset returns when the window containing t rolls over
func windowReset(t time.Time, g granularity) time.Time {
	switch g {
	case perMinute:
		return t.Truncate(time.Minute).Add(time.Minute)
	case perHour:
		return t.Truncate(time.Hour).Add(time.Hour)
	default:
		year, month, day := t.Date()
		return time.Date(year, month, day, 0, 0, 0, 0, t.Location()).AddDate(0, 0, 1)
	}
}
