package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/spectorhq/spector/internal/models"
)

func fixedClock(t *time.Time) func() time.Time {
	return func() time.Time { return *t }
}

func TestLimiter_MinuteBudget(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 30, 0, 0, time.UTC)
	limiter := NewLimiter(WithClock(fixedClock(&now)))
	defer limiter.Close()

	limiter.Configure("semrush", models.RateLimit{
		RequestsPerMinute: 5,
		RequestsPerHour:   100,
		RequestsPerDay:    1000,
	})

	t.Run("AdmitsUpToBudget", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			assert.True(t, limiter.CheckLimit("semrush"), "request %d should be admissible", i+1)
			limiter.RecordRequest("semrush")
		}
	})

	t.Run("DeniesOverBudget", func(t *testing.T) {
		assert.False(t, limiter.CheckLimit("semrush"))
	})

	t.Run("NextMinuteAdmissibleAgain", func(t *testing.T) {
		now = now.Add(time.Minute)
		assert.True(t, limiter.CheckLimit("semrush"))
	})
}

func TestLimiter_HourBudgetBinds(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	limiter := NewLimiter(WithClock(fixedClock(&now)))
	defer limiter.Close()

	limiter.Configure("similarweb", models.RateLimit{
		RequestsPerMinute: 10,
		RequestsPerHour:   3,
		RequestsPerDay:    1000,
	})

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.CheckLimit("similarweb"))
		limiter.RecordRequest("similarweb")
	}
	assert.False(t, limiter.CheckLimit("similarweb"))

	// A fresh minute does not help while the hour is exhausted
	now = now.Add(time.Minute)
	assert.False(t, limiter.CheckLimit("similarweb"))

	// The next hour clears it
	now = now.Add(time.Hour)
	assert.True(t, limiter.CheckLimit("similarweb"))
}

func TestLimiter_UnknownProviderAlwaysAdmissible(t *testing.T) {
	limiter := NewLimiter()
	defer limiter.Close()

	assert.True(t, limiter.CheckLimit("unknown"))
	limiter.RecordRequest("unknown") // no-op
	assert.True(t, limiter.CheckLimit("unknown"))
	assert.Equal(t, -1, limiter.GetRemainingRequests("unknown"))
	assert.True(t, limiter.GetResetTime("unknown").IsZero())
}

func TestLimiter_ZeroBudgetWindowIgnored(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 30, 0, 0, time.UTC)
	limiter := NewLimiter(WithClock(fixedClock(&now)))
	defer limiter.Close()

	limiter.Configure("priceapi", models.RateLimit{RequestsPerMinute: 2})

	limiter.RecordRequest("priceapi")
	limiter.RecordRequest("priceapi")
	assert.False(t, limiter.CheckLimit("priceapi"))

	now = now.Add(time.Minute)
	// Hour and day budgets are unset so only the minute window counts
	assert.True(t, limiter.CheckLimit("priceapi"))
}

func TestLimiter_GetRemainingRequests(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 30, 0, 0, time.UTC)
	limiter := NewLimiter(WithClock(fixedClock(&now)))
	defer limiter.Close()

	limiter.Configure("serpapi", models.RateLimit{
		RequestsPerMinute: 10,
		RequestsPerHour:   100,
		RequestsPerDay:    1000,
	})

	assert.Equal(t, 10, limiter.GetRemainingRequests("serpapi"))

	for i := 0; i < 4; i++ {
		limiter.RecordRequest("serpapi")
	}
	assert.Equal(t, 6, limiter.GetRemainingRequests("serpapi"))

	// The minute window is the most restrictive, so its rollover is the
	// reported reset time
	reset := limiter.GetResetTime("serpapi")
	assert.Equal(t, time.Date(2025, 3, 10, 12, 31, 0, 0, time.UTC), reset)
}

func TestLimiter_Sweep(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 30, 0, 0, time.UTC)
	limiter := NewLimiter(WithClock(fixedClock(&now)))
	defer limiter.Close()

	limiter.Configure("brandwatch", models.RateLimit{
		RequestsPerMinute: 10,
		RequestsPerHour:   100,
		RequestsPerDay:    1000,
	})

	limiter.RecordRequest("brandwatch")
	assert.Equal(t, 0, limiter.sweep())

	// Advance past the minute window only; hour and day buckets stay live
	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, limiter.sweep())

	// Advance past everything
	now = now.Add(48 * time.Hour)
	assert.Equal(t, 2, limiter.sweep())
}

func TestLimiter_ReconfigureReplacesBudget(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 30, 0, 0, time.UTC)
	limiter := NewLimiter(WithClock(fixedClock(&now)))
	defer limiter.Close()

	limiter.Configure("trustpilot", models.RateLimit{RequestsPerMinute: 1})
	limiter.RecordRequest("trustpilot")
	assert.False(t, limiter.CheckLimit("trustpilot"))

	// Raising the budget admits again within the same window
	limiter.Configure("trustpilot", models.RateLimit{RequestsPerMinute: 5})
	assert.True(t, limiter.CheckLimit("trustpilot"))
}
