package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spectorhq/spector/internal/models"
)

func pricingRequest(target string) *models.IntelRequest {
	return &models.IntelRequest{
		Type:      models.RequestPricingIntelligence,
		Target:    target,
		Providers: []models.ProviderType{models.ProviderPricing},
	}
}

func someResult(target string) *models.NormalizedResult {
	return &models.NormalizedResult{
		Type:   models.RequestPricingIntelligence,
		Target: target,
		Metadata: models.ResultMetadata{
			Freshness:    models.FreshnessFresh,
			Completeness: 1.0,
		},
	}
}

func TestKey_ProviderOrderInsensitive(t *testing.T) {
	a := &models.IntelRequest{
		Type:      models.RequestCompetitorAnalysis,
		Target:    "example.com",
		Providers: []models.ProviderType{models.ProviderSEO, models.ProviderTraffic},
	}
	b := &models.IntelRequest{
		Type:      models.RequestCompetitorAnalysis,
		Target:    "example.com",
		Providers: []models.ProviderType{models.ProviderTraffic, models.ProviderSEO},
	}

	assert.Equal(t, Key(a), Key(b))
}

func TestKey_OptionsChangeIdentity(t *testing.T) {
	base := pricingRequest("example.com")
	localized := pricingRequest("example.com")
	localized.Options.Country = "de"

	assert.NotEqual(t, Key(base), Key(localized))
}

func TestCache_RoundTrip(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	c := New(10, WithClock(func() time.Time { return now }))
	defer c.Close()

	req := pricingRequest("example.com")

	_, ok := c.Get(req)
	assert.False(t, ok)

	c.Set(req, someResult("example.com"))

	got, ok := c.Get(req)
	require.True(t, ok)
	assert.Equal(t, "example.com", got.Target)

	stats := c.Stats()
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestCache_TTLBoundary(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	c := New(10, WithClock(func() time.Time { return now }))
	defer c.Close()

	req := pricingRequest("example.com")
	c.Set(req, someResult("example.com"))

	// Pricing TTL is 5 minutes; at exactly 5m the entry is still valid
	now = now.Add(5 * time.Minute)
	_, ok := c.Get(req)
	assert.True(t, ok)

	// One instant past and it is gone
	now = now.Add(time.Nanosecond)
	_, ok = c.Get(req)
	assert.False(t, ok)
}

func TestCache_LRUEviction(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	c := New(2, WithClock(func() time.Time { return now }))
	defer c.Close()

	first := pricingRequest("a.com")
	second := pricingRequest("b.com")
	third := pricingRequest("c.com")

	c.Set(first, someResult("a.com"))
	now = now.Add(time.Second)
	c.Set(second, someResult("b.com"))

	// Touch the first entry so the second becomes least recently used
	now = now.Add(time.Second)
	_, ok := c.Get(first)
	require.True(t, ok)

	now = now.Add(time.Second)
	c.Set(third, someResult("c.com"))

	_, ok = c.Get(first)
	assert.True(t, ok)
	_, ok = c.Get(second)
	assert.False(t, ok)
	_, ok = c.Get(third)
	assert.True(t, ok)
}

func TestCache_Invalidate(t *testing.T) {
	c := New(10)
	defer c.Close()

	pricing := pricingRequest("example.com")
	competitor := &models.IntelRequest{
		Type:      models.RequestCompetitorAnalysis,
		Target:    "example.com",
		Providers: []models.ProviderType{models.ProviderSEO},
	}
	other := pricingRequest("other.com")

	c.Set(pricing, someResult("example.com"))
	c.Set(competitor, someResult("example.com"))
	c.Set(other, someResult("other.com"))

	t.Run("ScopedToType", func(t *testing.T) {
		removed := c.Invalidate("example.com", models.RequestPricingIntelligence)
		assert.Equal(t, 1, removed)

		_, ok := c.Get(competitor)
		assert.True(t, ok)
	})

	t.Run("AllTypesForTarget", func(t *testing.T) {
		removed := c.Invalidate("example.com", "")
		assert.Equal(t, 1, removed)

		_, ok := c.Get(other)
		assert.True(t, ok)
	})
}

func TestCache_Sweep(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	c := New(10, WithClock(func() time.Time { return now }))
	defer c.Close()

	for i := 0; i < 3; i++ {
		c.Set(pricingRequest(fmt.Sprintf("site%d.com", i)), someResult("x"))
	}

	assert.Equal(t, 0, c.sweep())

	now = now.Add(6 * time.Minute)
	assert.Equal(t, 3, c.sweep())
	assert.Equal(t, 0, c.Stats().Entries)
}

func TestTTLFor(t *testing.T) {
	assert.Equal(t, 5*time.Minute, TTLFor(models.RequestPricingIntelligence))
	assert.Equal(t, 20*time.Minute, TTLFor(models.RequestKeywordResearch))
	assert.Equal(t, 25*time.Minute, TTLFor(models.RequestCompetitorAnalysis))
	assert.Equal(t, 30*time.Minute, TTLFor(models.RequestMarketAnalysis))
	assert.Equal(t, 15*time.Minute, TTLFor(models.RequestType("unknown")))
}
