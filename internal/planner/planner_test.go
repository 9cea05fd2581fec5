package planner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spectorhq/spector/internal/cache"
	"github.com/spectorhq/spector/internal/models"
	"github.com/spectorhq/spector/internal/provider"
	"github.com/spectorhq/spector/internal/ratelimit"
)

// fakeAdapter is a scriptable provider adapter for planner tests
type fakeAdapter struct {
	id       string
	data     *models.IntelData
	failures int // initial attempts that fail before succeeding
	delay    time.Duration

	mu    sync.Mutex
	calls int
}

func (f *fakeAdapter) ID() string { return f.id }

func (f *fakeAdapter) Probe(ctx context.Context) error { return nil }

func (f *fakeAdapter) Fetch(ctx context.Context, req *models.IntelRequest, creds models.Credentials) (*models.IntelData, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}

	if call <= f.failures {
		return nil, fmt.Errorf("upstream error on call %d", call)
	}

	data := f.data
	if data == nil {
		data = &models.IntelData{SEO: &models.SEOData{}}
	}
	return data, nil
}

func (f *fakeAdapter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }

func testConfig(id string, types []models.ProviderType, maxRetries int, backoff time.Duration) models.ProviderConfig {
	return models.ProviderConfig{
		ID:    id,
		Name:  id,
		Types: types,
		Retry: models.RetryPolicy{
			MaxRetries:  maxRetries,
			Backoff:     backoff,
			Exponential: true,
		},
	}
}

func newTestPlanner(t *testing.T) (*Planner, *provider.Registry, *ratelimit.Limiter, *cache.Cache) {
	t.Helper()
	registry := provider.NewRegistry()
	limiter := ratelimit.NewLimiter()
	resultCache := cache.New(100)
	t.Cleanup(func() {
		registry.Close()
		limiter.Close()
		resultCache.Close()
	})
	return New(registry, limiter, resultCache), registry, limiter, resultCache
}

func competitorRequest() *models.IntelRequest {
	return &models.IntelRequest{
		Type:      models.RequestCompetitorAnalysis,
		Target:    "example.com",
		Providers: []models.ProviderType{models.ProviderSEO, models.ProviderTraffic},
	}
}

func collectSink(mu *sync.Mutex, chunks *[]models.StreamChunk) EventSink {
	return func(chunk models.StreamChunk) {
		mu.Lock()
		defer mu.Unlock()
		*chunks = append(*chunks, chunk)
	}
}

func TestCreatePlan_Validation(t *testing.T) {
	p, _, _, _ := newTestPlanner(t)

	t.Run("InvalidType", func(t *testing.T) {
		_, err := p.CreatePlan(&models.IntelRequest{Type: "nonsense", Target: "x", Providers: []models.ProviderType{models.ProviderSEO}})
		assert.Error(t, err)
	})

	t.Run("MissingTarget", func(t *testing.T) {
		_, err := p.CreatePlan(&models.IntelRequest{Type: models.RequestCompetitorAnalysis, Providers: []models.ProviderType{models.ProviderSEO}})
		assert.Error(t, err)
	})

	t.Run("InvalidProviderType", func(t *testing.T) {
		_, err := p.CreatePlan(&models.IntelRequest{Type: models.RequestCompetitorAnalysis, Target: "x", Providers: []models.ProviderType{"astrology"}})
		assert.Error(t, err)
	})

	t.Run("NoProvidersRegistered", func(t *testing.T) {
		_, err := p.CreatePlan(competitorRequest())
		assert.ErrorIs(t, err, ErrNoProviders)
	})
}

func TestCreatePlan_Shape(t *testing.T) {
	p, registry, _, _ := newTestPlanner(t)

	require.NoError(t, registry.Register(
		testConfig("semrush", []models.ProviderType{models.ProviderSEO}, 0, 0),
		&fakeAdapter{id: "semrush"},
	))
	require.NoError(t, registry.Register(
		testConfig("similarweb", []models.ProviderType{models.ProviderTraffic}, 0, 0),
		&fakeAdapter{id: "similarweb"},
	))

	plan, err := p.CreatePlan(competitorRequest())
	require.NoError(t, err)

	assert.NotEmpty(t, plan.RequestID)
	assert.Len(t, plan.ProviderIDs, 2)
	assert.Equal(t, models.CachePrefer, plan.CacheStrategy)
	assert.Equal(t, models.PriorityHigh, plan.Priority)
	// Two providers with no history estimate at 1s wall clock, which stays
	// under the parallel threshold
	assert.False(t, plan.Parallel)

	t.Run("RealTimeBypassesCache", func(t *testing.T) {
		req := competitorRequest()
		req.Options.RealTime = true
		plan, err := p.CreatePlan(req)
		require.NoError(t, err)
		assert.Equal(t, models.CacheBypass, plan.CacheStrategy)
	})

	t.Run("CacheOnlyStrategy", func(t *testing.T) {
		req := competitorRequest()
		req.Options.CacheOnly = true
		plan, err := p.CreatePlan(req)
		require.NoError(t, err)
		assert.Equal(t, models.CacheOnly, plan.CacheStrategy)
	})

	t.Run("UnhealthyProviderExcluded", func(t *testing.T) {
		registry.SetStatus("similarweb", models.StatusUnhealthy)
		defer registry.SetStatus("similarweb", models.StatusHealthy)

		plan, err := p.CreatePlan(competitorRequest())
		require.NoError(t, err)
		assert.Equal(t, []string{"semrush"}, plan.ProviderIDs)
	})
}

func TestCreatePlan_ParallelAboveThreshold(t *testing.T) {
	p, registry, _, _ := newTestPlanner(t)

	// Five providers at the 1s default estimate give 2.5s halved wall clock
	types := []models.ProviderType{
		models.ProviderSEO, models.ProviderTraffic, models.ProviderPricing,
		models.ProviderSERP, models.ProviderSocial,
	}
	for i, pt := range types {
		id := fmt.Sprintf("p%d", i)
		require.NoError(t, registry.Register(
			testConfig(id, []models.ProviderType{pt}, 0, 0),
			&fakeAdapter{id: id},
		))
	}

	plan, err := p.CreatePlan(&models.IntelRequest{
		Type:      models.RequestMarketAnalysis,
		Target:    "example.com",
		Providers: types,
	})
	require.NoError(t, err)
	assert.True(t, plan.Parallel)
	assert.Equal(t, models.PriorityMedium, plan.Priority)
}

func TestExecute_EndToEnd(t *testing.T) {
	p, registry, _, _ := newTestPlanner(t)

	seoData := &models.IntelData{SEO: &models.SEOData{DomainAuthority: intPtr(55)}}
	trafficData := &models.IntelData{Traffic: &models.TrafficData{MonthlyVisits: int64Ptr(90000)}}

	require.NoError(t, registry.Register(
		testConfig("semrush", []models.ProviderType{models.ProviderSEO}, 0, 0),
		&fakeAdapter{id: "semrush", data: seoData},
	))
	require.NoError(t, registry.Register(
		testConfig("similarweb", []models.ProviderType{models.ProviderTraffic}, 0, 0),
		&fakeAdapter{id: "similarweb", data: trafficData},
	))

	plan, err := p.CreatePlan(competitorRequest())
	require.NoError(t, err)

	var mu sync.Mutex
	var chunks []models.StreamChunk

	result, err := p.Execute(context.Background(), plan, collectSink(&mu, &chunks))
	require.NoError(t, err)

	assert.Equal(t, 1.0, result.Metadata.Completeness)
	assert.Equal(t, models.FreshnessFresh, result.Metadata.Freshness)
	assert.ElementsMatch(t, []string{"semrush", "similarweb"}, result.Metadata.Providers)
	require.NotNil(t, result.Data.SEO)
	assert.Equal(t, 55, *result.Data.SEO.DomainAuthority)
	require.NotNil(t, result.Data.Traffic)
	assert.Equal(t, int64(90000), *result.Data.Traffic.MonthlyVisits)

	// First chunk is the initial progress event, last is the terminal
	// complete event
	require.NotEmpty(t, chunks)
	assert.Equal(t, models.ChunkProgress, chunks[0].Type)
	assert.Equal(t, models.ChunkComplete, chunks[len(chunks)-1].Type)

	resultChunks := 0
	for _, c := range chunks {
		if c.Type == models.ChunkResult {
			resultChunks++
		}
	}
	assert.Equal(t, 2, resultChunks)
}

func TestExecute_CacheHitShortCircuits(t *testing.T) {
	p, registry, _, _ := newTestPlanner(t)

	adapter := &fakeAdapter{id: "semrush", data: &models.IntelData{SEO: &models.SEOData{DomainAuthority: intPtr(40)}}}
	require.NoError(t, registry.Register(
		testConfig("semrush", []models.ProviderType{models.ProviderSEO}, 0, 0),
		adapter,
	))

	req := &models.IntelRequest{
		Type:      models.RequestCompetitorAnalysis,
		Target:    "example.com",
		Providers: []models.ProviderType{models.ProviderSEO},
	}

	plan, err := p.CreatePlan(req)
	require.NoError(t, err)
	_, err = p.Execute(context.Background(), plan, nil)
	require.NoError(t, err)
	require.Equal(t, 1, adapter.callCount())

	// Same request again: served from cache, no new provider call, a single
	// result chunk
	plan2, err := p.CreatePlan(req)
	require.NoError(t, err)

	var mu sync.Mutex
	var chunks []models.StreamChunk
	result, err := p.Execute(context.Background(), plan2, collectSink(&mu, &chunks))
	require.NoError(t, err)

	assert.Equal(t, 1, adapter.callCount())
	assert.Equal(t, models.FreshnessCached, result.Metadata.Freshness)
	require.Len(t, chunks, 1)
	assert.Equal(t, models.ChunkResult, chunks[0].Type)

	t.Run("RealTimeBypassesCachedEntry", func(t *testing.T) {
		bypass := &models.IntelRequest{
			Type:      req.Type,
			Target:    req.Target,
			Providers: req.Providers,
			Options:   models.RequestOptions{RealTime: true},
		}
		plan3, err := p.CreatePlan(bypass)
		require.NoError(t, err)

		result, err := p.Execute(context.Background(), plan3, nil)
		require.NoError(t, err)
		assert.Equal(t, 2, adapter.callCount())
		assert.Equal(t, models.FreshnessFresh, result.Metadata.Freshness)
	})
}

func TestExecute_CacheOnlyMiss(t *testing.T) {
	p, registry, _, _ := newTestPlanner(t)

	require.NoError(t, registry.Register(
		testConfig("semrush", []models.ProviderType{models.ProviderSEO}, 0, 0),
		&fakeAdapter{id: "semrush"},
	))

	req := &models.IntelRequest{
		Type:      models.RequestCompetitorAnalysis,
		Target:    "nothing-cached.com",
		Providers: []models.ProviderType{models.ProviderSEO},
		Options:   models.RequestOptions{CacheOnly: true},
	}

	plan, err := p.CreatePlan(req)
	require.NoError(t, err)

	var mu sync.Mutex
	var chunks []models.StreamChunk
	_, err = p.Execute(context.Background(), plan, collectSink(&mu, &chunks))
	assert.ErrorIs(t, err, ErrCacheOnlyMiss)

	require.NotEmpty(t, chunks)
	last := chunks[len(chunks)-1]
	assert.Equal(t, models.ChunkError, last.Type)
	require.NotNil(t, last.Error)
	assert.Equal(t, "orchestration_error", last.Error.Code)
}

func TestExecute_RetriesWithBackoff(t *testing.T) {
	p, registry, _, _ := newTestPlanner(t)

	// Fails twice then succeeds; two retries allowed, 50ms base backoff
	adapter := &fakeAdapter{id: "flaky", failures: 2, data: &models.IntelData{SEO: &models.SEOData{}}}
	require.NoError(t, registry.Register(
		testConfig("flaky", []models.ProviderType{models.ProviderSEO}, 2, 50*time.Millisecond),
		adapter,
	))

	req := &models.IntelRequest{
		Type:      models.RequestCompetitorAnalysis,
		Target:    "example.com",
		Providers: []models.ProviderType{models.ProviderSEO},
	}

	plan, err := p.CreatePlan(req)
	require.NoError(t, err)

	start := time.Now()
	result, err := p.Execute(context.Background(), plan, nil)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, 3, adapter.callCount())
	assert.Equal(t, 1.0, result.Metadata.Completeness)
	// Exponential backoff: 50ms after the first failure, 100ms after the
	// second
	assert.GreaterOrEqual(t, elapsed, 150*time.Millisecond)

	// Every attempt fed the metrics
	m, ok := registry.Metrics("flaky")
	require.True(t, ok)
	assert.Equal(t, int64(3), m.Requests)
	assert.Equal(t, int64(2), m.Errors)
}

func TestExecute_PartialFailure(t *testing.T) {
	p, registry, _, _ := newTestPlanner(t)

	require.NoError(t, registry.Register(
		testConfig("semrush", []models.ProviderType{models.ProviderSEO}, 0, 0),
		&fakeAdapter{id: "semrush", data: &models.IntelData{SEO: &models.SEOData{DomainAuthority: intPtr(33)}}},
	))
	require.NoError(t, registry.Register(
		testConfig("broken", []models.ProviderType{models.ProviderTraffic}, 0, 0),
		&fakeAdapter{id: "broken", failures: 1000},
	))

	plan, err := p.CreatePlan(competitorRequest())
	require.NoError(t, err)

	var mu sync.Mutex
	var chunks []models.StreamChunk
	result, err := p.Execute(context.Background(), plan, collectSink(&mu, &chunks))

	// A provider failure degrades the result, it does not fail the request
	require.NoError(t, err)
	assert.Equal(t, 0.5, result.Metadata.Completeness)
	assert.Equal(t, []string{"semrush"}, result.Metadata.Providers)
	assert.NotNil(t, result.Data.SEO)
	assert.Nil(t, result.Data.Traffic)

	var providerError *models.ErrorInfo
	for _, c := range chunks {
		if c.Type == models.ChunkError && c.Error != nil && c.Error.ProviderID != "" {
			providerError = c.Error
		}
	}
	require.NotNil(t, providerError)
	assert.Equal(t, "broken", providerError.ProviderID)
	assert.Equal(t, "provider_error", providerError.Code)
	assert.Equal(t, models.ChunkComplete, chunks[len(chunks)-1].Type)
}

func TestExecute_RateLimitDenied(t *testing.T) {
	p, registry, limiter, _ := newTestPlanner(t)

	adapter := &fakeAdapter{id: "capped"}
	require.NoError(t, registry.Register(
		testConfig("capped", []models.ProviderType{models.ProviderSEO}, 0, 0),
		adapter,
	))

	limiter.Configure("capped", models.RateLimit{RequestsPerMinute: 1})

	req := &models.IntelRequest{
		Type:      models.RequestCompetitorAnalysis,
		Target:    "example.com",
		Providers: []models.ProviderType{models.ProviderSEO},
	}

	// Plan while still admissible, then exhaust the budget out of band
	plan, err := p.CreatePlan(req)
	require.NoError(t, err)
	limiter.RecordRequest("capped")

	result, err := p.Execute(context.Background(), plan, nil)
	require.NoError(t, err)

	assert.Equal(t, 0.0, result.Metadata.Completeness)
	assert.Equal(t, 0, adapter.callCount())

	m, _ := registry.Metrics("capped")
	assert.Equal(t, int64(1), m.RateLimitHits)
	assert.Equal(t, models.StatusDegraded, m.Status)
}

func TestExecute_Cancellation(t *testing.T) {
	p, registry, _, _ := newTestPlanner(t)

	require.NoError(t, registry.Register(
		testConfig("slow", []models.ProviderType{models.ProviderSEO}, 0, 0),
		&fakeAdapter{id: "slow", delay: 2 * time.Second},
	))

	req := &models.IntelRequest{
		Type:      models.RequestCompetitorAnalysis,
		Target:    "example.com",
		Providers: []models.ProviderType{models.ProviderSEO},
	}

	plan, err := p.CreatePlan(req)
	require.NoError(t, err)

	var mu sync.Mutex
	var chunks []models.StreamChunk

	done := make(chan error, 1)
	go func() {
		_, execErr := p.Execute(context.Background(), plan, collectSink(&mu, &chunks))
		done <- execErr
	}()

	// Give the slow provider call time to start, then cancel it
	time.Sleep(100 * time.Millisecond)
	assert.True(t, p.Cancel(plan.RequestID))

	select {
	case execErr := <-done:
		assert.True(t, errors.Is(execErr, context.Canceled))
	case <-time.After(time.Second):
		t.Fatal("Execute did not return after cancellation")
	}

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, chunks)
	last := chunks[len(chunks)-1]
	assert.Equal(t, models.ChunkError, last.Type)
	require.NotNil(t, last.Error)
	assert.Equal(t, "cancelled", last.Error.Code)

	// The request is no longer tracked
	assert.False(t, p.Cancel(plan.RequestID))
}

func TestCancel_UnknownRequest(t *testing.T) {
	p, _, _, _ := newTestPlanner(t)
	assert.False(t, p.Cancel("no-such-request"))
}
