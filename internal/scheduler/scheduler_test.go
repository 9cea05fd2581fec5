package scheduler

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spectorhq/spector/internal/cache"
	"github.com/spectorhq/spector/internal/history"
	"github.com/spectorhq/spector/internal/models"
	"github.com/spectorhq/spector/internal/planner"
	"github.com/spectorhq/spector/internal/provider"
	"github.com/spectorhq/spector/internal/provider/simulated"
	"github.com/spectorhq/spector/internal/ratelimit"
)

// memoryStore is an in-memory history.Store for scheduler tests
type memoryStore struct {
	mu      sync.Mutex
	reports map[string]*models.Report
}

func newMemoryStore() *memoryStore {
	return &memoryStore{reports: make(map[string]*models.Report)}
}

func (m *memoryStore) Connect(ctx context.Context) error    { return nil }
func (m *memoryStore) Disconnect(ctx context.Context) error { return nil }
func (m *memoryStore) Ping(ctx context.Context) error       { return nil }

func (m *memoryStore) SaveReport(ctx context.Context, report *models.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports[report.ID] = report
	return nil
}

func (m *memoryStore) GetReport(ctx context.Context, id string) (*models.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[id]
	if !ok {
		return nil, fmt.Errorf("report not found: %s", id)
	}
	return r, nil
}

func (m *memoryStore) ListReports(ctx context.Context, filter history.ReportFilter) ([]*models.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Report
	for _, r := range m.reports {
		out = append(out, r)
	}
	return out, nil
}

func (m *memoryStore) DeleteReport(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.reports, id)
	return nil
}

func (m *memoryStore) CountReports(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.reports)), nil
}

func newTestScheduler(t *testing.T, jobs []models.RefreshJob) (*Scheduler, *memoryStore, *cache.Cache) {
	t.Helper()

	registry := provider.NewRegistry()
	limiter := ratelimit.NewLimiter()
	resultCache := cache.New(100)
	t.Cleanup(func() {
		registry.Close()
		limiter.Close()
		resultCache.Close()
	})

	cfg := models.ProviderConfig{
		ID:    "semrush",
		Name:  "SEMrush",
		Types: []models.ProviderType{models.ProviderSEO},
	}
	require.NoError(t, registry.Register(cfg, simulated.New(cfg)))

	store := newMemoryStore()
	p := planner.New(registry, limiter, resultCache)
	return New(p, resultCache, store, jobs), store, resultCache
}

func refreshJob(id string) models.RefreshJob {
	return models.RefreshJob{
		ID:       id,
		Name:     "warm " + id,
		CronExpr: "*/5 * * * *",
		Enabled:  true,
		Request: models.IntelRequest{
			Type:      models.RequestCompetitorAnalysis,
			Target:    "example.com",
			Providers: []models.ProviderType{models.ProviderSEO},
		},
	}
}

func TestScheduler_StartStop(t *testing.T) {
	sched, _, _ := newTestScheduler(t, []models.RefreshJob{refreshJob("job1")})

	require.NoError(t, sched.Start())
	assert.Error(t, sched.Start(), "second start should fail")

	sched.Stop()
	// Stop is idempotent
	sched.Stop()

	require.NoError(t, sched.Start())
	sched.Stop()
}

func TestScheduler_StartRejectsBadCron(t *testing.T) {
	bad := refreshJob("bad")
	bad.CronExpr = "not a cron expression"

	sched, _, _ := newTestScheduler(t, []models.RefreshJob{bad})

	// A bad job is logged and skipped, the scheduler itself still starts
	require.NoError(t, sched.Start())
	sched.Stop()
}

func TestScheduler_ExecuteJob(t *testing.T) {
	job := refreshJob("job1")
	sched, store, resultCache := newTestScheduler(t, []models.RefreshJob{job})
	ctx := context.Background()

	// Seed a cached result so the refresh has something to invalidate
	require.NoError(t, sched.ExecuteJob(ctx, job))

	count, err := store.CountReports(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// The refresh result is freshly cached afterwards
	_, ok := resultCache.Get(&job.Request)
	assert.True(t, ok)

	// Running again invalidates the cached entry and re-queries, saving a
	// second report rather than serving from cache
	require.NoError(t, sched.ExecuteJob(ctx, job))
	count, err = store.CountReports(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestScheduler_ExecuteJobNoProviders(t *testing.T) {
	job := refreshJob("job1")
	job.Request.Providers = []models.ProviderType{models.ProviderReviews}

	sched, store, _ := newTestScheduler(t, []models.RefreshJob{job})

	err := sched.ExecuteJob(context.Background(), job)
	assert.Error(t, err)

	count, _ := store.CountReports(context.Background())
	assert.Equal(t, int64(0), count)
}
