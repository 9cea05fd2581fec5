// Package planner orchestrates one intelligence request end to end: it
// selects eligible providers, decides sequential or parallel execution,
// drives the provider calls with retry and backoff, streams progress, and
// hands the settled responses to the normalizer.
package planner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/spectorhq/spector/internal/cache"
	"github.com/spectorhq/spector/internal/logger"
	"github.com/spectorhq/spector/internal/models"
	"github.com/spectorhq/spector/internal/normalize"
	"github.com/spectorhq/spector/internal/provider"
	"github.com/spectorhq/spector/internal/ratelimit"
)

var (
	// ErrNoProviders means no healthy provider covers the request
	ErrNoProviders = errors.New("no healthy providers available for request")
	// ErrRateLimited means admission was denied for one attempt
	ErrRateLimited = errors.New("provider rate limit exceeded")
	// ErrCacheOnlyMiss means a cache_only request found nothing cached
	ErrCacheOnlyMiss = errors.New("no cached result for cache-only request")
)

// parallelThreshold is the estimated duration above which a multi-provider
// plan executes its calls concurrently
const parallelThreshold = 2 * time.Second

// defaultEstimateMs stands in for a provider with no recorded history yet
const defaultEstimateMs = 1000.0

// EventSink receives stream chunks as a request executes. Emission is
// serialized; a sink never sees concurrent calls.
type EventSink func(models.StreamChunk)

// Planner coordinates registry, rate limiter, and cache to execute
// intelligence requests
type Planner struct {
	registry *provider.Registry
	limiter  *ratelimit.Limiter
	cache    *cache.Cache

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
	inflight map[string]context.CancelFunc
}

// New creates a planner over explicitly constructed services
func New(registry *provider.Registry, limiter *ratelimit.Limiter, resultCache *cache.Cache) *Planner {
	return &Planner{
		registry: registry,
		limiter:  limiter,
		cache:    resultCache,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		inflight: make(map[string]context.CancelFunc),
	}
}

// CreatePlan turns a request into an execution plan. It fails fast with
// ErrNoProviders when nothing healthy (or admissible) covers the request.
func (p *Planner) CreatePlan(req *models.IntelRequest) (*models.QueryPlan, error) {
	if !models.ValidRequestType(req.Type) {
		return nil, fmt.Errorf("invalid request type: %s", req.Type)
	}
	if req.Target == "" {
		return nil, fmt.Errorf("request target is required")
	}
	for _, t := range req.Providers {
		if !models.ValidProviderType(t) {
			return nil, fmt.Errorf("invalid provider type: %s", t)
		}
	}

	eligible := p.registry.GetHealthyProviders(req)

	// Pre-filter providers that are already over budget. This is advisory
	// only; admission is re-checked at call time.
	var admitted []models.ProviderConfig
	for _, cfg := range eligible {
		if p.limiter.CheckLimit(cfg.ID) {
			admitted = append(admitted, cfg)
		}
	}

	if len(admitted) == 0 {
		return nil, ErrNoProviders
	}

	ids := make([]string, 0, len(admitted))
	estimateMs := 0.0
	for _, cfg := range admitted {
		ids = append(ids, cfg.ID)
		avg := defaultEstimateMs
		if m, ok := p.registry.Metrics(cfg.ID); ok && m.AvgResponseMs > 0 {
			avg = m.AvgResponseMs
		}
		estimateMs += avg
	}
	if len(admitted) > 1 {
		// Parallel execution roughly halves the wall-clock estimate
		estimateMs /= 2
	}
	estimate := time.Duration(estimateMs) * time.Millisecond

	strategy := models.CachePrefer
	switch {
	case req.Options.RealTime:
		strategy = models.CacheBypass
	case req.Options.CacheOnly:
		strategy = models.CacheOnly
	}

	priority := models.PriorityLow
	switch {
	case req.Type == models.RequestCompetitorAnalysis:
		priority = models.PriorityHigh
	case len(admitted) > 3:
		priority = models.PriorityMedium
	}

	return &models.QueryPlan{
		RequestID:         uuid.New().String(),
		Request:           req,
		ProviderIDs:       ids,
		EstimatedDuration: estimate,
		CacheStrategy:     strategy,
		Parallel:          len(admitted) > 1 && estimate > parallelThreshold,
		Priority:          priority,
	}, nil
}

// Execute runs a plan to completion, emitting chunks to sink as providers
// settle. The terminal chunk is always complete or error. Provider-level
// failures never fail the request; orchestration failures do.
func (p *Planner) Execute(ctx context.Context, plan *models.QueryPlan, sink EventSink) (*models.NormalizedResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p.mu.Lock()
	p.inflight[plan.RequestID] = cancel
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.inflight, plan.RequestID)
		p.mu.Unlock()
	}()

	emit := newSerialSink(sink)

	result, err := p.execute(ctx, plan, emit)
	if err != nil {
		code := "orchestration_error"
		if errors.Is(err, context.Canceled) {
			code = "cancelled"
		}
		emit(models.StreamChunk{
			Type:  models.ChunkError,
			Error: &models.ErrorInfo{Message: err.Error(), Code: code},
		})
		return nil, err
	}
	return result, nil
}

// execute is the plan state machine: cache check, provider calls,
// normalization, cache write
func (p *Planner) execute(ctx context.Context, plan *models.QueryPlan, emit EventSink) (*models.NormalizedResult, error) {
	req := plan.Request

	if plan.CacheStrategy != models.CacheBypass {
		if cached, ok := p.cache.Get(req); ok {
			logger.Debug("Cache hit for %s (%s)", req.Target, req.Type)
			served := markCached(cached)
			emit(models.StreamChunk{Type: models.ChunkResult, Data: served})
			return served, nil
		}
		if plan.CacheStrategy == models.CacheOnly {
			return nil, ErrCacheOnlyMiss
		}
	}

	total := len(plan.ProviderIDs)
	emit(models.StreamChunk{
		Type: models.ChunkProgress,
		Progress: &models.ProgressInfo{
			Completed: 0,
			Total:     total,
			Message:   fmt.Sprintf("querying %d providers", total),
		},
	})

	start := time.Now()
	var responses []*models.ProviderResponse

	if plan.Parallel {
		responses = p.executeParallel(ctx, plan, emit)
	} else {
		responses = p.executeSequential(ctx, plan, emit)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := normalize.Normalize(req, responses)

	if plan.CacheStrategy != models.CacheOnly {
		p.cache.Set(req, result)
	}

	logger.Info("Request %s completed in %v (completeness %.2f)",
		plan.RequestID, time.Since(start), result.Metadata.Completeness)

	emit(models.StreamChunk{Type: models.ChunkComplete, Data: result})
	return result, nil
}

// executeParallel fans all provider calls out concurrently; chunk order
// across providers is whoever finishes first
func (p *Planner) executeParallel(ctx context.Context, plan *models.QueryPlan, emit EventSink) []*models.ProviderResponse {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var responses []*models.ProviderResponse
	completed := 0
	total := len(plan.ProviderIDs)

	for _, providerID := range plan.ProviderIDs {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			resp := p.queryProvider(ctx, plan, id)

			mu.Lock()
			responses = append(responses, resp)
			completed++
			done := completed
			mu.Unlock()

			p.emitProviderChunk(emit, resp, done, total)
		}(providerID)
	}

	wg.Wait()
	return responses
}

// executeSequential runs provider calls one at a time in plan order
func (p *Planner) executeSequential(ctx context.Context, plan *models.QueryPlan, emit EventSink) []*models.ProviderResponse {
	responses := make([]*models.ProviderResponse, 0, len(plan.ProviderIDs))
	total := len(plan.ProviderIDs)

	for i, providerID := range plan.ProviderIDs {
		if ctx.Err() != nil {
			break
		}
		resp := p.queryProvider(ctx, plan, providerID)
		responses = append(responses, resp)
		p.emitProviderChunk(emit, resp, i+1, total)
	}
	return responses
}

func (p *Planner) emitProviderChunk(emit EventSink, resp *models.ProviderResponse, completed, total int) {
	if resp.Success {
		emit(models.StreamChunk{
			Type:       models.ChunkResult,
			ProviderID: resp.ProviderID,
			Data:       resp,
			Progress:   &models.ProgressInfo{Completed: completed, Total: total},
		})
		return
	}
	emit(models.StreamChunk{
		Type:       models.ChunkError,
		ProviderID: resp.ProviderID,
		Progress:   &models.ProgressInfo{Completed: completed, Total: total},
		Error: &models.ErrorInfo{
			Message:    resp.Error,
			Code:       "provider_error",
			ProviderID: resp.ProviderID,
		},
	})
}

// queryProvider drives one provider through its retry budget. Every
// attempt's outcome feeds the registry; cancellation is checked at the top
// of each iteration and before issuing the call.
func (p *Planner) queryProvider(ctx context.Context, plan *models.QueryPlan, providerID string) *models.ProviderResponse {
	cfg, ok := p.registry.Config(providerID)
	if !ok {
		return failedResponse(plan.RequestID, providerID, 0, fmt.Sprintf("provider %s not registered", providerID))
	}
	adapter, ok := p.registry.Adapter(providerID)
	if !ok {
		return failedResponse(plan.RequestID, providerID, 0, fmt.Sprintf("provider %s has no adapter", providerID))
	}

	attempts := cfg.Retry.MaxRetries + 1
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return failedResponse(plan.RequestID, providerID, 0, "request cancelled")
		}

		resp, rateLimited := p.attempt(ctx, plan, cfg, adapter)
		if !rateLimited {
			// Denied admission never reached the provider, so it does not
			// count against the provider's error rate
			p.registry.UpdateMetrics(providerID, resp)
		}
		if resp.Success {
			return resp
		}
		lastErr = errors.New(resp.Error)
		logger.Warning("Attempt %d/%d failed for provider %s: %s", attempt+1, attempts, providerID, resp.Error)

		if attempt < attempts-1 {
			delay := cfg.Retry.Backoff
			if cfg.Retry.Exponential {
				delay = cfg.Retry.Backoff * (1 << attempt)
			}
			select {
			case <-ctx.Done():
				return failedResponse(plan.RequestID, providerID, 0, "request cancelled")
			case <-time.After(delay):
			}
		}
	}

	logger.Error("Provider %s failed after %d attempts: %v", providerID, attempts, lastErr)
	return failedResponse(plan.RequestID, providerID, 0, lastErr.Error())
}

// attempt performs one admission-checked provider call through the
// provider's circuit breaker. The second return value reports a rate-limit
// denial, which the caller treats differently from a provider failure.
func (p *Planner) attempt(ctx context.Context, plan *models.QueryPlan, cfg models.ProviderConfig, adapter provider.Adapter) (*models.ProviderResponse, bool) {
	providerID := cfg.ID

	if !p.limiter.CheckLimit(providerID) {
		p.registry.RecordRateLimit(providerID)
		return failedResponse(plan.RequestID, providerID, 0, ErrRateLimited.Error()), true
	}
	p.limiter.RecordRequest(providerID)

	if err := p.limiter.Wait(ctx, providerID); err != nil {
		return failedResponse(plan.RequestID, providerID, 0, err.Error()), false
	}

	creds := p.registry.Credentials(providerID)
	breaker := p.breaker(providerID)

	start := time.Now()
	data, err := breaker.Execute(func() (interface{}, error) {
		return adapter.Fetch(ctx, plan.Request, creds)
	})
	durationMs := time.Since(start).Milliseconds()

	if err != nil {
		return failedResponse(plan.RequestID, providerID, durationMs, err.Error()), false
	}

	return &models.ProviderResponse{
		ProviderID: providerID,
		Success:    true,
		Data:       data.(*models.IntelData),
		Metadata: models.ResponseMetadata{
			RequestID:  plan.RequestID,
			Timestamp:  time.Now(),
			DurationMs: durationMs,
		},
	}, false
}

// Cancel signals cancellation to an in-flight request. Returns false when
// no such request is executing.
func (p *Planner) Cancel(requestID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	cancel, ok := p.inflight[requestID]
	if !ok {
		return false
	}
	cancel()
	logger.Info("Cancelled request %s", requestID)
	return true
}

// breaker returns the circuit breaker for a provider, creating it on first
// use
func (p *Planner) breaker(providerID string) *gobreaker.CircuitBreaker {
	p.mu.Lock()
	defer p.mu.Unlock()

	if b, ok := p.breakers[providerID]; ok {
		return b
	}
	b := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    providerID,
		Timeout: 30 * time.Second,
	})
	p.breakers[providerID] = b
	return b
}

// newSerialSink wraps a sink so concurrent provider goroutines never emit
// interleaved chunks. A nil sink becomes a no-op.
func newSerialSink(sink EventSink) EventSink {
	if sink == nil {
		return func(models.StreamChunk) {}
	}
	var mu sync.Mutex
	return func(chunk models.StreamChunk) {
		mu.Lock()
		defer mu.Unlock()
		sink(chunk)
	}
}

// markCached returns a copy of a cached result labeled as served from
// cache, leaving the stored entry untouched
func markCached(result *models.NormalizedResult) *models.NormalizedResult {
	served := *result
	served.Metadata.Freshness = models.FreshnessCached
	return &served
}

func failedResponse(requestID, providerID string, durationMs int64, errMsg string) *models.ProviderResponse {
	return &models.ProviderResponse{
		ProviderID: providerID,
		Success:    false,
		Error:      errMsg,
		Metadata: models.ResponseMetadata{
			RequestID:  requestID,
			Timestamp:  time.Now(),
			DurationMs: durationMs,
		},
	}
}
