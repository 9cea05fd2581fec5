package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spectorhq/spector/internal/logger"
	"github.com/spectorhq/spector/internal/models"
)

// probeLatencyThreshold is the probe round-trip above which a provider is
// classified degraded even though the probe succeeded
const probeLatencyThreshold = 5 * time.Second

// entry bundles everything the registry tracks for one provider
type entry struct {
	config  models.ProviderConfig
	adapter Adapter
	metrics models.ProviderMetrics
	stop    chan struct{}
}

// Registry is the catalog of provider configurations, their live metrics,
// and their credentials. It owns health status exclusively: callers read
// it, only call outcomes and probes change it.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	creds   map[string]models.Credentials
	closed  bool
}

// NewRegistry creates an empty provider registry
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		creds:   make(map[string]models.Credentials),
	}
}

// Register upserts a provider by id, resets its metrics to a healthy
// baseline, and (re)starts its health probe when the config declares an
// interval. Idempotent: re-registering replaces the config and adapter.
func (r *Registry) Register(config models.ProviderConfig, adapter Adapter) error {
	if config.ID == "" {
		return fmt.Errorf("provider config missing id")
	}
	if len(config.Types) == 0 {
		return fmt.Errorf("provider %s declares no types", config.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("registry is closed")
	}

	if existing, ok := r.entries[config.ID]; ok && existing.stop != nil {
		close(existing.stop)
	}

	e := &entry{
		config:  config,
		adapter: adapter,
		metrics: models.ProviderMetrics{
			ProviderID:    config.ID,
			Status:        models.StatusHealthy,
			UptimePercent: 100,
		},
	}

	if config.HealthCheck.Interval > 0 && adapter != nil {
		e.stop = make(chan struct{})
		go r.probeLoop(e.stop, config.ID, config.HealthCheck.Interval)
	}

	r.entries[config.ID] = e
	logger.Info("Registered provider %s (%s)", config.ID, config.Name)
	return nil
}

// Close stops all health probes
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	for _, e := range r.entries {
		if e.stop != nil {
			close(e.stop)
			e.stop = nil
		}
	}
	r.closed = true
}

// Config returns the configuration for a provider id
func (r *Registry) Config(id string) (models.ProviderConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return models.ProviderConfig{}, false
	}
	return e.config, true
}

// Adapter returns the adapter registered for a provider id
func (r *Registry) Adapter(id string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok || e.adapter == nil {
		return nil, false
	}
	return e.adapter, true
}

// List returns all registered provider configurations
func (r *Registry) List() []models.ProviderConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	configs := make([]models.ProviderConfig, 0, len(r.entries))
	for _, e := range r.entries {
		configs = append(configs, e.config)
	}
	return configs
}

// GetHealthyProviders returns, deduplicated by id, every registered
// provider that supports at least one of the request's provider types and
// is not currently unhealthy. Degraded providers stay eligible.
func (r *Registry) GetHealthyProviders(req *models.IntelRequest) []models.ProviderConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	var eligible []models.ProviderConfig

	for _, pt := range req.Providers {
		for _, e := range r.entries {
			if seen[e.config.ID] || !e.config.Supports(pt) {
				continue
			}
			if e.metrics.Status == models.StatusUnhealthy {
				continue
			}
			seen[e.config.ID] = true
			eligible = append(eligible, e.config)
		}
	}

	return eligible
}

// UpdateMetrics records the outcome of one provider call and recomputes
// the provider's health status from its error rate
func (r *Registry) UpdateMetrics(providerID string, resp *models.ProviderResponse) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[providerID]
	if !ok {
		return
	}

	m := &e.metrics
	m.Requests++
	if resp.Success {
		m.Successes++
	} else {
		m.Errors++
		if resp.Error != "" {
			m.LastError = resp.Error
		}
	}

	// Rolling average over all requests seen so far
	n := float64(m.Requests)
	m.AvgResponseMs = (m.AvgResponseMs*(n-1) + float64(resp.Metadata.DurationMs)) / n

	m.Status = statusFromErrorRate(m)
}

// RecordRateLimit counts a rate-limit rejection and downgrades the
// provider to degraded. A rate-limit hit is a health signal on its own,
// independent of the error rate.
func (r *Registry) RecordRateLimit(providerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[providerID]
	if !ok {
		return
	}

	e.metrics.RateLimitHits++
	e.metrics.Status = models.StatusDegraded
	logger.Warning("Provider %s hit its rate limit, marking degraded", providerID)
}

// SetStatus overrides a provider's health status. Intended for operators
// and tests; normal status transitions come from call outcomes and probes.
func (r *Registry) SetStatus(providerID string, status models.HealthStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[providerID]; ok {
		e.metrics.Status = status
	}
}

// Metrics returns a copy of one provider's metrics
func (r *Registry) Metrics(providerID string) (models.ProviderMetrics, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[providerID]
	if !ok {
		return models.ProviderMetrics{}, false
	}
	return e.metrics, true
}

// AllMetrics returns a copy of every provider's metrics
func (r *Registry) AllMetrics() []models.ProviderMetrics {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]models.ProviderMetrics, 0, len(r.entries))
	for _, e := range r.entries {
		all = append(all, e.metrics)
	}
	return all
}

// SetCredentials stores resolved credentials for a provider. They live in
// memory only and are handed to the adapter at call time.
func (r *Registry) SetCredentials(providerID string, creds models.Credentials) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[providerID]; !ok {
		return fmt.Errorf("unknown provider: %s", providerID)
	}
	r.creds[providerID] = creds
	return nil
}

// Credentials returns the stored credentials for a provider, zero-valued
// when none have been set
func (r *Registry) Credentials(providerID string) models.Credentials {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.creds[providerID]
}

// probeLoop runs the periodic health probe for one provider until its
// stop channel closes
func (r *Registry) probeLoop(stop chan struct{}, providerID string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.runProbe(providerID)
		}
	}
}

// runProbe issues one health probe and reclassifies the provider
func (r *Registry) runProbe(providerID string) {
	r.mu.RLock()
	e, ok := r.entries[providerID]
	var adapter Adapter
	if ok {
		adapter = e.adapter
	}
	r.mu.RUnlock()

	if !ok || adapter == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), probeLatencyThreshold*2)
	defer cancel()

	start := time.Now()
	err := adapter.Probe(ctx)
	latency := time.Since(start)

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok = r.entries[providerID]
	if !ok {
		return
	}

	m := &e.metrics
	m.LastHealthCheck = time.Now()

	switch {
	case err != nil:
		m.Status = models.StatusUnhealthy
		m.LastError = err.Error()
		m.UptimePercent -= 5
		if m.UptimePercent < 0 {
			m.UptimePercent = 0
		}
		logger.Warning("Health probe failed for provider %s: %v", providerID, err)
	case latency > probeLatencyThreshold:
		m.Status = models.StatusDegraded
		logger.Warning("Health probe slow for provider %s: %v", providerID, latency)
	default:
		m.Status = models.StatusHealthy
		m.UptimePercent++
		if m.UptimePercent > 100 {
			m.UptimePercent = 100
		}
	}
}

// statusFromErrorRate classifies a provider from its cumulative error rate
func statusFromErrorRate(m *models.ProviderMetrics) models.HealthStatus {
	if m.Requests == 0 {
		return models.StatusHealthy
	}
	rate := float64(m.Errors) / float64(m.Requests)
	switch {
	case rate > 0.5:
		return models.StatusUnhealthy
	case rate > 0.2:
		return models.StatusDegraded
	default:
		return models.StatusHealthy
	}
}
