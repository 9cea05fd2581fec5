// Package cache memoizes normalized results for a short window keyed by
// request fingerprint, so identical requests within the window are served
// without any provider spend. TTL is chosen by how volatile each request
// type's data is; an LRU cap bounds the entry count independent of TTL.
package cache

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spectorhq/spector/internal/logger"
	"github.com/spectorhq/spector/internal/models"
)

// TTL bounds and per-type policy. Pricing moves fastest, market analysis
// slowest.
const (
	minTTL     = 5 * time.Minute
	maxTTL     = 30 * time.Minute
	defaultTTL = 15 * time.Minute
)

// Entry is one cached result with its bookkeeping
type Entry struct {
	Result       *models.NormalizedResult
	CreatedAt    time.Time
	ExpiresAt    time.Time
	LastAccessed time.Time
	RequestType  models.RequestType
	Target       string
	Providers    []string
}

// Stats reports cache effectiveness counters
type Stats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// Cache is a concurrent fingerprint-keyed result store
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*Entry
	maxEntries int
	hits       int64
	misses     int64
	now        func() time.Time
	stop       chan struct{}
	stopOnce   sync.Once
}

// Option customizes a Cache
type Option func(*Cache)

// WithClock replaces the wall clock, for tests
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// New creates a cache capped at maxEntries results
func New(maxEntries int, opts ...Option) *Cache {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	c := &Cache{
		entries:    make(map[string]*Entry),
		maxEntries: maxEntries,
		now:        time.Now,
		stop:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key derives the stable fingerprint for a request. Provider order is
// normalized away so reordering the providers array is not a cache-buster.
func Key(req *models.IntelRequest) string {
	providers := make([]string, 0, len(req.Providers))
	for _, p := range req.Providers {
		providers = append(providers, string(p))
	}
	sort.Strings(providers)

	return strings.Join([]string{
		string(req.Type),
		req.Target,
		strings.Join(providers, ","),
		req.Options.Country,
		req.Options.Language,
	}, ":")
}

// Get returns the cached result for a request, expiring it lazily when its
// TTL has passed
func (c *Cache) Get(req *models.IntelRequest) (*models.NormalizedResult, bool) {
	key := Key(req)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}

	now := c.now()
	if now.After(e.ExpiresAt) {
		delete(c.entries, key)
		c.misses++
		return nil, false
	}

	e.LastAccessed = now
	c.hits++
	return e.Result, true
}

// Set stores a result under the request's fingerprint with a TTL chosen by
// request type, evicting the least recently used entry when full
func (c *Cache) Set(req *models.IntelRequest, result *models.NormalizedResult) {
	key := Key(req)
	now := c.now()

	providers := make([]string, 0, len(req.Providers))
	for _, p := range req.Providers {
		providers = append(providers, string(p))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictLRU()
	}

	c.entries[key] = &Entry{
		Result:       result,
		CreatedAt:    now,
		ExpiresAt:    now.Add(TTLFor(req.Type)),
		LastAccessed: now,
		RequestType:  req.Type,
		Target:       req.Target,
		Providers:    providers,
	}
}

// Invalidate removes every entry for a target, optionally scoped to one
// request type (empty means all types). Returns the number removed.
func (c *Cache) Invalidate(target string, reqType models.RequestType) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if e.Target != target {
			continue
		}
		if reqType != "" && e.RequestType != reqType {
			continue
		}
		delete(c.entries, key)
		removed++
	}
	return removed
}

// Stats returns current cache counters
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Entries: len(c.entries),
		Hits:    c.hits,
		Misses:  c.misses,
	}
}

// StartSweeper launches the periodic purge of expired entries. Call Close
// to stop it.
func (c *Cache) StartSweeper(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-c.stop:
				return
			case <-ticker.C:
				removed := c.sweep()
				if removed > 0 {
					logger.Debug("Cache sweep removed %d expired entries", removed)
				}
			}
		}
	}()
}

// Close stops the sweeper
func (c *Cache) Close() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

func (c *Cache) sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, e := range c.entries {
		if now.After(e.ExpiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// evictLRU removes the least recently accessed entry. Caller holds the lock.
func (c *Cache) evictLRU() {
	var oldestKey string
	var oldest time.Time
	for key, e := range c.entries {
		if oldestKey == "" || e.LastAccessed.Before(oldest) {
			oldestKey = key
			oldest = e.LastAccessed
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

// TTLFor returns the cache lifetime for a request type, clamped to the
// [5m, 30m] band
func TTLFor(t models.RequestType) time.Duration {
	var ttl time.Duration
	switch t {
	case models.RequestPricingIntelligence:
		ttl = 5 * time.Minute
	case models.RequestKeywordResearch:
		ttl = 20 * time.Minute
	case models.RequestCompetitorAnalysis:
		ttl = 25 * time.Minute
	case models.RequestMarketAnalysis:
		ttl = 30 * time.Minute
	default:
		ttl = defaultTTL
	}

	if ttl < minTTL {
		ttl = minTTL
	}
	if ttl > maxTTL {
		ttl = maxTTL
	}
	return ttl
}
