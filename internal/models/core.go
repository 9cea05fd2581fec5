package models

import (
	"time"
)

// Core domain models

// RequestType identifies what kind of intelligence a caller is asking for
type RequestType string

const (
	RequestCompetitorAnalysis  RequestType = "competitor_analysis"
	RequestKeywordResearch     RequestType = "keyword_research"
	RequestMarketAnalysis      RequestType = "market_analysis"
	RequestPricingIntelligence RequestType = "pricing_intelligence"
)

// ValidRequestType reports whether t is a known request type
func ValidRequestType(t RequestType) bool {
	switch t {
	case RequestCompetitorAnalysis, RequestKeywordResearch, RequestMarketAnalysis, RequestPricingIntelligence:
		return true
	}
	return false
}

// ProviderType identifies a data category a provider can serve
type ProviderType string

const (
	ProviderSEO     ProviderType = "seo"
	ProviderTraffic ProviderType = "traffic"
	ProviderPricing ProviderType = "pricing"
	ProviderSERP    ProviderType = "serp"
	ProviderSocial  ProviderType = "social"
	ProviderReviews ProviderType = "reviews"
)

// ValidProviderType reports whether t is a known provider type
func ValidProviderType(t ProviderType) bool {
	switch t {
	case ProviderSEO, ProviderTraffic, ProviderPricing, ProviderSERP, ProviderSocial, ProviderReviews:
		return true
	}
	return false
}

// RequestOptions carries caller-supplied execution hints
type RequestOptions struct {
	RealTime  bool   `json:"real_time,omitempty" yaml:"real_time,omitempty"`   // bypass the cache entirely
	CacheOnly bool   `json:"cache_only,omitempty" yaml:"cache_only,omitempty"` // never contact providers
	Country   string `json:"country,omitempty" yaml:"country,omitempty"`
	Language  string `json:"language,omitempty" yaml:"language,omitempty"`
}

// IntelRequest is one caller request for composite intelligence about a
// target. Immutable once submitted; its cache identity is the ordered
// tuple (type, target, sorted providers, country, language).
type IntelRequest struct {
	Type      RequestType    `json:"type" yaml:"type"`
	Target    string         `json:"target" yaml:"target"`
	Keywords  []string       `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	Location  string         `json:"location,omitempty" yaml:"location,omitempty"`
	Providers []ProviderType `json:"providers" yaml:"providers"`
	Options   RequestOptions `json:"options,omitempty" yaml:"options,omitempty"`
}

// RateLimit is a provider's request budget per window
type RateLimit struct {
	RequestsPerMinute int `json:"requests_per_minute" yaml:"requests_per_minute"`
	RequestsPerHour   int `json:"requests_per_hour" yaml:"requests_per_hour"`
	RequestsPerDay    int `json:"requests_per_day" yaml:"requests_per_day"`
}

// RetryPolicy controls per-provider retry behavior
type RetryPolicy struct {
	MaxRetries  int           `json:"max_retries" yaml:"max_retries"`
	Backoff     time.Duration `json:"backoff" yaml:"backoff"`
	Exponential bool          `json:"exponential" yaml:"exponential"`
}

// HealthCheck describes a provider's periodic probe
type HealthCheck struct {
	Endpoint string        `json:"endpoint" yaml:"endpoint"`
	Interval time.Duration `json:"interval" yaml:"interval"`
}

// ProviderConfig is the static descriptor for one provider. Created at
// process start or via explicit registration; immutable afterwards except
// for health status, which the registry owns.
type ProviderConfig struct {
	ID          string         `json:"id" yaml:"id"`
	Name        string         `json:"name" yaml:"name"`
	Types       []ProviderType `json:"types" yaml:"types"`
	BaseURL     string         `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	RateLimit   RateLimit      `json:"rate_limit" yaml:"rate_limit"`
	Retry       RetryPolicy    `json:"retry" yaml:"retry"`
	HealthCheck HealthCheck    `json:"health_check" yaml:"health_check"`
	Operations  []string       `json:"operations,omitempty" yaml:"operations,omitempty"`
}

// Supports reports whether the provider serves the given data category
func (c *ProviderConfig) Supports(t ProviderType) bool {
	for _, pt := range c.Types {
		if pt == t {
			return true
		}
	}
	return false
}

// HealthStatus is the registry's health classification for a provider
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
)

// ProviderMetrics is the mutable per-provider call record
type ProviderMetrics struct {
	ProviderID      string       `json:"provider_id"`
	Requests        int64        `json:"requests"`
	Successes       int64        `json:"successes"`
	Errors          int64        `json:"errors"`
	AvgResponseMs   float64      `json:"avg_response_ms"`
	RateLimitHits   int64        `json:"rate_limit_hits"`
	LastError       string       `json:"last_error,omitempty"`
	Status          HealthStatus `json:"status"`
	UptimePercent   float64      `json:"uptime_percent"`
	LastHealthCheck time.Time    `json:"last_health_check,omitempty"`
}

// ResponseMetadata describes one provider call
type ResponseMetadata struct {
	RequestID  string        `json:"request_id"`
	Timestamp  time.Time     `json:"timestamp"`
	DurationMs int64         `json:"duration_ms"`
	Cached     bool          `json:"cached"`
	TTL        time.Duration `json:"ttl,omitempty"`
}

// ProviderResponse is the result of one provider call. A failed call is
// data (Success=false plus Error), not a Go error; orchestration decides
// what to do with it.
type ProviderResponse struct {
	ProviderID string           `json:"provider_id"`
	Success    bool             `json:"success"`
	Data       *IntelData       `json:"data,omitempty"`
	Error      string           `json:"error,omitempty"`
	Metadata   ResponseMetadata `json:"metadata"`
}

// Credentials holds a provider's resolved API credentials. Consumed at
// call time, never persisted.
type Credentials struct {
	APIKey string `json:"api_key"`
}
