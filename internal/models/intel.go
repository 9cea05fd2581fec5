package models

import (
	"time"
)

// Intelligence payload sections. Pointer fields distinguish "provider did
// not supply this" from a genuine zero; a section pointer being non-nil is
// the category-membership test the normalizer relies on.

// KeywordRank is one ranked keyword reported by an SEO provider
type KeywordRank struct {
	Keyword    string  `json:"keyword"`
	Position   int     `json:"position"`
	Volume     int     `json:"volume,omitempty"`
	Difficulty float64 `json:"difficulty,omitempty"`
}

// SEOData holds domain-authority style metrics
type SEOData struct {
	DomainAuthority *int          `json:"domain_authority,omitempty"`
	Backlinks       *int64        `json:"backlinks,omitempty"`
	OrganicKeywords *int64        `json:"organic_keywords,omitempty"`
	TopKeywords     []KeywordRank `json:"top_keywords,omitempty"`
}

// TrafficData holds site traffic estimates
type TrafficData struct {
	MonthlyVisits      *int64             `json:"monthly_visits,omitempty"`
	BounceRate         *float64           `json:"bounce_rate,omitempty"`
	AvgSessionDuration *float64           `json:"avg_session_duration,omitempty"`
	TrafficSources     map[string]float64 `json:"traffic_sources,omitempty"`
}

// Product is one priced item reported by a pricing provider
type Product struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency,omitempty"`
	URL      string  `json:"url,omitempty"`
	InStock  bool    `json:"in_stock,omitempty"`
}

// PriceRange summarizes a merged product price list
type PriceRange struct {
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Avg      float64 `json:"avg"`
	Currency string  `json:"currency,omitempty"`
}

// PricingData holds competitor pricing observations
type PricingData struct {
	Products   []Product   `json:"products,omitempty"`
	PriceRange *PriceRange `json:"price_range,omitempty"`
}

// SERPData holds search-result placement for the target
type SERPData struct {
	Position *int     `json:"position,omitempty"`
	URL      string   `json:"url,omitempty"`
	Title    string   `json:"title,omitempty"`
	Snippet  string   `json:"snippet,omitempty"`
	Features []string `json:"features,omitempty"`
}

// PlatformStats is one social platform's footprint
type PlatformStats struct {
	Followers  int64   `json:"followers"`
	Engagement float64 `json:"engagement,omitempty"`
}

// SocialData holds social presence metrics
type SocialData struct {
	Platforms map[string]PlatformStats `json:"platforms,omitempty"`
	Mentions  *int64                   `json:"mentions,omitempty"`
	Sentiment string                   `json:"sentiment,omitempty"`
}

// ReviewPlatform is one review site's aggregate for the target
type ReviewPlatform struct {
	Rating float64 `json:"rating"`
	Count  int64   `json:"count"`
}

// ReviewsData holds review aggregates
type ReviewsData struct {
	AverageRating *float64                  `json:"average_rating,omitempty"`
	TotalReviews  *int64                    `json:"total_reviews,omitempty"`
	Platforms     map[string]ReviewPlatform `json:"platforms,omitempty"`
}

// IntelData is the section bundle shared by raw provider payloads and the
// merged result. A section is present only if some provider supplied it.
type IntelData struct {
	SEO     *SEOData     `json:"seo,omitempty"`
	Traffic *TrafficData `json:"traffic,omitempty"`
	Pricing *PricingData `json:"pricing,omitempty"`
	SERP    *SERPData    `json:"serp,omitempty"`
	Social  *SocialData  `json:"social,omitempty"`
	Reviews *ReviewsData `json:"reviews,omitempty"`
}

// Empty reports whether no section is populated
func (d *IntelData) Empty() bool {
	if d == nil {
		return true
	}
	return d.SEO == nil && d.Traffic == nil && d.Pricing == nil &&
		d.SERP == nil && d.Social == nil && d.Reviews == nil
}

// Freshness describes how a result was produced
type Freshness string

const (
	FreshnessFresh  Freshness = "fresh"
	FreshnessCached Freshness = "cached"
	FreshnessStale  Freshness = "stale"
)

// ResultMetadata describes how a normalized result was assembled
type ResultMetadata struct {
	Providers    []string  `json:"providers"`
	Timestamp    time.Time `json:"timestamp"`
	Freshness    Freshness `json:"freshness"`
	Completeness float64   `json:"completeness"`
}

// NormalizedResult is the unified answer assembled from all provider
// responses for one request
type NormalizedResult struct {
	Type     RequestType    `json:"type"`
	Target   string         `json:"target"`
	Data     IntelData      `json:"data"`
	Metadata ResultMetadata `json:"metadata"`
}
