// Package simulated provides provider adapters that synthesize plausible
// intelligence payloads instead of calling real provider APIs. They are the
// development and test stand-ins behind the provider.Adapter contract; a
// production deployment swaps in real HTTP adapters per provider.
package simulated

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"time"

	"github.com/spectorhq/spector/internal/models"
)

// Adapter synthesizes responses for every data category its provider
// config declares. Output is deterministic for a given provider/target
// pair so repeated queries agree with each other.
type Adapter struct {
	config  models.ProviderConfig
	latency time.Duration
}

// Option customizes a simulated adapter
type Option func(*Adapter)

// WithLatency makes every Fetch take at least d
func WithLatency(d time.Duration) Option {
	return func(a *Adapter) {
		a.latency = d
	}
}

// New creates a simulated adapter for the given provider config
func New(config models.ProviderConfig, opts ...Option) *Adapter {
	a := &Adapter{config: config}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ID returns the provider id this adapter serves
func (a *Adapter) ID() string {
	return a.config.ID
}

// Probe always succeeds for simulated providers
func (a *Adapter) Probe(ctx context.Context) error {
	return ctx.Err()
}

// Fetch synthesizes one payload section per supported category
func (a *Adapter) Fetch(ctx context.Context, req *models.IntelRequest, creds models.Credentials) (*models.IntelData, error) {
	if a.latency > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(a.latency):
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(seed(a.config.ID, req.Target)))
	data := &models.IntelData{}

	for _, t := range a.config.Types {
		switch t {
		case models.ProviderSEO:
			data.SEO = a.seoData(rng, req)
		case models.ProviderTraffic:
			data.Traffic = a.trafficData(rng)
		case models.ProviderPricing:
			data.Pricing = a.pricingData(rng, req)
		case models.ProviderSERP:
			data.SERP = a.serpData(rng, req)
		case models.ProviderSocial:
			data.Social = a.socialData(rng)
		case models.ProviderReviews:
			data.Reviews = a.reviewsData(rng)
		}
	}

	return data, nil
}

func (a *Adapter) seoData(rng *rand.Rand, req *models.IntelRequest) *models.SEOData {
	da := 20 + rng.Intn(70)
	backlinks := int64(1000 + rng.Intn(500000))
	organic := int64(100 + rng.Intn(50000))

	keywords := req.Keywords
	if len(keywords) == 0 {
		keywords = []string{req.Target + " review", req.Target + " pricing", "best " + req.Target}
	}

	ranks := make([]models.KeywordRank, 0, len(keywords))
	for _, kw := range keywords {
		ranks = append(ranks, models.KeywordRank{
			Keyword:    kw,
			Position:   1 + rng.Intn(50),
			Volume:     100 + rng.Intn(10000),
			Difficulty: rng.Float64() * 100,
		})
	}

	return &models.SEOData{
		DomainAuthority: &da,
		Backlinks:       &backlinks,
		OrganicKeywords: &organic,
		TopKeywords:     ranks,
	}
}

func (a *Adapter) trafficData(rng *rand.Rand) *models.TrafficData {
	visits := int64(10000 + rng.Intn(5000000))
	bounce := 20 + rng.Float64()*60
	session := 30 + rng.Float64()*300

	return &models.TrafficData{
		MonthlyVisits:      &visits,
		BounceRate:         &bounce,
		AvgSessionDuration: &session,
		TrafficSources: map[string]float64{
			"organic":  30 + rng.Float64()*40,
			"direct":   10 + rng.Float64()*30,
			"referral": rng.Float64() * 20,
			"social":   rng.Float64() * 15,
		},
	}
}

func (a *Adapter) pricingData(rng *rand.Rand, req *models.IntelRequest) *models.PricingData {
	count := 3 + rng.Intn(5)
	products := make([]models.Product, 0, count)
	for i := 0; i < count; i++ {
		products = append(products, models.Product{
			Name:     fmt.Sprintf("%s product %d", req.Target, i+1),
			Price:    5 + rng.Float64()*195,
			Currency: "USD",
			URL:      fmt.Sprintf("https://%s/products/%d", req.Target, i+1),
			InStock:  rng.Float64() > 0.2,
		})
	}
	return &models.PricingData{Products: products}
}

func (a *Adapter) serpData(rng *rand.Rand, req *models.IntelRequest) *models.SERPData {
	pos := 1 + rng.Intn(20)
	return &models.SERPData{
		Position: &pos,
		URL:      "https://" + req.Target,
		Title:    req.Target + " - official site",
		Snippet:  "Results for " + req.Target,
		Features: []string{"sitelinks"},
	}
}

func (a *Adapter) socialData(rng *rand.Rand) *models.SocialData {
	mentions := int64(rng.Intn(10000))
	sentiments := []string{"positive", "neutral", "negative"}
	return &models.SocialData{
		Platforms: map[string]models.PlatformStats{
			"twitter":   {Followers: int64(rng.Intn(500000)), Engagement: rng.Float64() * 10},
			"instagram": {Followers: int64(rng.Intn(1000000)), Engagement: rng.Float64() * 15},
		},
		Mentions:  &mentions,
		Sentiment: sentiments[rng.Intn(len(sentiments))],
	}
}

func (a *Adapter) reviewsData(rng *rand.Rand) *models.ReviewsData {
	rating := 2.5 + rng.Float64()*2.5
	total := int64(10 + rng.Intn(20000))
	return &models.ReviewsData{
		AverageRating: &rating,
		TotalReviews:  &total,
		Platforms: map[string]models.ReviewPlatform{
			a.config.ID: {Rating: rating, Count: total},
		},
	}
}

// seed derives a stable rand seed from provider id and target
func seed(providerID, target string) int64 {
	h := fnv.New64a()
	h.Write([]byte(providerID))
	h.Write([]byte{0})
	h.Write([]byte(target))
	return int64(h.Sum64())
}
