// Package normalize reconciles heterogeneous provider payloads into one
// unified result. The per-field conflict policy (max vs last-write vs
// mean) is a compatibility contract with downstream consumers and must not
// be reinterpreted, even where another policy would arguably be sounder.
package normalize

import (
	"sort"
	"time"

	"github.com/spectorhq/spector/internal/models"
)

// maxMergedKeywords caps the merged topKeywords list
const maxMergedKeywords = 10

// maxMergedProducts caps the merged product list
const maxMergedProducts = 20

// Normalize merges all provider responses for one request into a single
// result. Only successful responses contribute data; failed responses
// still count against completeness.
func Normalize(req *models.IntelRequest, responses []*models.ProviderResponse) *models.NormalizedResult {
	var successful []*models.ProviderResponse
	for _, r := range responses {
		if r.Success && r.Data != nil {
			successful = append(successful, r)
		}
	}

	providers := make([]string, 0, len(successful))
	for _, r := range successful {
		providers = append(providers, r.ProviderID)
	}

	completeness := 0.0
	if len(responses) > 0 {
		completeness = float64(len(successful)) / float64(len(responses))
	}

	return &models.NormalizedResult{
		Type:   req.Type,
		Target: req.Target,
		Data: models.IntelData{
			SEO:     mergeSEO(successful),
			Traffic: mergeTraffic(successful),
			Pricing: mergePricing(successful),
			SERP:    mergeSERP(successful),
			Social:  mergeSocial(successful),
			Reviews: mergeReviews(successful),
		},
		Metadata: models.ResultMetadata{
			Providers:    providers,
			Timestamp:    time.Now(),
			Freshness:    models.FreshnessFresh,
			Completeness: completeness,
		},
	}
}

// mergeSEO takes the maximum of each numeric field across providers
// (providers under-report rather than over-report) and deduplicates the
// keyword lists keeping each keyword's best position.
func mergeSEO(responses []*models.ProviderResponse) *models.SEOData {
	merged := &models.SEOData{}
	contributed := false

	byKeyword := make(map[string]models.KeywordRank)

	for _, r := range responses {
		seo := r.Data.SEO
		if seo == nil {
			continue
		}
		contributed = true

		if seo.DomainAuthority != nil && (merged.DomainAuthority == nil || *seo.DomainAuthority > *merged.DomainAuthority) {
			merged.DomainAuthority = intPtr(*seo.DomainAuthority)
		}
		if seo.Backlinks != nil && (merged.Backlinks == nil || *seo.Backlinks > *merged.Backlinks) {
			merged.Backlinks = int64Ptr(*seo.Backlinks)
		}
		if seo.OrganicKeywords != nil && (merged.OrganicKeywords == nil || *seo.OrganicKeywords > *merged.OrganicKeywords) {
			merged.OrganicKeywords = int64Ptr(*seo.OrganicKeywords)
		}

		for _, kw := range seo.TopKeywords {
			if existing, ok := byKeyword[kw.Keyword]; !ok || kw.Position < existing.Position {
				byKeyword[kw.Keyword] = kw
			}
		}
	}

	if !contributed {
		return nil
	}

	if len(byKeyword) > 0 {
		keywords := make([]models.KeywordRank, 0, len(byKeyword))
		for _, kw := range byKeyword {
			keywords = append(keywords, kw)
		}
		sort.Slice(keywords, func(i, j int) bool {
			return keywords[i].Position < keywords[j].Position
		})
		if len(keywords) > maxMergedKeywords {
			keywords = keywords[:maxMergedKeywords]
		}
		merged.TopKeywords = keywords
	}

	return merged
}

// mergeTraffic takes the maximum of monthly visits and the last value seen
// for rates; traffic sources are overwritten by the last provider that
// supplies them.
func mergeTraffic(responses []*models.ProviderResponse) *models.TrafficData {
	merged := &models.TrafficData{}
	contributed := false

	for _, r := range responses {
		traffic := r.Data.Traffic
		if traffic == nil {
			continue
		}
		contributed = true

		if traffic.MonthlyVisits != nil && (merged.MonthlyVisits == nil || *traffic.MonthlyVisits > *merged.MonthlyVisits) {
			merged.MonthlyVisits = int64Ptr(*traffic.MonthlyVisits)
		}
		if traffic.BounceRate != nil {
			merged.BounceRate = floatPtr(*traffic.BounceRate)
		}
		if traffic.AvgSessionDuration != nil {
			merged.AvgSessionDuration = floatPtr(*traffic.AvgSessionDuration)
		}
		if traffic.TrafficSources != nil {
			merged.TrafficSources = traffic.TrafficSources
		}
	}

	if !contributed {
		return nil
	}
	return merged
}

// mergePricing concatenates all product lists (capped) and recomputes the
// price range from the merged list rather than trusting any provider's own
// range.
func mergePricing(responses []*models.ProviderResponse) *models.PricingData {
	merged := &models.PricingData{}
	contributed := false

	for _, r := range responses {
		pricing := r.Data.Pricing
		if pricing == nil {
			continue
		}
		contributed = true

		for _, p := range pricing.Products {
			if len(merged.Products) >= maxMergedProducts {
				break
			}
			merged.Products = append(merged.Products, p)
		}
	}

	if !contributed {
		return nil
	}

	if len(merged.Products) > 0 {
		merged.PriceRange = computePriceRange(merged.Products)
	}
	return merged
}

// computePriceRange derives min/max/avg from a merged product list
func computePriceRange(products []models.Product) *models.PriceRange {
	pr := &models.PriceRange{Min: products[0].Price, Max: products[0].Price}
	sum := 0.0
	for _, p := range products {
		if p.Price < pr.Min {
			pr.Min = p.Price
		}
		if p.Price > pr.Max {
			pr.Max = p.Price
		}
		sum += p.Price
		if pr.Currency == "" && p.Currency != "" {
			pr.Currency = p.Currency
		}
	}
	pr.Avg = sum / float64(len(products))
	return pr
}

// mergeSERP takes the best (minimum) position found anywhere; every other
// field takes the last non-empty value seen.
func mergeSERP(responses []*models.ProviderResponse) *models.SERPData {
	merged := &models.SERPData{}
	contributed := false

	for _, r := range responses {
		serp := r.Data.SERP
		if serp == nil {
			continue
		}
		contributed = true

		if serp.Position != nil && (merged.Position == nil || *serp.Position < *merged.Position) {
			merged.Position = intPtr(*serp.Position)
		}
		if serp.URL != "" {
			merged.URL = serp.URL
		}
		if serp.Title != "" {
			merged.Title = serp.Title
		}
		if serp.Snippet != "" {
			merged.Snippet = serp.Snippet
		}
		if len(serp.Features) > 0 {
			merged.Features = serp.Features
		}
	}

	if !contributed {
		return nil
	}
	return merged
}

// mergeSocial shallow-merges the platform map (later providers overwrite
// overlapping keys), takes the maximum mention count, and the last
// non-empty sentiment.
func mergeSocial(responses []*models.ProviderResponse) *models.SocialData {
	merged := &models.SocialData{}
	contributed := false

	for _, r := range responses {
		social := r.Data.Social
		if social == nil {
			continue
		}
		contributed = true

		if len(social.Platforms) > 0 {
			if merged.Platforms == nil {
				merged.Platforms = make(map[string]models.PlatformStats)
			}
			for name, stats := range social.Platforms {
				merged.Platforms[name] = stats
			}
		}
		if social.Mentions != nil && (merged.Mentions == nil || *social.Mentions > *merged.Mentions) {
			merged.Mentions = int64Ptr(*social.Mentions)
		}
		if social.Sentiment != "" {
			merged.Sentiment = social.Sentiment
		}
	}

	if !contributed {
		return nil
	}
	return merged
}

// mergeReviews averages provider ratings without weighting by review
// count (the compatibility contract), takes the maximum total, and
// shallow-merges the platform map.
func mergeReviews(responses []*models.ProviderResponse) *models.ReviewsData {
	merged := &models.ReviewsData{}
	contributed := false

	ratingSum := 0.0
	ratingCount := 0

	for _, r := range responses {
		reviews := r.Data.Reviews
		if reviews == nil {
			continue
		}
		contributed = true

		if reviews.AverageRating != nil {
			ratingSum += *reviews.AverageRating
			ratingCount++
		}
		if reviews.TotalReviews != nil && (merged.TotalReviews == nil || *reviews.TotalReviews > *merged.TotalReviews) {
			merged.TotalReviews = int64Ptr(*reviews.TotalReviews)
		}
		if len(reviews.Platforms) > 0 {
			if merged.Platforms == nil {
				merged.Platforms = make(map[string]models.ReviewPlatform)
			}
			for name, platform := range reviews.Platforms {
				merged.Platforms[name] = platform
			}
		}
	}

	if !contributed {
		return nil
	}

	if ratingCount > 0 {
		merged.AverageRating = floatPtr(ratingSum / float64(ratingCount))
	}
	return merged
}

func intPtr(v int) *int           { return &v }
func int64Ptr(v int64) *int64     { return &v }
func floatPtr(v float64) *float64 { return &v }
