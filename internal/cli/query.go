package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/spectorhq/spector/internal/history"
	"github.com/spectorhq/spector/internal/models"
)

var (
	queryProviders string
	queryKeywords  string
	queryCountry   string
	queryLanguage  string
	queryRealTime  bool
	queryCacheOnly bool
	queryTimeout   time.Duration
	queryJSON      bool
	queryNoSave    bool
)

var queryCmd = &cobra.Command{
	Use:   "query [type] [target]",
	Short: "Run a one-shot intelligence query",
	Long: `Run a single intelligence query against the configured providers and print
the merged result.

Types: competitor_analysis, keyword_research, market_analysis, pricing_intelligence
Categories for --providers: seo, traffic, pricing, serp, social, reviews`,
	Args: cobra.ExactArgs(2),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVarP(&queryProviders, "providers", "p", "seo,traffic", "Comma-separated data categories to query")
	queryCmd.Flags().StringVarP(&queryKeywords, "keywords", "k", "", "Comma-separated keywords of interest")
	queryCmd.Flags().StringVar(&queryCountry, "country", "", "Country code for localized results")
	queryCmd.Flags().StringVar(&queryLanguage, "language", "", "Language code for localized results")
	queryCmd.Flags().BoolVar(&queryRealTime, "real-time", false, "Bypass the cache and always contact providers")
	queryCmd.Flags().BoolVar(&queryCacheOnly, "cache-only", false, "Serve only from cache, never contact providers")
	queryCmd.Flags().DurationVarP(&queryTimeout, "timeout", "t", 60*time.Second, "Overall query timeout")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "Print the raw normalized result as JSON")
	queryCmd.Flags().BoolVar(&queryNoSave, "no-save", false, "Do not persist the report to history")
}

func runQuery(cmd *cobra.Command, args []string) error {
	req, err := buildRequest(args[0], args[1])
	if err != nil {
		return err
	}

	plan, err := pl.CreatePlan(req)
	if err != nil {
		return fmt.Errorf("failed to create query plan: %w", err)
	}

	if !queryJSON {
		fmt.Printf("%s🔍 Querying %s%s\n", HeaderStyle, req.Target, Reset)
		fmt.Printf("%s==========%s\n", DimStyle, Reset)
		fmt.Printf("%sRequest ID:%s %s\n", LabelStyle, Reset, plan.RequestID)
		fmt.Printf("%sProviders:%s  %s\n", LabelStyle, Reset, strings.Join(plan.ProviderIDs, ", "))
		mode := "sequential"
		if plan.Parallel {
			mode = "parallel"
		}
		fmt.Printf("%sMode:%s       %s (est. %s)\n", LabelStyle, Reset, mode, plan.EstimatedDuration)
		fmt.Println()
	}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	start := time.Now()
	sink := func(chunk models.StreamChunk) {
		if queryJSON {
			return
		}
		printChunk(chunk)
	}

	result, err := pl.Execute(ctx, plan, sink)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	duration := time.Since(start)

	if queryJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		fmt.Println(string(data))
	} else {
		printResult(result, duration)
	}

	if !queryNoSave && store != nil && result.Metadata.Freshness == models.FreshnessFresh {
		report := history.NewReport(plan.RequestID, plan, result, duration)
		if err := store.SaveReport(ctx, report); err != nil {
			fmt.Printf("%s⚠️  Failed to save report: %v%s\n", WarningStyle, err, Reset)
		} else if !queryJSON {
			fmt.Printf("%s💾 Report saved: %s%s\n", MetaStyle, report.ID, Reset)
		}
	}

	return nil
}

func buildRequest(typeArg, target string) (*models.IntelRequest, error) {
	reqType := models.RequestType(typeArg)
	if !models.ValidRequestType(reqType) {
		return nil, fmt.Errorf("unknown request type: %s", typeArg)
	}

	var categories []models.ProviderType
	for _, raw := range strings.Split(queryProviders, ",") {
		cat := models.ProviderType(strings.TrimSpace(raw))
		if cat == "" {
			continue
		}
		if !models.ValidProviderType(cat) {
			return nil, fmt.Errorf("unknown provider category: %s", cat)
		}
		categories = append(categories, cat)
	}
	if len(categories) == 0 {
		return nil, fmt.Errorf("at least one provider category is required")
	}

	var keywords []string
	if queryKeywords != "" {
		for _, kw := range strings.Split(queryKeywords, ",") {
			if kw = strings.TrimSpace(kw); kw != "" {
				keywords = append(keywords, kw)
			}
		}
	}

	return &models.IntelRequest{
		Type:      reqType,
		Target:    target,
		Keywords:  keywords,
		Providers: categories,
		Options: models.RequestOptions{
			RealTime:  queryRealTime,
			CacheOnly: queryCacheOnly,
			Country:   queryCountry,
			Language:  queryLanguage,
		},
	}, nil
}

func printChunk(chunk models.StreamChunk) {
	switch chunk.Type {
	case models.ChunkProgress:
		if chunk.Progress != nil {
			fmt.Printf("%s⏳ [%d/%d] %s%s\n", DimStyle, chunk.Progress.Completed, chunk.Progress.Total, chunk.Progress.Message, Reset)
		}
	case models.ChunkResult:
		if chunk.ProviderID != "" {
			fmt.Printf("%s✅ %s responded%s\n", SuccessStyle, chunk.ProviderID, Reset)
		}
	case models.ChunkError:
		if chunk.Error != nil && chunk.Error.ProviderID != "" {
			fmt.Printf("%s❌ %s: %s%s\n", ErrorStyle, chunk.Error.ProviderID, chunk.Error.Message, Reset)
		}
	}
}

func printResult(result *models.NormalizedResult, duration time.Duration) {
	fmt.Println()
	fmt.Printf("%s📋 Result for %s%s\n", HeaderStyle, result.Target, Reset)
	fmt.Printf("%s=============%s\n", DimStyle, Reset)
	fmt.Printf("%sFreshness:%s    %s\n", LabelStyle, Reset, result.Metadata.Freshness)
	fmt.Printf("%sCompleteness:%s %.0f%%\n", LabelStyle, Reset, result.Metadata.Completeness*100)
	fmt.Printf("%sProviders:%s    %s\n", LabelStyle, Reset, strings.Join(result.Metadata.Providers, ", "))
	fmt.Printf("%sDuration:%s     %s\n", LabelStyle, Reset, duration.Round(time.Millisecond))
	fmt.Println()

	if seo := result.Data.SEO; seo != nil {
		fmt.Printf("%sSEO%s\n", HeaderStyle, Reset)
		if seo.DomainAuthority != nil {
			fmt.Printf("  %sDomain authority:%s %d\n", LabelStyle, Reset, *seo.DomainAuthority)
		}
		if seo.Backlinks != nil {
			fmt.Printf("  %sBacklinks:%s %d\n", LabelStyle, Reset, *seo.Backlinks)
		}
		if seo.OrganicKeywords != nil {
			fmt.Printf("  %sOrganic keywords:%s %d\n", LabelStyle, Reset, *seo.OrganicKeywords)
		}
		for _, kw := range seo.TopKeywords {
			fmt.Printf("  %s#%-3d%s %s\n", CountStyle, kw.Position, Reset, kw.Keyword)
		}
	}

	if traffic := result.Data.Traffic; traffic != nil {
		fmt.Printf("%sTraffic%s\n", HeaderStyle, Reset)
		if traffic.MonthlyVisits != nil {
			fmt.Printf("  %sMonthly visits:%s %d\n", LabelStyle, Reset, *traffic.MonthlyVisits)
		}
		if traffic.BounceRate != nil {
			fmt.Printf("  %sBounce rate:%s %.1f%%\n", LabelStyle, Reset, *traffic.BounceRate*100)
		}
	}

	if pricing := result.Data.Pricing; pricing != nil {
		fmt.Printf("%sPricing%s\n", HeaderStyle, Reset)
		if pr := pricing.PriceRange; pr != nil {
			fmt.Printf("  %sRange:%s %.2f - %.2f (avg %.2f) %s\n", LabelStyle, Reset, pr.Min, pr.Max, pr.Avg, pr.Currency)
		}
		fmt.Printf("  %sProducts:%s %s\n", LabelStyle, Reset, FormatCount(len(pricing.Products)))
	}

	if serp := result.Data.SERP; serp != nil {
		fmt.Printf("%sSERP%s\n", HeaderStyle, Reset)
		if serp.Position != nil {
			fmt.Printf("  %sPosition:%s #%d\n", LabelStyle, Reset, *serp.Position)
		}
		if serp.URL != "" {
			fmt.Printf("  %sURL:%s %s\n", LabelStyle, Reset, serp.URL)
		}
	}

	if social := result.Data.Social; social != nil {
		fmt.Printf("%sSocial%s\n", HeaderStyle, Reset)
		if social.Mentions != nil {
			fmt.Printf("  %sMentions:%s %d\n", LabelStyle, Reset, *social.Mentions)
		}
		for platform, stats := range social.Platforms {
			fmt.Printf("  %s%s:%s %d followers\n", LabelStyle, platform, Reset, stats.Followers)
		}
	}

	if reviews := result.Data.Reviews; reviews != nil {
		fmt.Printf("%sReviews%s\n", HeaderStyle, Reset)
		if reviews.AverageRating != nil {
			fmt.Printf("  %sAverage rating:%s %.1f\n", LabelStyle, Reset, *reviews.AverageRating)
		}
		if reviews.TotalReviews != nil {
			fmt.Printf("  %sTotal reviews:%s %d\n", LabelStyle, Reset, *reviews.TotalReviews)
		}
	}
}
