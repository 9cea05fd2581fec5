package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Inspect the provider catalog",
	Long:  `List registered intelligence providers and view their health and call metrics.`,
}

var providersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered providers",
	RunE:  runProvidersList,
}

var providersStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show provider health and call metrics",
	RunE:  runProvidersStatus,
}

func init() {
	providersCmd.AddCommand(providersListCmd)
	providersCmd.AddCommand(providersStatusCmd)
}

func runProvidersList(cmd *cobra.Command, args []string) error {
	configs := registry.List()

	if len(configs) == 0 {
		fmt.Printf("%sNo providers registered. Check your configuration.%s\n", WarningStyle, Reset)
		return nil
	}

	fmt.Printf("%s📦 Registered Providers%s\n", HeaderStyle, Reset)
	fmt.Printf("%s=======================%s\n", DimStyle, Reset)
	fmt.Println()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%sID\tNAME\tCATEGORIES\tRATE LIMIT (m/h/d)%s\n", LabelStyle, Reset)
	fmt.Fprintf(w, "%s──\t────\t──────────\t──────────────────%s\n", DimStyle, Reset)

	for _, pc := range configs {
		types := make([]string, 0, len(pc.Types))
		for _, t := range pc.Types {
			types = append(types, string(t))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d/%d\n",
			FormatValue(pc.ID),
			pc.Name,
			strings.Join(types, ","),
			pc.RateLimit.RequestsPerMinute,
			pc.RateLimit.RequestsPerHour,
			pc.RateLimit.RequestsPerDay,
		)
	}
	w.Flush()

	fmt.Println()
	fmt.Printf("%sTotal: %s provider(s)%s\n", InfoStyle, FormatCount(len(configs)), Reset)
	return nil
}

func runProvidersStatus(cmd *cobra.Command, args []string) error {
	metrics := registry.AllMetrics()

	if len(metrics) == 0 {
		fmt.Printf("%sNo providers registered. Check your configuration.%s\n", WarningStyle, Reset)
		return nil
	}

	fmt.Printf("%s🩺 Provider Health%s\n", HeaderStyle, Reset)
	fmt.Printf("%s=================%s\n", DimStyle, Reset)
	fmt.Println()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%sID\tSTATUS\tREQUESTS\tERRORS\tAVG MS\tUPTIME\tRATE HITS%s\n", LabelStyle, Reset)
	fmt.Fprintf(w, "%s──\t──────\t────────\t──────\t──────\t──────\t─────────%s\n", DimStyle, Reset)

	for _, m := range metrics {
		status := string(m.Status)
		fmt.Fprintf(w, "%s\t%s%s%s\t%d\t%d\t%.0f\t%.0f%%\t%d\n",
			FormatValue(m.ProviderID),
			StatusStyle(status), status, Reset,
			m.Requests,
			m.Errors,
			m.AvgResponseMs,
			m.UptimePercent,
			m.RateLimitHits,
		)
	}
	w.Flush()

	// Remaining request budget per provider
	fmt.Println()
	fmt.Printf("%sRemaining budget this window:%s\n", LabelStyle, Reset)
	for _, m := range metrics {
		remaining := limiter.GetRemainingRequests(m.ProviderID)
		reset := limiter.GetResetTime(m.ProviderID)
		fmt.Printf("  %s: %s requests (resets %s)\n",
			FormatValue(m.ProviderID),
			FormatCount(remaining),
			FormatDim(reset.Format("15:04:05")),
		)
	}

	return nil
}
