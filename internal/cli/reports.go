package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/spectorhq/spector/internal/history"
	"github.com/spectorhq/spector/internal/models"
)

var (
	reportsLimit  int
	reportsType   string
	reportsTarget string
)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Browse saved intelligence reports",
	Long:  `List, show and delete intelligence reports persisted in the history store.`,
}

var reportsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved reports",
	RunE:  runReportsList,
}

var reportsShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show one report as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runReportsShow,
}

var reportsDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a report",
	Args:  cobra.ExactArgs(1),
	RunE:  runReportsDelete,
}

func init() {
	reportsCmd.AddCommand(reportsListCmd)
	reportsCmd.AddCommand(reportsShowCmd)
	reportsCmd.AddCommand(reportsDeleteCmd)

	reportsListCmd.Flags().IntVarP(&reportsLimit, "limit", "l", 20, "Limit number of results")
	reportsListCmd.Flags().StringVar(&reportsType, "type", "", "Filter by request type")
	reportsListCmd.Flags().StringVar(&reportsTarget, "target", "", "Filter by target")
}

func runReportsList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	filter := history.ReportFilter{
		Type:   models.RequestType(reportsType),
		Target: reportsTarget,
		Limit:  reportsLimit,
	}

	reports, err := store.ListReports(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to list reports: %w", err)
	}

	if len(reports) == 0 {
		fmt.Printf("%sNo reports found. Run 'spector query' first.%s\n", WarningStyle, Reset)
		return nil
	}

	fmt.Printf("%s🗂  Saved Reports%s\n", HeaderStyle, Reset)
	fmt.Printf("%s================%s\n", DimStyle, Reset)
	fmt.Println()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%sID\tTYPE\tTARGET\tCOMPLETENESS\tCREATED%s\n", LabelStyle, Reset)
	fmt.Fprintf(w, "%s──\t────\t──────\t────────────\t───────%s\n", DimStyle, Reset)

	for _, r := range reports {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.0f%%\t%s\n",
			FormatValue(r.ID),
			r.Type,
			r.Target,
			r.Completeness*100,
			r.CreatedAt.Format(time.RFC3339),
		)
	}
	w.Flush()

	fmt.Println()
	fmt.Printf("%sTotal: %s report(s)%s\n", InfoStyle, FormatCount(len(reports)), Reset)
	return nil
}

func runReportsShow(cmd *cobra.Command, args []string) error {
	report, err := store.GetReport(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get report: %w", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	fmt.Println(string(data))
	return nil
}

func runReportsDelete(cmd *cobra.Command, args []string) error {
	if err := store.DeleteReport(context.Background(), args[0]); err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}

	fmt.Printf("%s✅ Report deleted: %s%s\n", SuccessStyle, args[0], Reset)
	return nil
}
