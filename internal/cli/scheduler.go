package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Manage scheduled refresh jobs",
	Long:  `Manage the Spector scheduler - run configured refresh jobs on their cron schedules.`,
}

var schedulerStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the scheduler",
	RunE:  runSchedulerStart,
}

func init() {
	schedulerCmd.AddCommand(schedulerStartCmd)
}

func runSchedulerStart(cmd *cobra.Command, args []string) error {
	fmt.Printf("%s🚀 Start Scheduler%s\n", HeaderStyle, Reset)
	fmt.Printf("%s================%s\n", DimStyle, Reset)
	fmt.Println()

	enabled := 0
	for _, job := range cfg.Schedules {
		if job.Enabled {
			enabled++
		}
	}

	if enabled == 0 {
		fmt.Printf("%s❌ No enabled refresh jobs found%s\n", ErrorStyle, Reset)
		fmt.Printf("%s💡 Add entries under 'schedules' in %s%s\n", InfoStyle, cfgFile, Reset)
		return nil
	}

	fmt.Printf("%sStarting Refresh Jobs:%s\n", LabelStyle, Reset)
	i := 0
	for _, job := range cfg.Schedules {
		if !job.Enabled {
			continue
		}
		i++
		fmt.Printf("  %s%d. %s%s\n", CountStyle, i, Reset, FormatValue(job.Name))
		fmt.Printf("     %sID: %s | Cron: %s | Target: %s%s\n", DimStyle, job.ID, job.CronExpr, job.Request.Target, Reset)
	}
	fmt.Println()

	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	fmt.Printf("%s✅ All refresh jobs started successfully%s\n", SuccessStyle, Reset)
	fmt.Printf("%s📅 Running %s job(s)%s\n", InfoStyle, FormatCount(enabled), Reset)
	fmt.Printf("%s📝 Press Ctrl+C to stop the scheduler%s\n", InfoStyle, Reset)
	fmt.Println()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	<-c
	fmt.Printf("\n%s⏹️  Stopping scheduler...%s\n", InfoStyle, Reset)
	sched.Stop()
	fmt.Printf("%s✅ Scheduler stopped%s\n", SuccessStyle, Reset)

	return nil
}
