package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/spectorhq/spector/internal/cache"
	"github.com/spectorhq/spector/internal/config"
	"github.com/spectorhq/spector/internal/history"
	"github.com/spectorhq/spector/internal/history/mongodb"
	"github.com/spectorhq/spector/internal/history/sqlite"
	"github.com/spectorhq/spector/internal/logger"
	"github.com/spectorhq/spector/internal/planner"
	"github.com/spectorhq/spector/internal/provider"
	"github.com/spectorhq/spector/internal/provider/simulated"
	"github.com/spectorhq/spector/internal/ratelimit"
	"github.com/spectorhq/spector/internal/scheduler"
)

var (
	cfgFile     string
	cfg         *config.Config
	registry    *provider.Registry
	limiter     *ratelimit.Limiter
	resultCache *cache.Cache
	pl          *planner.Planner
	store       history.Store
	sched       *scheduler.Scheduler
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "spector",
	Short: "Competitive intelligence query orchestrator",
	Long: `Spector queries SEO, traffic, pricing, SERP, social and review providers
concurrently and merges their answers into one normalized intelligence report.

Providers are health-tracked and rate-limited per request budget, results are
cached with per-type TTLs, and completed reports can be persisted for later
comparison.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip init for the init command itself
		if cmd.Name() == "init" {
			return nil
		}

		// Load configuration
		if cfgFile == "" {
			cfgFile = config.GetConfigPath()
		}

		if !config.Exists(cfgFile) {
			return fmt.Errorf("configuration file not found. Run 'spector init' to create one")
		}

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		logger.Init(logger.ParseLogLevel(cfg.LogLevel), os.Stderr)

		// Initialize provider registry and rate limiter
		registry = provider.NewRegistry()
		limiter = ratelimit.NewLimiter()
		for _, pc := range cfg.Providers {
			if err := registry.Register(pc, simulated.New(pc)); err != nil {
				return fmt.Errorf("failed to register provider %s: %w", pc.ID, err)
			}
			limiter.Configure(pc.ID, pc.RateLimit)
		}
		limiter.StartSweeper(time.Minute)

		// Initialize result cache
		resultCache = cache.New(cfg.Cache.MaxEntries)
		if cfg.Cache.SweepInterval > 0 {
			resultCache.StartSweeper(cfg.Cache.SweepInterval)
		}

		pl = planner.New(registry, limiter, resultCache)

		// Initialize report history store
		storeConfig := &history.Config{
			Provider: cfg.History.Provider,
			URI:      cfg.History.URI,
			Database: cfg.History.Database,
			Options:  cfg.History.Options,
		}

		switch storeConfig.Provider {
		case "mongodb":
			store, err = mongodb.New(storeConfig)
		default:
			store, err = sqlite.New(storeConfig)
		}
		if err != nil {
			return fmt.Errorf("failed to create history store: %w", err)
		}

		if err := store.Connect(context.Background()); err != nil {
			return fmt.Errorf("failed to connect to history store: %w", err)
		}

		// Initialize scheduler
		sched = scheduler.New(pl, resultCache, store, cfg.Schedules)

		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if registry != nil {
			registry.Close()
		}
		if limiter != nil {
			limiter.Close()
		}
		if resultCache != nil {
			resultCache.Close()
		}
		if store != nil {
			return store.Disconnect(context.Background())
		}
		return nil
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.spector/config.yaml)")

	// Disable completion command
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	// Add subcommands
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(reportsCmd)
	rootCmd.AddCommand(schedulerCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(apiCmd)
}
