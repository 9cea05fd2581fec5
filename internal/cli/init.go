package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/spectorhq/spector/internal/config"
	"github.com/spectorhq/spector/internal/history"
	"github.com/spectorhq/spector/internal/history/mongodb"
	"github.com/spectorhq/spector/internal/history/sqlite"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize spector configuration",
	Long:  `Interactive wizard to set up spector configuration including the report history store and the provider catalog.`,
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("🚀 Welcome to Spector - Intelligence Setup")
	fmt.Println("==========================================")
	fmt.Println()

	// Check if config already exists
	configPath := config.GetConfigPath()
	if config.Exists(configPath) {
		fmt.Printf("Configuration file already exists at: %s\n", configPath)
		confirmed, err := promptYesNo(reader, "Do you want to overwrite it? (y/N): ")
		if err != nil {
			return err
		}
		if !confirmed {
			fmt.Println("Setup cancelled.")
			return nil
		}
	}

	cfg := config.DefaultConfig()

	// History store configuration
	fmt.Println("\n📊 History Store Configuration")
	fmt.Println("-------------------------------")

	provider, err := promptOptional(reader, "History provider (sqlite/mongodb) [sqlite]: ", "sqlite")
	if err != nil {
		return err
	}
	cfg.History.Provider = provider

	defaultURI := "spector.db"
	if provider == "mongodb" {
		defaultURI = "mongodb://localhost:27017"
	}

	uri, err := promptOptional(reader, fmt.Sprintf("History URI [%s]: ", defaultURI), defaultURI)
	if err != nil {
		return err
	}
	cfg.History.URI = uri

	if provider == "mongodb" {
		dbName, err := promptOptional(reader, "Database name [spector]: ", "spector")
		if err != nil {
			return err
		}
		cfg.History.Database = dbName
	}

	// Test store connection
	fmt.Println("\n🔌 Testing history store connection...")
	storeConfig := &history.Config{
		Provider: cfg.History.Provider,
		URI:      cfg.History.URI,
		Database: cfg.History.Database,
	}

	var testStore history.Store
	var storeErr error

	switch cfg.History.Provider {
	case "mongodb":
		testStore, storeErr = mongodb.New(storeConfig)
	default:
		testStore, storeErr = sqlite.New(storeConfig)
	}
	if storeErr != nil {
		return fmt.Errorf("failed to create history store: %w", storeErr)
	}

	ctx := context.Background()
	if err := testStore.Connect(ctx); err != nil {
		fmt.Printf("%s⚠️  Could not connect to history store: %v%s\n", WarningStyle, err, Reset)
		confirmed, perr := promptYesNo(reader, "Continue anyway? (y/N): ")
		if perr != nil {
			return perr
		}
		if !confirmed {
			fmt.Println("Setup cancelled.")
			return nil
		}
	} else {
		fmt.Printf("%s✅ History store connection successful%s\n", SuccessStyle, Reset)
		testStore.Disconnect(ctx)
	}

	// Server configuration
	fmt.Println("\n🌐 Server Configuration")
	fmt.Println("------------------------")

	port, err := promptOptional(reader, "API port [8989]: ", "8989")
	if err != nil {
		return err
	}
	cfg.Server.Port = port

	level, err := promptOptional(reader, "Log level (debug/info/warning/error) [info]: ", "info")
	if err != nil {
		return err
	}
	cfg.LogLevel = level

	// Save configuration
	if err := cfg.Save(configPath); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Println()
	fmt.Printf("%s✅ Configuration saved to: %s%s\n", SuccessStyle, configPath, Reset)
	fmt.Printf("%s📦 Registered %s simulated providers%s\n", InfoStyle, FormatCount(len(cfg.Providers)), Reset)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  spector providers list      - inspect the provider catalog")
	fmt.Println("  spector query seo_metrics example.com")
	fmt.Println("  spector api                 - start the REST API server")

	return nil
}
