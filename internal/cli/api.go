package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/spectorhq/spector/internal/api"
)

var (
	apiPort    string
	apiHost    string
	corsOrigin string
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the Spector REST API server",
	Long: `Start the Spector REST API server with:
- Intelligence queries (submit, stream, cancel)
- Provider catalog, health metrics and credentials
- Saved report history (list, get, delete)
- Cache invalidation and runtime stats

Streaming is served over SSE when the client sends Accept: text/event-stream.`,
	RunE: runAPI,
}

func init() {
	apiCmd.Flags().StringVarP(&apiPort, "port", "p", "", "Port to run the API server on (overrides config)")
	apiCmd.Flags().StringVarP(&apiHost, "host", "H", "", "Host to bind the API server to (overrides config)")
	apiCmd.Flags().StringVarP(&corsOrigin, "cors-origin", "c", "", "CORS origin to allow (overrides config file, use '*' for all origins)")
}

func runAPI(cmd *cobra.Command, args []string) error {
	host := apiHost
	if host == "" {
		host = cfg.Server.Host
	}
	port := apiPort
	if port == "" {
		port = cfg.Server.Port
	}

	selectedCORSOrigin := corsOrigin
	if selectedCORSOrigin == "" {
		if cfg.CORSOrigin != "" {
			selectedCORSOrigin = cfg.CORSOrigin
		} else {
			selectedCORSOrigin = "*"
		}
	}

	fmt.Printf("🚀 Starting Spector API Server\n")
	fmt.Printf("==============================\n")
	fmt.Printf("Host: %s\n", host)
	fmt.Printf("Port: %s\n", port)
	fmt.Printf("CORS Origin: %s\n", selectedCORSOrigin)
	fmt.Printf("URL: http://%s:%s/api/v1\n", host, port)
	fmt.Println()

	ctx := context.Background()
	if err := store.Ping(ctx); err != nil {
		return fmt.Errorf("history store ping failed: %w", err)
	}

	fmt.Println("✅ History store connection successful!")

	if len(cfg.Schedules) > 0 {
		if err := sched.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		fmt.Printf("📅 Scheduler running %d refresh job(s)\n", len(cfg.Schedules))
	}

	server := api.NewServer(registry, limiter, resultCache, pl, store, selectedCORSOrigin)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		fmt.Println("\n🛑 Shutting down API server...")
		if sched != nil {
			sched.Stop()
		}
		store.Disconnect(ctx)
		os.Exit(0)
	}()

	fmt.Println("🌐 API Server is running!")
	fmt.Println()
	fmt.Println("📚 Available Endpoints:")
	fmt.Println("  Intelligence:")
	fmt.Println("    POST   /api/v1/intelligence              - Submit a query (SSE with Accept: text/event-stream)")
	fmt.Println("    DELETE /api/v1/intelligence/:requestId   - Cancel an in-flight query")
	fmt.Println()
	fmt.Println("  Providers:")
	fmt.Println("    GET    /api/v1/providers                 - List providers with health")
	fmt.Println("    GET    /api/v1/providers/:id/metrics     - Get provider call metrics")
	fmt.Println("    PUT    /api/v1/providers/:id/credentials - Update provider credentials")
	fmt.Println()
	fmt.Println("  Reports:")
	fmt.Println("    GET    /api/v1/reports                   - List saved reports")
	fmt.Println("    GET    /api/v1/reports/:id               - Get specific report")
	fmt.Println("    DELETE /api/v1/reports/:id               - Delete report")
	fmt.Println()
	fmt.Println("  Cache & Stats:")
	fmt.Println("    POST   /api/v1/cache/invalidate          - Invalidate cached results")
	fmt.Println("    GET    /api/v1/stats                     - Get runtime statistics")
	fmt.Println("    GET    /api/v1/health                    - Health check")
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop the server")

	address := fmt.Sprintf("%s:%s", host, port)
	return server.Run(address)
}
