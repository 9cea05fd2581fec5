package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/spectorhq/spector/internal/models"
)

// Config represents the application configuration
type Config struct {
	Server     ServerConfig            `yaml:"server"`
	LogLevel   string                  `yaml:"log_level,omitempty"`
	Providers  []models.ProviderConfig `yaml:"providers"`
	Cache      CacheConfig             `yaml:"cache"`
	History    HistoryConfig           `yaml:"history"`
	Schedules  []models.RefreshJob     `yaml:"schedules,omitempty"`
	CORSOrigin string                  `yaml:"cors_origin,omitempty"`
}

// ServerConfig represents the HTTP server configuration
type ServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
}

// CacheConfig represents result cache tuning
type CacheConfig struct {
	MaxEntries    int           `yaml:"max_entries"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// HistoryConfig represents the report history store configuration
type HistoryConfig struct {
	Provider string            `yaml:"provider"` // sqlite, mongodb
	URI      string            `yaml:"uri"`
	Database string            `yaml:"database,omitempty"`
	Options  map[string]string `yaml:"options,omitempty"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: "8989",
		},
		LogLevel: "info",
		Cache: CacheConfig{
			MaxEntries:    1000,
			SweepInterval: time.Minute,
		},
		History: HistoryConfig{
			Provider: "sqlite",
			URI:      "spector.db",
			Database: "spector",
		},
		Providers: DefaultProviders(),
	}
}

// DefaultProviders returns the built-in provider catalog used when the
// config file does not declare its own
func DefaultProviders() []models.ProviderConfig {
	providers := []struct {
		id    string
		name  string
		types []models.ProviderType
	}{
		{"semrush", "SEMrush", []models.ProviderType{models.ProviderSEO, models.ProviderSERP}},
		{"similarweb", "SimilarWeb", []models.ProviderType{models.ProviderTraffic}},
		{"priceapi", "PriceAPI", []models.ProviderType{models.ProviderPricing}},
		{"serpapi", "SerpAPI", []models.ProviderType{models.ProviderSERP}},
		{"brandwatch", "Brandwatch", []models.ProviderType{models.ProviderSocial}},
		{"trustpilot", "Trustpilot", []models.ProviderType{models.ProviderReviews}},
	}

	configs := make([]models.ProviderConfig, 0, len(providers))
	for _, p := range providers {
		configs = append(configs, models.ProviderConfig{
			ID:    p.id,
			Name:  p.name,
			Types: p.types,
			RateLimit: models.RateLimit{
				RequestsPerMinute: 10,
				RequestsPerHour:   100,
				RequestsPerDay:    1000,
			},
			Retry: models.RetryPolicy{
				MaxRetries:  2,
				Backoff:     time.Second,
				Exponential: true,
			},
			HealthCheck: models.HealthCheck{
				Endpoint: "/health",
				Interval: time.Minute,
			},
		})
	}
	return configs
}

// Load loads configuration from file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if len(config.Providers) == 0 {
		config.Providers = DefaultProviders()
	}

	return &config, nil
}

// Save saves configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetConfigPath returns the default config file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".spector/config.yaml"
	}
	return filepath.Join(home, ".spector", "config.yaml")
}

// Exists checks if config file exists
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
