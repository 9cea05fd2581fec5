package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spectorhq/spector/internal/models"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "8989", cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.History.Provider)
	assert.Equal(t, 1000, cfg.Cache.MaxEntries)
	require.NotEmpty(t, cfg.Providers)

	// Every catalog provider carries a complete budget and retry policy
	for _, p := range cfg.Providers {
		assert.NotEmpty(t, p.ID)
		assert.NotEmpty(t, p.Types)
		assert.Greater(t, p.RateLimit.RequestsPerMinute, 0)
		assert.Greater(t, p.RateLimit.RequestsPerHour, 0)
		assert.Greater(t, p.RateLimit.RequestsPerDay, 0)
		assert.Greater(t, p.Retry.MaxRetries, 0)
		assert.Greater(t, p.Retry.Backoff, time.Duration(0))
		assert.Greater(t, p.HealthCheck.Interval, time.Duration(0))
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.LogLevel = "debug"
	cfg.History.URI = "custom.db"
	cfg.Schedules = []models.RefreshJob{
		{
			ID:       "warm-example",
			Name:     "Warm example.com",
			CronExpr: "*/15 * * * *",
			Enabled:  true,
			Request: models.IntelRequest{
				Type:      models.RequestCompetitorAnalysis,
				Target:    "example.com",
				Providers: []models.ProviderType{models.ProviderSEO},
			},
		},
	}

	require.NoError(t, cfg.Save(path))
	assert.True(t, Exists(path))

	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", loaded.LogLevel)
	assert.Equal(t, "custom.db", loaded.History.URI)
	assert.Len(t, loaded.Providers, len(cfg.Providers))
	require.Len(t, loaded.Schedules, 1)
	assert.Equal(t, "warm-example", loaded.Schedules[0].ID)
	assert.Equal(t, models.RequestCompetitorAnalysis, loaded.Schedules[0].Request.Type)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_EmptyProvidersFallsBackToCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  host: 0.0.0.0\n  port: \"9000\"\n"), 0644))

	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9000", loaded.Server.Port)
	assert.Len(t, loaded.Providers, len(DefaultProviders()))
}

func TestExists(t *testing.T) {
	assert.False(t, Exists(filepath.Join(t.TempDir(), "nope.yaml")))
}
