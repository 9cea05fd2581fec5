package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/spectorhq/spector/internal/models"
)

// Provider request/response structures

type ProviderHealthResponse struct {
	ID      string                `json:"id"`
	Name    string                `json:"name"`
	Types   []models.ProviderType `json:"types"`
	Healthy bool                  `json:"healthy"`
	Status  models.HealthStatus   `json:"status"`
}

type UpdateCredentialsRequest struct {
	APIKey string `json:"api_key" binding:"required"`
}

type StatsResponse struct {
	Providers    []models.ProviderMetrics `json:"providers"`
	CacheEntries int                      `json:"cache_entries"`
	CacheHits    int64                    `json:"cache_hits"`
	CacheMisses  int64                    `json:"cache_misses"`
	TotalReports int64                    `json:"total_reports,omitempty"`
	LastUpdated  time.Time                `json:"last_updated"`
}

// Provider endpoints

// listProviders handles GET /api/v1/providers
func (s *Server) listProviders(c *gin.Context) {
	configs := s.registry.List()

	responses := make([]ProviderHealthResponse, 0, len(configs))
	for _, cfg := range configs {
		status := models.StatusHealthy
		if m, ok := s.registry.Metrics(cfg.ID); ok {
			status = m.Status
		}
		responses = append(responses, ProviderHealthResponse{
			ID:      cfg.ID,
			Name:    cfg.Name,
			Types:   cfg.Types,
			Healthy: status != models.StatusUnhealthy,
			Status:  status,
		})
	}

	s.successResponse(c, responses)
}

// getProviderMetrics handles GET /api/v1/providers/:id/metrics
func (s *Server) getProviderMetrics(c *gin.Context) {
	id := c.Param("id")

	metrics, ok := s.registry.Metrics(id)
	if !ok {
		s.errorResponse(c, http.StatusNotFound, "Provider not found: "+id)
		return
	}

	s.successResponse(c, metrics)
}

// updateCredentials handles PUT /api/v1/providers/:id/credentials. The
// credentials live in memory only and are consumed at call time.
func (s *Server) updateCredentials(c *gin.Context) {
	id := c.Param("id")

	var req UpdateCredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.errorResponse(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	if err := s.registry.SetCredentials(id, models.Credentials{APIKey: req.APIKey}); err != nil {
		s.errorResponse(c, http.StatusNotFound, "Provider not found: "+id)
		return
	}

	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Message: "Credentials updated",
	})
}

// Stats endpoint

// getStats handles GET /api/v1/stats
func (s *Server) getStats(c *gin.Context) {
	cacheStats := s.cache.Stats()

	response := StatsResponse{
		Providers:    s.registry.AllMetrics(),
		CacheEntries: cacheStats.Entries,
		CacheHits:    cacheStats.Hits,
		CacheMisses:  cacheStats.Misses,
		LastUpdated:  time.Now(),
	}

	if s.store != nil {
		total, err := s.store.CountReports(c.Request.Context())
		if err != nil {
			s.errorResponse(c, http.StatusInternalServerError, "Failed to count reports: "+err.Error())
			return
		}
		response.TotalReports = total
	}

	s.successResponse(c, response)
}
