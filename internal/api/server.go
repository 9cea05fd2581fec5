package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/spectorhq/spector/internal/cache"
	"github.com/spectorhq/spector/internal/history"
	"github.com/spectorhq/spector/internal/planner"
	"github.com/spectorhq/spector/internal/provider"
	"github.com/spectorhq/spector/internal/ratelimit"
)

// APIResponse is the standard response envelope
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

// Server is the REST API server for intelligence queries
type Server struct {
	router     *gin.Engine
	registry   *provider.Registry
	limiter    *ratelimit.Limiter
	cache      *cache.Cache
	planner    *planner.Planner
	store      history.Store
	corsOrigin string
}

// NewServer creates a new API server. store may be nil when report history
// is disabled.
func NewServer(registry *provider.Registry, limiter *ratelimit.Limiter, resultCache *cache.Cache, p *planner.Planner, store history.Store, corsOrigin string) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router:     gin.New(),
		registry:   registry,
		limiter:    limiter,
		cache:      resultCache,
		planner:    p,
		store:      store,
		corsOrigin: corsOrigin,
	}

	s.router.Use(gin.Recovery())
	s.router.Use(s.corsMiddleware())
	s.setupRoutes()

	return s
}

// Run starts the HTTP server
func (s *Server) Run(address string) error {
	return s.router.Run(address)
}

// Router exposes the underlying gin engine, for tests
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRoutes registers all API routes
func (s *Server) setupRoutes() {
	v1 := s.router.Group("/api/v1")
	{
		// Intelligence queries
		v1.POST("/intelligence", s.submitQuery)
		v1.DELETE("/intelligence/:requestId", s.cancelQuery)

		// Providers
		v1.GET("/providers", s.listProviders)
		v1.GET("/providers/:id/metrics", s.getProviderMetrics)
		v1.PUT("/providers/:id/credentials", s.updateCredentials)

		// Reports
		v1.GET("/reports", s.listReports)
		v1.GET("/reports/:id", s.getReport)
		v1.DELETE("/reports/:id", s.deleteReport)

		// Cache
		v1.POST("/cache/invalidate", s.invalidateCache)

		// Stats & health
		v1.GET("/stats", s.getStats)
		v1.GET("/health", s.healthCheck)
	}
}

// corsMiddleware applies the configured CORS origin
func (s *Server) corsMiddleware() gin.HandlerFunc {
	origin := s.corsOrigin
	if origin == "" {
		origin = "*"
	}
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// Response helpers

func (s *Server) successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

func (s *Server) errorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, APIResponse{
		Success: false,
		Error:   message,
	})
}

// Health check endpoint

// healthCheck handles GET /api/v1/health
func (s *Server) healthCheck(c *gin.Context) {
	if s.store != nil {
		if err := s.store.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, APIResponse{
				Success: false,
				Error:   "History store connection failed",
			})
			return
		}
	}

	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"status":    "healthy",
			"timestamp": time.Now(),
			"version":   "1.0.0",
		},
	})
}
