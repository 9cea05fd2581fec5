package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/spectorhq/spector/internal/history"
	"github.com/spectorhq/spector/internal/logger"
	"github.com/spectorhq/spector/internal/models"
	"github.com/spectorhq/spector/internal/planner"
)

// Intelligence query endpoints

// submitQuery handles POST /api/v1/intelligence. The response is a stream
// of SSE events when the caller negotiates text/event-stream, otherwise a
// single JSON document carrying the same chunks.
func (s *Server) submitQuery(c *gin.Context) {
	var req models.IntelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.errorResponse(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	if len(req.Providers) == 0 {
		s.errorResponse(c, http.StatusBadRequest, "At least one provider type is required")
		return
	}

	plan, err := s.planner.CreatePlan(&req)
	if err != nil {
		if errors.Is(err, planner.ErrNoProviders) {
			s.errorResponse(c, http.StatusServiceUnavailable, "No healthy providers available for this request")
			return
		}
		s.errorResponse(c, http.StatusBadRequest, "Failed to plan request: "+err.Error())
		return
	}

	if strings.Contains(c.GetHeader("Accept"), "text/event-stream") {
		s.streamQuery(c, plan)
		return
	}

	start := time.Now()
	var chunks []models.StreamChunk
	result, err := s.planner.Execute(c.Request.Context(), plan, func(chunk models.StreamChunk) {
		chunks = append(chunks, chunk)
	})
	if err != nil {
		if errors.Is(err, planner.ErrCacheOnlyMiss) {
			s.errorResponse(c, http.StatusNotFound, "No cached result available")
			return
		}
		s.errorResponse(c, http.StatusInternalServerError, "Query failed: "+err.Error())
		return
	}

	s.saveReport(c, plan, result, time.Since(start))

	s.successResponse(c, models.QueryResult{
		RequestID: plan.RequestID,
		Result:    result,
		Chunks:    chunks,
		Metadata: models.QueryMetadata{
			CompletedAt:       time.Now(),
			ProvidersUsed:     plan.ProviderIDs,
			EstimatedDuration: plan.EstimatedDuration,
		},
	})
}

// streamQuery executes a plan while relaying every chunk as one SSE event
func (s *Server) streamQuery(c *gin.Context, plan *models.QueryPlan) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		s.errorResponse(c, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	events := make(chan models.StreamChunk, 64)
	done := make(chan struct{})

	start := time.Now()
	go func() {
		defer close(events)
		result, err := s.planner.Execute(c.Request.Context(), plan, func(chunk models.StreamChunk) {
			select {
			case events <- chunk:
			case <-done:
			}
		})
		if err == nil {
			s.saveReport(c, plan, result, time.Since(start))
		}
	}()
	defer close(done)

	for chunk := range events {
		data, err := json.Marshal(chunk)
		if err != nil {
			logger.Error("Failed to marshal stream chunk: %v", err)
			continue
		}
		fmt.Fprintf(c.Writer, "data: %s\n\n", data)
		flusher.Flush()
	}

	fmt.Fprintf(c.Writer, "data: [DONE]\n\n")
	flusher.Flush()
}

// cancelQuery handles DELETE /api/v1/intelligence/:requestId
func (s *Server) cancelQuery(c *gin.Context) {
	requestID := c.Param("requestId")

	if !s.planner.Cancel(requestID) {
		s.errorResponse(c, http.StatusNotFound, "No in-flight request with id "+requestID)
		return
	}

	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Message: "Request cancelled",
	})
}

// saveReport persists a completed result when history is enabled. Cached
// results are not re-persisted; the original execution already was.
func (s *Server) saveReport(c *gin.Context, plan *models.QueryPlan, result *models.NormalizedResult, duration time.Duration) {
	if s.store == nil || result == nil || result.Metadata.Freshness != models.FreshnessFresh {
		return
	}

	report := history.NewReport(uuid.New().String(), plan, result, duration)
	if err := s.store.SaveReport(c.Request.Context(), report); err != nil {
		logger.Error("Failed to save report for %s: %v", plan.Request.Target, err)
	}
}
