package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/spectorhq/spector/internal/history"
	"github.com/spectorhq/spector/internal/models"
)

// Report endpoints

// listReports handles GET /api/v1/reports
func (s *Server) listReports(c *gin.Context) {
	if s.store == nil {
		s.errorResponse(c, http.StatusNotFound, "Report history is disabled")
		return
	}

	filter := history.ReportFilter{
		Type:   models.RequestType(c.Query("type")),
		Target: c.Query("target"),
	}

	if v := c.Query("start_time"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.errorResponse(c, http.StatusBadRequest, "Invalid start_time: "+err.Error())
			return
		}
		filter.StartTime = &t
	}
	if v := c.Query("end_time"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.errorResponse(c, http.StatusBadRequest, "Invalid end_time: "+err.Error())
			return
		}
		filter.EndTime = &t
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	filter.Limit = limit
	filter.Offset, _ = strconv.Atoi(c.Query("offset"))

	reports, err := s.store.ListReports(c.Request.Context(), filter)
	if err != nil {
		s.errorResponse(c, http.StatusInternalServerError, "Failed to list reports: "+err.Error())
		return
	}

	s.successResponse(c, reports)
}

// getReport handles GET /api/v1/reports/:id
func (s *Server) getReport(c *gin.Context) {
	if s.store == nil {
		s.errorResponse(c, http.StatusNotFound, "Report history is disabled")
		return
	}

	report, err := s.store.GetReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.errorResponse(c, http.StatusNotFound, "Report not found: "+err.Error())
		return
	}

	s.successResponse(c, report)
}

// deleteReport handles DELETE /api/v1/reports/:id
func (s *Server) deleteReport(c *gin.Context) {
	if s.store == nil {
		s.errorResponse(c, http.StatusNotFound, "Report history is disabled")
		return
	}

	if err := s.store.DeleteReport(c.Request.Context(), c.Param("id")); err != nil {
		s.errorResponse(c, http.StatusNotFound, "Report not found: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Message: "Report deleted",
	})
}

// Cache endpoints

type InvalidateCacheRequest struct {
	Target string             `json:"target" binding:"required"`
	Type   models.RequestType `json:"type,omitempty"`
}

// invalidateCache handles POST /api/v1/cache/invalidate. Used when the
// underlying source data is known to have changed.
func (s *Server) invalidateCache(c *gin.Context) {
	var req InvalidateCacheRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.errorResponse(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	removed := s.cache.Invalidate(req.Target, req.Type)

	s.successResponse(c, map[string]interface{}{
		"invalidated": removed,
	})
}
