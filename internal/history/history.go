// Package history persists completed intelligence reports so callers can
// revisit past results. The orchestration layer itself stays stateless;
// history is a write-behind convenience for the presentation layer.
package history

import (
	"context"
	"time"

	"github.com/spectorhq/spector/internal/models"
)

// Config holds history store configuration
type Config struct {
	Provider string            // sqlite, mongodb
	URI      string            // connection URI or file path
	Database string            // database name
	Options  map[string]string // provider-specific options
}

// ReportFilter provides filtering options for listing reports
type ReportFilter struct {
	Type      models.RequestType
	Target    string
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
	Offset    int
}

// NewReport builds the persisted record for one completed query
func NewReport(id string, plan *models.QueryPlan, result *models.NormalizedResult, duration time.Duration) *models.Report {
	return &models.Report{
		ID:           id,
		RequestID:    plan.RequestID,
		Type:         plan.Request.Type,
		Target:       plan.Request.Target,
		Providers:    plan.ProviderIDs,
		Completeness: result.Metadata.Completeness,
		Result:       result,
		DurationMs:   duration.Milliseconds(),
		CreatedAt:    time.Now(),
	}
}

// Store defines the interface for report persistence backends
type Store interface {
	// Connection management
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Ping(ctx context.Context) error

	// Report operations
	SaveReport(ctx context.Context, report *models.Report) error
	GetReport(ctx context.Context, id string) (*models.Report, error)
	ListReports(ctx context.Context, filter ReportFilter) ([]*models.Report, error)
	DeleteReport(ctx context.Context, id string) error
	CountReports(ctx context.Context) (int64, error)
}
