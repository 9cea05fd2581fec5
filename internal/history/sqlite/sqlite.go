package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/spectorhq/spector/internal/history"
	"github.com/spectorhq/spector/internal/models"
)

// SQLite implements the history Store interface for SQLite
type SQLite struct {
	db     *sql.DB
	config *history.Config
}

// New creates a new SQLite history store
func New(config *history.Config) (*SQLite, error) {
	return &SQLite{
		config: config,
	}, nil
}

// Connect establishes connection to SQLite
func (s *SQLite) Connect(ctx context.Context) error {
	// Expand the URI path (handle ~ and relative paths)
	dbPath := s.config.URI
	if strings.HasPrefix(dbPath, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		dbPath = filepath.Join(home, dbPath[1:])
	} else if !filepath.IsAbs(dbPath) {
		absPath, err := filepath.Abs(dbPath)
		if err != nil {
			return fmt.Errorf("failed to resolve absolute path: %w", err)
		}
		dbPath = absPath
	}

	// Ensure the directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return fmt.Errorf("failed to open SQLite database at path '%s': %w", dbPath, err)
	}

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping SQLite database at path '%s': %w", dbPath, err)
	}

	s.db = db

	if err := s.createTables(ctx); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	// Versioned migrations on top of the bootstrap schema, when configured
	if dir := s.config.Options["migrations_dir"]; dir != "" {
		if err := RunMigrations(ctx, s.db, dir); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return nil
}

// Disconnect closes the SQLite connection
func (s *SQLite) Disconnect(ctx context.Context) error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping checks the database connection
func (s *SQLite) Ping(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("not connected to database")
	}
	return s.db.PingContext(ctx)
}

// createTables creates necessary tables
func (s *SQLite) createTables(ctx context.Context) error {
	createReportsTable := `
	CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		request_id TEXT NOT NULL,
		type TEXT NOT NULL,
		target TEXT NOT NULL,
		providers TEXT NOT NULL,    -- JSON array of provider IDs
		completeness REAL NOT NULL,
		result TEXT NOT NULL,       -- JSON document
		duration_ms INTEGER NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reports_target ON reports(target);
	CREATE INDEX IF NOT EXISTS idx_reports_type ON reports(type);
	CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports(created_at);`

	if _, err := s.db.ExecContext(ctx, createReportsTable); err != nil {
		return fmt.Errorf("failed to create reports table: %w", err)
	}
	return nil
}

// SaveReport stores a completed report
func (s *SQLite) SaveReport(ctx context.Context, report *models.Report) error {
	providers, err := json.Marshal(report.Providers)
	if err != nil {
		return fmt.Errorf("failed to marshal providers: %w", err)
	}
	result, err := json.Marshal(report.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	query := `INSERT INTO reports (id, request_id, type, target, providers, completeness, result, duration_ms, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		report.ID, report.RequestID, string(report.Type), report.Target,
		string(providers), report.Completeness, string(result),
		report.DurationMs, report.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}
	return nil
}

// GetReport retrieves a report by id
func (s *SQLite) GetReport(ctx context.Context, id string) (*models.Report, error) {
	query := `SELECT id, request_id, type, target, providers, completeness, result, duration_ms, created_at
	FROM reports WHERE id = ?`

	row := s.db.QueryRowContext(ctx, query, id)
	report, err := scanReport(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("report not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return report, nil
}

// ListReports retrieves reports matching the filter, newest first
func (s *SQLite) ListReports(ctx context.Context, filter history.ReportFilter) ([]*models.Report, error) {
	query := `SELECT id, request_id, type, target, providers, completeness, result, duration_ms, created_at
	FROM reports WHERE 1=1`
	var args []interface{}

	if filter.Type != "" {
		query += " AND type = ?"
		args = append(args, string(filter.Type))
	}
	if filter.Target != "" {
		query += " AND target = ?"
		args = append(args, filter.Target)
	}
	if filter.StartTime != nil {
		query += " AND created_at >= ?"
		args = append(args, *filter.StartTime)
	}
	if filter.EndTime != nil {
		query += " AND created_at <= ?"
		args = append(args, *filter.EndTime)
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var reports []*models.Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

// DeleteReport removes a report by id
func (s *SQLite) DeleteReport(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM reports WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("report not found: %s", id)
	}
	return nil
}

// CountReports returns the total number of stored reports
func (s *SQLite) CountReports(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM reports").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count reports: %w", err)
	}
	return count, nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanReport
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanReport(row scanner) (*models.Report, error) {
	var report models.Report
	var reqType, providersJSON, resultJSON string
	var createdAt time.Time

	err := row.Scan(&report.ID, &report.RequestID, &reqType, &report.Target,
		&providersJSON, &report.Completeness, &resultJSON,
		&report.DurationMs, &createdAt)
	if err != nil {
		return nil, err
	}

	report.Type = models.RequestType(reqType)
	report.CreatedAt = createdAt

	if err := json.Unmarshal([]byte(providersJSON), &report.Providers); err != nil {
		return nil, fmt.Errorf("failed to unmarshal providers: %w", err)
	}
	if err := json.Unmarshal([]byte(resultJSON), &report.Result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}

	return &report, nil
}
