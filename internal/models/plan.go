package models

import (
	"time"
)

// CacheStrategy decides how a plan interacts with the result cache
type CacheStrategy string

const (
	CachePrefer CacheStrategy = "prefer_cache"
	CacheBypass CacheStrategy = "bypass_cache"
	CacheOnly   CacheStrategy = "cache_only"
)

// Priority tags a plan for downstream consumers
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// QueryPlan is the ephemeral execution plan for one request. It lives only
// for the duration of that request and is owned by the planner.
type QueryPlan struct {
	RequestID         string        `json:"request_id"`
	Request           *IntelRequest `json:"request"`
	ProviderIDs       []string      `json:"provider_ids"`
	EstimatedDuration time.Duration `json:"estimated_duration"`
	CacheStrategy     CacheStrategy `json:"cache_strategy"`
	Parallel          bool          `json:"parallel"`
	Priority          Priority      `json:"priority"`
}

// ChunkType classifies one streamed event
type ChunkType string

const (
	ChunkProgress ChunkType = "progress"
	ChunkResult   ChunkType = "result"
	ChunkComplete ChunkType = "complete"
	ChunkError    ChunkType = "error"
)

// ProgressInfo reports how far along a request is
type ProgressInfo struct {
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
	Message   string `json:"message,omitempty"`
}

// ErrorInfo carries a failure inside a stream
type ErrorInfo struct {
	Message    string `json:"message"`
	Code       string `json:"code"`
	ProviderID string `json:"provider_id,omitempty"`
}

// StreamChunk is one logical update streamed back to the caller while a
// request executes. The terminal chunk is always complete or error.
type StreamChunk struct {
	Type       ChunkType     `json:"type"`
	ProviderID string        `json:"provider_id,omitempty"`
	Data       interface{}   `json:"data,omitempty"`
	Progress   *ProgressInfo `json:"progress,omitempty"`
	Error      *ErrorInfo    `json:"error,omitempty"`
}

// QueryMetadata summarizes a completed non-streaming query
type QueryMetadata struct {
	CompletedAt       time.Time     `json:"completed_at"`
	ProvidersUsed     []string      `json:"providers_used"`
	EstimatedDuration time.Duration `json:"estimated_duration"`
}

// QueryResult bundles everything a non-streaming caller receives
type QueryResult struct {
	RequestID string            `json:"request_id"`
	Result    *NormalizedResult `json:"result"`
	Chunks    []StreamChunk     `json:"chunks"`
	Metadata  QueryMetadata     `json:"metadata"`
}

// Report is one completed intelligence query persisted for later viewing
type Report struct {
	ID           string            `json:"id" bson:"_id"`
	RequestID    string            `json:"request_id" bson:"request_id"`
	Type         RequestType       `json:"type" bson:"type"`
	Target       string            `json:"target" bson:"target"`
	Providers    []string          `json:"providers" bson:"providers"`
	Completeness float64           `json:"completeness" bson:"completeness"`
	Result       *NormalizedResult `json:"result" bson:"result"`
	DurationMs   int64             `json:"duration_ms" bson:"duration_ms"`
	CreatedAt    time.Time         `json:"created_at" bson:"created_at"`
}

// RefreshJob is a saved query re-executed on a cron schedule
type RefreshJob struct {
	ID       string       `json:"id" yaml:"id"`
	Name     string       `json:"name" yaml:"name"`
	CronExpr string       `json:"cron_expr" yaml:"cron_expr"`
	Request  IntelRequest `json:"request" yaml:"request"`
	Enabled  bool         `json:"enabled" yaml:"enabled"`
}
