// Package scheduler re-executes saved intelligence queries on cron
// schedules so their cached results and report history stay warm. Jobs are
// declared in the config file; this is not a durable task queue.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/spectorhq/spector/internal/cache"
	"github.com/spectorhq/spector/internal/history"
	"github.com/spectorhq/spector/internal/logger"
	"github.com/spectorhq/spector/internal/models"
	"github.com/spectorhq/spector/internal/planner"
)

// Scheduler manages scheduled query refreshes
type Scheduler struct {
	planner *planner.Planner
	cache   *cache.Cache
	store   history.Store
	jobs    []models.RefreshJob
	cron    *cron.Cron
	running bool
	mu      sync.RWMutex
}

// New creates a new scheduler. store may be nil when history is disabled.
func New(p *planner.Planner, resultCache *cache.Cache, store history.Store, jobs []models.RefreshJob) *Scheduler {
	return &Scheduler{
		planner: p,
		cache:   resultCache,
		store:   store,
		jobs:    jobs,
		cron:    cron.New(),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	for _, job := range s.jobs {
		if !job.Enabled {
			continue
		}
		if err := s.registerJob(job); err != nil {
			logger.Error("Failed to register refresh job %s: %v", job.ID, err)
		}
	}

	s.cron.Start()
	s.running = true

	logger.Info("Scheduler started with %d jobs", len(s.jobs))
	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.cron.Stop()
	s.running = false

	logger.Info("Scheduler stopped")
}

// registerJob registers one refresh job with cron
func (s *Scheduler) registerJob(job models.RefreshJob) error {
	_, err := s.cron.AddFunc(job.CronExpr, func() {
		if err := s.ExecuteJob(context.Background(), job); err != nil {
			logger.Error("Failed to execute refresh job %s: %v", job.ID, err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	logger.Info("Registered refresh job %s with cron expression: %s", job.ID, job.CronExpr)
	return nil
}

// ExecuteJob runs one refresh job immediately. The cache entries for the
// job's target are invalidated first so the refresh reaches providers
// instead of short-circuiting on its own previous result.
func (s *Scheduler) ExecuteJob(ctx context.Context, job models.RefreshJob) error {
	logger.Info("Refreshing %s intelligence for %s", job.Request.Type, job.Request.Target)

	s.cache.Invalidate(job.Request.Target, job.Request.Type)

	plan, err := s.planner.CreatePlan(&job.Request)
	if err != nil {
		return fmt.Errorf("failed to plan refresh: %w", err)
	}

	start := time.Now()
	result, err := s.planner.Execute(ctx, plan, nil)
	if err != nil {
		return fmt.Errorf("failed to execute refresh: %w", err)
	}

	if s.store != nil {
		report := history.NewReport(uuid.New().String(), plan, result, time.Since(start))
		if err := s.store.SaveReport(ctx, report); err != nil {
			logger.Error("Failed to save refresh report for %s: %v", job.Request.Target, err)
		}
	}

	logger.Info("Refresh job %s completed (completeness %.2f)", job.ID, result.Metadata.Completeness)
	return nil
}
