// Package worker runs generation jobs triggered by Pub/Sub messages and
// serves the operational HTTP surface.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mister-10k/laps-routes-generator/internal/generator"
	"github.com/mister-10k/laps-routes-generator/internal/telemetry"
)

// RunSummary describes the most recent generation run for the ops surface.
type RunSummary struct {
	City       string    `json:"city"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Routes     int       `json:"routes"`
	Skipped    int       `json:"skipped_thresholds"`
	Error      string    `json:"error,omitempty"`
}

// GenerationJobConfig holds the job's collaborators.
type GenerationJobConfig struct {
	Scheduler *generator.Scheduler
	Metrics   *telemetry.GenerationMetrics
	Logger    zerolog.Logger
}

// GenerationJob runs the scheduler for one city and keeps the last run's
// summary for the ops endpoint.
type GenerationJob struct {
	scheduler *generator.Scheduler
	metrics   *telemetry.GenerationMetrics
	logger    zerolog.Logger

	mu      sync.RWMutex
	lastRun *RunSummary
}

// NewGenerationJob creates a generation job.
func NewGenerationJob(cfg GenerationJobConfig) *GenerationJob {
	return &GenerationJob{
		scheduler: cfg.Scheduler,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}
}

// Run executes one generation pass and records its summary.
func (j *GenerationJob) Run(ctx context.Context, req generator.Request) (*generator.GenerationResult, error) {
	started := time.Now()
	j.logger.Info().Str("city", req.City).Msg("generation job starting")

	result, err := j.scheduler.Run(ctx, req)

	summary := &RunSummary{
		City:       req.City,
		StartedAt:  started,
		FinishedAt: time.Now(),
		Routes:     len(result.Routes),
		Skipped:    len(result.Skipped),
	}
	if err != nil {
		summary.Error = err.Error()
	}

	j.mu.Lock()
	j.lastRun = summary
	j.mu.Unlock()

	if j.metrics != nil {
		j.metrics.RecordRun(ctx, req.City, summary.Routes, summary.Skipped,
			summary.FinishedAt.Sub(summary.StartedAt).Seconds())
	}

	j.logger.Info().
		Str("city", req.City).
		Int("routes", summary.Routes).
		Int("skipped_thresholds", summary.Skipped).
		Dur("duration", summary.FinishedAt.Sub(summary.StartedAt)).
		Err(err).
		Msg("generation job finished")

	return result, err
}

// LastRun returns the most recent run summary, or nil before the first run.
func (j *GenerationJob) LastRun() *RunSummary {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.lastRun == nil {
		return nil
	}
	summary := *j.lastRun
	return &summary
}
