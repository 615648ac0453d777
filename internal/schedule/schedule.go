// Package schedule runs the periodic check cycle on a gocron scheduler.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Config controls the check schedule.
type Config struct {
	Cron           string // standard 5-field cron or @every descriptor
	RunImmediately bool   // fire once as soon as the scheduler starts
}

// DefaultConfig returns sensible production defaults: once a minute.
func DefaultConfig() Config {
	return Config{
		Cron:           "* * * * *",
		RunImmediately: true,
	}
}

// Task is one scheduled unit of work.
type Task func(ctx context.Context)

// Scheduler wraps a gocron scheduler running a single check job.
type Scheduler struct {
	scheduler gocron.Scheduler
	job       gocron.Job
	logger    *slog.Logger
}

// New creates a scheduler that runs task on cfg.Cron. A run still in
// progress when the next one is due causes that tick to be skipped.
func New(ctx context.Context, cfg Config, task Task, logger *slog.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	opts := []gocron.JobOption{
		gocron.WithName("bili-live-check"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	}
	if cfg.RunImmediately {
		opts = append(opts, gocron.WithStartAt(gocron.WithStartImmediately()))
	}

	job, err := s.NewJob(
		gocron.CronJob(cfg.Cron, false),
		gocron.NewTask(func() { runLoop(ctx, "check", task, logger) }),
		opts...,
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("failed to create check job %q: %w", cfg.Cron, err)
	}

	return &Scheduler{scheduler: s, job: job, logger: logger}, nil
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	s.scheduler.Start()
	next, _ := s.job.NextRun()
	s.logger.Info("Check scheduler started", "job", s.job.Name(), "next_run", next)
}

// Stop waits for a running check to finish and shuts the scheduler down.
func (s *Scheduler) Stop() error {
	s.logger.Info("Stopping check scheduler")
	return s.scheduler.Shutdown()
}

// NextRun reports when the check will fire next.
func (s *Scheduler) NextRun() (time.Time, error) {
	return s.job.NextRun()
}

func runLoop(ctx context.Context, name string, task Task, logger *slog.Logger) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	task(ctx)
	logger.Debug("Scheduled task finished", "task", name, "duration", time.Since(start).Round(time.Millisecond))
}
