// Package jobs runs scheduled background work.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// OverdueMarker flips unpaid invoices past their due date to Overdue.
type OverdueMarker interface {
	MarkOverdue(ctx context.Context, now time.Time) (int, error)
}

// SweepObserver receives the outcome of each sweep.
type SweepObserver interface {
	ObserveSweep(marked int, err error)
}

// Scheduler owns the cron runner for the API process.
type Scheduler struct {
	cron    *cron.Cron
	logger  *slog.Logger
	timeout time.Duration
}

// NewScheduler creates an idle scheduler. Overlapping runs of the same job are skipped.
func NewScheduler(logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cron.DiscardLogger),
			cron.SkipIfStillRunning(cron.DiscardLogger),
		)),
		logger:  logger,
		timeout: time.Minute,
	}
}

// AddOverdueSweep registers the sweep on schedule (any robfig/cron spec, e.g. "@hourly").
func (s *Scheduler) AddOverdueSweep(schedule string, marker OverdueMarker, observer SweepObserver) error {
	job := OverdueSweep{Marker: marker, Observer: observer, Logger: s.logger, Timeout: s.timeout}
	if _, err := s.cron.AddFunc(schedule, func() { job.Run(context.Background()) }); err != nil {
		return fmt.Errorf("schedule overdue sweep %q: %w", schedule, err)
	}
	s.logger.Info("overdue sweep scheduled", "schedule", schedule)
	return nil
}

// Start begins running scheduled jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and waits for running jobs until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out")
	}
}

// OverdueSweep is a single overdue pass.
type OverdueSweep struct {
	Marker   OverdueMarker
	Observer SweepObserver
	Logger   *slog.Logger
	Timeout  time.Duration
	Now      func() time.Time
}

// Run executes one sweep and returns how many invoices were marked.
func (j OverdueSweep) Run(ctx context.Context) int {
	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}
	now := time.Now
	if j.Now != nil {
		now = j.Now
	}

	marked, err := j.Marker.MarkOverdue(ctx, now().UTC())
	if j.Observer != nil {
		j.Observer.ObserveSweep(marked, err)
	}
	if err != nil {
		j.Logger.Error("overdue sweep failed", "marked", marked, "err", err)
		return marked
	}
	if marked > 0 {
		j.Logger.Info("overdue sweep marked invoices", "marked", marked)
	}
	return marked
}
