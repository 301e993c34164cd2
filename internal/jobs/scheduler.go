package jobs

import (
	"context"
	"time"

	"log/slog"

	"github.com/robfig/cron/v3"
)

// Job is a named unit of scheduled work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler wraps cron-based job execution with logging. Jobs log failures
// and wait for the next tick; there is no retry.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

// NewScheduler creates a scheduler in the given location.
func NewScheduler(loc *time.Location, logger *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(loc)),
		logger: logger,
	}
}

// Add registers a job under a standard 5-field cron spec.
func (s *Scheduler) Add(spec string, job Job) (cron.EntryID, error) {
	return s.cron.AddFunc(spec, func() {
		start := time.Now()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		s.logger.Info("job started", "job", job.Name())
		if err := job.Run(ctx); err != nil {
			s.logger.Error("job failed", "job", job.Name(), "duration_ms", time.Since(start).Milliseconds(), "error", err)
			return
		}
		s.logger.Info("job finished", "job", job.Name(), "duration_ms", time.Since(start).Milliseconds())
	})
}

// Start begins dispatching jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
