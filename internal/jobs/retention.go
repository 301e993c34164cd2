package jobs

import (
	"context"
	"time"

	"log/slog"

	"github.com/taskdeck/taskdeck/internal/repository"
)

// Retention removes expired activity entries and purges soft-deleted tasks.
type Retention struct {
	activity     repository.ActivityRepository
	tasks        repository.TaskRepository
	activityDays int
	taskDays     int
	logger       *slog.Logger
}

// NewRetention constructs the retention job.
func NewRetention(activity repository.ActivityRepository, tasks repository.TaskRepository, activityDays, taskDays int, logger *slog.Logger) *Retention {
	if activityDays <= 0 {
		activityDays = 90
	}
	if taskDays <= 0 {
		taskDays = 30
	}
	return &Retention{activity: activity, tasks: tasks, activityDays: activityDays, taskDays: taskDays, logger: logger}
}

// Name implements Job.
func (r *Retention) Name() string { return "retention" }

// Run executes both retention deletes.
func (r *Retention) Run(ctx context.Context) error {
	now := time.Now().UTC()

	removed, err := r.activity.DeleteActivityBefore(ctx, now.AddDate(0, 0, -r.activityDays))
	if err != nil {
		return err
	}
	r.logger.Info("activity retention applied", "removed", removed, "keep_days", r.activityDays)

	purged, err := r.tasks.PurgeDeletedBefore(ctx, now.AddDate(0, 0, -r.taskDays))
	if err != nil {
		return err
	}
	r.logger.Info("deleted tasks purged", "purged", purged, "keep_days", r.taskDays)
	return nil
}
