package jobs

import (
	"context"
	"time"

	"log/slog"

	"github.com/taskdeck/taskdeck/internal/mail"
	"github.com/taskdeck/taskdeck/internal/repository"
)

// Digest emails each opted-in user their tasks due in the next 24 hours.
type Digest struct {
	users  repository.UserRepository
	tasks  repository.TaskRepository
	outbox mail.Outbox
	logger *slog.Logger
}

// NewDigest constructs the digest job.
func NewDigest(users repository.UserRepository, tasks repository.TaskRepository, outbox mail.Outbox, logger *slog.Logger) *Digest {
	return &Digest{users: users, tasks: tasks, outbox: outbox, logger: logger}
}

// Name implements Job.
func (d *Digest) Name() string { return "digest" }

// Run enqueues one digest mail per user with upcoming tasks. A failure for
// one user does not stop the rest.
func (d *Digest) Run(ctx context.Context) error {
	users, err := d.users.ListDigestUsers(ctx)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	sent := 0
	for _, user := range users {
		due, err := d.tasks.ListTasksDueBetween(ctx, user.ID, now, now.Add(24*time.Hour))
		if err != nil {
			d.logger.Error("failed to collect due tasks", "user_id", user.ID, "error", err)
			continue
		}
		if len(due) == 0 {
			continue
		}
		name := user.Name
		if name == "" {
			name = user.Email
		}
		msg, err := mail.Digest(user.Email, name, due)
		if err != nil {
			d.logger.Error("failed to render digest", "user_id", user.ID, "error", err)
			continue
		}
		if err := d.outbox.Enqueue(ctx, msg); err != nil {
			d.logger.Error("failed to enqueue digest", "user_id", user.ID, "error", err)
			continue
		}
		sent++
	}
	d.logger.Info("digest pass complete", "users", len(users), "digests", sent)
	return nil
}
