package postgres

import (
	"context"
	"time"
)

func (r *Repository) countRow(ctx context.Context, query string, args ...any) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// CountUsers counts all registered accounts.
func (r *Repository) CountUsers(ctx context.Context) (int, error) {
	return r.countRow(ctx, `SELECT COUNT(1) FROM users`)
}

// CountWorkspaces counts all workspaces.
func (r *Repository) CountWorkspaces(ctx context.Context) (int, error) {
	return r.countRow(ctx, `SELECT COUNT(1) FROM workspaces`)
}

// CountTasks counts live tasks across all workspaces.
func (r *Repository) CountTasks(ctx context.Context) (int, error) {
	return r.countRow(ctx, `SELECT COUNT(1) FROM tasks WHERE deleted_at IS NULL`)
}

// CountSignupsSince counts accounts created after the given time.
func (r *Repository) CountSignupsSince(ctx context.Context, since time.Time) (int, error) {
	return r.countRow(ctx, `SELECT COUNT(1) FROM users WHERE created_at >= $1`, since)
}
