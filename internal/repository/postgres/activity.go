package postgres

import (
	"context"
	"time"

	"github.com/taskdeck/taskdeck/internal/domain"
)

// InsertActivity appends a feed entry.
func (r *Repository) InsertActivity(ctx context.Context, entry *domain.Activity) error {
	const query = `INSERT INTO activity (id, workspace_id, actor_id, action, entity_type, entity_id, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.pool.Exec(ctx, query, entry.ID, entry.WorkspaceID, entry.ActorID, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

// ListActivityByWorkspace returns the newest entries first.
func (r *Repository) ListActivityByWorkspace(ctx context.Context, workspaceID string, limit, offset int) ([]domain.Activity, error) {
	const query = `SELECT id, workspace_id, actor_id, action, entity_type, entity_id, detail, created_at
		FROM activity WHERE workspace_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, workspaceID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.Activity, 0)
	for rows.Next() {
		var a domain.Activity
		if err := rows.Scan(&a.ID, &a.WorkspaceID, &a.ActorID, &a.Action, &a.EntityType, &a.EntityID, &a.Detail, &a.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, a)
	}
	return entries, rows.Err()
}

// DeleteActivityBefore removes entries older than the retention cutoff.
func (r *Repository) DeleteActivityBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM activity WHERE created_at < $1`
	tag, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
