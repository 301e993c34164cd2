package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/taskdeck/taskdeck/internal/domain"
	"github.com/taskdeck/taskdeck/internal/repository"
)

const taskColumns = `id, workspace_id, category_id, parent_id, title, description, priority, due_date, completed, position, deleted_at, created_at, updated_at`

func scanTask(row pgx.Row) (*domain.Task, error) {
	var t domain.Task
	if err := row.Scan(&t.ID, &t.WorkspaceID, &t.CategoryID, &t.ParentID, &t.Title, &t.Description, &t.Priority, &t.DueDate, &t.Completed, &t.Position, &t.DeletedAt, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func collectTasks(rows pgx.Rows) ([]domain.Task, error) {
	defer rows.Close()
	tasks := make([]domain.Task, 0)
	for rows.Next() {
		var t domain.Task
		if err := rows.Scan(&t.ID, &t.WorkspaceID, &t.CategoryID, &t.ParentID, &t.Title, &t.Description, &t.Priority, &t.DueDate, &t.Completed, &t.Position, &t.DeletedAt, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// CreateTask inserts a task at the end of its ordering scope: top-level tasks
// order within their category, subtasks within their parent.
func (r *Repository) CreateTask(ctx context.Context, task *domain.Task) error {
	const query = `INSERT INTO tasks (id, workspace_id, category_id, parent_id, title, description, priority, due_date, completed, position, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9,
			(SELECT COALESCE(MAX(position) + 1, 0) FROM tasks
				WHERE deleted_at IS NULL
				AND (($4::uuid IS NULL AND category_id = $3 AND parent_id IS NULL)
					OR ($4::uuid IS NOT NULL AND parent_id = $4))),
			$10, $11)
		RETURNING position`
	row := r.pool.QueryRow(ctx, query, task.ID, task.WorkspaceID, task.CategoryID, task.ParentID, task.Title, task.Description, task.Priority, task.DueDate, task.Completed, task.CreatedAt, task.UpdatedAt)
	if err := row.Scan(&task.Position); err != nil {
		return mapError(err)
	}
	return nil
}

// GetTaskByID fetches a live task.
func (r *Repository) GetTaskByID(ctx context.Context, id string) (*domain.Task, error) {
	const query = `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1 AND deleted_at IS NULL`
	return scanTask(r.pool.QueryRow(ctx, query, id))
}

// UpdateTask persists editable fields. Ordering fields go through MoveTask.
func (r *Repository) UpdateTask(ctx context.Context, task *domain.Task) error {
	const query = `UPDATE tasks SET title = $2, description = $3, priority = $4, due_date = $5, updated_at = $6
		WHERE id = $1 AND deleted_at IS NULL`
	tag, err := r.pool.Exec(ctx, query, task.ID, task.Title, task.Description, task.Priority, task.DueDate, task.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// SoftDeleteTask marks a task and its subtasks deleted and closes the
// position gap among remaining siblings.
func (r *Repository) SoftDeleteTask(ctx context.Context, id string, deletedAt time.Time) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		task, err := scanTask(tx.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, id))
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE tasks SET deleted_at = $2, updated_at = $2
			WHERE (id = $1 OR parent_id = $1) AND deleted_at IS NULL`, id, deletedAt); err != nil {
			return err
		}
		if task.ParentID == nil {
			_, err = tx.Exec(ctx, `UPDATE tasks SET position = position - 1
				WHERE category_id = $1 AND parent_id IS NULL AND deleted_at IS NULL AND position > $2`,
				task.CategoryID, task.Position)
		} else {
			_, err = tx.Exec(ctx, `UPDATE tasks SET position = position - 1
				WHERE parent_id = $1 AND deleted_at IS NULL AND position > $2`,
				*task.ParentID, task.Position)
		}
		return err
	})
}

// ListTasks returns live tasks of a workspace matching the filter, in board
// order (category, then position, subtasks after their parent's peers).
func (r *Repository) ListTasks(ctx context.Context, workspaceID string, filter domain.TaskFilter) ([]domain.Task, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + taskColumns + ` FROM tasks WHERE workspace_id = $1 AND deleted_at IS NULL`)
	args := []any{workspaceID}

	add := func(clause string, value any) {
		args = append(args, value)
		sb.WriteString(fmt.Sprintf(clause, len(args)))
	}

	if filter.CategoryID != "" {
		add(` AND category_id = $%d`, filter.CategoryID)
	}
	if filter.Completed != nil {
		add(` AND completed = $%d`, *filter.Completed)
	}
	if filter.Priority != "" {
		add(` AND priority = $%d`, filter.Priority)
	}
	if filter.DueBefore != nil {
		add(` AND due_date IS NOT NULL AND due_date <= $%d`, *filter.DueBefore)
	}
	if filter.Search != "" {
		add(` AND (title ILIKE '%%' || $%d || '%%' OR description ILIKE '%%' || $%[1]d || '%%')`, filter.Search)
	}
	sb.WriteString(` ORDER BY category_id, parent_id NULLS FIRST, position, created_at`)
	if filter.Limit > 0 {
		add(` LIMIT $%d`, filter.Limit)
	}
	if filter.Offset > 0 {
		add(` OFFSET $%d`, filter.Offset)
	}

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	return collectTasks(rows)
}

// ListSubtasks returns live children of a task in order.
func (r *Repository) ListSubtasks(ctx context.Context, parentID string) ([]domain.Task, error) {
	const query = `SELECT ` + taskColumns + ` FROM tasks
		WHERE parent_id = $1 AND deleted_at IS NULL ORDER BY position, created_at`
	rows, err := r.pool.Query(ctx, query, parentID)
	if err != nil {
		return nil, err
	}
	return collectTasks(rows)
}

// CountTasksByWorkspace counts live tasks for quota checks.
func (r *Repository) CountTasksByWorkspace(ctx context.Context, workspaceID string) (int, error) {
	const query = `SELECT COUNT(1) FROM tasks WHERE workspace_id = $1 AND deleted_at IS NULL`
	var count int
	if err := r.pool.QueryRow(ctx, query, workspaceID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// MoveTask relocates a top-level task to a category position in a single
// transaction: close the gap in the old category, open a slot in the new one,
// and drag subtasks along. The target category must belong to the task's
// workspace.
func (r *Repository) MoveTask(ctx context.Context, taskID, categoryID string, position int) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		task, err := scanTask(tx.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, taskID))
		if err != nil {
			return err
		}
		if task.ParentID != nil {
			return repository.ErrConflict
		}

		var categoryWorkspace string
		if err := tx.QueryRow(ctx, `SELECT workspace_id FROM categories WHERE id = $1`, categoryID).Scan(&categoryWorkspace); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return repository.ErrNotFound
			}
			return err
		}
		if categoryWorkspace != task.WorkspaceID {
			return repository.ErrConflict
		}

		// Keep positions dense: the target slot may not exceed the live
		// top-level count of the destination column.
		var count int
		if err := tx.QueryRow(ctx, `SELECT COUNT(1) FROM tasks
			WHERE category_id = $1 AND parent_id IS NULL AND deleted_at IS NULL`, categoryID).Scan(&count); err != nil {
			return err
		}
		position = clampPosition(position, count, categoryID != task.CategoryID)

		if categoryID == task.CategoryID {
			if position == task.Position {
				return nil
			}
			if position > task.Position {
				if _, err := tx.Exec(ctx, `UPDATE tasks SET position = position - 1
					WHERE category_id = $1 AND parent_id IS NULL AND deleted_at IS NULL
					AND position > $2 AND position <= $3`, categoryID, task.Position, position); err != nil {
					return err
				}
			} else {
				if _, err := tx.Exec(ctx, `UPDATE tasks SET position = position + 1
					WHERE category_id = $1 AND parent_id IS NULL AND deleted_at IS NULL
					AND position >= $3 AND position < $2`, categoryID, task.Position, position); err != nil {
					return err
				}
			}
		} else {
			if _, err := tx.Exec(ctx, `UPDATE tasks SET position = position - 1
				WHERE category_id = $1 AND parent_id IS NULL AND deleted_at IS NULL
				AND position > $2`, task.CategoryID, task.Position); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `UPDATE tasks SET position = position + 1
				WHERE category_id = $1 AND parent_id IS NULL AND deleted_at IS NULL
				AND position >= $2`, categoryID, position); err != nil {
				return err
			}
		}

		if _, err := tx.Exec(ctx, `UPDATE tasks SET category_id = $2, position = $3, updated_at = now()
			WHERE id = $1`, taskID, categoryID, position); err != nil {
			return err
		}
		// Subtasks inherit the parent's category.
		_, err = tx.Exec(ctx, `UPDATE tasks SET category_id = $2, updated_at = now()
			WHERE parent_id = $1 AND deleted_at IS NULL`, taskID, categoryID)
		return err
	})
}

// SetCompleted flips the completed flag, optionally cascading to subtasks.
func (r *Repository) SetCompleted(ctx context.Context, taskID string, completed bool, cascade bool) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE tasks SET completed = $2, updated_at = now()
			WHERE id = $1 AND deleted_at IS NULL`, taskID, completed)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return repository.ErrNotFound
		}
		if !cascade {
			return nil
		}
		_, err = tx.Exec(ctx, `UPDATE tasks SET completed = $2, updated_at = now()
			WHERE parent_id = $1 AND deleted_at IS NULL`, taskID, completed)
		return err
	})
}

// ListTasksDueBetween returns incomplete tasks due in the window across every
// workspace the user belongs to. Used by the digest job.
func (r *Repository) ListTasksDueBetween(ctx context.Context, userID string, from, to time.Time) ([]domain.Task, error) {
	const query = `SELECT ` + taskColumnsPrefixed + ` FROM tasks t
		INNER JOIN workspace_members m ON m.workspace_id = t.workspace_id
		WHERE m.user_id = $1 AND t.deleted_at IS NULL AND NOT t.completed
		AND t.due_date IS NOT NULL AND t.due_date >= $2 AND t.due_date < $3
		ORDER BY t.due_date`
	rows, err := r.pool.Query(ctx, query, userID, from, to)
	if err != nil {
		return nil, err
	}
	return collectTasks(rows)
}

const taskColumnsPrefixed = `t.id, t.workspace_id, t.category_id, t.parent_id, t.title, t.description, t.priority, t.due_date, t.completed, t.position, t.deleted_at, t.created_at, t.updated_at`

// PurgeDeletedBefore hard-deletes soft-deleted tasks past the retention
// cutoff. Returns the number of rows removed.
func (r *Repository) PurgeDeletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM tasks WHERE deleted_at IS NOT NULL AND deleted_at < $1`
	tag, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
