package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/taskdeck/taskdeck/internal/domain"
	"github.com/taskdeck/taskdeck/internal/repository"
)

const categoryColumns = `id, workspace_id, name, color, position, created_at, updated_at`

// CreateCategory appends a column at the end of the workspace board.
func (r *Repository) CreateCategory(ctx context.Context, category *domain.Category) error {
	const query = `INSERT INTO categories (id, workspace_id, name, color, position, created_at, updated_at)
		VALUES ($1, $2, $3, $4,
			(SELECT COALESCE(MAX(position) + 1, 0) FROM categories WHERE workspace_id = $2),
			$5, $6)
		RETURNING position`
	row := r.pool.QueryRow(ctx, query, category.ID, category.WorkspaceID, category.Name, category.Color, category.CreatedAt, category.UpdatedAt)
	if err := row.Scan(&category.Position); err != nil {
		return mapError(err)
	}
	return nil
}

// GetCategoryByID fetches one category.
func (r *Repository) GetCategoryByID(ctx context.Context, id string) (*domain.Category, error) {
	const query = `SELECT ` + categoryColumns + ` FROM categories WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, id)
	var c domain.Category
	if err := row.Scan(&c.ID, &c.WorkspaceID, &c.Name, &c.Color, &c.Position, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// UpdateCategory persists name and color changes.
func (r *Repository) UpdateCategory(ctx context.Context, category *domain.Category) error {
	const query = `UPDATE categories SET name = $2, color = $3, updated_at = $4 WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, category.ID, category.Name, category.Color, category.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteCategory removes a category and closes the position gap. Tasks in the
// category cascade via the schema.
func (r *Repository) DeleteCategory(ctx context.Context, id string) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var workspaceID string
		var position int
		if err := tx.QueryRow(ctx, `SELECT workspace_id, position FROM categories WHERE id = $1 FOR UPDATE`, id).
			Scan(&workspaceID, &position); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return repository.ErrNotFound
			}
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `UPDATE categories SET position = position - 1
			WHERE workspace_id = $1 AND position > $2`, workspaceID, position)
		return err
	})
}

// ListCategoriesByWorkspace returns columns in board order.
func (r *Repository) ListCategoriesByWorkspace(ctx context.Context, workspaceID string) ([]domain.Category, error) {
	const query = `SELECT ` + categoryColumns + ` FROM categories
		WHERE workspace_id = $1 ORDER BY position, created_at`
	rows, err := r.pool.Query(ctx, query, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := make([]domain.Category, 0)
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.WorkspaceID, &c.Name, &c.Color, &c.Position, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// MoveCategory shifts a category to a new position, sliding siblings over in
// the same transaction.
func (r *Repository) MoveCategory(ctx context.Context, categoryID string, position int) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var workspaceID string
		var current int
		if err := tx.QueryRow(ctx, `SELECT workspace_id, position FROM categories WHERE id = $1 FOR UPDATE`, categoryID).
			Scan(&workspaceID, &current); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return repository.ErrNotFound
			}
			return err
		}
		var count int
		if err := tx.QueryRow(ctx, `SELECT COUNT(1) FROM categories WHERE workspace_id = $1`, workspaceID).Scan(&count); err != nil {
			return err
		}
		position = clampPosition(position, count, false)
		if position == current {
			return nil
		}
		if position > current {
			if _, err := tx.Exec(ctx, `UPDATE categories SET position = position - 1
				WHERE workspace_id = $1 AND position > $2 AND position <= $3`, workspaceID, current, position); err != nil {
				return err
			}
		} else {
			if _, err := tx.Exec(ctx, `UPDATE categories SET position = position + 1
				WHERE workspace_id = $1 AND position >= $3 AND position < $2`, workspaceID, current, position); err != nil {
				return err
			}
		}
		_, err := tx.Exec(ctx, `UPDATE categories SET position = $2, updated_at = now() WHERE id = $1`, categoryID, position)
		return err
	})
}
