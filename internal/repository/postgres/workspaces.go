package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/taskdeck/taskdeck/internal/domain"
	"github.com/taskdeck/taskdeck/internal/repository"
)

// CreateWorkspace inserts a workspace record.
func (r *Repository) CreateWorkspace(ctx context.Context, ws *domain.Workspace) error {
	const query = `INSERT INTO workspaces (id, name, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.pool.Exec(ctx, query, ws.ID, ws.Name, ws.OwnerID, ws.CreatedAt, ws.UpdatedAt)
	return mapError(err)
}

// GetWorkspaceByID returns a workspace by identifier.
func (r *Repository) GetWorkspaceByID(ctx context.Context, id string) (*domain.Workspace, error) {
	const query = `SELECT id, name, owner_id, created_at, updated_at FROM workspaces WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, id)
	var ws domain.Workspace
	if err := row.Scan(&ws.ID, &ws.Name, &ws.OwnerID, &ws.CreatedAt, &ws.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &ws, nil
}

// UpdateWorkspace renames a workspace.
func (r *Repository) UpdateWorkspace(ctx context.Context, ws *domain.Workspace) error {
	const query = `UPDATE workspaces SET name = $2, updated_at = $3 WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, ws.ID, ws.Name, ws.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteWorkspace removes a workspace; child rows cascade via schema.
func (r *Repository) DeleteWorkspace(ctx context.Context, id string) error {
	const query = `DELETE FROM workspaces WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListWorkspacesByUser returns workspaces the user belongs to.
func (r *Repository) ListWorkspacesByUser(ctx context.Context, userID string) ([]domain.Workspace, error) {
	const query = `SELECT w.id, w.name, w.owner_id, w.created_at, w.updated_at
		FROM workspaces w
		INNER JOIN workspace_members m ON m.workspace_id = w.id
		WHERE m.user_id = $1
		ORDER BY w.created_at`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	workspaces := make([]domain.Workspace, 0)
	for rows.Next() {
		var ws domain.Workspace
		if err := rows.Scan(&ws.ID, &ws.Name, &ws.OwnerID, &ws.CreatedAt, &ws.UpdatedAt); err != nil {
			return nil, err
		}
		workspaces = append(workspaces, ws)
	}
	return workspaces, rows.Err()
}

// CountWorkspacesByOwner counts workspaces owned by a user.
func (r *Repository) CountWorkspacesByOwner(ctx context.Context, ownerID string) (int, error) {
	const query = `SELECT COUNT(1) FROM workspaces WHERE owner_id = $1`
	var count int
	if err := r.pool.QueryRow(ctx, query, ownerID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// UpsertMember adds a member to a workspace or updates their role.
func (r *Repository) UpsertMember(ctx context.Context, member *domain.WorkspaceMember) error {
	const query = `INSERT INTO workspace_members (workspace_id, user_id, role, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (workspace_id, user_id) DO UPDATE SET role = EXCLUDED.role`
	_, err := r.pool.Exec(ctx, query, member.WorkspaceID, member.UserID, member.Role, member.CreatedAt)
	return err
}

// RemoveMember deletes a membership.
func (r *Repository) RemoveMember(ctx context.Context, workspaceID, userID string) error {
	const query = `DELETE FROM workspace_members WHERE workspace_id = $1 AND user_id = $2`
	tag, err := r.pool.Exec(ctx, query, workspaceID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// GetMember fetches a single membership row.
func (r *Repository) GetMember(ctx context.Context, workspaceID, userID string) (*domain.WorkspaceMember, error) {
	const query = `SELECT workspace_id, user_id, role, created_at
		FROM workspace_members WHERE workspace_id = $1 AND user_id = $2`
	row := r.pool.QueryRow(ctx, query, workspaceID, userID)
	var m domain.WorkspaceMember
	if err := row.Scan(&m.WorkspaceID, &m.UserID, &m.Role, &m.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// ListMembers returns workspace memberships ordered by join time.
func (r *Repository) ListMembers(ctx context.Context, workspaceID string) ([]domain.WorkspaceMember, error) {
	const query = `SELECT workspace_id, user_id, role, created_at
		FROM workspace_members WHERE workspace_id = $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := make([]domain.WorkspaceMember, 0)
	for rows.Next() {
		var m domain.WorkspaceMember
		if err := rows.Scan(&m.WorkspaceID, &m.UserID, &m.Role, &m.CreatedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// CountMembers counts memberships of a workspace.
func (r *Repository) CountMembers(ctx context.Context, workspaceID string) (int, error) {
	const query = `SELECT COUNT(1) FROM workspace_members WHERE workspace_id = $1`
	var count int
	if err := r.pool.QueryRow(ctx, query, workspaceID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

const invitationColumns = `id, workspace_id, email, role, token, invited_by, expires_at, accepted_at, created_at`

// CreateInvitation stores a pending invitation.
func (r *Repository) CreateInvitation(ctx context.Context, inv *domain.Invitation) error {
	const query = `INSERT INTO invitations (id, workspace_id, email, role, token, invited_by, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.pool.Exec(ctx, query, inv.ID, inv.WorkspaceID, inv.Email, inv.Role, inv.Token, inv.InvitedBy, inv.ExpiresAt, inv.CreatedAt)
	return mapError(err)
}

// GetInvitationByToken looks up an invitation by its redemption token.
func (r *Repository) GetInvitationByToken(ctx context.Context, token string) (*domain.Invitation, error) {
	const query = `SELECT ` + invitationColumns + ` FROM invitations WHERE token = $1`
	row := r.pool.QueryRow(ctx, query, token)
	var inv domain.Invitation
	if err := row.Scan(&inv.ID, &inv.WorkspaceID, &inv.Email, &inv.Role, &inv.Token, &inv.InvitedBy, &inv.ExpiresAt, &inv.AcceptedAt, &inv.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &inv, nil
}

// ListInvitations returns pending invitations for a workspace.
func (r *Repository) ListInvitations(ctx context.Context, workspaceID string) ([]domain.Invitation, error) {
	const query = `SELECT ` + invitationColumns + ` FROM invitations
		WHERE workspace_id = $1 AND accepted_at IS NULL ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	invitations := make([]domain.Invitation, 0)
	for rows.Next() {
		var inv domain.Invitation
		if err := rows.Scan(&inv.ID, &inv.WorkspaceID, &inv.Email, &inv.Role, &inv.Token, &inv.InvitedBy, &inv.ExpiresAt, &inv.AcceptedAt, &inv.CreatedAt); err != nil {
			return nil, err
		}
		invitations = append(invitations, inv)
	}
	return invitations, rows.Err()
}

// MarkInvitationAccepted stamps the acceptance time.
func (r *Repository) MarkInvitationAccepted(ctx context.Context, invitationID string, acceptedAt time.Time) error {
	const query = `UPDATE invitations SET accepted_at = $2 WHERE id = $1 AND accepted_at IS NULL`
	tag, err := r.pool.Exec(ctx, query, invitationID, acceptedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteInvitation revokes a pending invitation.
func (r *Repository) DeleteInvitation(ctx context.Context, invitationID string) error {
	const query = `DELETE FROM invitations WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, invitationID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
