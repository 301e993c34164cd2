package workspace

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/taskdeck/taskdeck/internal/domain"
	"github.com/taskdeck/taskdeck/internal/mail"
	"github.com/taskdeck/taskdeck/internal/repository"
	"github.com/taskdeck/taskdeck/internal/service/activity"
	"github.com/taskdeck/taskdeck/pkg/config"
	"github.com/taskdeck/taskdeck/pkg/crypto"
)

// PlanSource resolves effective plan limits, implemented by the billing service.
type PlanSource interface {
	PlanForUser(ctx context.Context, userID string) (*domain.Plan, error)
}

// Service handles workspace, membership and invitation workflows.
type Service struct {
	repo     repository.WorkspaceRepository
	users    repository.UserRepository
	plans    PlanSource
	outbox   mail.Outbox
	recorder activity.Recorder
	logger   *slog.Logger
	cfg      config.Config
}

// New constructs a Service.
func New(repo repository.WorkspaceRepository, users repository.UserRepository, plans PlanSource, outbox mail.Outbox, recorder activity.Recorder, logger *slog.Logger, cfg config.Config) Service {
	return Service{repo: repo, users: users, plans: plans, outbox: outbox, recorder: recorder, logger: logger, cfg: cfg}
}

const invitationTTL = 7 * 24 * time.Hour

var (
	errNameRequired = errors.New("workspace name is required")
	errInvalidRole  = errors.New("role must be admin or member")

	// ErrNotMember means the user has no membership in the workspace.
	ErrNotMember = errors.New("not a workspace member")
	// ErrForbidden means the member's role does not permit the operation.
	ErrForbidden = errors.New("insufficient workspace role")
	// ErrWorkspaceQuota means the owner's plan workspace limit is reached.
	ErrWorkspaceQuota = errors.New("workspace quota exceeded for current plan")
	// ErrMemberQuota means the workspace member limit is reached.
	ErrMemberQuota = errors.New("member quota exceeded for current plan")
	// ErrInvitationExpired means the invitation token is past its expiry.
	ErrInvitationExpired = errors.New("invitation has expired")
	// ErrInvitationUsed means the invitation was already accepted.
	ErrInvitationUsed = errors.New("invitation has already been accepted")
	// ErrInvitationEmailMismatch means the token belongs to another address.
	ErrInvitationEmailMismatch = errors.New("invitation was issued for a different email")
)

var roleRank = map[string]int{
	domain.RoleMember: 1,
	domain.RoleAdmin:  2,
	domain.RoleOwner:  3,
}

// Create registers a workspace; the creator becomes its owner member.
func (s Service) Create(ctx context.Context, ownerID, name string) (*domain.Workspace, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errNameRequired
	}
	plan, err := s.plans.PlanForUser(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if plan.MaxWorkspaces > 0 {
		count, err := s.repo.CountWorkspacesByOwner(ctx, ownerID)
		if err != nil {
			return nil, err
		}
		if count >= plan.MaxWorkspaces {
			return nil, ErrWorkspaceQuota
		}
	}
	now := time.Now().UTC()
	ws := &domain.Workspace{
		ID:        uuid.NewString(),
		Name:      name,
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateWorkspace(ctx, ws); err != nil {
		return nil, err
	}
	member := &domain.WorkspaceMember{
		WorkspaceID: ws.ID,
		UserID:      ownerID,
		Role:        domain.RoleOwner,
		CreatedAt:   now,
	}
	if err := s.repo.UpsertMember(ctx, member); err != nil {
		return nil, err
	}
	s.logger.Info("workspace created", "workspace_id", ws.ID, "owner_id", ownerID)
	s.recorder.Record(ctx, ws.ID, ownerID, "created", "workspace", ws.ID, ws.Name)
	return ws, nil
}

// RequireMember resolves the caller's membership or fails with ErrNotMember.
func (s Service) RequireMember(ctx context.Context, workspaceID, userID string) (*domain.WorkspaceMember, error) {
	member, err := s.repo.GetMember(ctx, workspaceID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotMember
		}
		return nil, err
	}
	return member, nil
}

// RequireRole resolves membership and enforces a minimum role.
func (s Service) RequireRole(ctx context.Context, workspaceID, userID, minRole string) (*domain.WorkspaceMember, error) {
	member, err := s.RequireMember(ctx, workspaceID, userID)
	if err != nil {
		return nil, err
	}
	if roleRank[member.Role] < roleRank[minRole] {
		return nil, ErrForbidden
	}
	return member, nil
}

// Get returns a workspace the user belongs to.
func (s Service) Get(ctx context.Context, workspaceID, userID string) (*domain.Workspace, error) {
	if _, err := s.RequireMember(ctx, workspaceID, userID); err != nil {
		return nil, err
	}
	return s.repo.GetWorkspaceByID(ctx, workspaceID)
}

// ListMine returns every workspace the user is a member of.
func (s Service) ListMine(ctx context.Context, userID string) ([]domain.Workspace, error) {
	return s.repo.ListWorkspacesByUser(ctx, userID)
}

// Rename updates the workspace name. Requires admin.
func (s Service) Rename(ctx context.Context, workspaceID, userID, name string) (*domain.Workspace, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errNameRequired
	}
	if _, err := s.RequireRole(ctx, workspaceID, userID, domain.RoleAdmin); err != nil {
		return nil, err
	}
	ws, err := s.repo.GetWorkspaceByID(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	ws.Name = name
	ws.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdateWorkspace(ctx, ws); err != nil {
		return nil, err
	}
	s.recorder.Record(ctx, workspaceID, userID, "renamed", "workspace", workspaceID, name)
	return ws, nil
}

// Delete removes a workspace and everything in it. Owner only.
func (s Service) Delete(ctx context.Context, workspaceID, userID string) error {
	if _, err := s.RequireRole(ctx, workspaceID, userID, domain.RoleOwner); err != nil {
		return err
	}
	if err := s.repo.DeleteWorkspace(ctx, workspaceID); err != nil {
		return err
	}
	s.logger.Info("workspace deleted", "workspace_id", workspaceID, "user_id", userID)
	return nil
}

// MemberInfo is a membership row joined with account details.
type MemberInfo struct {
	UserID   string    `json:"user_id"`
	Email    string    `json:"email"`
	Name     string    `json:"name"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

// Members lists the workspace roster.
func (s Service) Members(ctx context.Context, workspaceID, userID string) ([]MemberInfo, error) {
	if _, err := s.RequireMember(ctx, workspaceID, userID); err != nil {
		return nil, err
	}
	members, err := s.repo.ListMembers(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	infos := make([]MemberInfo, 0, len(members))
	for _, m := range members {
		info := MemberInfo{UserID: m.UserID, Role: m.Role, JoinedAt: m.CreatedAt}
		if user, err := s.users.GetUserByID(ctx, m.UserID); err == nil {
			info.Email = user.Email
			info.Name = user.Name
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// SetMemberRole changes a member's role. Requires admin; the owner's role is
// immutable.
func (s Service) SetMemberRole(ctx context.Context, workspaceID, actorID, memberID, role string) error {
	if role != domain.RoleAdmin && role != domain.RoleMember {
		return errInvalidRole
	}
	if _, err := s.RequireRole(ctx, workspaceID, actorID, domain.RoleAdmin); err != nil {
		return err
	}
	target, err := s.RequireMember(ctx, workspaceID, memberID)
	if err != nil {
		return err
	}
	if target.Role == domain.RoleOwner {
		return ErrForbidden
	}
	member := &domain.WorkspaceMember{
		WorkspaceID: workspaceID,
		UserID:      memberID,
		Role:        role,
		CreatedAt:   target.CreatedAt,
	}
	if err := s.repo.UpsertMember(ctx, member); err != nil {
		return err
	}
	s.recorder.Record(ctx, workspaceID, actorID, "role_changed", "member", memberID, role)
	return nil
}

// RemoveMember drops a member. Admins can remove others; anyone can leave.
// The owner cannot be removed.
func (s Service) RemoveMember(ctx context.Context, workspaceID, actorID, memberID string) error {
	if actorID != memberID {
		if _, err := s.RequireRole(ctx, workspaceID, actorID, domain.RoleAdmin); err != nil {
			return err
		}
	}
	target, err := s.RequireMember(ctx, workspaceID, memberID)
	if err != nil {
		return err
	}
	if target.Role == domain.RoleOwner {
		return ErrForbidden
	}
	if err := s.repo.RemoveMember(ctx, workspaceID, memberID); err != nil {
		return err
	}
	s.recorder.Record(ctx, workspaceID, actorID, "removed", "member", memberID, "")
	return nil
}

// Invite creates an invitation and emails the recipient. Requires admin.
func (s Service) Invite(ctx context.Context, workspaceID, inviterID, email, role string) (*domain.Invitation, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, errors.New("invitee email is required")
	}
	if role == "" {
		role = domain.RoleMember
	}
	if role != domain.RoleAdmin && role != domain.RoleMember {
		return nil, errInvalidRole
	}
	if _, err := s.RequireRole(ctx, workspaceID, inviterID, domain.RoleAdmin); err != nil {
		return nil, err
	}
	ws, err := s.repo.GetWorkspaceByID(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	plan, err := s.plans.PlanForUser(ctx, ws.OwnerID)
	if err != nil {
		return nil, err
	}
	if plan.MaxMembers > 0 {
		count, err := s.repo.CountMembers(ctx, workspaceID)
		if err != nil {
			return nil, err
		}
		if count >= plan.MaxMembers {
			return nil, ErrMemberQuota
		}
	}
	token, err := crypto.RandomToken(32)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	inv := &domain.Invitation{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		Email:       email,
		Role:        role,
		Token:       token,
		InvitedBy:   inviterID,
		ExpiresAt:   now.Add(invitationTTL),
		CreatedAt:   now,
	}
	if err := s.repo.CreateInvitation(ctx, inv); err != nil {
		return nil, err
	}

	inviterName := inviterID
	if inviter, err := s.users.GetUserByID(ctx, inviterID); err == nil {
		inviterName = inviter.Email
		if inviter.Name != "" {
			inviterName = inviter.Name
		}
	}
	acceptURL := fmt.Sprintf("%s/invitations/accept?token=%s", strings.TrimRight(s.cfg.AppBaseURL, "/"), token)
	msg, err := mail.Invitation(email, inviterName, ws.Name, acceptURL, inv.ExpiresAt)
	if err != nil {
		s.logger.Error("failed to render invitation mail", "error", err)
	} else if err := s.outbox.Enqueue(ctx, msg); err != nil {
		// The invitation row exists; the link can still be shared manually.
		s.logger.Error("failed to enqueue invitation mail", "invitation_id", inv.ID, "error", err)
	}

	s.recorder.Record(ctx, workspaceID, inviterID, "invited", "invitation", inv.ID, email)
	return inv, nil
}

// Invitations lists pending invitations. Requires admin.
func (s Service) Invitations(ctx context.Context, workspaceID, userID string) ([]domain.Invitation, error) {
	if _, err := s.RequireRole(ctx, workspaceID, userID, domain.RoleAdmin); err != nil {
		return nil, err
	}
	return s.repo.ListInvitations(ctx, workspaceID)
}

// RevokeInvitation deletes a pending invitation. Requires admin.
func (s Service) RevokeInvitation(ctx context.Context, workspaceID, userID, invitationID string) error {
	if _, err := s.RequireRole(ctx, workspaceID, userID, domain.RoleAdmin); err != nil {
		return err
	}
	return s.repo.DeleteInvitation(ctx, invitationID)
}

// AcceptInvitation redeems a token for the calling user and grants membership.
func (s Service) AcceptInvitation(ctx context.Context, token, userID string) (*domain.Workspace, error) {
	inv, err := s.repo.GetInvitationByToken(ctx, strings.TrimSpace(token))
	if err != nil {
		return nil, err
	}
	if inv.AcceptedAt != nil {
		return nil, ErrInvitationUsed
	}
	now := time.Now().UTC()
	if now.After(inv.ExpiresAt) {
		return nil, ErrInvitationExpired
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(user.Email, inv.Email) {
		return nil, ErrInvitationEmailMismatch
	}
	member := &domain.WorkspaceMember{
		WorkspaceID: inv.WorkspaceID,
		UserID:      userID,
		Role:        inv.Role,
		CreatedAt:   now,
	}
	if err := s.repo.UpsertMember(ctx, member); err != nil {
		return nil, err
	}
	if err := s.repo.MarkInvitationAccepted(ctx, inv.ID, now); err != nil {
		return nil, err
	}
	s.logger.Info("invitation accepted", "invitation_id", inv.ID, "user_id", userID)
	s.recorder.Record(ctx, inv.WorkspaceID, userID, "joined", "member", userID, "")
	return s.repo.GetWorkspaceByID(ctx, inv.WorkspaceID)
}
