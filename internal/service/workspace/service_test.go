package workspace

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/taskdeck/taskdeck/internal/domain"
	"github.com/taskdeck/taskdeck/internal/mail"
	"github.com/taskdeck/taskdeck/internal/repository"
	"github.com/taskdeck/taskdeck/pkg/config"
)

type stubWorkspaceRepository struct {
	workspaces     map[string]domain.Workspace
	members        map[string]domain.WorkspaceMember
	invitations    map[string]domain.Invitation
	ownerCount     int
	memberCount    int
	upserted       []domain.WorkspaceMember
	removed        []string
	acceptedID     string
	createdInvites []domain.Invitation
}

func memberKey(workspaceID, userID string) string { return workspaceID + "/" + userID }

func (s *stubWorkspaceRepository) CreateWorkspace(ctx context.Context, ws *domain.Workspace) error {
	if s.workspaces == nil {
		s.workspaces = make(map[string]domain.Workspace)
	}
	s.workspaces[ws.ID] = *ws
	return nil
}

func (s *stubWorkspaceRepository) GetWorkspaceByID(ctx context.Context, id string) (*domain.Workspace, error) {
	if ws, ok := s.workspaces[id]; ok {
		return &ws, nil
	}
	return nil, repository.ErrNotFound
}

func (s *stubWorkspaceRepository) UpdateWorkspace(ctx context.Context, ws *domain.Workspace) error {
	s.workspaces[ws.ID] = *ws
	return nil
}

func (s *stubWorkspaceRepository) DeleteWorkspace(ctx context.Context, id string) error {
	delete(s.workspaces, id)
	return nil
}

func (s *stubWorkspaceRepository) ListWorkspacesByUser(ctx context.Context, userID string) ([]domain.Workspace, error) {
	return nil, nil
}

func (s *stubWorkspaceRepository) CountWorkspacesByOwner(ctx context.Context, ownerID string) (int, error) {
	return s.ownerCount, nil
}

func (s *stubWorkspaceRepository) UpsertMember(ctx context.Context, member *domain.WorkspaceMember) error {
	if s.members == nil {
		s.members = make(map[string]domain.WorkspaceMember)
	}
	s.members[memberKey(member.WorkspaceID, member.UserID)] = *member
	s.upserted = append(s.upserted, *member)
	return nil
}

func (s *stubWorkspaceRepository) RemoveMember(ctx context.Context, workspaceID, userID string) error {
	delete(s.members, memberKey(workspaceID, userID))
	s.removed = append(s.removed, userID)
	return nil
}

func (s *stubWorkspaceRepository) GetMember(ctx context.Context, workspaceID, userID string) (*domain.WorkspaceMember, error) {
	if member, ok := s.members[memberKey(workspaceID, userID)]; ok {
		return &member, nil
	}
	return nil, repository.ErrNotFound
}

func (s *stubWorkspaceRepository) ListMembers(ctx context.Context, workspaceID string) ([]domain.WorkspaceMember, error) {
	return nil, nil
}

func (s *stubWorkspaceRepository) CountMembers(ctx context.Context, workspaceID string) (int, error) {
	return s.memberCount, nil
}

func (s *stubWorkspaceRepository) CreateInvitation(ctx context.Context, inv *domain.Invitation) error {
	if s.invitations == nil {
		s.invitations = make(map[string]domain.Invitation)
	}
	s.invitations[inv.Token] = *inv
	s.createdInvites = append(s.createdInvites, *inv)
	return nil
}

func (s *stubWorkspaceRepository) GetInvitationByToken(ctx context.Context, token string) (*domain.Invitation, error) {
	if inv, ok := s.invitations[token]; ok {
		return &inv, nil
	}
	return nil, repository.ErrNotFound
}

func (s *stubWorkspaceRepository) ListInvitations(ctx context.Context, workspaceID string) ([]domain.Invitation, error) {
	return nil, nil
}

func (s *stubWorkspaceRepository) MarkInvitationAccepted(ctx context.Context, invitationID string, acceptedAt time.Time) error {
	s.acceptedID = invitationID
	return nil
}

func (s *stubWorkspaceRepository) DeleteInvitation(ctx context.Context, invitationID string) error {
	return nil
}

type stubUserRepository struct {
	users map[string]domain.User
}

func (s *stubUserRepository) CreateUser(ctx context.Context, user *domain.User) error { return nil }

func (s *stubUserRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return nil, repository.ErrNotFound
}

func (s *stubUserRepository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	if user, ok := s.users[id]; ok {
		return &user, nil
	}
	return nil, repository.ErrNotFound
}

func (s *stubUserRepository) UpdateUser(ctx context.Context, user *domain.User) error { return nil }

func (s *stubUserRepository) SetStripeCustomerID(ctx context.Context, userID, customerID string) error {
	return nil
}

func (s *stubUserRepository) GetUserByStripeCustomerID(ctx context.Context, customerID string) (*domain.User, error) {
	return nil, repository.ErrNotFound
}

func (s *stubUserRepository) ListDigestUsers(ctx context.Context) ([]domain.User, error) {
	return nil, nil
}

type stubPlanSource struct {
	plan domain.Plan
}

func (s stubPlanSource) PlanForUser(ctx context.Context, userID string) (*domain.Plan, error) {
	plan := s.plan
	return &plan, nil
}

type outboxStub struct {
	sent []mail.Message
	err  error
}

func (o *outboxStub) Enqueue(ctx context.Context, msg mail.Message) error {
	if o.err != nil {
		return o.err
	}
	o.sent = append(o.sent, msg)
	return nil
}

type recorderStub struct {
	actions []string
}

func (r *recorderStub) Record(ctx context.Context, workspaceID, actorID, action, entityType, entityID, detail string) {
	r.actions = append(r.actions, action)
}

func newTestService(repo *stubWorkspaceRepository, users *stubUserRepository, plan domain.Plan, outbox *outboxStub) (Service, *recorderStub) {
	rec := &recorderStub{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return Service{
		repo:     repo,
		users:    users,
		plans:    stubPlanSource{plan: plan},
		outbox:   outbox,
		recorder: rec,
		logger:   log,
		cfg:      config.Config{AppBaseURL: "https://app.test"},
	}, rec
}

func TestCreateMakesOwnerMember(t *testing.T) {
	repo := &stubWorkspaceRepository{}
	svc, rec := newTestService(repo, &stubUserRepository{}, domain.Plan{MaxWorkspaces: 3}, &outboxStub{})

	ws, err := svc.Create(context.Background(), "user-1", "  Roadmap  ")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if ws.Name != "Roadmap" {
		t.Fatalf("expected trimmed name, got %q", ws.Name)
	}
	if len(repo.upserted) != 1 || repo.upserted[0].Role != domain.RoleOwner {
		t.Fatalf("expected owner membership, got %+v", repo.upserted)
	}
	if len(rec.actions) != 1 || rec.actions[0] != "created" {
		t.Fatalf("expected created activity, got %v", rec.actions)
	}
}

func TestCreateEnforcesWorkspaceQuota(t *testing.T) {
	repo := &stubWorkspaceRepository{ownerCount: 3}
	svc, _ := newTestService(repo, &stubUserRepository{}, domain.Plan{MaxWorkspaces: 3}, &outboxStub{})

	_, err := svc.Create(context.Background(), "user-1", "One too many")
	if !errors.Is(err, ErrWorkspaceQuota) {
		t.Fatalf("expected ErrWorkspaceQuota, got %v", err)
	}
}

func TestRenameRequiresAdmin(t *testing.T) {
	repo := &stubWorkspaceRepository{
		workspaces: map[string]domain.Workspace{"ws-1": {ID: "ws-1", Name: "Old", OwnerID: "owner-1"}},
		members: map[string]domain.WorkspaceMember{
			memberKey("ws-1", "user-2"): {WorkspaceID: "ws-1", UserID: "user-2", Role: domain.RoleMember},
		},
	}
	svc, _ := newTestService(repo, &stubUserRepository{}, domain.Plan{}, &outboxStub{})

	if _, err := svc.Rename(context.Background(), "ws-1", "user-2", "New"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := svc.Rename(context.Background(), "ws-1", "stranger", "New"); !errors.Is(err, ErrNotMember) {
		t.Fatalf("expected ErrNotMember, got %v", err)
	}
}

func TestSetMemberRoleProtectsOwner(t *testing.T) {
	repo := &stubWorkspaceRepository{
		members: map[string]domain.WorkspaceMember{
			memberKey("ws-1", "owner-1"): {WorkspaceID: "ws-1", UserID: "owner-1", Role: domain.RoleOwner},
			memberKey("ws-1", "admin-1"): {WorkspaceID: "ws-1", UserID: "admin-1", Role: domain.RoleAdmin},
		},
	}
	svc, _ := newTestService(repo, &stubUserRepository{}, domain.Plan{}, &outboxStub{})

	err := svc.SetMemberRole(context.Background(), "ws-1", "admin-1", "owner-1", domain.RoleMember)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for owner demotion, got %v", err)
	}
}

func TestRemoveMemberAllowsSelfLeave(t *testing.T) {
	repo := &stubWorkspaceRepository{
		members: map[string]domain.WorkspaceMember{
			memberKey("ws-1", "user-2"): {WorkspaceID: "ws-1", UserID: "user-2", Role: domain.RoleMember},
		},
	}
	svc, _ := newTestService(repo, &stubUserRepository{}, domain.Plan{}, &outboxStub{})

	if err := svc.RemoveMember(context.Background(), "ws-1", "user-2", "user-2"); err != nil {
		t.Fatalf("self leave returned error: %v", err)
	}
	if len(repo.removed) != 1 || repo.removed[0] != "user-2" {
		t.Fatalf("expected user-2 removed, got %v", repo.removed)
	}
}

func TestInviteEnforcesMemberQuota(t *testing.T) {
	repo := &stubWorkspaceRepository{
		workspaces: map[string]domain.Workspace{"ws-1": {ID: "ws-1", OwnerID: "owner-1"}},
		members: map[string]domain.WorkspaceMember{
			memberKey("ws-1", "owner-1"): {WorkspaceID: "ws-1", UserID: "owner-1", Role: domain.RoleOwner},
		},
		memberCount: 5,
	}
	svc, _ := newTestService(repo, &stubUserRepository{}, domain.Plan{MaxMembers: 5}, &outboxStub{})

	_, err := svc.Invite(context.Background(), "ws-1", "owner-1", "new@example.com", "")
	if !errors.Is(err, ErrMemberQuota) {
		t.Fatalf("expected ErrMemberQuota, got %v", err)
	}
}

func TestInviteEmailsRecipient(t *testing.T) {
	repo := &stubWorkspaceRepository{
		workspaces: map[string]domain.Workspace{"ws-1": {ID: "ws-1", Name: "Roadmap", OwnerID: "owner-1"}},
		members: map[string]domain.WorkspaceMember{
			memberKey("ws-1", "owner-1"): {WorkspaceID: "ws-1", UserID: "owner-1", Role: domain.RoleOwner},
		},
	}
	users := &stubUserRepository{users: map[string]domain.User{
		"owner-1": {ID: "owner-1", Email: "owner@example.com", Name: "Olive"},
	}}
	outbox := &outboxStub{}
	svc, _ := newTestService(repo, users, domain.Plan{}, outbox)

	inv, err := svc.Invite(context.Background(), "ws-1", "owner-1", "NEW@Example.com", "")
	if err != nil {
		t.Fatalf("Invite returned error: %v", err)
	}
	if inv.Email != "new@example.com" {
		t.Fatalf("expected lowercased email, got %q", inv.Email)
	}
	if inv.Role != domain.RoleMember {
		t.Fatalf("expected default member role, got %q", inv.Role)
	}
	if len(outbox.sent) != 1 || outbox.sent[0].To != "new@example.com" {
		t.Fatalf("expected invitation mail, got %+v", outbox.sent)
	}
}

func TestInviteSurvivesOutboxFailure(t *testing.T) {
	repo := &stubWorkspaceRepository{
		workspaces: map[string]domain.Workspace{"ws-1": {ID: "ws-1", OwnerID: "owner-1"}},
		members: map[string]domain.WorkspaceMember{
			memberKey("ws-1", "owner-1"): {WorkspaceID: "ws-1", UserID: "owner-1", Role: domain.RoleOwner},
		},
	}
	outbox := &outboxStub{err: errors.New("broker down")}
	svc, _ := newTestService(repo, &stubUserRepository{}, domain.Plan{}, outbox)

	if _, err := svc.Invite(context.Background(), "ws-1", "owner-1", "new@example.com", ""); err != nil {
		t.Fatalf("expected invitation despite outbox failure, got %v", err)
	}
	if len(repo.createdInvites) != 1 {
		t.Fatalf("expected stored invitation, got %d", len(repo.createdInvites))
	}
}

func TestAcceptInvitationExpired(t *testing.T) {
	repo := &stubWorkspaceRepository{
		invitations: map[string]domain.Invitation{
			"tok": {ID: "inv-1", WorkspaceID: "ws-1", Email: "new@example.com", Role: domain.RoleMember, Token: "tok", ExpiresAt: time.Now().Add(-time.Hour)},
		},
	}
	users := &stubUserRepository{users: map[string]domain.User{
		"user-2": {ID: "user-2", Email: "new@example.com"},
	}}
	svc, _ := newTestService(repo, users, domain.Plan{}, &outboxStub{})

	_, err := svc.AcceptInvitation(context.Background(), "tok", "user-2")
	if !errors.Is(err, ErrInvitationExpired) {
		t.Fatalf("expected ErrInvitationExpired, got %v", err)
	}
}

func TestAcceptInvitationUsed(t *testing.T) {
	accepted := time.Now().Add(-time.Hour)
	repo := &stubWorkspaceRepository{
		invitations: map[string]domain.Invitation{
			"tok": {ID: "inv-1", WorkspaceID: "ws-1", Email: "new@example.com", Token: "tok", ExpiresAt: time.Now().Add(time.Hour), AcceptedAt: &accepted},
		},
	}
	svc, _ := newTestService(repo, &stubUserRepository{}, domain.Plan{}, &outboxStub{})

	_, err := svc.AcceptInvitation(context.Background(), "tok", "user-2")
	if !errors.Is(err, ErrInvitationUsed) {
		t.Fatalf("expected ErrInvitationUsed, got %v", err)
	}
}

func TestAcceptInvitationEmailMismatch(t *testing.T) {
	repo := &stubWorkspaceRepository{
		invitations: map[string]domain.Invitation{
			"tok": {ID: "inv-1", WorkspaceID: "ws-1", Email: "invited@example.com", Token: "tok", ExpiresAt: time.Now().Add(time.Hour)},
		},
	}
	users := &stubUserRepository{users: map[string]domain.User{
		"user-2": {ID: "user-2", Email: "somebody@else.com"},
	}}
	svc, _ := newTestService(repo, users, domain.Plan{}, &outboxStub{})

	_, err := svc.AcceptInvitation(context.Background(), "tok", "user-2")
	if !errors.Is(err, ErrInvitationEmailMismatch) {
		t.Fatalf("expected ErrInvitationEmailMismatch, got %v", err)
	}
}

func TestAcceptInvitationGrantsMembership(t *testing.T) {
	repo := &stubWorkspaceRepository{
		workspaces: map[string]domain.Workspace{"ws-1": {ID: "ws-1", Name: "Roadmap"}},
		invitations: map[string]domain.Invitation{
			"tok": {ID: "inv-1", WorkspaceID: "ws-1", Email: "new@example.com", Role: domain.RoleAdmin, Token: "tok", ExpiresAt: time.Now().Add(time.Hour)},
		},
	}
	users := &stubUserRepository{users: map[string]domain.User{
		"user-2": {ID: "user-2", Email: "New@Example.com"},
	}}
	svc, rec := newTestService(repo, users, domain.Plan{}, &outboxStub{})

	ws, err := svc.AcceptInvitation(context.Background(), "tok", "user-2")
	if err != nil {
		t.Fatalf("AcceptInvitation returned error: %v", err)
	}
	if ws.ID != "ws-1" {
		t.Fatalf("unexpected workspace: %+v", ws)
	}
	if len(repo.upserted) != 1 || repo.upserted[0].Role != domain.RoleAdmin {
		t.Fatalf("expected admin membership, got %+v", repo.upserted)
	}
	if repo.acceptedID != "inv-1" {
		t.Fatalf("expected invitation marked accepted, got %q", repo.acceptedID)
	}
	if len(rec.actions) != 1 || rec.actions[0] != "joined" {
		t.Fatalf("expected joined activity, got %v", rec.actions)
	}
}
