package repository

import (
	"context"
	"time"

	"github.com/taskdeck/taskdeck/internal/domain"
)

// UserRepository persists users.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	UpdateUser(ctx context.Context, user *domain.User) error
	SetStripeCustomerID(ctx context.Context, userID, customerID string) error
	GetUserByStripeCustomerID(ctx context.Context, customerID string) (*domain.User, error)
	ListDigestUsers(ctx context.Context) ([]domain.User, error)
}

// WorkspaceRepository manages workspaces, memberships and invitations.
type WorkspaceRepository interface {
	CreateWorkspace(ctx context.Context, ws *domain.Workspace) error
	GetWorkspaceByID(ctx context.Context, id string) (*domain.Workspace, error)
	UpdateWorkspace(ctx context.Context, ws *domain.Workspace) error
	DeleteWorkspace(ctx context.Context, id string) error
	ListWorkspacesByUser(ctx context.Context, userID string) ([]domain.Workspace, error)
	CountWorkspacesByOwner(ctx context.Context, ownerID string) (int, error)

	UpsertMember(ctx context.Context, member *domain.WorkspaceMember) error
	RemoveMember(ctx context.Context, workspaceID, userID string) error
	GetMember(ctx context.Context, workspaceID, userID string) (*domain.WorkspaceMember, error)
	ListMembers(ctx context.Context, workspaceID string) ([]domain.WorkspaceMember, error)
	CountMembers(ctx context.Context, workspaceID string) (int, error)

	CreateInvitation(ctx context.Context, inv *domain.Invitation) error
	GetInvitationByToken(ctx context.Context, token string) (*domain.Invitation, error)
	ListInvitations(ctx context.Context, workspaceID string) ([]domain.Invitation, error)
	MarkInvitationAccepted(ctx context.Context, invitationID string, acceptedAt time.Time) error
	DeleteInvitation(ctx context.Context, invitationID string) error
}

// CategoryRepository persists kanban columns.
type CategoryRepository interface {
	CreateCategory(ctx context.Context, category *domain.Category) error
	GetCategoryByID(ctx context.Context, id string) (*domain.Category, error)
	UpdateCategory(ctx context.Context, category *domain.Category) error
	DeleteCategory(ctx context.Context, id string) error
	ListCategoriesByWorkspace(ctx context.Context, workspaceID string) ([]domain.Category, error)
	MoveCategory(ctx context.Context, categoryID string, position int) error
}

// TaskRepository persists tasks and maintains per-category ordering.
type TaskRepository interface {
	CreateTask(ctx context.Context, task *domain.Task) error
	GetTaskByID(ctx context.Context, id string) (*domain.Task, error)
	UpdateTask(ctx context.Context, task *domain.Task) error
	SoftDeleteTask(ctx context.Context, id string, deletedAt time.Time) error
	ListTasks(ctx context.Context, workspaceID string, filter domain.TaskFilter) ([]domain.Task, error)
	ListSubtasks(ctx context.Context, parentID string) ([]domain.Task, error)
	CountTasksByWorkspace(ctx context.Context, workspaceID string) (int, error)
	MoveTask(ctx context.Context, taskID, categoryID string, position int) error
	SetCompleted(ctx context.Context, taskID string, completed bool, cascade bool) error
	ListTasksDueBetween(ctx context.Context, userID string, from, to time.Time) ([]domain.Task, error)
	PurgeDeletedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ActivityRepository stores workspace activity feeds.
type ActivityRepository interface {
	InsertActivity(ctx context.Context, entry *domain.Activity) error
	ListActivityByWorkspace(ctx context.Context, workspaceID string, limit, offset int) ([]domain.Activity, error)
	DeleteActivityBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// BillingRepository stores plans, subscriptions and invoices.
type BillingRepository interface {
	ListPlans(ctx context.Context) ([]domain.Plan, error)
	GetPlanByCode(ctx context.Context, code string) (*domain.Plan, error)
	GetPlanByPriceID(ctx context.Context, priceID string) (*domain.Plan, error)
	UpsertSubscription(ctx context.Context, sub *domain.Subscription) error
	GetSubscriptionByUser(ctx context.Context, userID string) (*domain.Subscription, error)
	GetSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*domain.Subscription, error)
	InsertInvoice(ctx context.Context, invoice *domain.Invoice) error
	ListInvoicesByUser(ctx context.Context, userID string, limit int) ([]domain.Invoice, error)
	CountActiveSubscriptions(ctx context.Context) (int, error)
}

// StatsRepository aggregates counts for the admin dashboard.
type StatsRepository interface {
	CountUsers(ctx context.Context) (int, error)
	CountWorkspaces(ctx context.Context) (int, error)
	CountTasks(ctx context.Context) (int, error)
	CountSignupsSince(ctx context.Context, since time.Time) (int, error)
}
