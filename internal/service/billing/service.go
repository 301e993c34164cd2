package billing

import (
	"context"
	"errors"

	"log/slog"

	stripe "github.com/stripe/stripe-go/v79"
	portalsession "github.com/stripe/stripe-go/v79/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/customer"

	"github.com/taskdeck/taskdeck/internal/domain"
	"github.com/taskdeck/taskdeck/internal/repository"
	"github.com/taskdeck/taskdeck/pkg/config"
)

// Service handles plans, Stripe checkout and subscription state.
type Service struct {
	repo       repository.BillingRepository
	users      repository.UserRepository
	workspaces repository.WorkspaceRepository
	logger     *slog.Logger
	cfg        config.Config
}

// New constructs a Service and configures the Stripe client key.
func New(repo repository.BillingRepository, users repository.UserRepository, workspaces repository.WorkspaceRepository, logger *slog.Logger, cfg config.Config) Service {
	if cfg.StripeSecretKey != "" {
		stripe.Key = cfg.StripeSecretKey
	}
	return Service{repo: repo, users: users, workspaces: workspaces, logger: logger, cfg: cfg}
}

var (
	// ErrBillingDisabled is returned when no Stripe key is configured.
	ErrBillingDisabled = errors.New("billing is not configured")
	// ErrUnknownPlan is returned for plan codes without a Stripe price.
	ErrUnknownPlan = errors.New("unknown plan")
	// ErrNoCustomer is returned when a portal is requested before any checkout.
	ErrNoCustomer = errors.New("no billing profile for user")
)

// Plans lists purchasable plans.
func (s Service) Plans(ctx context.Context) ([]domain.Plan, error) {
	return s.repo.ListPlans(ctx)
}

// freePlan builds the implicit plan from configured defaults.
func (s Service) freePlan() *domain.Plan {
	return &domain.Plan{
		Code:          domain.FreePlanCode,
		Name:          "Free",
		MaxWorkspaces: s.cfg.FreeMaxWorkspaces,
		MaxMembers:    s.cfg.FreeMaxMembers,
		MaxTasks:      s.cfg.FreeMaxTasks,
	}
}

// PlanForUser resolves the user's effective plan: their active subscription's
// plan, or the free plan.
func (s Service) PlanForUser(ctx context.Context, userID string) (*domain.Plan, error) {
	sub, err := s.repo.GetSubscriptionByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return s.freePlan(), nil
		}
		return nil, err
	}
	if sub.Status != domain.SubscriptionActive {
		return s.freePlan(), nil
	}
	plan, err := s.repo.GetPlanByCode(ctx, sub.PlanCode)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return s.freePlan(), nil
		}
		return nil, err
	}
	return plan, nil
}

// PlanForWorkspace resolves quota limits from the workspace owner's plan.
func (s Service) PlanForWorkspace(ctx context.Context, workspaceID string) (*domain.Plan, error) {
	ws, err := s.workspaces.GetWorkspaceByID(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	return s.PlanForUser(ctx, ws.OwnerID)
}

// Subscription returns the user's current subscription, or nil on the free plan.
func (s Service) Subscription(ctx context.Context, userID string) (*domain.Subscription, error) {
	sub, err := s.repo.GetSubscriptionByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return sub, nil
}

// Invoices returns the user's billing history.
func (s Service) Invoices(ctx context.Context, userID string, limit int) ([]domain.Invoice, error) {
	return s.repo.ListInvoicesByUser(ctx, userID, limit)
}

// ensureCustomer returns the user's Stripe customer id, creating one on first
// use.
func (s Service) ensureCustomer(ctx context.Context, userID string) (string, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.StripeCustomerID != "" {
		return user.StripeCustomerID, nil
	}
	params := &stripe.CustomerParams{
		Email: stripe.String(user.Email),
	}
	if user.Name != "" {
		params.Name = stripe.String(user.Name)
	}
	params.Context = ctx
	cust, err := customer.New(params)
	if err != nil {
		return "", err
	}
	if err := s.users.SetStripeCustomerID(ctx, userID, cust.ID); err != nil {
		return "", err
	}
	s.logger.Info("stripe customer created", "user_id", userID)
	return cust.ID, nil
}

// CreateCheckoutSession returns a Stripe Checkout URL for subscribing to a plan.
func (s Service) CreateCheckoutSession(ctx context.Context, userID, planCode string) (string, error) {
	if s.cfg.StripeSecretKey == "" {
		return "", ErrBillingDisabled
	}
	plan, err := s.repo.GetPlanByCode(ctx, planCode)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrUnknownPlan
		}
		return "", err
	}
	if plan.StripePriceID == "" {
		return "", ErrUnknownPlan
	}
	customerID, err := s.ensureCustomer(ctx, userID)
	if err != nil {
		return "", err
	}
	params := &stripe.CheckoutSessionParams{
		Customer:          stripe.String(customerID),
		ClientReferenceID: stripe.String(userID),
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(plan.StripePriceID), Quantity: stripe.Int64(1)},
		},
		SuccessURL: stripe.String(s.cfg.BillingSuccessURL),
		CancelURL:  stripe.String(s.cfg.BillingCancelURL),
	}
	params.Context = ctx
	sess, err := checkoutsession.New(params)
	if err != nil {
		return "", err
	}
	s.logger.Info("checkout session created", "user_id", userID, "plan", planCode)
	return sess.URL, nil
}

// CreatePortalSession returns a Stripe Billing Portal URL for managing an
// existing subscription.
func (s Service) CreatePortalSession(ctx context.Context, userID string) (string, error) {
	if s.cfg.StripeSecretKey == "" {
		return "", ErrBillingDisabled
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.StripeCustomerID == "" {
		return "", ErrNoCustomer
	}
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(user.StripeCustomerID),
		ReturnURL: stripe.String(s.cfg.AppBaseURL + "/settings/billing"),
	}
	params.Context = ctx
	sess, err := portalsession.New(params)
	if err != nil {
		return "", err
	}
	return sess.URL, nil
}

// ActiveSubscriptionCount supports the admin stats endpoint.
func (s Service) ActiveSubscriptionCount(ctx context.Context) (int, error) {
	return s.repo.CountActiveSubscriptions(ctx)
}
