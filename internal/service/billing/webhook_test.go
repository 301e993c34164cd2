package billing

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	stripe "github.com/stripe/stripe-go/v79"

	"github.com/taskdeck/taskdeck/internal/domain"
	"github.com/taskdeck/taskdeck/internal/repository"
	"github.com/taskdeck/taskdeck/pkg/config"
)

type stubBillingRepository struct {
	plansByPrice  map[string]domain.Plan
	plansByCode   map[string]domain.Plan
	subsByUser    map[string]domain.Subscription
	subsByStripe  map[string]domain.Subscription
	upsertedSub   *domain.Subscription
	insertedInv   *domain.Invoice
	activeSubs    int
}

func (s *stubBillingRepository) ListPlans(ctx context.Context) ([]domain.Plan, error) {
	return nil, nil
}

func (s *stubBillingRepository) GetPlanByCode(ctx context.Context, code string) (*domain.Plan, error) {
	if plan, ok := s.plansByCode[code]; ok {
		return &plan, nil
	}
	return nil, repository.ErrNotFound
}

func (s *stubBillingRepository) GetPlanByPriceID(ctx context.Context, priceID string) (*domain.Plan, error) {
	if plan, ok := s.plansByPrice[priceID]; ok {
		return &plan, nil
	}
	return nil, repository.ErrNotFound
}

func (s *stubBillingRepository) UpsertSubscription(ctx context.Context, sub *domain.Subscription) error {
	s.upsertedSub = sub
	return nil
}

func (s *stubBillingRepository) GetSubscriptionByUser(ctx context.Context, userID string) (*domain.Subscription, error) {
	if sub, ok := s.subsByUser[userID]; ok {
		return &sub, nil
	}
	return nil, repository.ErrNotFound
}

func (s *stubBillingRepository) GetSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*domain.Subscription, error) {
	if sub, ok := s.subsByStripe[stripeSubscriptionID]; ok {
		return &sub, nil
	}
	return nil, repository.ErrNotFound
}

func (s *stubBillingRepository) InsertInvoice(ctx context.Context, invoice *domain.Invoice) error {
	s.insertedInv = invoice
	return nil
}

func (s *stubBillingRepository) ListInvoicesByUser(ctx context.Context, userID string, limit int) ([]domain.Invoice, error) {
	return nil, nil
}

func (s *stubBillingRepository) CountActiveSubscriptions(ctx context.Context) (int, error) {
	return s.activeSubs, nil
}

type stubUserRepository struct {
	byID       map[string]domain.User
	byCustomer map[string]domain.User
	customerID string
}

func (s *stubUserRepository) CreateUser(ctx context.Context, user *domain.User) error { return nil }

func (s *stubUserRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return nil, repository.ErrNotFound
}

func (s *stubUserRepository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	if user, ok := s.byID[id]; ok {
		return &user, nil
	}
	return nil, repository.ErrNotFound
}

func (s *stubUserRepository) UpdateUser(ctx context.Context, user *domain.User) error { return nil }

func (s *stubUserRepository) SetStripeCustomerID(ctx context.Context, userID, customerID string) error {
	s.customerID = customerID
	return nil
}

func (s *stubUserRepository) GetUserByStripeCustomerID(ctx context.Context, customerID string) (*domain.User, error) {
	if user, ok := s.byCustomer[customerID]; ok {
		return &user, nil
	}
	return nil, repository.ErrNotFound
}

func (s *stubUserRepository) ListDigestUsers(ctx context.Context) ([]domain.User, error) {
	return nil, nil
}

func newTestService(repo *stubBillingRepository, users *stubUserRepository) Service {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return Service{
		repo:   repo,
		users:  users,
		logger: log,
		cfg:    config.Config{FreeMaxWorkspaces: 3, FreeMaxMembers: 5, FreeMaxTasks: 200},
	}
}

func subscriptionEvent(t *testing.T, eventType stripe.EventType, sub map[string]any) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(sub)
	if err != nil {
		t.Fatalf("marshal event payload: %v", err)
	}
	return stripe.Event{
		Type: eventType,
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestApplyEventSubscriptionCreated(t *testing.T) {
	repo := &stubBillingRepository{
		plansByPrice: map[string]domain.Plan{
			"price_pro": {Code: "pro", StripePriceID: "price_pro"},
		},
	}
	users := &stubUserRepository{byCustomer: map[string]domain.User{
		"cus_123": {ID: "user-1", StripeCustomerID: "cus_123"},
	}}
	svc := newTestService(repo, users)

	periodEnd := time.Now().Add(30 * 24 * time.Hour).Unix()
	event := subscriptionEvent(t, "customer.subscription.created", map[string]any{
		"id":                 "sub_123",
		"status":             "active",
		"current_period_end": periodEnd,
		"customer":           map[string]any{"id": "cus_123"},
		"items": map[string]any{
			"data": []map[string]any{
				{"price": map[string]any{"id": "price_pro"}},
			},
		},
	})

	if err := svc.applyEvent(context.Background(), event); err != nil {
		t.Fatalf("applyEvent returned error: %v", err)
	}
	if repo.upsertedSub == nil {
		t.Fatal("expected subscription upsert")
	}
	if repo.upsertedSub.PlanCode != "pro" {
		t.Fatalf("expected plan pro, got %q", repo.upsertedSub.PlanCode)
	}
	if repo.upsertedSub.Status != domain.SubscriptionActive {
		t.Fatalf("expected active status, got %q", repo.upsertedSub.Status)
	}
	if repo.upsertedSub.UserID != "user-1" {
		t.Fatalf("expected user-1, got %q", repo.upsertedSub.UserID)
	}
}

func TestApplyEventSubscriptionDeletedForcesCanceled(t *testing.T) {
	repo := &stubBillingRepository{
		subsByStripe: map[string]domain.Subscription{
			"sub_123": {ID: "local-1", StripeSubscriptionID: "sub_123", CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		},
	}
	users := &stubUserRepository{byCustomer: map[string]domain.User{
		"cus_123": {ID: "user-1"},
	}}
	svc := newTestService(repo, users)

	event := subscriptionEvent(t, "customer.subscription.deleted", map[string]any{
		"id":       "sub_123",
		"status":   "active",
		"customer": map[string]any{"id": "cus_123"},
	})

	if err := svc.applyEvent(context.Background(), event); err != nil {
		t.Fatalf("applyEvent returned error: %v", err)
	}
	if repo.upsertedSub.Status != domain.SubscriptionCanceled {
		t.Fatalf("expected canceled status, got %q", repo.upsertedSub.Status)
	}
	if repo.upsertedSub.ID != "local-1" {
		t.Fatalf("expected preserved record id, got %q", repo.upsertedSub.ID)
	}
}

func TestApplyEventUnknownCustomerIgnored(t *testing.T) {
	repo := &stubBillingRepository{}
	users := &stubUserRepository{}
	svc := newTestService(repo, users)

	event := subscriptionEvent(t, "customer.subscription.updated", map[string]any{
		"id":       "sub_999",
		"status":   "active",
		"customer": map[string]any{"id": "cus_unknown"},
	})

	if err := svc.applyEvent(context.Background(), event); err != nil {
		t.Fatalf("expected unknown customer ignored, got %v", err)
	}
	if repo.upsertedSub != nil {
		t.Fatal("expected no upsert for unknown customer")
	}
}

func TestApplyEventCheckoutCompletedLinksCustomer(t *testing.T) {
	repo := &stubBillingRepository{}
	users := &stubUserRepository{byID: map[string]domain.User{
		"user-1": {ID: "user-1"},
	}}
	svc := newTestService(repo, users)

	event := subscriptionEvent(t, "checkout.session.completed", map[string]any{
		"id":                  "cs_123",
		"client_reference_id": "user-1",
		"customer":            map[string]any{"id": "cus_123"},
	})

	if err := svc.applyEvent(context.Background(), event); err != nil {
		t.Fatalf("applyEvent returned error: %v", err)
	}
	if users.customerID != "cus_123" {
		t.Fatalf("expected linked customer cus_123, got %q", users.customerID)
	}
}

func TestApplyEventInvoicePaid(t *testing.T) {
	repo := &stubBillingRepository{}
	users := &stubUserRepository{byCustomer: map[string]domain.User{
		"cus_123": {ID: "user-1"},
	}}
	svc := newTestService(repo, users)

	event := subscriptionEvent(t, "invoice.paid", map[string]any{
		"id":          "in_123",
		"amount_due":  900,
		"amount_paid": 900,
		"currency":    "usd",
		"status":      "paid",
		"customer":    map[string]any{"id": "cus_123"},
	})

	if err := svc.applyEvent(context.Background(), event); err != nil {
		t.Fatalf("applyEvent returned error: %v", err)
	}
	if repo.insertedInv == nil {
		t.Fatal("expected invoice insert")
	}
	if repo.insertedInv.AmountPaid != 900 || repo.insertedInv.Status != "paid" {
		t.Fatalf("unexpected invoice: %+v", repo.insertedInv)
	}
}

func TestApplyEventIgnoresUnknownType(t *testing.T) {
	svc := newTestService(&stubBillingRepository{}, &stubUserRepository{})
	event := stripe.Event{Type: "customer.updated", Data: &stripe.EventData{Raw: []byte(`{}`)}}
	if err := svc.applyEvent(context.Background(), event); err != nil {
		t.Fatalf("expected unknown events ignored, got %v", err)
	}
}

func TestMapSubscriptionStatus(t *testing.T) {
	cases := []struct {
		in   stripe.SubscriptionStatus
		want string
	}{
		{stripe.SubscriptionStatusActive, domain.SubscriptionActive},
		{stripe.SubscriptionStatusTrialing, domain.SubscriptionActive},
		{stripe.SubscriptionStatusPastDue, domain.SubscriptionPastDue},
		{stripe.SubscriptionStatusUnpaid, domain.SubscriptionPastDue},
		{stripe.SubscriptionStatusCanceled, domain.SubscriptionCanceled},
		{stripe.SubscriptionStatusIncomplete, domain.SubscriptionCanceled},
	}
	for _, tc := range cases {
		if got := mapSubscriptionStatus(tc.in); got != tc.want {
			t.Fatalf("mapSubscriptionStatus(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestPlanForUserFallsBackToFree(t *testing.T) {
	repo := &stubBillingRepository{
		subsByUser: map[string]domain.Subscription{
			"user-past-due": {UserID: "user-past-due", PlanCode: "pro", Status: domain.SubscriptionPastDue},
		},
		plansByCode: map[string]domain.Plan{
			"pro": {Code: "pro", MaxTasks: 5000},
		},
	}
	svc := newTestService(repo, &stubUserRepository{})

	plan, err := svc.PlanForUser(context.Background(), "user-no-sub")
	if err != nil {
		t.Fatalf("PlanForUser returned error: %v", err)
	}
	if plan.Code != domain.FreePlanCode || plan.MaxTasks != 200 {
		t.Fatalf("expected free plan defaults, got %+v", plan)
	}

	plan, err = svc.PlanForUser(context.Background(), "user-past-due")
	if err != nil {
		t.Fatalf("PlanForUser returned error: %v", err)
	}
	if plan.Code != domain.FreePlanCode {
		t.Fatalf("expected past_due downgraded to free, got %+v", plan)
	}
}
