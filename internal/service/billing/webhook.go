package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	stripe "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/taskdeck/taskdeck/internal/domain"
	"github.com/taskdeck/taskdeck/internal/repository"
)

// HandleWebhook verifies a Stripe webhook signature and applies the event.
func (s Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.cfg.StripeWebhookSecret == "" {
		return ErrBillingDisabled
	}
	event, err := webhook.ConstructEvent(payload, signature, s.cfg.StripeWebhookSecret)
	if err != nil {
		return fmt.Errorf("verify webhook signature: %w", err)
	}
	return s.applyEvent(ctx, event)
}

// applyEvent dispatches a verified Stripe event. Unknown event types are
// acknowledged and ignored.
func (s Service) applyEvent(ctx context.Context, event stripe.Event) error {
	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return fmt.Errorf("decode checkout session: %w", err)
		}
		return s.applyCheckoutCompleted(ctx, &sess)
	case "customer.subscription.created", "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("decode subscription: %w", err)
		}
		return s.applySubscription(ctx, &sub, "")
	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("decode subscription: %w", err)
		}
		return s.applySubscription(ctx, &sub, domain.SubscriptionCanceled)
	case "invoice.paid", "invoice.payment_failed":
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return fmt.Errorf("decode invoice: %w", err)
		}
		return s.applyInvoice(ctx, &inv)
	default:
		s.logger.Debug("ignoring stripe event", "type", event.Type)
		return nil
	}
}

// applyCheckoutCompleted links the Stripe customer to our user, so later
// subscription events resolve even if checkout was started elsewhere.
func (s Service) applyCheckoutCompleted(ctx context.Context, sess *stripe.CheckoutSession) error {
	if sess.ClientReferenceID == "" || sess.Customer == nil {
		return nil
	}
	user, err := s.users.GetUserByID(ctx, sess.ClientReferenceID)
	if err != nil {
		return err
	}
	if user.StripeCustomerID == sess.Customer.ID {
		return nil
	}
	if err := s.users.SetStripeCustomerID(ctx, user.ID, sess.Customer.ID); err != nil {
		return err
	}
	s.logger.Info("checkout completed", "user_id", user.ID)
	return nil
}

// applySubscription upserts local subscription state from Stripe's view.
// statusOverride forces the stored status for deletion events.
func (s Service) applySubscription(ctx context.Context, sub *stripe.Subscription, statusOverride string) error {
	if sub.Customer == nil {
		return errors.New("subscription event missing customer")
	}
	user, err := s.users.GetUserByStripeCustomerID(ctx, sub.Customer.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("subscription event for unknown customer", "subscription_id", sub.ID)
			return nil
		}
		return err
	}

	planCode := domain.FreePlanCode
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		plan, err := s.repo.GetPlanByPriceID(ctx, sub.Items.Data[0].Price.ID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		if plan != nil {
			planCode = plan.Code
		}
	}

	status := mapSubscriptionStatus(sub.Status)
	if statusOverride != "" {
		status = statusOverride
	}

	now := time.Now().UTC()
	record := &domain.Subscription{
		ID:                   uuid.NewString(),
		UserID:               user.ID,
		PlanCode:             planCode,
		StripeSubscriptionID: sub.ID,
		StripeCustomerID:     sub.Customer.ID,
		Status:               status,
		CurrentPeriodEnd:     time.Unix(sub.CurrentPeriodEnd, 0).UTC(),
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if existing, err := s.repo.GetSubscriptionByStripeID(ctx, sub.ID); err == nil {
		record.ID = existing.ID
		record.CreatedAt = existing.CreatedAt
	}
	if err := s.repo.UpsertSubscription(ctx, record); err != nil {
		return err
	}
	s.logger.Info("subscription updated", "user_id", user.ID, "plan", planCode, "status", status)
	return nil
}

func (s Service) applyInvoice(ctx context.Context, inv *stripe.Invoice) error {
	if inv.Customer == nil {
		return errors.New("invoice event missing customer")
	}
	user, err := s.users.GetUserByStripeCustomerID(ctx, inv.Customer.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("invoice event for unknown customer", "invoice_id", inv.ID)
			return nil
		}
		return err
	}
	record := &domain.Invoice{
		ID:               uuid.NewString(),
		UserID:           user.ID,
		StripeInvoiceID:  inv.ID,
		AmountDue:        inv.AmountDue,
		AmountPaid:       inv.AmountPaid,
		Currency:         string(inv.Currency),
		Status:           string(inv.Status),
		HostedInvoiceURL: inv.HostedInvoiceURL,
		CreatedAt:        time.Now().UTC(),
	}
	return s.repo.InsertInvoice(ctx, record)
}

func mapSubscriptionStatus(status stripe.SubscriptionStatus) string {
	switch status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return domain.SubscriptionActive
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid:
		return domain.SubscriptionPastDue
	default:
		return domain.SubscriptionCanceled
	}
}
