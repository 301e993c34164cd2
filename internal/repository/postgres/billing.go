package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/taskdeck/taskdeck/internal/domain"
	"github.com/taskdeck/taskdeck/internal/repository"
)

const planColumns = `code, name, stripe_price_id, price_cents, max_workspaces, max_members, max_tasks, created_at`

func scanPlan(row pgx.Row) (*domain.Plan, error) {
	var p domain.Plan
	if err := row.Scan(&p.Code, &p.Name, &p.StripePriceID, &p.PriceCents, &p.MaxWorkspaces, &p.MaxMembers, &p.MaxTasks, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// ListPlans returns plans ordered by price.
func (r *Repository) ListPlans(ctx context.Context) ([]domain.Plan, error) {
	const query = `SELECT ` + planColumns + ` FROM plans ORDER BY price_cents`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	plans := make([]domain.Plan, 0)
	for rows.Next() {
		var p domain.Plan
		if err := rows.Scan(&p.Code, &p.Name, &p.StripePriceID, &p.PriceCents, &p.MaxWorkspaces, &p.MaxMembers, &p.MaxTasks, &p.CreatedAt); err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

// GetPlanByCode fetches a plan by its code.
func (r *Repository) GetPlanByCode(ctx context.Context, code string) (*domain.Plan, error) {
	const query = `SELECT ` + planColumns + ` FROM plans WHERE code = $1`
	return scanPlan(r.pool.QueryRow(ctx, query, code))
}

// GetPlanByPriceID resolves a plan from a Stripe price identifier.
func (r *Repository) GetPlanByPriceID(ctx context.Context, priceID string) (*domain.Plan, error) {
	const query = `SELECT ` + planColumns + ` FROM plans WHERE stripe_price_id = $1`
	return scanPlan(r.pool.QueryRow(ctx, query, priceID))
}

const subscriptionColumns = `id, user_id, plan_code, stripe_subscription_id, stripe_customer_id, status, current_period_end, created_at, updated_at`

func scanSubscription(row pgx.Row) (*domain.Subscription, error) {
	var s domain.Subscription
	if err := row.Scan(&s.ID, &s.UserID, &s.PlanCode, &s.StripeSubscriptionID, &s.StripeCustomerID, &s.Status, &s.CurrentPeriodEnd, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// UpsertSubscription creates or refreshes a subscription keyed by its Stripe id.
func (r *Repository) UpsertSubscription(ctx context.Context, sub *domain.Subscription) error {
	const query = `INSERT INTO subscriptions (id, user_id, plan_code, stripe_subscription_id, stripe_customer_id, status, current_period_end, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (stripe_subscription_id) DO UPDATE SET
			plan_code = EXCLUDED.plan_code,
			status = EXCLUDED.status,
			current_period_end = EXCLUDED.current_period_end,
			updated_at = EXCLUDED.updated_at`
	_, err := r.pool.Exec(ctx, query, sub.ID, sub.UserID, sub.PlanCode, sub.StripeSubscriptionID, sub.StripeCustomerID, sub.Status, sub.CurrentPeriodEnd, sub.CreatedAt, sub.UpdatedAt)
	return err
}

// GetSubscriptionByUser returns the most recent non-canceled subscription.
func (r *Repository) GetSubscriptionByUser(ctx context.Context, userID string) (*domain.Subscription, error) {
	const query = `SELECT ` + subscriptionColumns + ` FROM subscriptions
		WHERE user_id = $1 AND status != 'canceled' ORDER BY updated_at DESC LIMIT 1`
	return scanSubscription(r.pool.QueryRow(ctx, query, userID))
}

// GetSubscriptionByStripeID fetches by the Stripe subscription identifier.
func (r *Repository) GetSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*domain.Subscription, error) {
	const query = `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE stripe_subscription_id = $1`
	return scanSubscription(r.pool.QueryRow(ctx, query, stripeSubscriptionID))
}

// InsertInvoice records an invoice, ignoring replays of the same Stripe invoice.
func (r *Repository) InsertInvoice(ctx context.Context, invoice *domain.Invoice) error {
	const query = `INSERT INTO invoices (id, user_id, stripe_invoice_id, amount_due, amount_paid, currency, status, hosted_invoice_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (stripe_invoice_id) DO UPDATE SET
			amount_paid = EXCLUDED.amount_paid,
			status = EXCLUDED.status`
	_, err := r.pool.Exec(ctx, query, invoice.ID, invoice.UserID, invoice.StripeInvoiceID, invoice.AmountDue, invoice.AmountPaid, invoice.Currency, invoice.Status, invoice.HostedInvoiceURL, invoice.CreatedAt)
	return err
}

// ListInvoicesByUser returns newest invoices first.
func (r *Repository) ListInvoicesByUser(ctx context.Context, userID string, limit int) ([]domain.Invoice, error) {
	if limit <= 0 {
		limit = 24
	}
	const query = `SELECT id, user_id, stripe_invoice_id, amount_due, amount_paid, currency, status, COALESCE(hosted_invoice_url, ''), created_at
		FROM invoices WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	invoices := make([]domain.Invoice, 0)
	for rows.Next() {
		var inv domain.Invoice
		if err := rows.Scan(&inv.ID, &inv.UserID, &inv.StripeInvoiceID, &inv.AmountDue, &inv.AmountPaid, &inv.Currency, &inv.Status, &inv.HostedInvoiceURL, &inv.CreatedAt); err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// CountActiveSubscriptions counts subscriptions currently active.
func (r *Repository) CountActiveSubscriptions(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(1) FROM subscriptions WHERE status = 'active'`
	var count int
	if err := r.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
