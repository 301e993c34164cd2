package domain

import "time"

// FreePlanCode is the implicit plan for users without a subscription.
const FreePlanCode = "free"

// Subscription statuses mirrored from Stripe.
const (
	SubscriptionActive   = "active"
	SubscriptionPastDue  = "past_due"
	SubscriptionCanceled = "canceled"
)

// Plan defines purchasable limits. Quotas of 0 mean unlimited.
type Plan struct {
	Code          string    `json:"code"`
	Name          string    `json:"name"`
	StripePriceID string    `json:"-"`
	PriceCents    int       `json:"price_cents"`
	MaxWorkspaces int       `json:"max_workspaces"`
	MaxMembers    int       `json:"max_members"`
	MaxTasks      int       `json:"max_tasks"`
	CreatedAt     time.Time `json:"created_at"`
}

// Subscription links a user to a paid plan via Stripe.
type Subscription struct {
	ID                   string    `json:"id"`
	UserID               string    `json:"user_id"`
	PlanCode             string    `json:"plan_code"`
	StripeSubscriptionID string    `json:"-"`
	StripeCustomerID     string    `json:"-"`
	Status               string    `json:"status"`
	CurrentPeriodEnd     time.Time `json:"current_period_end"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Invoice records a Stripe invoice for display in billing history.
type Invoice struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	StripeInvoiceID  string    `json:"-"`
	AmountDue        int64     `json:"amount_due"`
	AmountPaid       int64     `json:"amount_paid"`
	Currency         string    `json:"currency"`
	Status           string    `json:"status"`
	HostedInvoiceURL string    `json:"hosted_invoice_url,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}
