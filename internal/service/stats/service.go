package stats

import (
	"context"
	"time"

	"log/slog"

	"github.com/taskdeck/taskdeck/internal/repository"
)

// Overview aggregates platform-wide counters for the admin dashboard.
type Overview struct {
	Users               int `json:"users"`
	Workspaces          int `json:"workspaces"`
	Tasks               int `json:"tasks"`
	ActiveSubscriptions int `json:"active_subscriptions"`
	SignupsLast30Days   int `json:"signups_last_30_days"`
}

// Service computes admin statistics.
type Service struct {
	stats   repository.StatsRepository
	billing repository.BillingRepository
	logger  *slog.Logger
}

// New constructs a Service.
func New(stats repository.StatsRepository, billing repository.BillingRepository, logger *slog.Logger) Service {
	return Service{stats: stats, billing: billing, logger: logger}
}

// Overview gathers the current totals.
func (s Service) Overview(ctx context.Context) (*Overview, error) {
	var (
		o   Overview
		err error
	)
	if o.Users, err = s.stats.CountUsers(ctx); err != nil {
		return nil, err
	}
	if o.Workspaces, err = s.stats.CountWorkspaces(ctx); err != nil {
		return nil, err
	}
	if o.Tasks, err = s.stats.CountTasks(ctx); err != nil {
		return nil, err
	}
	if o.ActiveSubscriptions, err = s.billing.CountActiveSubscriptions(ctx); err != nil {
		return nil, err
	}
	since := time.Now().UTC().AddDate(0, 0, -30)
	if o.SignupsLast30Days, err = s.stats.CountSignupsSince(ctx, since); err != nil {
		return nil, err
	}
	return &o, nil
}
