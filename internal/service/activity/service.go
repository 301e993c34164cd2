package activity

import (
	"context"
	"encoding/json"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/taskdeck/taskdeck/internal/domain"
	"github.com/taskdeck/taskdeck/internal/repository"
	"github.com/taskdeck/taskdeck/internal/ws"
)

// Recorder is the write side of the activity feed, implemented by Service and
// depended on by the mutating services.
type Recorder interface {
	Record(ctx context.Context, workspaceID, actorID, action, entityType, entityID, detail string)
}

// Service persists workspace activity and fans it out to live subscribers.
type Service struct {
	repo   repository.ActivityRepository
	hub    *ws.Hub
	logger *slog.Logger
}

// New constructs a Service.
func New(repo repository.ActivityRepository, hub *ws.Hub, logger *slog.Logger) Service {
	return Service{repo: repo, hub: hub, logger: logger}
}

// Record appends a feed entry and broadcasts it. Failures are logged, never
// propagated: activity must not fail the mutation that produced it.
func (s Service) Record(ctx context.Context, workspaceID, actorID, action, entityType, entityID, detail string) {
	entry := &domain.Activity{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		ActorID:     actorID,
		Action:      action,
		EntityType:  entityType,
		EntityID:    entityID,
		Detail:      detail,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.InsertActivity(ctx, entry); err != nil {
		s.logger.Error("failed to record activity", "workspace_id", workspaceID, "action", action, "error", err)
		return
	}
	if s.hub != nil {
		payload, err := json.Marshal(entry)
		if err != nil {
			s.logger.Error("failed to encode activity", "error", err)
			return
		}
		s.hub.Broadcast(workspaceID, payload)
	}
}

// List returns the newest entries first.
func (s Service) List(ctx context.Context, workspaceID string, limit, offset int) ([]domain.Activity, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListActivityByWorkspace(ctx, workspaceID, limit, offset)
}

// Hub exposes the live stream hub for websocket wiring.
func (s Service) Hub() *ws.Hub {
	return s.hub
}

var _ Recorder = Service{}
