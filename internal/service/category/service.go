package category

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/taskdeck/taskdeck/internal/domain"
	"github.com/taskdeck/taskdeck/internal/repository"
	"github.com/taskdeck/taskdeck/internal/service/activity"
)

// Service manages kanban columns.
type Service struct {
	repo     repository.CategoryRepository
	recorder activity.Recorder
	logger   *slog.Logger
}

// New constructs a Service.
func New(repo repository.CategoryRepository, recorder activity.Recorder, logger *slog.Logger) Service {
	return Service{repo: repo, recorder: recorder, logger: logger}
}

var (
	errNameRequired = errors.New("category name is required")
	errInvalidColor = errors.New("color must be a hex value like #4f9dff")
	// ErrWrongWorkspace means the category does not belong to the given workspace.
	ErrWrongWorkspace = errors.New("category belongs to another workspace")
)

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

const defaultColor = "#6b7280"

// Create appends a new column to the workspace board.
func (s Service) Create(ctx context.Context, workspaceID, actorID, name, color string) (*domain.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errNameRequired
	}
	if color == "" {
		color = defaultColor
	}
	if !colorPattern.MatchString(color) {
		return nil, errInvalidColor
	}
	now := time.Now().UTC()
	category := &domain.Category{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		Name:        name,
		Color:       strings.ToLower(color),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreateCategory(ctx, category); err != nil {
		return nil, err
	}
	s.recorder.Record(ctx, workspaceID, actorID, "created", "category", category.ID, name)
	return category, nil
}

// Get returns a category after checking it belongs to the workspace.
func (s Service) Get(ctx context.Context, categoryID, workspaceID string) (*domain.Category, error) {
	category, err := s.repo.GetCategoryByID(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if category.WorkspaceID != workspaceID {
		return nil, ErrWrongWorkspace
	}
	return category, nil
}

// Resolve loads a category without a workspace hint; callers must authorize
// against the returned WorkspaceID.
func (s Service) Resolve(ctx context.Context, categoryID string) (*domain.Category, error) {
	return s.repo.GetCategoryByID(ctx, categoryID)
}

// List returns the workspace board in column order.
func (s Service) List(ctx context.Context, workspaceID string) ([]domain.Category, error) {
	return s.repo.ListCategoriesByWorkspace(ctx, workspaceID)
}

// Update renames or recolors a category.
func (s Service) Update(ctx context.Context, categoryID, actorID string, name, color *string) (*domain.Category, error) {
	category, err := s.repo.GetCategoryByID(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return nil, errNameRequired
		}
		category.Name = trimmed
	}
	if color != nil {
		if !colorPattern.MatchString(*color) {
			return nil, errInvalidColor
		}
		category.Color = strings.ToLower(*color)
	}
	category.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdateCategory(ctx, category); err != nil {
		return nil, err
	}
	s.recorder.Record(ctx, category.WorkspaceID, actorID, "updated", "category", category.ID, category.Name)
	return category, nil
}

// Delete removes a category and its tasks.
func (s Service) Delete(ctx context.Context, categoryID, actorID string) error {
	category, err := s.repo.GetCategoryByID(ctx, categoryID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteCategory(ctx, categoryID); err != nil {
		return err
	}
	s.logger.Info("category deleted", "category_id", categoryID, "workspace_id", category.WorkspaceID)
	s.recorder.Record(ctx, category.WorkspaceID, actorID, "deleted", "category", categoryID, category.Name)
	return nil
}

// Move repositions a column on the board.
func (s Service) Move(ctx context.Context, categoryID, actorID string, position int) (*domain.Category, error) {
	category, err := s.repo.GetCategoryByID(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.MoveCategory(ctx, categoryID, position); err != nil {
		return nil, err
	}
	s.recorder.Record(ctx, category.WorkspaceID, actorID, "moved", "category", categoryID, "")
	return s.repo.GetCategoryByID(ctx, categoryID)
}
