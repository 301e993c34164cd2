package task

import (
	"context"
	"errors"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/taskdeck/taskdeck/internal/domain"
	"github.com/taskdeck/taskdeck/internal/repository"
	"github.com/taskdeck/taskdeck/internal/service/activity"
)

// PlanSource resolves the plan limits governing a workspace.
type PlanSource interface {
	PlanForWorkspace(ctx context.Context, workspaceID string) (*domain.Plan, error)
}

// Service manages tasks and subtasks.
type Service struct {
	tasks      repository.TaskRepository
	categories repository.CategoryRepository
	plans      PlanSource
	recorder   activity.Recorder
	logger     *slog.Logger
}

// New constructs a Service.
func New(tasks repository.TaskRepository, categories repository.CategoryRepository, plans PlanSource, recorder activity.Recorder, logger *slog.Logger) Service {
	return Service{tasks: tasks, categories: categories, plans: plans, recorder: recorder, logger: logger}
}

var (
	errTitleRequired    = errors.New("task title is required")
	errInvalidPriority  = errors.New("priority must be low, medium or high")
	errCategoryRequired = errors.New("category id is required")
	// ErrWrongWorkspace means a referenced entity lives in another workspace.
	ErrWrongWorkspace = errors.New("entity belongs to another workspace")
	// ErrNestedSubtask rejects subtasks of subtasks.
	ErrNestedSubtask = errors.New("subtasks cannot have their own subtasks")
	// ErrSubtaskMove rejects category moves on subtasks; they follow the parent.
	ErrSubtaskMove = errors.New("subtasks move with their parent task")
	// ErrTaskQuota means the workspace task limit is reached.
	ErrTaskQuota = errors.New("task quota exceeded for current plan")
)

// CreateInput carries task creation attributes.
type CreateInput struct {
	WorkspaceID string
	CategoryID  string
	ParentID    *string
	Title       string
	Description string
	Priority    string
	DueDate     *time.Time
}

// Create validates tenancy invariants and inserts the task at the end of its
// column (or of its parent's subtask list).
func (s Service) Create(ctx context.Context, actorID string, input CreateInput) (*domain.Task, error) {
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return nil, errTitleRequired
	}
	if input.Priority == "" {
		input.Priority = domain.PriorityMedium
	}
	if !domain.ValidPriority(input.Priority) {
		return nil, errInvalidPriority
	}

	if input.ParentID != nil {
		parent, err := s.tasks.GetTaskByID(ctx, *input.ParentID)
		if err != nil {
			return nil, err
		}
		if parent.WorkspaceID != input.WorkspaceID {
			return nil, ErrWrongWorkspace
		}
		if parent.ParentID != nil {
			return nil, ErrNestedSubtask
		}
		// Subtasks live in the parent's category.
		input.CategoryID = parent.CategoryID
	} else {
		if input.CategoryID == "" {
			return nil, errCategoryRequired
		}
		category, err := s.categories.GetCategoryByID(ctx, input.CategoryID)
		if err != nil {
			return nil, err
		}
		if category.WorkspaceID != input.WorkspaceID {
			return nil, ErrWrongWorkspace
		}
	}

	plan, err := s.plans.PlanForWorkspace(ctx, input.WorkspaceID)
	if err != nil {
		return nil, err
	}
	if plan.MaxTasks > 0 {
		count, err := s.tasks.CountTasksByWorkspace(ctx, input.WorkspaceID)
		if err != nil {
			return nil, err
		}
		if count >= plan.MaxTasks {
			return nil, ErrTaskQuota
		}
	}

	now := time.Now().UTC()
	task := &domain.Task{
		ID:          uuid.NewString(),
		WorkspaceID: input.WorkspaceID,
		CategoryID:  input.CategoryID,
		ParentID:    input.ParentID,
		Title:       input.Title,
		Description: input.Description,
		Priority:    input.Priority,
		DueDate:     input.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.tasks.CreateTask(ctx, task); err != nil {
		return nil, err
	}
	s.recorder.Record(ctx, task.WorkspaceID, actorID, "created", "task", task.ID, task.Title)
	return task, nil
}

// Get returns a task scoped to the workspace.
func (s Service) Get(ctx context.Context, taskID, workspaceID string) (*domain.Task, error) {
	task, err := s.tasks.GetTaskByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.WorkspaceID != workspaceID {
		return nil, ErrWrongWorkspace
	}
	return task, nil
}

// Resolve loads a task without a workspace hint; callers must authorize
// against the returned WorkspaceID.
func (s Service) Resolve(ctx context.Context, taskID string) (*domain.Task, error) {
	return s.tasks.GetTaskByID(ctx, taskID)
}

// Subtasks returns a task's children in order.
func (s Service) Subtasks(ctx context.Context, taskID string) ([]domain.Task, error) {
	return s.tasks.ListSubtasks(ctx, taskID)
}

// UpdateInput carries editable task fields; nil means unchanged.
type UpdateInput struct {
	Title       *string
	Description *string
	Priority    *string
	DueDate     *time.Time
	ClearDue    bool
}

// Update applies field changes with last-write-wins semantics and returns the
// full row for client reconciliation.
func (s Service) Update(ctx context.Context, taskID, actorID string, input UpdateInput) (*domain.Task, error) {
	task, err := s.tasks.GetTaskByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if input.Title != nil {
		trimmed := strings.TrimSpace(*input.Title)
		if trimmed == "" {
			return nil, errTitleRequired
		}
		task.Title = trimmed
	}
	if input.Description != nil {
		task.Description = *input.Description
	}
	if input.Priority != nil {
		if !domain.ValidPriority(*input.Priority) {
			return nil, errInvalidPriority
		}
		task.Priority = *input.Priority
	}
	if input.ClearDue {
		task.DueDate = nil
	} else if input.DueDate != nil {
		task.DueDate = input.DueDate
	}
	task.UpdatedAt = time.Now().UTC()
	if err := s.tasks.UpdateTask(ctx, task); err != nil {
		return nil, err
	}
	s.recorder.Record(ctx, task.WorkspaceID, actorID, "updated", "task", task.ID, task.Title)
	return task, nil
}

// Delete soft-deletes a task and its subtasks; the retention job purges them
// later.
func (s Service) Delete(ctx context.Context, taskID, actorID string) error {
	task, err := s.tasks.GetTaskByID(ctx, taskID)
	if err != nil {
		return err
	}
	if err := s.tasks.SoftDeleteTask(ctx, taskID, time.Now().UTC()); err != nil {
		return err
	}
	s.recorder.Record(ctx, task.WorkspaceID, actorID, "deleted", "task", taskID, task.Title)
	return nil
}

// List returns workspace tasks matching the filter.
func (s Service) List(ctx context.Context, workspaceID string, filter domain.TaskFilter) ([]domain.Task, error) {
	if filter.Limit < 0 {
		filter.Limit = 0
	}
	if filter.Limit > 500 {
		filter.Limit = 500
	}
	if filter.Priority != "" && !domain.ValidPriority(filter.Priority) {
		return nil, errInvalidPriority
	}
	return s.tasks.ListTasks(ctx, workspaceID, filter)
}

// Move relocates a top-level task to a category and position. This is the
// server side of a board drag-and-drop: the client maps its drop index to
// (category, position) and the database is the order of record.
func (s Service) Move(ctx context.Context, taskID, actorID, categoryID string, position int) (*domain.Task, error) {
	task, err := s.tasks.GetTaskByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.ParentID != nil {
		return nil, ErrSubtaskMove
	}
	category, err := s.categories.GetCategoryByID(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if category.WorkspaceID != task.WorkspaceID {
		return nil, ErrWrongWorkspace
	}
	if err := s.tasks.MoveTask(ctx, taskID, categoryID, position); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrWrongWorkspace
		}
		return nil, err
	}
	s.recorder.Record(ctx, task.WorkspaceID, actorID, "moved", "task", taskID, category.Name)
	return s.tasks.GetTaskByID(ctx, taskID)
}

// Toggle flips completion. Completing a parent cascades to its subtasks;
// completing the last subtask does not complete the parent.
func (s Service) Toggle(ctx context.Context, taskID, actorID string) (*domain.Task, error) {
	task, err := s.tasks.GetTaskByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	completed := !task.Completed
	cascade := task.ParentID == nil
	if err := s.tasks.SetCompleted(ctx, taskID, completed, cascade); err != nil {
		return nil, err
	}
	action := "completed"
	if !completed {
		action = "reopened"
	}
	s.recorder.Record(ctx, task.WorkspaceID, actorID, action, "task", taskID, task.Title)
	return s.tasks.GetTaskByID(ctx, taskID)
}
