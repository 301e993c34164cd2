package task

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/taskdeck/taskdeck/internal/domain"
	"github.com/taskdeck/taskdeck/internal/repository"
)

type stubTaskRepository struct {
	tasks      map[string]domain.Task
	count      int
	created    *domain.Task
	moved      bool
	moveErr    error
	completed  *bool
	cascade    *bool
	softDelete bool
}

func (s *stubTaskRepository) CreateTask(ctx context.Context, task *domain.Task) error {
	s.created = task
	return nil
}

func (s *stubTaskRepository) GetTaskByID(ctx context.Context, id string) (*domain.Task, error) {
	if task, ok := s.tasks[id]; ok {
		return &task, nil
	}
	return nil, repository.ErrNotFound
}

func (s *stubTaskRepository) UpdateTask(ctx context.Context, task *domain.Task) error {
	if s.tasks == nil {
		s.tasks = make(map[string]domain.Task)
	}
	s.tasks[task.ID] = *task
	return nil
}

func (s *stubTaskRepository) SoftDeleteTask(ctx context.Context, id string, deletedAt time.Time) error {
	s.softDelete = true
	return nil
}

func (s *stubTaskRepository) ListTasks(ctx context.Context, workspaceID string, filter domain.TaskFilter) ([]domain.Task, error) {
	return nil, nil
}

func (s *stubTaskRepository) ListSubtasks(ctx context.Context, parentID string) ([]domain.Task, error) {
	return nil, nil
}

func (s *stubTaskRepository) CountTasksByWorkspace(ctx context.Context, workspaceID string) (int, error) {
	return s.count, nil
}

func (s *stubTaskRepository) MoveTask(ctx context.Context, taskID, categoryID string, position int) error {
	if s.moveErr != nil {
		return s.moveErr
	}
	s.moved = true
	task := s.tasks[taskID]
	task.CategoryID = categoryID
	task.Position = position
	s.tasks[taskID] = task
	return nil
}

func (s *stubTaskRepository) SetCompleted(ctx context.Context, taskID string, completed, cascade bool) error {
	s.completed = &completed
	s.cascade = &cascade
	task := s.tasks[taskID]
	task.Completed = completed
	s.tasks[taskID] = task
	return nil
}

func (s *stubTaskRepository) ListTasksDueBetween(ctx context.Context, userID string, from, to time.Time) ([]domain.Task, error) {
	return nil, nil
}

func (s *stubTaskRepository) PurgeDeletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

type stubCategoryRepository struct {
	categories map[string]domain.Category
}

func (s *stubCategoryRepository) CreateCategory(ctx context.Context, category *domain.Category) error {
	return nil
}

func (s *stubCategoryRepository) GetCategoryByID(ctx context.Context, id string) (*domain.Category, error) {
	if category, ok := s.categories[id]; ok {
		return &category, nil
	}
	return nil, repository.ErrNotFound
}

func (s *stubCategoryRepository) UpdateCategory(ctx context.Context, category *domain.Category) error {
	return nil
}

func (s *stubCategoryRepository) DeleteCategory(ctx context.Context, id string) error { return nil }

func (s *stubCategoryRepository) ListCategoriesByWorkspace(ctx context.Context, workspaceID string) ([]domain.Category, error) {
	return nil, nil
}

func (s *stubCategoryRepository) MoveCategory(ctx context.Context, categoryID string, position int) error {
	return nil
}

type stubPlanSource struct {
	plan domain.Plan
}

func (s stubPlanSource) PlanForWorkspace(ctx context.Context, workspaceID string) (*domain.Plan, error) {
	plan := s.plan
	return &plan, nil
}

type recorderStub struct {
	actions []string
}

func (r *recorderStub) Record(ctx context.Context, workspaceID, actorID, action, entityType, entityID, detail string) {
	r.actions = append(r.actions, action)
}

func newTestService(tasks *stubTaskRepository, categories *stubCategoryRepository, plan domain.Plan) (Service, *recorderStub) {
	rec := &recorderStub{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return Service{
		tasks:      tasks,
		categories: categories,
		plans:      stubPlanSource{plan: plan},
		recorder:   rec,
		logger:     log,
	}, rec
}

func TestCreateRequiresTitle(t *testing.T) {
	svc, _ := newTestService(&stubTaskRepository{}, &stubCategoryRepository{}, domain.Plan{})
	_, err := svc.Create(context.Background(), "user-1", CreateInput{WorkspaceID: "ws-1", CategoryID: "cat-1", Title: "  "})
	if !errors.Is(err, errTitleRequired) {
		t.Fatalf("expected errTitleRequired, got %v", err)
	}
}

func TestCreateRejectsInvalidPriority(t *testing.T) {
	svc, _ := newTestService(&stubTaskRepository{}, &stubCategoryRepository{}, domain.Plan{})
	_, err := svc.Create(context.Background(), "user-1", CreateInput{WorkspaceID: "ws-1", CategoryID: "cat-1", Title: "task", Priority: "urgent"})
	if !errors.Is(err, errInvalidPriority) {
		t.Fatalf("expected errInvalidPriority, got %v", err)
	}
}

func TestCreateRejectsCrossWorkspaceCategory(t *testing.T) {
	categories := &stubCategoryRepository{categories: map[string]domain.Category{
		"cat-1": {ID: "cat-1", WorkspaceID: "other-ws"},
	}}
	svc, _ := newTestService(&stubTaskRepository{}, categories, domain.Plan{})
	_, err := svc.Create(context.Background(), "user-1", CreateInput{WorkspaceID: "ws-1", CategoryID: "cat-1", Title: "task"})
	if !errors.Is(err, ErrWrongWorkspace) {
		t.Fatalf("expected ErrWrongWorkspace, got %v", err)
	}
}

func TestCreateSubtaskInheritsParentCategory(t *testing.T) {
	parentID := "task-parent"
	tasks := &stubTaskRepository{tasks: map[string]domain.Task{
		parentID: {ID: parentID, WorkspaceID: "ws-1", CategoryID: "cat-parent"},
	}}
	svc, rec := newTestService(tasks, &stubCategoryRepository{}, domain.Plan{})

	created, err := svc.Create(context.Background(), "user-1", CreateInput{
		WorkspaceID: "ws-1",
		CategoryID:  "cat-other",
		ParentID:    &parentID,
		Title:       "subtask",
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if created.CategoryID != "cat-parent" {
		t.Fatalf("expected subtask to inherit category cat-parent, got %s", created.CategoryID)
	}
	if created.Priority != domain.PriorityMedium {
		t.Fatalf("expected default priority medium, got %s", created.Priority)
	}
	if len(rec.actions) != 1 || rec.actions[0] != "created" {
		t.Fatalf("expected created activity, got %v", rec.actions)
	}
}

func TestCreateRejectsNestedSubtask(t *testing.T) {
	parentOfParent := "task-top"
	subID := "task-sub"
	tasks := &stubTaskRepository{tasks: map[string]domain.Task{
		subID: {ID: subID, WorkspaceID: "ws-1", CategoryID: "cat-1", ParentID: &parentOfParent},
	}}
	svc, _ := newTestService(tasks, &stubCategoryRepository{}, domain.Plan{})

	_, err := svc.Create(context.Background(), "user-1", CreateInput{
		WorkspaceID: "ws-1",
		ParentID:    &subID,
		Title:       "too deep",
	})
	if !errors.Is(err, ErrNestedSubtask) {
		t.Fatalf("expected ErrNestedSubtask, got %v", err)
	}
}

func TestCreateEnforcesTaskQuota(t *testing.T) {
	categories := &stubCategoryRepository{categories: map[string]domain.Category{
		"cat-1": {ID: "cat-1", WorkspaceID: "ws-1"},
	}}
	tasks := &stubTaskRepository{count: 5}
	svc, _ := newTestService(tasks, categories, domain.Plan{MaxTasks: 5})

	_, err := svc.Create(context.Background(), "user-1", CreateInput{WorkspaceID: "ws-1", CategoryID: "cat-1", Title: "over quota"})
	if !errors.Is(err, ErrTaskQuota) {
		t.Fatalf("expected ErrTaskQuota, got %v", err)
	}
}

func TestMoveRejectsSubtask(t *testing.T) {
	parentID := "task-parent"
	tasks := &stubTaskRepository{tasks: map[string]domain.Task{
		"task-sub": {ID: "task-sub", WorkspaceID: "ws-1", ParentID: &parentID},
	}}
	svc, _ := newTestService(tasks, &stubCategoryRepository{}, domain.Plan{})

	_, err := svc.Move(context.Background(), "task-sub", "user-1", "cat-2", 0)
	if !errors.Is(err, ErrSubtaskMove) {
		t.Fatalf("expected ErrSubtaskMove, got %v", err)
	}
}

func TestMoveRejectsCategoryFromOtherWorkspace(t *testing.T) {
	tasks := &stubTaskRepository{tasks: map[string]domain.Task{
		"task-1": {ID: "task-1", WorkspaceID: "ws-1", CategoryID: "cat-1"},
	}}
	categories := &stubCategoryRepository{categories: map[string]domain.Category{
		"cat-2": {ID: "cat-2", WorkspaceID: "other-ws"},
	}}
	svc, _ := newTestService(tasks, categories, domain.Plan{})

	_, err := svc.Move(context.Background(), "task-1", "user-1", "cat-2", 0)
	if !errors.Is(err, ErrWrongWorkspace) {
		t.Fatalf("expected ErrWrongWorkspace, got %v", err)
	}
	if tasks.moved {
		t.Fatal("expected no repository move for cross-workspace category")
	}
}

func TestMoveRelocatesTask(t *testing.T) {
	tasks := &stubTaskRepository{tasks: map[string]domain.Task{
		"task-1": {ID: "task-1", WorkspaceID: "ws-1", CategoryID: "cat-1", Position: 3},
	}}
	categories := &stubCategoryRepository{categories: map[string]domain.Category{
		"cat-2": {ID: "cat-2", WorkspaceID: "ws-1", Name: "Doing"},
	}}
	svc, rec := newTestService(tasks, categories, domain.Plan{})

	moved, err := svc.Move(context.Background(), "task-1", "user-1", "cat-2", 0)
	if err != nil {
		t.Fatalf("Move returned error: %v", err)
	}
	if moved.CategoryID != "cat-2" || moved.Position != 0 {
		t.Fatalf("unexpected move result: %+v", moved)
	}
	if len(rec.actions) != 1 || rec.actions[0] != "moved" {
		t.Fatalf("expected moved activity, got %v", rec.actions)
	}
}

func TestToggleCascadesForParentOnly(t *testing.T) {
	parentID := "task-parent"
	tasks := &stubTaskRepository{tasks: map[string]domain.Task{
		parentID:   {ID: parentID, WorkspaceID: "ws-1"},
		"task-sub": {ID: "task-sub", WorkspaceID: "ws-1", ParentID: &parentID, Completed: true},
	}}
	svc, rec := newTestService(tasks, &stubCategoryRepository{}, domain.Plan{})

	if _, err := svc.Toggle(context.Background(), parentID, "user-1"); err != nil {
		t.Fatalf("Toggle parent returned error: %v", err)
	}
	if tasks.cascade == nil || !*tasks.cascade {
		t.Fatal("expected cascade for parent toggle")
	}
	if tasks.completed == nil || !*tasks.completed {
		t.Fatal("expected parent marked complete")
	}

	if _, err := svc.Toggle(context.Background(), "task-sub", "user-1"); err != nil {
		t.Fatalf("Toggle subtask returned error: %v", err)
	}
	if *tasks.cascade {
		t.Fatal("expected no cascade for subtask toggle")
	}
	if *tasks.completed {
		t.Fatal("expected subtask reopened")
	}
	if len(rec.actions) != 2 || rec.actions[0] != "completed" || rec.actions[1] != "reopened" {
		t.Fatalf("unexpected activity actions: %v", rec.actions)
	}
}

func TestUpdateClearsDueDate(t *testing.T) {
	due := time.Now().UTC().Add(24 * time.Hour)
	tasks := &stubTaskRepository{tasks: map[string]domain.Task{
		"task-1": {ID: "task-1", WorkspaceID: "ws-1", Title: "with deadline", DueDate: &due},
	}}
	svc, _ := newTestService(tasks, &stubCategoryRepository{}, domain.Plan{})

	updated, err := svc.Update(context.Background(), "task-1", "user-1", UpdateInput{ClearDue: true})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if updated.DueDate != nil {
		t.Fatalf("expected cleared due date, got %v", updated.DueDate)
	}
}

func TestListRejectsInvalidPriorityFilter(t *testing.T) {
	svc, _ := newTestService(&stubTaskRepository{}, &stubCategoryRepository{}, domain.Plan{})
	_, err := svc.List(context.Background(), "ws-1", domain.TaskFilter{Priority: "urgent"})
	if !errors.Is(err, errInvalidPriority) {
		t.Fatalf("expected errInvalidPriority, got %v", err)
	}
}
