package domain

import "time"

// Task priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Task is a work item within a workspace category. A non-nil ParentID makes
// it a subtask; subtasks stay one level deep and follow their parent's
// category.
type Task struct {
	ID          string     `json:"id"`
	WorkspaceID string     `json:"workspace_id"`
	CategoryID  string     `json:"category_id"`
	ParentID    *string    `json:"parent_id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Completed   bool       `json:"completed"`
	Position    int        `json:"position"`
	DeletedAt   *time.Time `json:"-"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ValidPriority reports whether the value is a known priority.
func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// TaskFilter narrows task listings. Zero values mean "no constraint".
type TaskFilter struct {
	CategoryID string
	Completed  *bool
	Priority   string
	DueBefore  *time.Time
	Search     string
	Limit      int
	Offset     int
}
