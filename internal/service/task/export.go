package task

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/taskdeck/taskdeck/internal/domain"
)

// ExportCSV streams every live task of a workspace as CSV rows.
func (s Service) ExportCSV(ctx context.Context, workspaceID string, w io.Writer) error {
	categories, err := s.categories.ListCategoriesByWorkspace(ctx, workspaceID)
	if err != nil {
		return err
	}
	names := make(map[string]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}

	tasks, err := s.tasks.ListTasks(ctx, workspaceID, domain.TaskFilter{})
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	header := []string{"id", "category", "parent_id", "title", "description", "priority", "due_date", "completed", "position", "created_at"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, t := range tasks {
		due := ""
		if t.DueDate != nil {
			due = t.DueDate.Format(time.RFC3339)
		}
		parent := ""
		if t.ParentID != nil {
			parent = *t.ParentID
		}
		row := []string{
			t.ID,
			names[t.CategoryID],
			parent,
			t.Title,
			t.Description,
			t.Priority,
			due,
			strconv.FormatBool(t.Completed),
			strconv.Itoa(t.Position),
			t.CreatedAt.Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
