package httpx

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/taskdeck/taskdeck/internal/service/task"
)

func (r *Router) handleTaskSubroutes(w http.ResponseWriter, req *http.Request) {
	trimmed := strings.TrimPrefix(req.URL.Path, "/tasks/")
	parts := strings.Split(trimmed, "/")
	taskID := parts[0]
	if taskID == "" {
		r.notFound(w)
		return
	}
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for task route", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}

	t, err := r.task.Resolve(req.Context(), taskID)
	if err != nil {
		r.serviceError(w, err)
		return
	}
	if !r.requireResourceMember(w, req, t.WorkspaceID, info) {
		return
	}

	switch {
	case len(parts) == 1:
		r.handleTask(w, req, t.ID, info)
	case len(parts) == 2 && parts[1] == "move":
		r.handleTaskMove(w, req, t.ID, info)
	case len(parts) == 2 && parts[1] == "toggle":
		r.handleTaskToggle(w, req, t.ID, info)
	case len(parts) == 2 && parts[1] == "subtasks":
		r.handleTaskSubtasks(w, req, t.ID, t.WorkspaceID, info)
	default:
		r.notFound(w)
	}
}

func (r *Router) handleTask(w http.ResponseWriter, req *http.Request, taskID string, info authInfo) {
	switch req.Method {
	case http.MethodGet:
		t, err := r.task.Resolve(req.Context(), taskID)
		if err != nil {
			r.serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	case http.MethodPatch:
		var payload struct {
			Title       *string `json:"title"`
			Description *string `json:"description"`
			Priority    *string `json:"priority"`
			DueDate     *string `json:"due_date"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		input := task.UpdateInput{
			Title:       payload.Title,
			Description: payload.Description,
			Priority:    payload.Priority,
		}
		// An explicit empty due_date clears the deadline.
		if payload.DueDate != nil {
			if *payload.DueDate == "" {
				input.ClearDue = true
			} else {
				due, err := time.Parse(time.RFC3339, *payload.DueDate)
				if err != nil {
					writeError(w, http.StatusBadRequest, "due_date must be RFC 3339")
					return
				}
				utc := due.UTC()
				input.DueDate = &utc
			}
		}
		updated, err := r.task.Update(req.Context(), taskID, info.UserID, input)
		if err != nil {
			r.serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		if err := r.task.Delete(req.Context(), taskID, info.UserID); err != nil {
			r.serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleTaskMove(w http.ResponseWriter, req *http.Request, taskID string, info authInfo) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		CategoryID string `json:"category_id"`
		Position   int    `json:"position"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if payload.CategoryID == "" {
		writeError(w, http.StatusBadRequest, "category_id is required")
		return
	}
	moved, err := r.task.Move(req.Context(), taskID, info.UserID, payload.CategoryID, payload.Position)
	if err != nil {
		r.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, moved)
}

func (r *Router) handleTaskToggle(w http.ResponseWriter, req *http.Request, taskID string, info authInfo) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	toggled, err := r.task.Toggle(req.Context(), taskID, info.UserID)
	if err != nil {
		r.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toggled)
}

func (r *Router) handleTaskSubtasks(w http.ResponseWriter, req *http.Request, taskID, workspaceID string, info authInfo) {
	switch req.Method {
	case http.MethodGet:
		subtasks, err := r.task.Subtasks(req.Context(), taskID)
		if err != nil {
			r.serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, subtasks)
	case http.MethodPost:
		var payload struct {
			Title       string  `json:"title"`
			Description string  `json:"description"`
			Priority    string  `json:"priority"`
			DueDate     *string `json:"due_date"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		parentID := taskID
		input := task.CreateInput{
			WorkspaceID: workspaceID,
			ParentID:    &parentID,
			Title:       payload.Title,
			Description: payload.Description,
			Priority:    payload.Priority,
		}
		if payload.DueDate != nil && *payload.DueDate != "" {
			due, err := time.Parse(time.RFC3339, *payload.DueDate)
			if err != nil {
				writeError(w, http.StatusBadRequest, "due_date must be RFC 3339")
				return
			}
			utc := due.UTC()
			input.DueDate = &utc
		}
		created, err := r.task.Create(req.Context(), info.UserID, input)
		if err != nil {
			r.serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		r.methodNotAllowed(w)
	}
}
