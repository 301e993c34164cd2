package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/taskdeck/taskdeck/internal/domain"
	"github.com/taskdeck/taskdeck/internal/service/task"
)

func (r *Router) handleWorkspaces(w http.ResponseWriter, req *http.Request) {
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for workspace route", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	switch req.Method {
	case http.MethodPost:
		var payload struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		ws, err := r.workspace.Create(req.Context(), info.UserID, payload.Name)
		if err != nil {
			r.serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, ws)
	case http.MethodGet:
		workspaces, err := r.workspace.ListMine(req.Context(), info.UserID)
		if err != nil {
			r.serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, workspaces)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleWorkspaceSubroutes(w http.ResponseWriter, req *http.Request) {
	trimmed := strings.TrimPrefix(req.URL.Path, "/workspaces/")
	parts := strings.Split(trimmed, "/")
	workspaceID := parts[0]
	if workspaceID == "" {
		r.notFound(w)
		return
	}
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for workspace subroute", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	switch {
	case len(parts) == 1:
		r.handleWorkspace(w, req, workspaceID, info)
	case parts[1] == "members":
		r.handleWorkspaceMembers(w, req, workspaceID, info, parts[1:])
	case parts[1] == "invitations":
		r.handleWorkspaceInvitations(w, req, workspaceID, info, parts[1:])
	case parts[1] == "categories" && len(parts) == 2:
		r.handleWorkspaceCategories(w, req, workspaceID, info)
	case parts[1] == "tasks" && len(parts) == 2:
		r.handleWorkspaceTasks(w, req, workspaceID, info)
	case parts[1] == "activity" && len(parts) == 2:
		r.handleWorkspaceActivity(w, req, workspaceID, info)
	case parts[1] == "export" && len(parts) == 2:
		r.handleWorkspaceExport(w, req, workspaceID, info)
	default:
		r.notFound(w)
	}
}

func (r *Router) handleWorkspace(w http.ResponseWriter, req *http.Request, workspaceID string, info authInfo) {
	switch req.Method {
	case http.MethodGet:
		ws, err := r.workspace.Get(req.Context(), workspaceID, info.UserID)
		if err != nil {
			r.serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ws)
	case http.MethodPatch:
		var payload struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		ws, err := r.workspace.Rename(req.Context(), workspaceID, info.UserID, payload.Name)
		if err != nil {
			r.serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ws)
	case http.MethodDelete:
		if err := r.workspace.Delete(req.Context(), workspaceID, info.UserID); err != nil {
			r.serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleWorkspaceMembers(w http.ResponseWriter, req *http.Request, workspaceID string, info authInfo, parts []string) {
	switch {
	case len(parts) == 1:
		if req.Method != http.MethodGet {
			r.methodNotAllowed(w)
			return
		}
		members, err := r.workspace.Members(req.Context(), workspaceID, info.UserID)
		if err != nil {
			r.serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, members)
	case len(parts) == 2 && parts[1] != "":
		memberID := parts[1]
		switch req.Method {
		case http.MethodPatch:
			var payload struct {
				Role string `json:"role"`
			}
			if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
				writeError(w, http.StatusBadRequest, "invalid JSON body")
				return
			}
			if err := r.workspace.SetMemberRole(req.Context(), workspaceID, info.UserID, memberID, payload.Role); err != nil {
				r.serviceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
		case http.MethodDelete:
			if err := r.workspace.RemoveMember(req.Context(), workspaceID, info.UserID, memberID); err != nil {
				r.serviceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
		default:
			r.methodNotAllowed(w)
		}
	default:
		r.notFound(w)
	}
}

func (r *Router) handleWorkspaceInvitations(w http.ResponseWriter, req *http.Request, workspaceID string, info authInfo, parts []string) {
	switch {
	case len(parts) == 1:
		switch req.Method {
		case http.MethodGet:
			invitations, err := r.workspace.Invitations(req.Context(), workspaceID, info.UserID)
			if err != nil {
				r.serviceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, invitations)
		case http.MethodPost:
			var payload struct {
				Email string `json:"email"`
				Role  string `json:"role"`
			}
			if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
				writeError(w, http.StatusBadRequest, "invalid JSON body")
				return
			}
			inv, err := r.workspace.Invite(req.Context(), workspaceID, info.UserID, payload.Email, payload.Role)
			if err != nil {
				r.serviceError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, inv)
		default:
			r.methodNotAllowed(w)
		}
	case len(parts) == 2 && parts[1] != "":
		if req.Method != http.MethodDelete {
			r.methodNotAllowed(w)
			return
		}
		if err := r.workspace.RevokeInvitation(req.Context(), workspaceID, info.UserID, parts[1]); err != nil {
			r.serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
	default:
		r.notFound(w)
	}
}

func (r *Router) handleWorkspaceCategories(w http.ResponseWriter, req *http.Request, workspaceID string, info authInfo) {
	if _, err := r.workspace.RequireMember(req.Context(), workspaceID, info.UserID); err != nil {
		r.serviceError(w, err)
		return
	}
	switch req.Method {
	case http.MethodGet:
		categories, err := r.category.List(req.Context(), workspaceID)
		if err != nil {
			r.serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, categories)
	case http.MethodPost:
		var payload struct {
			Name  string `json:"name"`
			Color string `json:"color"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		created, err := r.category.Create(req.Context(), workspaceID, info.UserID, payload.Name, payload.Color)
		if err != nil {
			r.serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleWorkspaceTasks(w http.ResponseWriter, req *http.Request, workspaceID string, info authInfo) {
	if _, err := r.workspace.RequireMember(req.Context(), workspaceID, info.UserID); err != nil {
		r.serviceError(w, err)
		return
	}
	switch req.Method {
	case http.MethodGet:
		filter, err := taskFilterFromQuery(req)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		tasks, err := r.task.List(req.Context(), workspaceID, filter)
		if err != nil {
			r.serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, tasks)
	case http.MethodPost:
		var payload struct {
			CategoryID  string  `json:"category_id"`
			ParentID    *string `json:"parent_id"`
			Title       string  `json:"title"`
			Description string  `json:"description"`
			Priority    string  `json:"priority"`
			DueDate     *string `json:"due_date"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		input := task.CreateInput{
			WorkspaceID: workspaceID,
			CategoryID:  payload.CategoryID,
			ParentID:    payload.ParentID,
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

// taskFilterFromQuery decodes list filters from query parameters.
func taskFilterFromQuery(req *http.Request) (domain.TaskFilter, error) {
	query := req.URL.Query()
	filter := domain.TaskFilter{
		CategoryID: query.Get("category_id"),
		Priority:   query.Get("priority"),
		Search:     strings.TrimSpace(query.Get("q")),
	}
	if raw := query.Get("completed"); raw != "" {
		completed, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, fmt.Errorf("completed must be a boolean")
		}
		filter.Completed = &completed
	}
	if raw := query.Get("due_before"); raw != "" {
		due, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, fmt.Errorf("due_before must be RFC 3339")
		}
		utc := due.UTC()
		filter.DueBefore = &utc
	}
	filter.Limit, _ = strconv.Atoi(query.Get("limit"))
	filter.Offset, _ = strconv.Atoi(query.Get("offset"))
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return filter, nil
}

func (r *Router) handleWorkspaceActivity(w http.ResponseWriter, req *http.Request, workspaceID string, info authInfo) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	if _, err := r.workspace.RequireMember(req.Context(), workspaceID, info.UserID); err != nil {
		r.serviceError(w, err)
		return
	}
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(req.URL.Query().Get("offset"))
	entries, err := r.activity.List(req.Context(), workspaceID, limit, offset)
	if err != nil {
		r.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (r *Router) handleWorkspaceExport(w http.ResponseWriter, req *http.Request, workspaceID string, info authInfo) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	if _, err := r.workspace.RequireMember(req.Context(), workspaceID, info.UserID); err != nil {
		r.serviceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "tasks-"+workspaceID+".csv"))
	if err := r.task.ExportCSV(req.Context(), workspaceID, w); err != nil {
		r.logger.Error("csv export failed", "workspace_id", workspaceID, "error", err)
	}
}
