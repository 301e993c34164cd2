package httpx

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/taskdeck/taskdeck/internal/domain"
)

func (r *Router) handleCategorySubroutes(w http.ResponseWriter, req *http.Request) {
	trimmed := strings.TrimPrefix(req.URL.Path, "/categories/")
	parts := strings.Split(trimmed, "/")
	categoryID := parts[0]
	if categoryID == "" {
		r.notFound(w)
		return
	}
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for category route", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}

	// Tenancy first: resolve the column, then check membership in its workspace.
	cat, err := r.category.Resolve(req.Context(), categoryID)
	if err != nil {
		r.serviceError(w, err)
		return
	}
	if !r.requireResourceMember(w, req, cat.WorkspaceID, info) {
		return
	}

	switch {
	case len(parts) == 1:
		r.handleCategory(w, req, cat.ID, cat.WorkspaceID, info)
	case len(parts) == 2 && parts[1] == "move":
		if req.Method != http.MethodPost {
			r.methodNotAllowed(w)
			return
		}
		var payload struct {
			Position int `json:"position"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		moved, err := r.category.Move(req.Context(), cat.ID, info.UserID, payload.Position)
		if err != nil {
			r.serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, moved)
	default:
		r.notFound(w)
	}
}

func (r *Router) handleCategory(w http.ResponseWriter, req *http.Request, categoryID, workspaceID string, info authInfo) {
	switch req.Method {
	case http.MethodGet:
		cat, err := r.category.Get(req.Context(), categoryID, workspaceID)
		if err != nil {
			r.serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, cat)
	case http.MethodPatch:
		var payload struct {
			Name  *string `json:"name"`
			Color *string `json:"color"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		updated, err := r.category.Update(req.Context(), categoryID, info.UserID, payload.Name, payload.Color)
		if err != nil {
			r.serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		// Deleting a column destroys its tasks; admins only.
		if _, err := r.workspace.RequireRole(req.Context(), workspaceID, info.UserID, domain.RoleAdmin); err != nil {
			r.serviceError(w, err)
			return
		}
		if err := r.category.Delete(req.Context(), categoryID, info.UserID); err != nil {
			r.serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		r.methodNotAllowed(w)
	}
}
