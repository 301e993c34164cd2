package httpx

import (
	"net/http"

	"github.com/taskdeck/taskdeck/internal/ws"
)

func (r *Router) handleActivityWS(w http.ResponseWriter, req *http.Request) {
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for activity websocket", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	workspaceID := req.URL.Query().Get("workspace_id")
	if workspaceID == "" {
		writeError(w, http.StatusBadRequest, "workspace_id query parameter required")
		return
	}
	if _, err := r.workspace.RequireMember(req.Context(), workspaceID, info.UserID); err != nil {
		r.serviceError(w, err)
		return
	}
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	client := ws.NewClient(conn, r.logger)
	r.activity.Hub().Register(workspaceID, client)
	go func() {
		defer func() {
			r.activity.Hub().Unregister(workspaceID, client)
			client.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}
