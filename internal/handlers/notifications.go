package handlers

import (
	"net/http"

	"github.com/bobmcallan/folio-portal/internal/common"
)

// NotificationHandler serves the per-session notification feed.
type NotificationHandler struct {
	logger *common.Logger
	guard  *Guard
}

// NewNotificationHandler creates a new notification handler.
func NewNotificationHandler(logger *common.Logger, guard *Guard) *NotificationHandler {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &NotificationHandler{logger: logger, guard: guard}
}

// HandleList handles GET /api/notifications (newest first) and DELETE
// /api/notifications (clear all).
func (h *NotificationHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.guard.workspace(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		items := ws.Feed.List()
		WriteJSON(w, http.StatusOK, map[string]any{
			"status":        "ok",
			"notifications": items,
			"count":         len(items),
		})
	case http.MethodDelete:
		ws.Feed.Clear()
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleDismiss handles DELETE /api/notifications/{id}.
func (h *NotificationHandler) HandleDismiss(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodDelete) {
		return
	}
	ws, ok := h.guard.workspace(w, r)
	if !ok {
		return
	}
	if !ws.Feed.Dismiss(r.PathValue("id")) {
		WriteError(w, http.StatusNotFound, "notification not found")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
