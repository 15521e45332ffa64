package gateway

import (
	"context"
	"net/http"
	"strconv"

	"github.com/mcdev12/studybuddy/go/internal/models"
	"github.com/mcdev12/studybuddy/go/internal/pomodoro"
)

// NotificationService is the notification inbox.
type NotificationService interface {
	UnreadCount(ctx context.Context, userID int64) (int, error)
	List(ctx context.Context, userID int64, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, id int64) (bool, error)
	MarkAllRead(ctx context.Context, userID int64) (int, error)
}

// NotificationHandler serves the caller's notification inbox.
type NotificationHandler struct {
	auth          Authenticator
	notifications NotificationService
	credential    func(r *http.Request) string
}

// NewNotificationHandler creates a new notification handler.
func NewNotificationHandler(auth Authenticator, notifications NotificationService, credential func(r *http.Request) string) *NotificationHandler {
	return &NotificationHandler{auth: auth, notifications: notifications, credential: credential}
}

// RegisterRoutes registers the notification routes with an HTTP mux.
func (h *NotificationHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/notifications", h.List)
	mux.HandleFunc("GET /api/notifications/unread_count", h.UnreadCount)
	mux.HandleFunc("POST /api/notifications/{id}/read", h.MarkRead)
	mux.HandleFunc("POST /api/notifications/read_all", h.MarkAllRead)
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := h.notifications.List(r.Context(), user.ID, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []models.Notification{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": items})
}

func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}

	count, err := h.notifications.UnreadCount(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"unread_count": count})
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}

	id, ok := pathInt64(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid notification id"})
		return
	}

	changed, err := h.notifications.MarkRead(r.Context(), user.ID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !changed {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "notification not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}

	n, err := h.notifications.MarkAllRead(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": n})
}

func (h *NotificationHandler) user(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user, err := h.auth.Resolve(r.Context(), h.credential(r))
	if err != nil {
		writeError(w, r, &pomodoro.Error{Kind: pomodoro.ErrUnauthenticated, Message: "authentication required"})
		return nil, false
	}
	return user, true
}
