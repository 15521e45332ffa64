package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/mcdev12/studybuddy/go/internal/models"
	"github.com/mcdev12/studybuddy/go/internal/pomodoro"
)

// TimerHandler is the request/response surface for clients without a live
// connection. It drives the same TimerService as the websocket, so every
// mutation is broadcast to realtime subscribers too.
type TimerHandler struct {
	auth       Authenticator
	timers     TimerService
	credential func(r *http.Request) string
}

// NewTimerHandler creates a new timer handler.
func NewTimerHandler(auth Authenticator, timers TimerService, credential func(r *http.Request) string) *TimerHandler {
	return &TimerHandler{auth: auth, timers: timers, credential: credential}
}

// RegisterRoutes registers the timer routes with an HTTP mux.
func (h *TimerHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/groups/{group_id}/timer", h.GetTimer)
	mux.HandleFunc("POST /api/groups/{group_id}/timer/{action}", h.ApplyAction)
	mux.HandleFunc("PATCH /api/groups/{group_id}/timer/settings", h.UpdateSettings)
}

// GetTimer returns the caller's view of the group timer.
func (h *TimerHandler) GetTimer(w http.ResponseWriter, r *http.Request) {
	viewer, err := h.viewer(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	snapshot, err := h.timers.Snapshot(r.Context(), viewer)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// ApplyAction runs start, pause, resume, reset, next_phase or sync.
func (h *TimerHandler) ApplyAction(w http.ResponseWriter, r *http.Request) {
	action, ok := models.ParseAction(r.PathValue("action"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown action: " + r.PathValue("action")})
		return
	}

	viewer, err := h.viewer(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	snapshot, err := h.timers.Apply(r.Context(), viewer, action)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// UpdateSettings changes durations and sync policy.
func (h *TimerHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	viewer, err := h.viewer(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var update pomodoro.SettingsUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	snapshot, err := h.timers.UpdateSettings(r.Context(), viewer, update)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (h *TimerHandler) viewer(r *http.Request) (*pomodoro.Viewer, error) {
	groupID, ok := pathInt64(r, "group_id")
	if !ok {
		return nil, &pomodoro.Error{Kind: pomodoro.ErrValidation, Message: "invalid group_id"}
	}

	user, err := h.auth.Resolve(r.Context(), h.credential(r))
	if err != nil {
		return nil, &pomodoro.Error{Kind: pomodoro.ErrUnauthenticated, Message: "authentication required"}
	}
	return h.timers.Authorize(r.Context(), user, groupID)
}
