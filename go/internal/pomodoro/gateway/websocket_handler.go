package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/studybuddy/go/internal/models"
	"github.com/mcdev12/studybuddy/go/internal/pomodoro"
	"github.com/mcdev12/studybuddy/go/internal/pomodoro/events"
)

// Authenticator resolves a bearer credential to a user.
type Authenticator interface {
	Resolve(ctx context.Context, credential string) (*models.User, error)
}

// TimerService is the pomodoro application as seen by the transports.
type TimerService interface {
	Authorize(ctx context.Context, user *models.User, groupID int64) (*pomodoro.Viewer, error)
	Snapshot(ctx context.Context, viewer *pomodoro.Viewer) (*pomodoro.Snapshot, error)
	Apply(ctx context.Context, viewer *pomodoro.Viewer, action models.Action) (*pomodoro.Snapshot, error)
	UpdateSettings(ctx context.Context, viewer *pomodoro.Viewer, update pomodoro.SettingsUpdate) (*pomodoro.Snapshot, error)
}

// clientMessage is an inbound frame.
type clientMessage struct {
	Action string `json:"action"`
}

// WebSocketHandler upgrades timer and notification connections and
// dispatches inbound timer commands.
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	auth              Authenticator
	timers            TimerService
	credential        func(r *http.Request) string
}

// NewWebSocketHandler creates a new websocket handler.
func NewWebSocketHandler(cm *ConnectionManager, auth Authenticator, timers TimerService, credential func(r *http.Request) string) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		auth:              auth,
		timers:            timers,
		credential:        credential,
	}
}

// HandleTimerConnection serves /ws/pomodoro/{group_id}. The socket is
// upgraded before authentication so refusals can carry a close code.
func (h *WebSocketHandler) HandleTimerConnection(w http.ResponseWriter, r *http.Request) {
	groupID, err := strconv.ParseInt(r.PathValue("group_id"), 10, 64)
	if err != nil || groupID <= 0 {
		http.Error(w, "invalid group_id", http.StatusBadRequest)
		return
	}

	ws, err := h.connectionManager.Upgrade(w, r)
	if err != nil {
		return
	}

	ctx := r.Context()
	user, err := h.auth.Resolve(ctx, h.credential(r))
	if err != nil {
		log.Debug().Err(err).Int64("group_id", groupID).Msg("rejecting unauthenticated timer connection")
		h.connectionManager.Reject(ws, CloseUnauthenticated, "authentication required")
		return
	}

	viewer, err := h.timers.Authorize(ctx, user, groupID)
	if err != nil {
		code := closeCodeFor(err)
		log.Info().
			Err(err).
			Int64("group_id", groupID).
			Int64("user_id", user.ID).
			Int("close_code", code).
			Msg("rejecting timer connection")
		h.connectionManager.Reject(ws, code, pomodoro.PublicMessage(err))
		return
	}

	// Updates published while the snapshot loads are held and follow it.
	conn := h.connectionManager.Attach(ws, viewer.User, groupID, []events.Topic{events.GroupTopic(groupID)}, h)

	var first *events.Message
	snapshot, err := h.timers.Snapshot(ctx, viewer)
	if err != nil {
		log.Error().Err(err).Int64("group_id", groupID).Msg("failed to load initial timer state")
		first = events.Error(pomodoro.PublicMessage(err))
	} else {
		first = events.TimerState(snapshot)
	}
	if err := conn.Prime(first); err != nil {
		log.Error().Err(err).Str("connection_id", conn.ID).Msg("failed to send initial timer state")
	}
}

// HandleNotificationConnection serves /ws/notifications, a read-only feed
// of the caller's personal topic.
func (h *WebSocketHandler) HandleNotificationConnection(w http.ResponseWriter, r *http.Request) {
	ws, err := h.connectionManager.Upgrade(w, r)
	if err != nil {
		return
	}

	user, err := h.auth.Resolve(r.Context(), h.credential(r))
	if err != nil {
		h.connectionManager.Reject(ws, CloseUnauthenticated, "authentication required")
		return
	}

	conn := h.connectionManager.Attach(ws, *user, 0, []events.Topic{events.UserTopic(user.ID)}, nil)
	conn.Prime(nil)
}

// HandleMessage runs one inbound command. Failures are reported in-band;
// the connection stays open.
func (h *WebSocketHandler) HandleMessage(ctx context.Context, conn *Connection, data []byte) {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		conn.SendMessage(events.Error("invalid message format"))
		return
	}

	action, ok := models.ParseAction(msg.Action)
	if !ok {
		conn.SendMessage(events.Error(fmt.Sprintf("Unknown action: %s", msg.Action)))
		return
	}

	viewer, err := h.timers.Authorize(ctx, &conn.User, conn.GroupID)
	if err != nil {
		conn.SendMessage(events.Error(pomodoro.PublicMessage(err)))
		return
	}

	var snapshot *pomodoro.Snapshot
	if action == models.ActionSync {
		snapshot, err = h.timers.Snapshot(ctx, viewer)
	} else {
		_, err = h.timers.Apply(ctx, viewer, action)
	}
	if err != nil {
		if pomodoro.HTTPStatus(err) == http.StatusInternalServerError {
			log.Error().
				Err(err).
				Str("connection_id", conn.ID).
				Str("action", msg.Action).
				Msg("timer command failed")
		}
		conn.SendMessage(events.Error(pomodoro.PublicMessage(err)))
		return
	}

	if snapshot != nil {
		conn.SendMessage(events.TimerState(snapshot))
	}
}

// HandleConnectionStats returns statistics about active connections to
// authenticated callers.
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	if _, err := h.auth.Resolve(r.Context(), h.credential(r)); err != nil {
		writeError(w, r, &pomodoro.Error{Kind: pomodoro.ErrUnauthenticated, Message: "authentication required"})
		return
	}
	writeJSON(w, http.StatusOK, h.connectionManager.GetConnectionStats())
}

// RegisterRoutes registers websocket routes with an HTTP mux.
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/pomodoro/{group_id}", h.HandleTimerConnection)
	mux.HandleFunc("GET /ws/notifications", h.HandleNotificationConnection)
	mux.HandleFunc("GET /ws/stats", h.HandleConnectionStats)
}

func closeCodeFor(err error) int {
	switch {
	case errors.Is(err, pomodoro.ErrUnauthenticated):
		return CloseUnauthenticated
	case errors.Is(err, pomodoro.ErrForbidden):
		return CloseForbidden
	case errors.Is(err, pomodoro.ErrNotFound):
		return CloseNotFound
	default:
		return websocket.CloseInternalServerErr
	}
}
