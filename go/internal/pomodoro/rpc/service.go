// Package rpc exposes the pomodoro timers as a Connect service. Messages
// are google.protobuf.Struct values carrying the same JSON shapes as the
// REST surface.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"github.com/rs/zerolog/log"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mcdev12/studybuddy/go/internal/models"
	"github.com/mcdev12/studybuddy/go/internal/pomodoro"
)

const TimerServiceName = "studybuddy.pomodoro.v1.TimerService"

const (
	GetTimerProcedure       = "/" + TimerServiceName + "/GetTimer"
	ApplyActionProcedure    = "/" + TimerServiceName + "/ApplyAction"
	UpdateSettingsProcedure = "/" + TimerServiceName + "/UpdateSettings"
)

// Authenticator resolves a bearer credential to a user.
type Authenticator interface {
	Resolve(ctx context.Context, credential string) (*models.User, error)
}

// TimerApp defines what the service layer needs from the pomodoro app.
type TimerApp interface {
	Authorize(ctx context.Context, user *models.User, groupID int64) (*pomodoro.Viewer, error)
	Snapshot(ctx context.Context, viewer *pomodoro.Viewer) (*pomodoro.Snapshot, error)
	Apply(ctx context.Context, viewer *pomodoro.Viewer, action models.Action) (*pomodoro.Snapshot, error)
	UpdateSettings(ctx context.Context, viewer *pomodoro.Viewer, update pomodoro.SettingsUpdate) (*pomodoro.Snapshot, error)
}

// Service implements the TimerService RPCs.
type Service struct {
	app  TimerApp
	auth Authenticator
}

// NewService creates a new timer RPC service.
func NewService(app TimerApp, auth Authenticator) *Service {
	return &Service{app: app, auth: auth}
}

// NewTimerServiceHandler builds an HTTP handler serving every procedure of
// the service, and the path prefix to mount it on.
func NewTimerServiceHandler(svc *Service, opts ...connect.HandlerOption) (string, http.Handler) {
	getTimer := connect.NewUnaryHandler(GetTimerProcedure, svc.GetTimer, opts...)
	applyAction := connect.NewUnaryHandler(ApplyActionProcedure, svc.ApplyAction, opts...)
	updateSettings := connect.NewUnaryHandler(UpdateSettingsProcedure, svc.UpdateSettings, opts...)

	return "/" + TimerServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case GetTimerProcedure:
			getTimer.ServeHTTP(w, r)
		case ApplyActionProcedure:
			applyAction.ServeHTTP(w, r)
		case UpdateSettingsProcedure:
			updateSettings.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// GetTimer returns the caller's view of a group timer.
// Request: {"group_id": 7}.
func (s *Service) GetTimer(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	viewer, err := s.viewer(ctx, req)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.app.Snapshot(ctx, viewer)
	if err != nil {
		return nil, toConnectError(err)
	}
	return snapshotResponse(snapshot)
}

// ApplyAction runs a timer action.
// Request: {"group_id": 7, "action": "start"}.
func (s *Service) ApplyAction(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	name := req.Msg.GetFields()["action"].GetStringValue()
	action, ok := models.ParseAction(name)
	if !ok {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("unknown action: %s", name))
	}

	viewer, err := s.viewer(ctx, req)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.app.Apply(ctx, viewer, action)
	if err != nil {
		return nil, toConnectError(err)
	}
	return snapshotResponse(snapshot)
}

// UpdateSettings changes a group's durations or sync policy.
// Request: {"group_id": 7, "settings": {"work_duration": 1800}}.
func (s *Service) UpdateSettings(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	var update pomodoro.SettingsUpdate
	if settings := req.Msg.GetFields()["settings"].GetStructValue(); settings != nil {
		raw, err := json.Marshal(settings.AsMap())
		if err != nil {
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		}
		if err := json.Unmarshal(raw, &update); err != nil {
			return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("invalid settings: %w", err))
		}
	}

	viewer, err := s.viewer(ctx, req)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.app.UpdateSettings(ctx, viewer, update)
	if err != nil {
		return nil, toConnectError(err)
	}
	return snapshotResponse(snapshot)
}

func (s *Service) viewer(ctx context.Context, req *connect.Request[structpb.Struct]) (*pomodoro.Viewer, error) {
	groupID := int64(req.Msg.GetFields()["group_id"].GetNumberValue())
	if groupID <= 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("group_id is required"))
	}

	header := req.Header().Get("Authorization")
	user, err := s.auth.Resolve(ctx, strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")))
	if err != nil {
		return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("authentication required"))
	}

	viewer, err := s.app.Authorize(ctx, user, groupID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return viewer, nil
}

func snapshotResponse(snapshot *pomodoro.Snapshot) (*connect.Response[structpb.Struct], error) {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	msg, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

func toConnectError(err error) error {
	message := errors.New(pomodoro.PublicMessage(err))
	switch {
	case errors.Is(err, pomodoro.ErrUnauthenticated):
		return connect.NewError(connect.CodeUnauthenticated, message)
	case errors.Is(err, pomodoro.ErrForbidden):
		return connect.NewError(connect.CodePermissionDenied, message)
	case errors.Is(err, pomodoro.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, message)
	case errors.Is(err, pomodoro.ErrConflict):
		return connect.NewError(connect.CodeFailedPrecondition, message)
	case errors.Is(err, pomodoro.ErrValidation):
		return connect.NewError(connect.CodeInvalidArgument, message)
	default:
		log.Error().Err(err).Msg("timer rpc failed")
		return connect.NewError(connect.CodeInternal, message)
	}
}
