package pomodoro

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/studybuddy/go/internal/models"
	"github.com/mcdev12/studybuddy/go/internal/pomodoro/events"
	"github.com/mcdev12/studybuddy/go/internal/pomodoro/permission"
)

// SettingsUpdate is a partial change to a group's timer configuration.
// Nil fields are left as they are.
type SettingsUpdate struct {
	WorkDuration            *int               `json:"work_duration,omitempty" validate:"omitempty,min=60,max=7200"`
	BreakDuration           *int               `json:"break_duration,omitempty" validate:"omitempty,min=60,max=1800"`
	LongBreakDuration       *int               `json:"long_break_duration,omitempty" validate:"omitempty,min=60,max=3600"`
	SessionsBeforeLongBreak *int               `json:"sessions_before_long_break,omitempty" validate:"omitempty,min=1,max=12"`
	SyncMode                *models.SyncPolicy `json:"sync_mode,omitempty" validate:"omitempty,oneof=forced flexible"`
	AllowMemberPause        *bool              `json:"allow_member_pause,omitempty"`
}

func (u SettingsUpdate) empty() bool {
	return u.WorkDuration == nil && u.BreakDuration == nil && u.LongBreakDuration == nil &&
		u.SessionsBeforeLongBreak == nil && u.SyncMode == nil && u.AllowMemberPause == nil
}

func (u SettingsUpdate) apply(t *models.Timer) {
	if u.WorkDuration != nil {
		t.Settings.WorkDuration = *u.WorkDuration
	}
	if u.BreakDuration != nil {
		t.Settings.BreakDuration = *u.BreakDuration
	}
	if u.LongBreakDuration != nil {
		t.Settings.LongBreakDuration = *u.LongBreakDuration
	}
	if u.SessionsBeforeLongBreak != nil {
		t.Settings.SessionsBeforeLongBreak = *u.SessionsBeforeLongBreak
	}
	if u.SyncMode != nil {
		t.SyncPolicy = *u.SyncMode
	}
	if u.AllowMemberPause != nil {
		t.AllowMemberPause = *u.AllowMemberPause
	}
	// An idle timer shows the nominal duration, which may just have changed.
	if t.RunState == models.RunStateIdle {
		t.PhaseDurationSeconds = t.Settings.DurationFor(t.Phase)
	}
}

// UpdateSettings changes durations or sync policy of a group. Only the
// group's leadership may do so.
func (a *App) UpdateSettings(ctx context.Context, viewer *Viewer, update SettingsUpdate) (*Snapshot, error) {
	shared := a.groupOwner(viewer.Group.ID)
	group, err := shared.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load group timer: %w", err)
	}

	if !permission.CanControl(group, viewer.actor(), models.ActionUpdateSettings) {
		return nil, newError(ErrForbidden, "only group leaders can change timer settings")
	}
	if update.empty() {
		return nil, newError(ErrValidation, "no settings to update")
	}
	if err := a.validate.Struct(update); err != nil {
		return nil, newError(ErrValidation, validationMessage(err))
	}

	ctx = context.WithoutCancel(ctx)
	group, err = shared.Update(ctx, func(t *models.Timer) error {
		update.apply(t)
		return a.validate.Struct(t.Settings)
	})
	if err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return nil, newError(ErrValidation, validationMessage(err))
		}
		return nil, fmt.Errorf("update settings: %w", err)
	}

	log.Info().
		Int64("group_id", viewer.Group.ID).
		Int64("user_id", viewer.User.ID).
		Str("sync_mode", string(group.SyncPolicy)).
		Bool("allow_member_pause", group.AllowMemberPause).
		Msg("timer settings updated")

	now := a.clock.Now()
	t := group
	if owner := a.ownerFor(viewer, group); owner.Key().IsPersonal() {
		if t, err = owner.Load(ctx); err != nil {
			return nil, fmt.Errorf("load personal timer: %w", err)
		}
	}

	snapshot := buildSnapshot(t, group, viewer, now)
	a.publish(ctx, events.GroupTopic(viewer.Group.ID),
		events.TimerUpdate(models.ActionUpdateSettings, snapshot, group.SyncPolicy, viewer.User.Username))
	return snapshot, nil
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "min":
			parts = append(parts, fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param()))
		case "max":
			parts = append(parts, fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param()))
		case "oneof":
			parts = append(parts, fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s is invalid", fe.Field()))
		}
	}
	return strings.Join(parts, "; ")
}
