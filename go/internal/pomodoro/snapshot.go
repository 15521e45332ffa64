package pomodoro

import (
	"time"

	"github.com/mcdev12/studybuddy/go/internal/models"
	"github.com/mcdev12/studybuddy/go/internal/pomodoro/timer"
)

// Snapshot is the full client-facing view of one timer at one instant.
// The HTTP surface and realtime frames share this type so both transports
// produce identical bodies.
type Snapshot struct {
	ID                      int64             `json:"id"`
	Group                   int64             `json:"group"`
	Phase                   models.Phase      `json:"phase"`
	State                   models.RunState   `json:"state"`
	PhaseStart              *time.Time        `json:"phase_start"`
	PhaseDuration           int               `json:"phase_duration"`
	PausedAt                *time.Time        `json:"paused_at"`
	RemainingSecondsAtPause *int              `json:"remaining_seconds_at_pause"`
	RemainingSeconds        int               `json:"remaining_seconds"`
	WorkDuration            int               `json:"work_duration"`
	BreakDuration           int               `json:"break_duration"`
	LongBreakDuration       int               `json:"long_break_duration"`
	SessionsBeforeLongBreak int               `json:"sessions_before_long_break"`
	CurrentSessionNumber    int               `json:"current_session_number"`
	SyncMode                models.SyncPolicy `json:"sync_mode"`
	AllowMemberPause        bool              `json:"allow_member_pause"`
	IsLeader                bool              `json:"is_leader"`
	IsCreator               bool              `json:"is_creator"`
	IsPersonalTimer         bool              `json:"is_personal_timer"`
	CurrentUserName         *string           `json:"current_user_name"`
}

// buildSnapshot renders t as seen by viewer. group is the group's shared
// timer and supplies policy fields for personal timers.
func buildSnapshot(t, group *models.Timer, viewer *Viewer, now time.Time) *Snapshot {
	personal := t.Key.IsPersonal()
	s := &Snapshot{
		ID:                      t.ID,
		Group:                   t.Key.GroupID,
		Phase:                   t.Phase,
		State:                   timer.DisplayState(t, now),
		PhaseStart:              utc(t.PhaseAnchor),
		PhaseDuration:           t.PhaseDurationSeconds,
		PausedAt:                utc(t.PausedAt),
		RemainingSecondsAtPause: t.RemainingAtPause,
		RemainingSeconds:        timer.Remaining(t, now),
		WorkDuration:            t.Settings.WorkDuration,
		BreakDuration:           t.Settings.BreakDuration,
		LongBreakDuration:       t.Settings.LongBreakDuration,
		SessionsBeforeLongBreak: t.Settings.SessionsBeforeLongBreak,
		CurrentSessionNumber:    timer.CurrentSessionNumber(t),
		SyncMode:                group.SyncPolicy,
		AllowMemberPause:        group.AllowMemberPause,
		IsPersonalTimer:         personal,
	}
	if viewer != nil {
		// A personal timer is driven by its owner alone.
		s.IsLeader = personal || viewer.Role.IsPrivileged()
		s.IsCreator = viewer.Role == models.RoleOwner
		name := viewer.User.Username
		s.CurrentUserName = &name
	}
	return s
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
