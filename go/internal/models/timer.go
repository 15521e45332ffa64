package models

import "time"

// Phase is one segment of the pomodoro cycle.
type Phase string

const (
	PhaseWork       Phase = "work"
	PhaseShortBreak Phase = "short_break"
	PhaseLongBreak  Phase = "long_break"
)

// IsBreak reports whether the phase is a short or long break.
func (p Phase) IsBreak() bool {
	return p == PhaseShortBreak || p == PhaseLongBreak
}

// RunState is the run state of the current phase instance.
type RunState string

const (
	RunStateIdle      RunState = "idle"
	RunStateRunning   RunState = "running"
	RunStatePaused    RunState = "paused"
	RunStateCompleted RunState = "completed"
)

// SyncPolicy decides whether a group shares one clock or each member runs their own.
type SyncPolicy string

const (
	SyncPolicyForced   SyncPolicy = "forced"
	SyncPolicyFlexible SyncPolicy = "flexible"
)

// Valid reports whether p is a known policy.
func (p SyncPolicy) Valid() bool {
	return p == SyncPolicyForced || p == SyncPolicyFlexible
}

// TimerSettings holds the phase durations in seconds.
type TimerSettings struct {
	WorkDuration            int `json:"work_duration" yaml:"work_duration" validate:"min=60,max=7200"`
	BreakDuration           int `json:"break_duration" yaml:"break_duration" validate:"min=60,max=1800"`
	LongBreakDuration       int `json:"long_break_duration" yaml:"long_break_duration" validate:"min=60,max=3600"`
	SessionsBeforeLongBreak int `json:"sessions_before_long_break" yaml:"sessions_before_long_break" validate:"min=1,max=12"`
}

// DefaultTimerSettings returns the classic 25/5/15 cycle with a long break every 4 sessions.
func DefaultTimerSettings() TimerSettings {
	return TimerSettings{
		WorkDuration:            1500,
		BreakDuration:           300,
		LongBreakDuration:       900,
		SessionsBeforeLongBreak: 4,
	}
}

// DurationFor returns the nominal duration of a phase.
func (s TimerSettings) DurationFor(p Phase) int {
	switch p {
	case PhaseShortBreak:
		return s.BreakDuration
	case PhaseLongBreak:
		return s.LongBreakDuration
	default:
		return s.WorkDuration
	}
}

// TimerKey identifies a timer. UserID is zero for the shared group timer.
type TimerKey struct {
	GroupID int64
	UserID  int64
}

// GroupTimerKey returns the key of the shared timer of a group.
func GroupTimerKey(groupID int64) TimerKey {
	return TimerKey{GroupID: groupID}
}

// UserTimerKey returns the key of a member's personal timer in a group.
func UserTimerKey(groupID, userID int64) TimerKey {
	return TimerKey{GroupID: groupID, UserID: userID}
}

// IsPersonal reports whether the key names a per-user timer.
func (k TimerKey) IsPersonal() bool {
	return k.UserID != 0
}

// Timer is the persisted state of one logical timer.
//
// Remaining time is never stored as a live counter. It is derived from
// PhaseAnchor and PhaseDurationSeconds while running, or read from
// RemainingAtPause while paused.
type Timer struct {
	ID                   int64      `json:"id"`
	Key                  TimerKey   `json:"-"`
	Phase                Phase      `json:"phase"`
	RunState             RunState   `json:"state"`
	PhaseAnchor          *time.Time `json:"phase_start"`
	PhaseDurationSeconds int        `json:"phase_duration"`
	PausedAt             *time.Time `json:"paused_at"`
	RemainingAtPause     *int       `json:"remaining_seconds_at_pause"`
	SessionCounter       int        `json:"session_counter"`

	// Settings are authoritative on group timers. Personal timers get a
	// copy of their group's settings when loaded.
	Settings TimerSettings `json:"settings"`

	// Group timer only.
	SyncPolicy       SyncPolicy `json:"sync_mode"`
	AllowMemberPause bool       `json:"allow_member_pause"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewGroupTimer returns an idle WORK timer for a group.
func NewGroupTimer(groupID int64, settings TimerSettings, policy SyncPolicy) *Timer {
	return &Timer{
		Key:                  GroupTimerKey(groupID),
		Phase:                PhaseWork,
		RunState:             RunStateIdle,
		PhaseDurationSeconds: settings.WorkDuration,
		Settings:             settings,
		SyncPolicy:           policy,
	}
}

// NewUserTimer returns an idle WORK timer for a member of a group.
func NewUserTimer(groupID, userID int64, settings TimerSettings) *Timer {
	return &Timer{
		Key:                  UserTimerKey(groupID, userID),
		Phase:                PhaseWork,
		RunState:             RunStateIdle,
		PhaseDurationSeconds: settings.WorkDuration,
		Settings:             settings,
	}
}

// Clone returns a deep copy of t.
func (t *Timer) Clone() *Timer {
	c := *t
	if t.PhaseAnchor != nil {
		v := *t.PhaseAnchor
		c.PhaseAnchor = &v
	}
	if t.PausedAt != nil {
		v := *t.PausedAt
		c.PausedAt = &v
	}
	if t.RemainingAtPause != nil {
		v := *t.RemainingAtPause
		c.RemainingAtPause = &v
	}
	return &c
}
