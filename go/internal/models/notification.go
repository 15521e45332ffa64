package models

import (
	"encoding/json"
	"time"
)

// NotificationKind names a pomodoro lifecycle notification.
type NotificationKind string

const (
	NotificationPomodoroStart NotificationKind = "pomodoro_start"
	NotificationFocusEnd      NotificationKind = "focus_end"
	NotificationBreakStart    NotificationKind = "break_start"
	NotificationBreakEnd      NotificationKind = "break_end"
	NotificationCycleComplete NotificationKind = "cycle_complete"
)

// IsPhaseStart reports whether the kind announces the start of a phase.
// Those are the only kinds ordinary members receive.
func (k NotificationKind) IsPhaseStart() bool {
	return k == NotificationPomodoroStart || k == NotificationBreakStart
}

// Notification is a persisted notification for one user.
type Notification struct {
	ID        int64            `json:"id"`
	UserID    int64            `json:"user_id"`
	Kind      NotificationKind `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	GroupID   *int64           `json:"group_id"`
	ExtraData json.RawMessage  `json:"extra_data,omitempty"`
	IsRead    bool             `json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
}
