package pomodoro

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/studybuddy/go/internal/models"
)

// lifecycleKinds returns the notifications a shared timer transition
// produces. Starting a phase announces it. Advancing from WORK ends the
// focus session, and entering the long break completes a cycle. Advancing
// from a break ends the break.
func lifecycleKinds(before, after *models.Timer, action models.Action) []models.NotificationKind {
	switch action {
	case models.ActionStart:
		if after.Phase.IsBreak() {
			return []models.NotificationKind{models.NotificationBreakStart}
		}
		return []models.NotificationKind{models.NotificationPomodoroStart}
	case models.ActionNextPhase:
		if before.Phase.IsBreak() {
			return []models.NotificationKind{models.NotificationBreakEnd}
		}
		kinds := []models.NotificationKind{models.NotificationFocusEnd}
		if after.Phase == models.PhaseLongBreak {
			kinds = append(kinds, models.NotificationCycleComplete)
		}
		return kinds
	default:
		return nil
	}
}

// notifyLifecycle sends lifecycle notifications to group members. The owner
// receives every kind; other members only hear that a phase started.
// Failures are logged and never surface to the caller.
func (a *App) notifyLifecycle(ctx context.Context, group models.StudyGroup, before, after *models.Timer, action models.Action) {
	if a.notifier == nil {
		return
	}
	kinds := lifecycleKinds(before, after, action)
	if len(kinds) == 0 {
		return
	}

	members, err := a.members.ActiveMembers(ctx, group.ID)
	if err != nil {
		log.Error().Err(err).Int64("group_id", group.ID).Msg("failed to load members for notifications")
		return
	}

	for _, kind := range kinds {
		extra := notificationExtra(kind, before, after)
		for _, m := range members {
			if m.Role != models.RoleOwner && !kind.IsPhaseStart() {
				continue
			}
			if err := a.notifier.Notify(ctx, m.UserID, kind, group.ID, extra); err != nil {
				log.Error().
					Err(err).
					Int64("group_id", group.ID).
					Int64("user_id", m.UserID).
					Str("kind", string(kind)).
					Msg("failed to send notification")
			}
		}
	}
}

// notificationExtra fills the template fields of a kind. Durations are in
// minutes.
func notificationExtra(kind models.NotificationKind, before, after *models.Timer) map[string]any {
	s := after.Settings
	extra := map[string]any{"cycles": after.SessionCounter}
	switch kind {
	case models.NotificationPomodoroStart:
		extra["duration"] = s.WorkDuration / 60
	case models.NotificationBreakStart:
		extra["duration"] = s.DurationFor(after.Phase) / 60
	case models.NotificationFocusEnd:
		extra["duration"] = s.WorkDuration / 60
	case models.NotificationBreakEnd:
		extra["duration"] = s.DurationFor(before.Phase) / 60
	case models.NotificationCycleComplete:
		extra["cycles"] = s.SessionsBeforeLongBreak
	}
	return extra
}
