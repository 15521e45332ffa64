// Package timer implements the pomodoro phase state machine.
//
// Every function here is pure: the caller passes the current time and owns
// persistence. Nothing ticks. Remaining time is always derived from the
// record and now.
package timer

import (
	"time"

	"github.com/mcdev12/studybuddy/go/internal/models"
)

// Remaining returns the seconds left in the current phase at now. It never
// returns a negative value.
func Remaining(t *models.Timer, now time.Time) int {
	switch t.RunState {
	case models.RunStateIdle:
		return t.Settings.DurationFor(t.Phase)
	case models.RunStatePaused:
		if t.RemainingAtPause == nil {
			return 0
		}
		return max(0, *t.RemainingAtPause)
	case models.RunStateRunning:
		if t.PhaseAnchor == nil {
			return 0
		}
		left := time.Duration(t.PhaseDurationSeconds)*time.Second - now.Sub(*t.PhaseAnchor)
		return max(0, int(left/time.Second))
	default:
		return 0
	}
}

// DisplayState is the run state reported to clients. A running phase whose
// remaining time reached zero reports as completed; the record is not changed.
func DisplayState(t *models.Timer, now time.Time) models.RunState {
	if t.RunState == models.RunStateRunning && Remaining(t, now) == 0 {
		return models.RunStateCompleted
	}
	return t.RunState
}

// Start begins the current phase at now. Calling Start on a running timer
// restarts the phase from its full duration.
func Start(t *models.Timer, now time.Time) {
	anchor := now
	t.PhaseDurationSeconds = t.Settings.DurationFor(t.Phase)
	t.PhaseAnchor = &anchor
	t.PausedAt = nil
	t.RemainingAtPause = nil
	t.RunState = models.RunStateRunning
}

// Pause freezes a running timer. It reports false and leaves t untouched
// unless t is running.
func Pause(t *models.Timer, now time.Time) bool {
	if t.RunState != models.RunStateRunning {
		return false
	}
	left := Remaining(t, now)
	pausedAt := now
	t.RemainingAtPause = &left
	t.PausedAt = &pausedAt
	t.PhaseAnchor = nil
	t.RunState = models.RunStatePaused
	return true
}

// Resume continues a paused timer. The anchor is rebased so that the
// derived remaining time at now equals the remaining time at pause.
func Resume(t *models.Timer, now time.Time) bool {
	if t.RunState != models.RunStatePaused {
		return false
	}
	left := 0
	if t.RemainingAtPause != nil {
		left = *t.RemainingAtPause
	}
	elapsed := time.Duration(t.PhaseDurationSeconds-left) * time.Second
	anchor := now.Add(-elapsed)
	t.PhaseAnchor = &anchor
	t.PausedAt = nil
	t.RemainingAtPause = nil
	t.RunState = models.RunStateRunning
	return true
}

// Reset returns t to idle in its current phase. Phase and session counter
// are kept.
func Reset(t *models.Timer) {
	t.RunState = models.RunStateIdle
	t.PhaseAnchor = nil
	t.PausedAt = nil
	t.RemainingAtPause = nil
	t.PhaseDurationSeconds = t.Settings.DurationFor(t.Phase)
}

// NextPhase advances to the following phase and leaves the timer idle.
//
// Completing a WORK phase increments the session counter. The break that
// follows is long when the new count is a multiple of
// SessionsBeforeLongBreak, short otherwise. A break always leads to WORK.
func NextPhase(t *models.Timer) {
	if t.Phase == models.PhaseWork {
		t.SessionCounter++
		every := t.Settings.SessionsBeforeLongBreak
		if every > 0 && t.SessionCounter%every == 0 {
			t.Phase = models.PhaseLongBreak
		} else {
			t.Phase = models.PhaseShortBreak
		}
	} else {
		t.Phase = models.PhaseWork
	}
	Reset(t)
}

// CurrentSessionNumber is the 1-based number of the pomodoro the timer is
// in. During a break it is the number of the pomodoro just finished.
func CurrentSessionNumber(t *models.Timer) int {
	if t.Phase == models.PhaseWork {
		return t.SessionCounter + 1
	}
	return max(1, t.SessionCounter)
}
