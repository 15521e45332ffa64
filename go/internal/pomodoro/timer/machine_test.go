package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/studybuddy/go/internal/models"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func newTimer() *models.Timer {
	return models.NewGroupTimer(7, models.DefaultTimerSettings(), models.SyncPolicyForced)
}

func TestRemainingIdleIsNominalDuration(t *testing.T) {
	tm := newTimer()
	assert.Equal(t, 1500, Remaining(tm, t0))

	tm.Phase = models.PhaseShortBreak
	assert.Equal(t, 300, Remaining(tm, t0))

	tm.Phase = models.PhaseLongBreak
	assert.Equal(t, 900, Remaining(tm, t0))
}

func TestRemainingRunningDecreasesAndClamps(t *testing.T) {
	tm := newTimer()
	Start(tm, t0)

	prev := Remaining(tm, t0)
	assert.Equal(t, 1500, prev)
	for s := 1; s <= 1500; s++ {
		cur := Remaining(tm, t0.Add(time.Duration(s)*time.Second))
		assert.Less(t, cur, prev, "second %d", s)
		prev = cur
	}
	assert.Equal(t, 0, prev)
	assert.Equal(t, 0, Remaining(tm, t0.Add(3*time.Hour)))
	assert.Equal(t, models.RunStateCompleted, DisplayState(tm, t0.Add(3*time.Hour)))
	assert.Equal(t, models.RunStateRunning, tm.RunState)
}

func TestRemainingCompletedIsZero(t *testing.T) {
	tm := newTimer()
	tm.RunState = models.RunStateCompleted
	assert.Equal(t, 0, Remaining(tm, t0))
}

func TestStartSetsRunningFields(t *testing.T) {
	tm := newTimer()
	Start(tm, t0)

	assert.Equal(t, models.RunStateRunning, tm.RunState)
	require.NotNil(t, tm.PhaseAnchor)
	assert.True(t, tm.PhaseAnchor.Equal(t0))
	assert.Nil(t, tm.PausedAt)
	assert.Nil(t, tm.RemainingAtPause)
	assert.Equal(t, 1500, tm.PhaseDurationSeconds)
}

// A second start while running rebases the anchor and restarts the phase.
func TestStartWhileRunningRestartsPhase(t *testing.T) {
	tm := newTimer()
	Start(tm, t0)
	later := t0.Add(10 * time.Minute)
	assert.Equal(t, 900, Remaining(tm, later))

	Start(tm, later)
	assert.Equal(t, 1500, Remaining(tm, later))
	assert.True(t, tm.PhaseAnchor.Equal(later))
}

func TestPauseIsNoopUnlessRunning(t *testing.T) {
	tm := newTimer()
	assert.False(t, Pause(tm, t0))
	assert.Equal(t, models.RunStateIdle, tm.RunState)
	assert.Nil(t, tm.PausedAt)
}

func TestPauseSnapshotsRemaining(t *testing.T) {
	tm := newTimer()
	Start(tm, t0)
	at := t0.Add(100 * time.Second)

	require.True(t, Pause(tm, at))
	assert.Equal(t, models.RunStatePaused, tm.RunState)
	require.NotNil(t, tm.RemainingAtPause)
	assert.Equal(t, 1400, *tm.RemainingAtPause)
	require.NotNil(t, tm.PausedAt)
	assert.Nil(t, tm.PhaseAnchor)

	// Frozen while paused.
	assert.Equal(t, 1400, Remaining(tm, at.Add(time.Hour)))
	assert.False(t, Pause(tm, at.Add(time.Minute)))
}

func TestResumeIsNoopUnlessPaused(t *testing.T) {
	tm := newTimer()
	Start(tm, t0)
	anchor := *tm.PhaseAnchor
	assert.False(t, Resume(tm, t0.Add(time.Minute)))
	assert.True(t, tm.PhaseAnchor.Equal(anchor))
}

func TestPauseResumeRoundTripLosesNoTime(t *testing.T) {
	offsets := []time.Duration{0, 1500 * time.Millisecond, 7 * time.Second, 24*time.Minute + 59*time.Second, 40 * time.Minute}
	for _, off := range offsets {
		tm := newTimer()
		Start(tm, t0)
		t1 := t0.Add(off)
		before := Remaining(tm, t1)

		require.True(t, Pause(tm, t1))
		t2 := t1.Add(17 * time.Minute)
		require.True(t, Resume(tm, t2))

		assert.Equal(t, models.RunStateRunning, tm.RunState)
		assert.Nil(t, tm.PausedAt)
		assert.Nil(t, tm.RemainingAtPause)
		assert.Equal(t, before, Remaining(tm, t2), "offset %s", off)
		if before > 10 {
			assert.Equal(t, before-10, Remaining(tm, t2.Add(10*time.Second)))
		}
	}
}

func TestResetClearsTimingFields(t *testing.T) {
	prepare := map[string]func(*models.Timer){
		"idle":    func(*models.Timer) {},
		"running": func(tm *models.Timer) { Start(tm, t0) },
		"paused": func(tm *models.Timer) {
			Start(tm, t0)
			Pause(tm, t0.Add(time.Minute))
		},
		"break": func(tm *models.Timer) {
			NextPhase(tm)
			Start(tm, t0)
		},
	}
	for name, prep := range prepare {
		t.Run(name, func(t *testing.T) {
			tm := newTimer()
			prep(tm)
			phase, counter := tm.Phase, tm.SessionCounter

			Reset(tm)
			assert.Equal(t, models.RunStateIdle, tm.RunState)
			assert.Nil(t, tm.PhaseAnchor)
			assert.Nil(t, tm.PausedAt)
			assert.Nil(t, tm.RemainingAtPause)
			assert.Equal(t, phase, tm.Phase)
			assert.Equal(t, counter, tm.SessionCounter)
			want := tm.Settings.DurationFor(phase)
			assert.Equal(t, want, Remaining(tm, t0))
			assert.Equal(t, want, Remaining(tm, t0.Add(48*time.Hour)))
		})
	}
}

func TestNextPhaseCycle(t *testing.T) {
	tm := newTimer()
	want := []models.Phase{
		models.PhaseShortBreak, models.PhaseWork,
		models.PhaseShortBreak, models.PhaseWork,
		models.PhaseShortBreak, models.PhaseWork,
		models.PhaseLongBreak, models.PhaseWork,
	}
	wantCounter := []int{1, 1, 2, 2, 3, 3, 4, 4}

	for i := range want {
		Start(tm, t0)
		NextPhase(tm)
		assert.Equal(t, want[i], tm.Phase, "step %d", i+1)
		assert.Equal(t, wantCounter[i], tm.SessionCounter, "step %d", i+1)
		assert.Equal(t, models.RunStateIdle, tm.RunState)
		assert.Nil(t, tm.PhaseAnchor)
	}
}

func TestCurrentSessionNumber(t *testing.T) {
	tm := newTimer()
	assert.Equal(t, 1, CurrentSessionNumber(tm))
	NextPhase(tm)
	assert.Equal(t, 1, CurrentSessionNumber(tm))
	NextPhase(tm)
	assert.Equal(t, 2, CurrentSessionNumber(tm))
}
