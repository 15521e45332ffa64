package notifications

import (
	"fmt"
	"strings"

	"github.com/mcdev12/studybuddy/go/internal/models"
)

type template struct {
	title   string
	message string
}

var templates = map[models.NotificationKind]template{
	models.NotificationPomodoroStart: {
		title:   "🎯 Focus Session Started",
		message: "Your Pomodoro focus session has begun. Stay focused for {duration} minutes!",
	},
	models.NotificationFocusEnd: {
		title:   "✅ Focus Session Complete",
		message: "Great work! You completed a {duration} minute focus session. Time for a break!",
	},
	models.NotificationBreakStart: {
		title:   "☕ Break Time",
		message: "Take a {duration} minute break. Stretch, hydrate, and relax!",
	},
	models.NotificationBreakEnd: {
		title:   "⏰ Break Over",
		message: "Break time is up! Ready to start your next focus session?",
	},
	models.NotificationCycleComplete: {
		title:   "🏆 Pomodoro Cycle Complete!",
		message: "Amazing! You completed a full cycle of {cycles} pomodoros. Take a longer break!",
	},
}

// render fills {key} placeholders from extra. Unknown kinds get a generic
// title and an empty message.
func render(kind models.NotificationKind, extra map[string]any) (title, message string) {
	tpl, ok := templates[kind]
	if !ok {
		return "Notification", ""
	}
	if len(extra) == 0 {
		return tpl.title, tpl.message
	}

	pairs := make([]string, 0, len(extra)*2)
	for k, v := range extra {
		pairs = append(pairs, "{"+k+"}", fmt.Sprint(v))
	}
	return tpl.title, strings.NewReplacer(pairs...).Replace(tpl.message)
}
