package models

// Action is a request against a timer.
type Action string

const (
	ActionStart          Action = "start"
	ActionPause          Action = "pause"
	ActionResume         Action = "resume"
	ActionReset          Action = "reset"
	ActionNextPhase      Action = "next_phase"
	ActionSync           Action = "sync"
	ActionUpdateSettings Action = "update_settings"
)

// ParseAction maps an inbound action name to an Action. Only the realtime
// action set is accepted; settings changes have their own entry points.
func ParseAction(name string) (Action, bool) {
	switch Action(name) {
	case ActionStart, ActionPause, ActionResume, ActionReset, ActionNextPhase, ActionSync:
		return Action(name), true
	default:
		return "", false
	}
}

// Mutates reports whether the action changes timer state.
func (a Action) Mutates() bool {
	return a != ActionSync
}

// IsSettings reports whether the action changes timer settings or sync policy.
func (a Action) IsSettings() bool {
	return a == ActionUpdateSettings
}

// Broadcast returns the action name announced to subscribers.
func (a Action) Broadcast() string {
	switch a {
	case ActionStart:
		return "started"
	case ActionPause:
		return "paused"
	case ActionResume:
		return "resumed"
	case ActionUpdateSettings:
		return "settings_updated"
	default:
		return string(a)
	}
}

// AttributionKey returns the field naming the actor in an update, or "".
func (a Action) AttributionKey() string {
	switch a {
	case ActionStart:
		return "started_by"
	case ActionPause:
		return "paused_by"
	case ActionResume:
		return "resumed_by"
	case ActionReset:
		return "reset_by"
	case ActionNextPhase:
		return "advanced_by"
	case ActionUpdateSettings:
		return "updated_by"
	default:
		return ""
	}
}
