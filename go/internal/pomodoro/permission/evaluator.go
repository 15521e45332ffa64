// Package permission decides who may drive a group's timers.
package permission

import "github.com/mcdev12/studybuddy/go/internal/models"

// Actor is the caller of a timer action as seen by the membership oracle.
type Actor struct {
	UserID        int64
	Authenticated bool
	// Role is empty when the caller has no active membership.
	Role models.Role
}

// IsMember reports whether the actor is an active member of the group.
func (a Actor) IsMember() bool {
	return a.Role != ""
}

// CanControl reports whether actor may perform action against the group
// whose shared timer is group.
//
// Owners, admins and moderators may do anything. Settings are theirs alone.
// Under FLEXIBLE each member drives their own personal timer. Under FORCED
// members may only pause and resume, and only when the group allows it.
func CanControl(group *models.Timer, actor Actor, action models.Action) bool {
	if !actor.Authenticated {
		return false
	}
	if actor.Role.IsPrivileged() {
		return true
	}
	if action.IsSettings() {
		return false
	}
	if !actor.IsMember() {
		return false
	}

	switch group.SyncPolicy {
	case models.SyncPolicyFlexible:
		switch action {
		case models.ActionStart, models.ActionPause, models.ActionResume,
			models.ActionReset, models.ActionNextPhase:
			return true
		}
	case models.SyncPolicyForced:
		switch action {
		case models.ActionPause, models.ActionResume:
			return group.AllowMemberPause
		}
	}
	return false
}
