package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mcdev12/studybuddy/go/internal/models"
)

var timerActions = []models.Action{
	models.ActionStart, models.ActionPause, models.ActionResume,
	models.ActionReset, models.ActionNextPhase,
}

func group(policy models.SyncPolicy, allowPause bool) *models.Timer {
	g := models.NewGroupTimer(1, models.DefaultTimerSettings(), policy)
	g.AllowMemberPause = allowPause
	return g
}

func member(role models.Role) Actor {
	return Actor{UserID: 42, Authenticated: true, Role: role}
}

func TestUnauthenticatedIsAlwaysDenied(t *testing.T) {
	anon := Actor{Role: models.RoleOwner}
	for _, a := range append(timerActions, models.ActionUpdateSettings) {
		assert.False(t, CanControl(group(models.SyncPolicyFlexible, true), anon, a), a)
	}
}

func TestLeadershipIsAlwaysAllowed(t *testing.T) {
	policies := []*models.Timer{
		group(models.SyncPolicyForced, false),
		group(models.SyncPolicyForced, true),
		group(models.SyncPolicyFlexible, false),
	}
	for _, role := range []models.Role{models.RoleOwner, models.RoleAdmin, models.RoleModerator} {
		for _, g := range policies {
			for _, a := range append(timerActions, models.ActionUpdateSettings) {
				assert.True(t, CanControl(g, member(role), a), "%s %s %s", role, g.SyncPolicy, a)
			}
		}
	}
}

func TestSettingsAreLeadershipOnly(t *testing.T) {
	for _, g := range []*models.Timer{group(models.SyncPolicyFlexible, true), group(models.SyncPolicyForced, true)} {
		assert.False(t, CanControl(g, member(models.RoleMember), models.ActionUpdateSettings))
	}
}

func TestFlexibleMemberControlsOwnTimer(t *testing.T) {
	g := group(models.SyncPolicyFlexible, false)
	for _, a := range timerActions {
		assert.True(t, CanControl(g, member(models.RoleMember), a), a)
	}
}

func TestForcedMemberWithoutPausePermission(t *testing.T) {
	g := group(models.SyncPolicyForced, false)
	for _, a := range timerActions {
		assert.False(t, CanControl(g, member(models.RoleMember), a), a)
	}
}

func TestForcedMemberWithPausePermission(t *testing.T) {
	g := group(models.SyncPolicyForced, true)
	want := map[models.Action]bool{
		models.ActionStart:     false,
		models.ActionPause:     true,
		models.ActionResume:    true,
		models.ActionReset:     false,
		models.ActionNextPhase: false,
	}
	for a, ok := range want {
		assert.Equal(t, ok, CanControl(g, member(models.RoleMember), a), a)
	}
}

func TestNonMemberObserverIsDenied(t *testing.T) {
	observer := Actor{UserID: 9, Authenticated: true}
	for _, g := range []*models.Timer{group(models.SyncPolicyFlexible, true), group(models.SyncPolicyForced, true)} {
		for _, a := range timerActions {
			assert.False(t, CanControl(g, observer, a), a)
		}
	}
}
