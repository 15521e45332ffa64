// Package pomodoro runs shared and personal pomodoro timers for study groups.
//
// A request flows through App as: authorize the caller against the group,
// check permission under the group's sync policy, enforce cross-group
// exclusivity, mutate the record under its lock, then broadcast the new
// snapshot and fire notifications.
package pomodoro

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/studybuddy/go/internal/groups"
	"github.com/mcdev12/studybuddy/go/internal/models"
	"github.com/mcdev12/studybuddy/go/internal/pomodoro/events"
	"github.com/mcdev12/studybuddy/go/internal/pomodoro/permission"
	"github.com/mcdev12/studybuddy/go/internal/pomodoro/repository"
	"github.com/mcdev12/studybuddy/go/internal/pomodoro/timer"
)

// MembershipOracle is what the app needs to know about groups.
type MembershipOracle interface {
	Group(ctx context.Context, groupID int64) (*models.StudyGroup, error)
	RoleOf(ctx context.Context, userID, groupID int64) (models.Role, error)
	ActiveGroups(ctx context.Context, userID int64) ([]int64, error)
	ActiveMembers(ctx context.Context, groupID int64) ([]models.Membership, error)
}

// NotificationSink stores and delivers a notification to one user.
type NotificationSink interface {
	Notify(ctx context.Context, userID int64, kind models.NotificationKind, groupID int64, extra map[string]any) error
}

// Viewer is an authenticated user looking at one group. Role is empty for
// observers of a public group they do not belong to.
type Viewer struct {
	User  models.User
	Group models.StudyGroup
	Role  models.Role
}

// ReadOnly reports whether the viewer only observes the group.
func (v *Viewer) ReadOnly() bool {
	return v.Role == ""
}

func (v *Viewer) actor() permission.Actor {
	return permission.Actor{UserID: v.User.ID, Authenticated: true, Role: v.Role}
}

// App handles pomodoro business logic.
type App struct {
	store     repository.Store
	members   MembershipOracle
	publisher events.Publisher
	notifier  NotificationSink
	clock     clockwork.Clock
	validate  *validator.Validate
	cfg       Config
}

// NewApp creates a new pomodoro App.
func NewApp(
	store repository.Store,
	members MembershipOracle,
	publisher events.Publisher,
	notifier NotificationSink,
	clock clockwork.Clock,
	cfg Config,
) *App {
	return &App{
		store:     store,
		members:   members,
		publisher: publisher,
		notifier:  notifier,
		clock:     clock,
		validate:  newValidator(),
		cfg:       cfg,
	}
}

// Authorize resolves what user may see of a group. Non-members are let in
// read-only when the group is public.
func (a *App) Authorize(ctx context.Context, user *models.User, groupID int64) (*Viewer, error) {
	if user == nil {
		return nil, newError(ErrUnauthenticated, "authentication required")
	}

	group, err := a.members.Group(ctx, groupID)
	if errors.Is(err, groups.ErrGroupNotFound) {
		return nil, newError(ErrNotFound, "study group not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load group %d: %w", groupID, err)
	}

	role, err := a.members.RoleOf(ctx, user.ID, groupID)
	if err != nil {
		return nil, fmt.Errorf("load role: %w", err)
	}
	if role == "" && !group.IsPublic {
		return nil, newError(ErrForbidden, "you are not a member of this group")
	}

	return &Viewer{User: *user, Group: *group, Role: role}, nil
}

// Snapshot returns the timer the viewer follows: the personal timer of a
// member under FLEXIBLE, the shared timer otherwise.
func (a *App) Snapshot(ctx context.Context, viewer *Viewer) (*Snapshot, error) {
	shared := a.groupOwner(viewer.Group.ID)
	group, err := shared.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load group timer: %w", err)
	}

	owner := a.ownerFor(viewer, group)
	t := group
	if owner.Key().IsPersonal() {
		if t, err = owner.Load(ctx); err != nil {
			return nil, fmt.Errorf("load personal timer: %w", err)
		}
	}
	return buildSnapshot(t, group, viewer, a.clock.Now()), nil
}

// Apply performs action on behalf of viewer and returns the resulting
// snapshot. A sync action only reads.
//
// The mutation is detached from ctx cancellation: once permission is
// granted the change is persisted and broadcast even if the caller goes
// away.
func (a *App) Apply(ctx context.Context, viewer *Viewer, action models.Action) (*Snapshot, error) {
	if !action.Mutates() {
		return a.Snapshot(ctx, viewer)
	}
	if _, ok := models.ParseAction(string(action)); !ok {
		return nil, newError(ErrValidation, fmt.Sprintf("unknown action: %s", action))
	}

	shared := a.groupOwner(viewer.Group.ID)
	group, err := shared.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load group timer: %w", err)
	}

	if !permission.CanControl(group, viewer.actor(), action) {
		return nil, newError(ErrForbidden, "you do not have permission to control this timer")
	}

	owner := a.ownerFor(viewer, group)
	personal := owner.Key().IsPersonal()

	if !personal && (action == models.ActionStart || action == models.ActionResume) {
		if err := a.checkExclusive(ctx, viewer.User.ID, viewer.Group.ID); err != nil {
			return nil, err
		}
	}

	ctx = context.WithoutCancel(ctx)
	now := a.clock.Now()

	var before models.Timer
	updated, err := owner.Update(ctx, func(t *models.Timer) error {
		before = *t
		switch action {
		case models.ActionStart:
			timer.Start(t, now)
		case models.ActionPause:
			timer.Pause(t, now)
		case models.ActionResume:
			timer.Resume(t, now)
		case models.ActionReset:
			timer.Reset(t)
		case models.ActionNextPhase:
			timer.NextPhase(t)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s timer: %w", action, err)
	}
	if !personal {
		group = updated
	}

	log.Info().
		Int64("group_id", viewer.Group.ID).
		Int64("user_id", viewer.User.ID).
		Str("action", string(action)).
		Bool("personal", personal).
		Str("phase", string(updated.Phase)).
		Str("state", string(updated.RunState)).
		Msg("timer action applied")

	snapshot := buildSnapshot(updated, group, viewer, now)
	topic := events.GroupTopic(viewer.Group.ID)
	a.publish(ctx, topic, events.TimerUpdate(action, snapshot, group.SyncPolicy, viewer.User.Username))

	if personal {
		if action == models.ActionStart {
			a.publish(ctx, topic, events.MemberStarted(viewer.Group.ID, viewer.User.Username))
		}
	} else {
		a.notifyLifecycle(ctx, viewer.Group, &before, updated, action)
	}

	return snapshot, nil
}

// checkExclusive rejects starting a shared timer while the user already has
// one running in another group.
func (a *App) checkExclusive(ctx context.Context, userID, groupID int64) error {
	ids, err := a.members.ActiveGroups(ctx, userID)
	if err != nil {
		return fmt.Errorf("load active groups: %w", err)
	}

	others := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id != groupID {
			others = append(others, id)
		}
	}
	if len(others) == 0 {
		return nil
	}

	running, err := a.store.RunningGroupTimers(ctx, others)
	if err != nil {
		return fmt.Errorf("load running timers: %w", err)
	}

	now := a.clock.Now()
	for _, t := range running {
		if t.SyncPolicy == models.SyncPolicyForced && timer.Remaining(t, now) > 0 {
			return newError(ErrConflict, "you have an active Pomodoro session in another group")
		}
	}
	return nil
}

func (a *App) groupOwner(groupID int64) *groupOwner {
	return &groupOwner{store: a.store, groupID: groupID, cfg: a.cfg}
}

// ownerFor picks the timer a viewer drives. Observers always see the
// shared timer.
func (a *App) ownerFor(viewer *Viewer, group *models.Timer) TimerOwner {
	if group.SyncPolicy == models.SyncPolicyFlexible && !viewer.ReadOnly() {
		return &personalOwner{store: a.store, group: group, groupID: viewer.Group.ID, userID: viewer.User.ID}
	}
	return a.groupOwner(viewer.Group.ID)
}

func (a *App) publish(ctx context.Context, topic events.Topic, msg *events.Message) {
	if a.publisher == nil {
		return
	}
	if err := a.publisher.Publish(ctx, topic, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", string(topic)).
			Str("event_type", string(msg.Type)).
			Msg("failed to publish timer event")
	}
}
