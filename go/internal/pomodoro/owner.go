package pomodoro

import (
	"context"

	"github.com/mcdev12/studybuddy/go/internal/models"
	"github.com/mcdev12/studybuddy/go/internal/pomodoro/repository"
)

// TimerOwner hides whether a timer is the group's shared clock or one
// member's personal clock. The state machine runs the same way on both.
type TimerOwner interface {
	Key() models.TimerKey
	Load(ctx context.Context) (*models.Timer, error)
	Update(ctx context.Context, fn repository.MutateFunc) (*models.Timer, error)
}

type groupOwner struct {
	store   repository.Store
	groupID int64
	cfg     Config
}

func (o *groupOwner) Key() models.TimerKey {
	return models.GroupTimerKey(o.groupID)
}

func (o *groupOwner) init() *models.Timer {
	return models.NewGroupTimer(o.groupID, o.cfg.DefaultSettings, o.cfg.DefaultSyncPolicy)
}

func (o *groupOwner) Load(ctx context.Context) (*models.Timer, error) {
	return o.store.GetOrCreate(ctx, o.Key(), o.init)
}

func (o *groupOwner) Update(ctx context.Context, fn repository.MutateFunc) (*models.Timer, error) {
	return o.store.Update(ctx, o.Key(), o.init, fn)
}

// personalOwner reads settings from the group's shared timer on every
// access, so a settings change applies to all personal timers at once.
type personalOwner struct {
	store   repository.Store
	group   *models.Timer
	groupID int64
	userID  int64
}

func (o *personalOwner) Key() models.TimerKey {
	return models.UserTimerKey(o.groupID, o.userID)
}

func (o *personalOwner) init() *models.Timer {
	return models.NewUserTimer(o.groupID, o.userID, o.group.Settings)
}

func (o *personalOwner) Load(ctx context.Context) (*models.Timer, error) {
	t, err := o.store.GetOrCreate(ctx, o.Key(), o.init)
	if err != nil {
		return nil, err
	}
	t.Settings = o.group.Settings
	return t, nil
}

func (o *personalOwner) Update(ctx context.Context, fn repository.MutateFunc) (*models.Timer, error) {
	t, err := o.store.Update(ctx, o.Key(), o.init, func(t *models.Timer) error {
		t.Settings = o.group.Settings
		return fn(t)
	})
	if err != nil {
		return nil, err
	}
	t.Settings = o.group.Settings
	return t, nil
}
