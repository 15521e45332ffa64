package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/studybuddy/go/internal/models"
	"github.com/mcdev12/studybuddy/go/internal/pomodoro/events"
)

type pushed struct {
	topic events.Topic
	msg   *events.Message
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []pushed
	err  error
}

func (p *fakePublisher) Publish(_ context.Context, topic events.Topic, msg *events.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, pushed{topic: topic, msg: msg})
	return p.err
}

func TestRender(t *testing.T) {
	title, msg := render(models.NotificationPomodoroStart, map[string]any{"duration": 25, "cycles": 0})
	assert.Equal(t, "🎯 Focus Session Started", title)
	assert.Equal(t, "Your Pomodoro focus session has begun. Stay focused for 25 minutes!", msg)

	_, msg = render(models.NotificationCycleComplete, map[string]any{"cycles": 4})
	assert.Contains(t, msg, "full cycle of 4 pomodoros")

	title, msg = render("mystery", nil)
	assert.Equal(t, "Notification", title)
	assert.Empty(t, msg)
}

func TestNotifyStoresAndPushes(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(clockwork.NewFakeClock())
	pub := &fakePublisher{}
	svc := NewService(repo, pub)

	require.NoError(t, svc.Notify(ctx, 5, models.NotificationBreakStart, 7, map[string]any{"duration": 5}))

	list, err := svc.List(ctx, 5, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	n := list[0]
	assert.Equal(t, models.NotificationBreakStart, n.Kind)
	assert.Equal(t, "Take a 5 minute break. Stretch, hydrate, and relax!", n.Message)
	require.NotNil(t, n.GroupID)
	assert.Equal(t, int64(7), *n.GroupID)
	var extra map[string]any
	require.NoError(t, json.Unmarshal(n.ExtraData, &extra))
	assert.Equal(t, float64(5), extra["duration"])

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, events.UserTopic(5), pub.msgs[0].topic)
	assert.Equal(t, events.TypeNotification, pub.msgs[0].msg.Type)
}

func TestNotifySurvivesPushFailure(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepository(clockwork.NewFakeClock()), &fakePublisher{err: errors.New("offline")})

	require.NoError(t, svc.Notify(ctx, 5, models.NotificationFocusEnd, 7, nil))
	count, err := svc.UnreadCount(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestUnreadCounter(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepository(clockwork.NewFakeClock()), nil)

	require.NoError(t, svc.Notify(ctx, 1, models.NotificationPomodoroStart, 7, nil))
	count, err := svc.UnreadCount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, svc.Notify(ctx, 1, models.NotificationBreakStart, 7, nil))
	require.NoError(t, svc.Notify(ctx, 1, models.NotificationBreakEnd, 7, nil))
	count, err = svc.UnreadCount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	list, err := svc.List(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, list, 3)

	ok, err := svc.MarkRead(ctx, 1, list[0].ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = svc.MarkRead(ctx, 1, list[0].ID)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = svc.MarkRead(ctx, 2, list[1].ID)
	require.NoError(t, err)
	assert.False(t, ok)

	count, err = svc.UnreadCount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	n, err := svc.MarkAllRead(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	count, err = svc.UnreadCount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
