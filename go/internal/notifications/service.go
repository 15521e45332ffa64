// Package notifications stores pomodoro notifications and pushes them to
// their recipients in real time.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/studybuddy/go/internal/models"
	"github.com/mcdev12/studybuddy/go/internal/pomodoro/events"
)

// Repository is the notification storage boundary.
type Repository interface {
	Create(ctx context.Context, n *models.Notification) (*models.Notification, error)
	CountUnread(ctx context.Context, userID int64) (int, error)
	List(ctx context.Context, userID int64, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, id int64) (bool, error)
	MarkAllRead(ctx context.Context, userID int64) (int, error)
}

// Service persists notifications, pushes them on the recipient's personal
// topic and keeps a per-user unread counter.
type Service struct {
	repo      Repository
	publisher events.Publisher

	mu     sync.Mutex
	unread map[int64]int
}

// NewService creates a notification service. publisher may be nil, in which
// case notifications are only stored.
func NewService(repo Repository, publisher events.Publisher) *Service {
	return &Service{
		repo:      repo,
		publisher: publisher,
		unread:    make(map[int64]int),
	}
}

// Notify stores a notification of kind for userID and tries to deliver it
// live. A failed live push is logged; the stored row is the fallback.
func (s *Service) Notify(ctx context.Context, userID int64, kind models.NotificationKind, groupID int64, extra map[string]any) error {
	title, message := render(kind, extra)

	n := &models.Notification{
		UserID:  userID,
		Kind:    kind,
		Title:   title,
		Message: message,
	}
	if groupID != 0 {
		n.GroupID = &groupID
	}
	if len(extra) > 0 {
		raw, err := json.Marshal(extra)
		if err != nil {
			return fmt.Errorf("marshal extra data: %w", err)
		}
		n.ExtraData = raw
	}

	created, err := s.repo.Create(ctx, n)
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}

	log.Debug().
		Int64("user_id", userID).
		Str("kind", string(kind)).
		Int64("notification_id", created.ID).
		Msg("notification created")

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, events.UserTopic(userID), events.Notification(created)); err != nil {
			log.Warn().Err(err).Int64("user_id", userID).Msg("realtime notification push failed")
		}
	}

	s.mu.Lock()
	if count, ok := s.unread[userID]; ok {
		s.unread[userID] = count + 1
	}
	s.mu.Unlock()

	return nil
}

// UnreadCount returns the number of unread notifications of a user.
func (s *Service) UnreadCount(ctx context.Context, userID int64) (int, error) {
	s.mu.Lock()
	count, ok := s.unread[userID]
	s.mu.Unlock()
	if ok {
		return count, nil
	}

	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}

	s.mu.Lock()
	s.unread[userID] = count
	s.mu.Unlock()
	return count, nil
}

// List returns a user's most recent notifications.
func (s *Service) List(ctx context.Context, userID int64, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	out, err := s.repo.List(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return out, nil
}

// MarkRead marks one notification read. It reports false if the
// notification does not exist, belongs to someone else or was already read.
func (s *Service) MarkRead(ctx context.Context, userID, id int64) (bool, error) {
	changed, err := s.repo.MarkRead(ctx, userID, id)
	if err != nil {
		return false, fmt.Errorf("mark read: %w", err)
	}
	if changed {
		s.mu.Lock()
		if count, ok := s.unread[userID]; ok && count > 0 {
			s.unread[userID] = count - 1
		}
		s.mu.Unlock()
	}
	return changed, nil
}

// MarkAllRead marks every notification of a user read.
func (s *Service) MarkAllRead(ctx context.Context, userID int64) (int, error) {
	n, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	s.mu.Lock()
	s.unread[userID] = 0
	s.mu.Unlock()
	return n, nil
}
