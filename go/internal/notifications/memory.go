package notifications

import (
	"context"
	"sort"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/studybuddy/go/internal/models"
)

// MemoryRepository keeps notifications in process memory.
type MemoryRepository struct {
	clock clockwork.Clock

	mu     sync.Mutex
	nextID int64
	rows   map[int64][]models.Notification
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository(clock clockwork.Clock) *MemoryRepository {
	return &MemoryRepository{clock: clock, rows: make(map[int64][]models.Notification)}
}

func (r *MemoryRepository) Create(_ context.Context, n *models.Notification) (*models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	created := *n
	created.ID = r.nextID
	created.IsRead = false
	created.CreatedAt = r.clock.Now()

	rows := append(r.rows[n.UserID], created)
	if len(rows) > retainPerUser {
		rows = rows[len(rows)-retainPerUser:]
	}
	r.rows[n.UserID] = rows
	return &created, nil
}

func (r *MemoryRepository) CountUnread(_ context.Context, userID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, n := range r.rows[userID] {
		if !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (r *MemoryRepository) List(_ context.Context, userID int64, limit int) ([]models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := append([]models.Notification(nil), r.rows[userID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) MarkRead(_ context.Context, userID, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows := r.rows[userID]
	for i := range rows {
		if rows[i].ID == id && !rows[i].IsRead {
			rows[i].IsRead = true
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRepository) MarkAllRead(_ context.Context, userID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	changed := 0
	rows := r.rows[userID]
	for i := range rows {
		if !rows[i].IsRead {
			rows[i].IsRead = true
			changed++
		}
	}
	return changed, nil
}
