package repository

import (
	"context"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/studybuddy/go/internal/models"
)

// MemoryStore keeps records in process memory with one lock per record.
type MemoryStore struct {
	clock clockwork.Clock

	mu     sync.Mutex
	nextID int64
	timers map[models.TimerKey]*models.Timer
	locks  map[models.TimerKey]*sync.Mutex
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore(clock clockwork.Clock) *MemoryStore {
	return &MemoryStore{
		clock:  clock,
		timers: make(map[models.TimerKey]*models.Timer),
		locks:  make(map[models.TimerKey]*sync.Mutex),
	}
}

func (s *MemoryStore) Get(_ context.Context, key models.TimerKey) (*models.Timer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.timers[key]
	if !ok {
		return nil, ErrTimerNotFound
	}
	return t.Clone(), nil
}

func (s *MemoryStore) GetOrCreate(_ context.Context, key models.TimerKey, init InitFunc) (*models.Timer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loadLocked(key, init).Clone(), nil
}

func (s *MemoryStore) Update(ctx context.Context, key models.TimerKey, init InitFunc, fn MutateFunc) (*models.Timer, error) {
	lock := s.recordLock(key)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	working := s.loadLocked(key, init).Clone()
	s.mu.Unlock()

	if err := fn(working); err != nil {
		return nil, err
	}
	working.Key = key
	working.UpdatedAt = s.clock.Now()

	s.mu.Lock()
	s.timers[key] = working.Clone()
	s.mu.Unlock()

	return working, nil
}

func (s *MemoryStore) RunningGroupTimers(_ context.Context, groupIDs []int64) ([]*models.Timer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var running []*models.Timer
	for _, id := range groupIDs {
		t, ok := s.timers[models.GroupTimerKey(id)]
		if ok && t.RunState == models.RunStateRunning {
			running = append(running, t.Clone())
		}
	}
	return running, nil
}

// recordLock returns the lock guarding key, creating it on first use.
func (s *MemoryStore) recordLock(key models.TimerKey) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

// loadLocked must be called with s.mu held.
func (s *MemoryStore) loadLocked(key models.TimerKey, init InitFunc) *models.Timer {
	if t, ok := s.timers[key]; ok {
		return t
	}
	t := init()
	s.nextID++
	now := s.clock.Now()
	t.ID = s.nextID
	t.Key = key
	t.CreatedAt = now
	t.UpdatedAt = now
	s.timers[key] = t
	return t
}
