package gateway

import "sync"

// Registry tracks which users are online in which group. It is created
// once per process, handed to the ConnectionManager, and cleared on
// shutdown.
type Registry struct {
	mu     sync.RWMutex
	online map[int64]map[int64]int // group -> user -> open connections
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{online: make(map[int64]map[int64]int)}
}

// Join records one more open connection of userID in groupID.
func (r *Registry) Join(groupID, userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	users := r.online[groupID]
	if users == nil {
		users = make(map[int64]int)
		r.online[groupID] = users
	}
	users[userID]++
}

// Leave drops one connection of userID in groupID.
func (r *Registry) Leave(groupID, userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	users := r.online[groupID]
	if users == nil {
		return
	}
	if users[userID] <= 1 {
		delete(users, userID)
	} else {
		users[userID]--
	}
	if len(users) == 0 {
		delete(r.online, groupID)
	}
}

// Counts returns the number of online users per group.
func (r *Registry) Counts() map[int64]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[int64]int, len(r.online))
	for groupID, users := range r.online {
		counts[groupID] = len(users)
	}
	return counts
}

// Clear forgets everyone.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.online = make(map[int64]map[int64]int)
}
