package groups

import (
	"context"
	"sort"
	"sync"

	"github.com/mcdev12/studybuddy/go/internal/models"
)

// StaticOracle is an in-memory membership table for local runs and tests.
type StaticOracle struct {
	mu      sync.RWMutex
	groups  map[int64]models.StudyGroup
	members map[int64]map[int64]models.Membership
}

// NewStaticOracle creates an empty oracle.
func NewStaticOracle() *StaticOracle {
	return &StaticOracle{
		groups:  make(map[int64]models.StudyGroup),
		members: make(map[int64]map[int64]models.Membership),
	}
}

// AddGroup registers a group. Its creator becomes its owner.
func (o *StaticOracle) AddGroup(g models.StudyGroup) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.groups[g.ID] = g
	if o.members[g.ID] == nil {
		o.members[g.ID] = make(map[int64]models.Membership)
	}
}

// AddMember registers an active member with a role.
func (o *StaticOracle) AddMember(groupID, userID int64, role models.Role) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.members[groupID] == nil {
		o.members[groupID] = make(map[int64]models.Membership)
	}
	o.members[groupID][userID] = models.Membership{GroupID: groupID, UserID: userID, Role: role, IsActive: true}
}

// RemoveMember marks a member inactive.
func (o *StaticOracle) RemoveMember(groupID, userID int64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if m, ok := o.members[groupID][userID]; ok {
		m.IsActive = false
		o.members[groupID][userID] = m
	}
}

func (o *StaticOracle) Group(_ context.Context, groupID int64) (*models.StudyGroup, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	g, ok := o.groups[groupID]
	if !ok {
		return nil, ErrGroupNotFound
	}
	return &g, nil
}

func (o *StaticOracle) RoleOf(_ context.Context, userID, groupID int64) (models.Role, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	g, ok := o.groups[groupID]
	if !ok {
		return "", ErrGroupNotFound
	}
	m := o.members[groupID][userID]
	return roleFor(&g, userID, m.Role, m.IsActive), nil
}

func (o *StaticOracle) ActiveGroups(_ context.Context, userID int64) ([]int64, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	var ids []int64
	for id, g := range o.groups {
		m := o.members[id][userID]
		if g.CreatedBy == userID || m.IsActive {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (o *StaticOracle) ActiveMembers(_ context.Context, groupID int64) ([]models.Membership, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	g, ok := o.groups[groupID]
	if !ok {
		return nil, ErrGroupNotFound
	}

	members := []models.Membership{{GroupID: groupID, UserID: g.CreatedBy, Role: models.RoleOwner, IsActive: true}}
	for userID, m := range o.members[groupID] {
		if !m.IsActive || userID == g.CreatedBy {
			continue
		}
		m.Role = roleFor(&g, userID, m.Role, true)
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].UserID < members[j].UserID })
	return members, nil
}
