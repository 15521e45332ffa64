// Package groups answers membership and role questions about study groups.
// The tables belong to the group service; this package only reads them.
package groups

import (
	"errors"

	"github.com/mcdev12/studybuddy/go/internal/models"
)

// ErrGroupNotFound is returned when a group id does not exist.
var ErrGroupNotFound = errors.New("group not found")

// roleFor folds creator ownership into the member role so there is a single
// answer to "who leads this group".
func roleFor(group *models.StudyGroup, userID int64, memberRole models.Role, active bool) models.Role {
	if group.CreatedBy == userID {
		return models.RoleOwner
	}
	if !active {
		return ""
	}
	if memberRole == "" {
		return models.RoleMember
	}
	return memberRole
}
