package models

// Role is a member's role inside a study group.
type Role string

const (
	RoleOwner     Role = "owner"
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
	RoleMember    Role = "member"
)

// IsPrivileged reports whether the role carries leadership over group timers.
func (r Role) IsPrivileged() bool {
	return r == RoleOwner || r == RoleAdmin || r == RoleModerator
}

// StudyGroup is the slice of a study group the timer engine cares about.
type StudyGroup struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	CreatedBy int64  `json:"created_by"`
	IsPublic  bool   `json:"is_public"`
}

// Membership is a user's active role in a group.
type Membership struct {
	GroupID  int64 `json:"group_id"`
	UserID   int64 `json:"user_id"`
	Role     Role  `json:"role"`
	IsActive bool  `json:"is_active"`
}
