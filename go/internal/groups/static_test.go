package groups

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/studybuddy/go/internal/models"
)

func TestStaticOracleRoles(t *testing.T) {
	ctx := context.Background()
	o := NewStaticOracle()
	o.AddGroup(models.StudyGroup{ID: 1, Name: "algebra", CreatedBy: 10})
	o.AddMember(1, 10, models.RoleMember)
	o.AddMember(1, 11, models.RoleModerator)
	o.AddMember(1, 12, models.RoleMember)

	cases := map[int64]models.Role{
		10: models.RoleOwner,
		11: models.RoleModerator,
		12: models.RoleMember,
		13: "",
	}
	for userID, want := range cases {
		got, err := o.RoleOf(ctx, userID, 1)
		require.NoError(t, err)
		assert.Equal(t, want, got, "user %d", userID)
	}

	o.RemoveMember(1, 12)
	role, err := o.RoleOf(ctx, 12, 1)
	require.NoError(t, err)
	assert.Empty(t, role)
}

func TestStaticOracleUnknownGroup(t *testing.T) {
	_, err := NewStaticOracle().RoleOf(context.Background(), 1, 99)
	assert.ErrorIs(t, err, ErrGroupNotFound)
}

func TestStaticOracleActiveMembersIncludesCreator(t *testing.T) {
	ctx := context.Background()
	o := NewStaticOracle()
	o.AddGroup(models.StudyGroup{ID: 1, CreatedBy: 10})
	o.AddMember(1, 12, models.RoleMember)
	o.AddMember(1, 11, models.RoleAdmin)

	members, err := o.ActiveMembers(ctx, 1)
	require.NoError(t, err)
	require.Len(t, members, 3)
	assert.Equal(t, int64(10), members[0].UserID)
	assert.Equal(t, models.RoleOwner, members[0].Role)
	assert.Equal(t, models.RoleAdmin, members[1].Role)
	assert.Equal(t, models.RoleMember, members[2].Role)
}

func TestStaticOracleActiveGroups(t *testing.T) {
	ctx := context.Background()
	o := NewStaticOracle()
	o.AddGroup(models.StudyGroup{ID: 1, CreatedBy: 10})
	o.AddGroup(models.StudyGroup{ID: 2, CreatedBy: 20})
	o.AddGroup(models.StudyGroup{ID: 3, CreatedBy: 30})
	o.AddMember(2, 10, models.RoleMember)

	ids, err := o.ActiveGroups(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids)
}
