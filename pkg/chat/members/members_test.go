package members

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/open-chat-labs/open-chat-sub005/pkg/models"
	"github.com/open-chat-labs/open-chat-sub005/pkg/store"
	"github.com/open-chat-labs/open-chat-sub005/pkg/types"
)

func newTestTable(t *testing.T) *Table {
	t.Helper()
	s, err := store.Open(t.TempDir(), store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return NewTable(s, "chat1")
}

func addMember(t *testing.T, tbl *Table, user types.UserID, role models.Role) *models.Member {
	t.Helper()
	m, err := tbl.Add(AddArgs{User: user, Role: role, Now: 1000})
	require.NoError(t, err)
	return m
}

func TestAddAndGet(t *testing.T) {
	tbl := newTestTable(t)
	addMember(t, tbl, "alice", models.RoleOwner)

	m, err := tbl.Get("alice")
	require.NoError(t, err)
	require.Equal(t, models.RoleOwner, m.Role)
	require.EqualValues(t, 1000, m.Joined)

	_, err = tbl.Get("bob")
	require.ErrorIs(t, err, models.ErrNotFound)

	_, err = tbl.Add(AddArgs{User: "alice", Role: models.RoleMember, Now: 2000})
	require.ErrorIs(t, err, models.ErrAlreadyMember)
}

func TestVisibilityWindow(t *testing.T) {
	e, m := VisibilityWindow(true, 41, 7)
	require.EqualValues(t, 0, e)
	require.EqualValues(t, 0, m)

	e, m = VisibilityWindow(false, 41, 7)
	require.EqualValues(t, 42, e)
	require.EqualValues(t, 8, m)
}

func TestJoinWindowFixedAtJoinTime(t *testing.T) {
	tbl := newTestTable(t)
	e, mi := VisibilityWindow(false, 10, 4)
	m, err := tbl.Add(AddArgs{User: "bob", Role: models.RoleMember, Now: 1000,
		MinVisibleEventIndex: e, MinVisibleMessageIndex: mi})
	require.NoError(t, err)
	require.EqualValues(t, 11, m.MinVisibleEventIndex)
	require.EqualValues(t, 5, m.MinVisibleMessageIndex)

	// the window survives round-trips untouched
	got, err := tbl.Get("bob")
	require.NoError(t, err)
	require.Equal(t, m.MinVisibleEventIndex, got.MinVisibleEventIndex)
	require.Equal(t, m.MinVisibleMessageIndex, got.MinVisibleMessageIndex)
}

func TestBlockPreventsRejoin(t *testing.T) {
	tbl := newTestTable(t)
	addMember(t, tbl, "mallory", models.RoleMember)

	require.NoError(t, tbl.Block("mallory"))
	require.False(t, tbl.IsMember("mallory"), "block should remove membership")

	_, err := tbl.Add(AddArgs{User: "mallory", Role: models.RoleMember, Now: 2000})
	require.ErrorIs(t, err, models.ErrBlocked)

	require.NoError(t, tbl.Unblock("mallory"))
	_, err = tbl.Add(AddArgs{User: "mallory", Role: models.RoleMember, Now: 3000})
	require.NoError(t, err)
}

func TestBlockIdempotencyErrors(t *testing.T) {
	tbl := newTestTable(t)
	require.NoError(t, tbl.Block("x"))
	require.ErrorIs(t, tbl.Block("x"), models.ErrUnchanged)
	require.NoError(t, tbl.Unblock("x"))
	require.ErrorIs(t, tbl.Unblock("x"), models.ErrUnchanged)
}

func TestRemove(t *testing.T) {
	tbl := newTestTable(t)
	addMember(t, tbl, "alice", models.RoleMember)
	require.NoError(t, tbl.Remove("alice"))
	require.ErrorIs(t, tbl.Remove("alice"), models.ErrNotFound)
	// removal is not a block
	_, err := tbl.Add(AddArgs{User: "alice", Role: models.RoleMember, Now: 2000})
	require.NoError(t, err)
}

func TestChangeRoleLattice(t *testing.T) {
	tbl := newTestTable(t)
	addMember(t, tbl, "owner", models.RoleOwner)
	addMember(t, tbl, "admin", models.RoleAdmin)
	addMember(t, tbl, "mod", models.RoleModerator)
	addMember(t, tbl, "plain", models.RoleMember)

	// admin promotes a member to moderator
	ch, err := tbl.ChangeRole(ChangeRoleArgs{Actor: "admin", Target: "plain", NewRole: models.RoleModerator, Now: 1000})
	require.NoError(t, err)
	require.Equal(t, models.RoleMember, ch.OldRole)

	// admin cannot touch the owner
	_, err = tbl.ChangeRole(ChangeRoleArgs{Actor: "admin", Target: "owner", NewRole: models.RoleMember, Now: 1000})
	require.ErrorIs(t, err, models.ErrNotAuthorized)

	// admin cannot promote above their own role
	_, err = tbl.ChangeRole(ChangeRoleArgs{Actor: "admin", Target: "mod", NewRole: models.RoleOwner, Now: 1000})
	require.ErrorIs(t, err, models.ErrNotAuthorized)

	// moderators cannot change roles at all
	_, err = tbl.ChangeRole(ChangeRoleArgs{Actor: "mod", Target: "plain", NewRole: models.RoleMember, Now: 1000})
	require.ErrorIs(t, err, models.ErrNotAuthorized)

	// only the owner hands out ownership
	ch, err = tbl.ChangeRole(ChangeRoleArgs{Actor: "owner", Target: "admin", NewRole: models.RoleOwner, Now: 1000})
	require.NoError(t, err)
	require.Equal(t, models.RoleOwner, ch.NewRole)

	// no-op transitions are conflicts
	_, err = tbl.ChangeRole(ChangeRoleArgs{Actor: "owner", Target: "mod", NewRole: models.RoleModerator, Now: 1000})
	require.ErrorIs(t, err, models.ErrUnchanged)
}

func TestPlatformModeratorBypassesLattice(t *testing.T) {
	tbl := newTestTable(t)
	addMember(t, tbl, "owner", models.RoleOwner)
	addMember(t, tbl, "plain", models.RoleMember)

	// the platform moderator is not even a member of the chat
	_, err := tbl.ChangeRole(ChangeRoleArgs{
		Actor: "platform-mod", Target: "owner", NewRole: models.RoleMember,
		PlatformModerator: true, Now: 1000,
	})
	require.NoError(t, err)
	got, err := tbl.Get("owner")
	require.NoError(t, err)
	require.Equal(t, models.RoleMember, got.Role)
}

func TestSuspension(t *testing.T) {
	tbl := newTestTable(t)
	addMember(t, tbl, "admin", models.RoleAdmin)
	addMember(t, tbl, "plain", models.RoleMember)

	until := types.TimestampMillis(5000)
	require.NoError(t, tbl.Suspend("admin", &until))

	// suspended actors cannot administer
	_, err := tbl.ChangeRole(ChangeRoleArgs{Actor: "admin", Target: "plain", NewRole: models.RoleModerator, Now: 2000})
	require.ErrorIs(t, err, models.ErrSuspended)

	// a time-bounded suspension lapses on its own
	_, err = tbl.ChangeRole(ChangeRoleArgs{Actor: "admin", Target: "plain", NewRole: models.RoleModerator, Now: 5000})
	require.NoError(t, err)

	m, err := tbl.Get("admin")
	require.NoError(t, err)
	require.False(t, m.IsSuspended(5000))
	require.True(t, m.IsSuspended(4999))
}

func TestLapsedMemberCannotAdminister(t *testing.T) {
	tbl := newTestTable(t)
	addMember(t, tbl, "admin", models.RoleAdmin)
	addMember(t, tbl, "plain", models.RoleMember)

	require.NoError(t, tbl.SetLapsed("admin", true))
	_, err := tbl.ChangeRole(ChangeRoleArgs{Actor: "admin", Target: "plain", NewRole: models.RoleModerator, Now: 1000})
	require.ErrorIs(t, err, models.ErrNotAuthorized)

	require.NoError(t, tbl.SetLapsed("admin", false))
	_, err = tbl.ChangeRole(ChangeRoleArgs{Actor: "admin", Target: "plain", NewRole: models.RoleModerator, Now: 1000})
	require.NoError(t, err)
}

func TestListAndCount(t *testing.T) {
	tbl := newTestTable(t)
	for _, u := range []types.UserID{"carol", "alice", "bob"} {
		addMember(t, tbl, u, models.RoleMember)
	}
	n, err := tbl.Count()
	require.NoError(t, err)
	require.Equal(t, 3, n)

	all, err := tbl.List(0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	// key order is user-id order
	require.Equal(t, types.UserID("alice"), all[0].User)
	require.Equal(t, types.UserID("bob"), all[1].User)
	require.Equal(t, types.UserID("carol"), all[2].User)

	two, err := tbl.List(2)
	require.NoError(t, err)
	require.Len(t, two, 2)
}

func TestAcceptRules(t *testing.T) {
	tbl := newTestTable(t)
	addMember(t, tbl, "alice", models.RoleMember)
	require.NoError(t, tbl.AcceptRules("alice", 2))
	require.ErrorIs(t, tbl.AcceptRules("alice", 2), models.ErrUnchanged)
	require.ErrorIs(t, tbl.AcceptRules("alice", 1), models.ErrUnchanged)
	require.NoError(t, tbl.AcceptRules("alice", 3))
}
