package usermanager

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStaticUserManager_CreateAndAuthenticate(t *testing.T) {
	m := NewStaticUserManager()
	ctx := context.Background()

	require.NoError(t, m.CreateUser(ctx, "alice", "hunter222"))
	require.ErrorIs(t, m.CreateUser(ctx, "alice", "hunter222"), ErrDuplicateUser)

	require.True(t, m.Authenticate(ctx, "alice", "hunter222"))
	require.False(t, m.Authenticate(ctx, "alice", "wrong"))
	require.False(t, m.Authenticate(ctx, "bob", "hunter222"))

	dir, ok := m.UserDir(ctx, "alice")
	require.True(t, ok)
	require.Equal(t, "alice", dir)
}

func TestStaticUserManager_SetPasswordAndDelete(t *testing.T) {
	m := NewStaticUserManager()
	ctx := context.Background()
	require.NoError(t, m.CreateUser(ctx, "alice", "hunter222"))

	require.NoError(t, m.SetPassword(ctx, "alice", "newpassword1"))
	require.True(t, m.Authenticate(ctx, "alice", "newpassword1"))
	require.False(t, m.Authenticate(ctx, "alice", "hunter222"))

	require.NoError(t, m.DeleteUser(ctx, "alice"))
	require.ErrorIs(t, m.DeleteUser(ctx, "alice"), ErrUserNotFound)
}

func TestSQLiteUserManager_CRUD(t *testing.T) {
	dir := t.TempDir()
	m, err := NewSQLiteUserManager(dir + "/users.db")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, m.CreateUser(ctx, "alice", "hunter222"))
	require.True(t, m.Authenticate(ctx, "alice", "hunter222"))

	names, err := m.ListUsernames(ctx)
	require.NoError(t, err)
	require.Contains(t, names, "alice")
}
