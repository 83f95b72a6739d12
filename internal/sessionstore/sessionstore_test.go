package sessionstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateHostKey_UniqueAndHexLen32(t *testing.T) {
	a := GenerateHostKey("alice")
	b := GenerateHostKey("alice")
	require.Len(t, a, 32)
	require.NotEqual(t, a, b)
}

func TestNewSession_GeneratesSessionKey(t *testing.T) {
	s := NewSession("hk", "alice", "alice")
	require.Len(t, s.SessionKey, 8)
}

func TestMemoryStore_SaveLoadDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	sess := NewSession("hostkey1", "alice", "alice")

	require.NoError(t, store.Save(ctx, sess))

	got, err := store.Load(ctx, "hostkey1")
	require.NoError(t, err)
	require.Equal(t, sess, got)

	bySKey, err := store.LoadFromSKey(ctx, sess.SessionKey)
	require.NoError(t, err)
	require.Equal(t, sess, bySKey)

	require.NoError(t, store.Delete(ctx, "hostkey1"))
	_, err = store.Load(ctx, "hostkey1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGORMStore_SQLite_SaveLoadDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewGORMStore(DatabaseSQLite, dir+"/sessions.db")
	require.NoError(t, err)
	ctx := context.Background()

	sess := NewSession("hostkey2", "bob", "bob")
	require.NoError(t, store.Save(ctx, sess))

	got, err := store.Load(ctx, "hostkey2")
	require.NoError(t, err)
	require.Equal(t, sess.Username, got.Username)
	require.Equal(t, sess.SessionKey, got.SessionKey)

	bySKey, err := store.LoadFromSKey(ctx, sess.SessionKey)
	require.NoError(t, err)
	require.Equal(t, sess.HostKey, bySKey.HostKey)

	require.NoError(t, store.Delete(ctx, "hostkey2"))
	_, err = store.Load(ctx, "hostkey2")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestNew_Factory(t *testing.T) {
	store, err := New("memory", "")
	require.NoError(t, err)
	require.IsType(t, &MemoryStore{}, store)

	_, err = New("bogus", "")
	require.Error(t, err)
}
