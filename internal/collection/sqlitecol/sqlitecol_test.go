package sqlitecol

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ankisyncd/ankisyncd-go/internal/collection"
)

func TestOpen_InitializesSingletonRow(t *testing.T) {
	dir := t.TempDir()
	col, err := Open(dir)
	require.NoError(t, err)
	defer col.Close()

	require.Equal(t, 0, col.USN())
	require.Equal(t, 11, col.SchedVer())
}

func TestSetUSNAndMod_Roundtrip(t *testing.T) {
	dir := t.TempDir()
	col, err := Open(dir)
	require.NoError(t, err)
	defer col.Close()

	col.SetUSN(42)
	col.SetMod(1234567890)
	require.Equal(t, 42, col.USN())
	require.Equal(t, int64(1234567890), col.Mod())
}

func TestModelsStore_MergeAndSince(t *testing.T) {
	dir := t.TempDir()
	col, err := Open(dir)
	require.NoError(t, err)
	defer col.Close()

	err = col.Models().Merge(collection.JSONObject{
		"1": map[string]any{"name": "Basic", "usn": float64(5), "mod": float64(100)},
	}, true)
	require.NoError(t, err)

	all, err := col.Models().All()
	require.NoError(t, err)
	require.Len(t, all, 1)

	since, err := col.Models().Since(10)
	require.NoError(t, err)
	require.Len(t, since, 0)

	since, err = col.Models().Since(5)
	require.NoError(t, err)
	require.Len(t, since, 1)
}

func TestGraveStore_ApplyAndRemoved(t *testing.T) {
	dir := t.TempDir()
	col, err := Open(dir)
	require.NoError(t, err)
	defer col.Close()

	require.NoError(t, col.Graves().Apply([]int64{1, 2}, []int64{3}, nil, 7))

	cards, notes, decks, err := col.Graves().Removed(0)
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{1, 2}, cards)
	require.ElementsMatch(t, []int64{3}, notes)
	require.Empty(t, decks)
}

func TestMediaIndex_ChangesAscendingByUSN(t *testing.T) {
	dir := t.TempDir()
	col, err := Open(dir)
	require.NoError(t, err)
	defer col.Close()

	media := col.Media()
	require.NoError(t, media.AddOrUpdate("a.jpg", 3, "csum-a"))
	require.NoError(t, media.AddOrUpdate("b.jpg", 1, "csum-b"))
	require.NoError(t, media.AddOrUpdate("c.jpg", 2, "csum-c"))

	changes, err := media.Changes(0)
	require.NoError(t, err)
	require.Len(t, changes, 3)
	require.Equal(t, "b.jpg", changes[0].Filename)
	require.Equal(t, "c.jpg", changes[1].Filename)
	require.Equal(t, "a.jpg", changes[2].Filename)
}

func TestMediaIndex_SyncDeleteIsTombstone(t *testing.T) {
	dir := t.TempDir()
	col, err := Open(dir)
	require.NoError(t, err)
	defer col.Close()

	media := col.Media()
	require.NoError(t, media.AddOrUpdate("a.jpg", 1, "csum-a"))
	require.NoError(t, media.SyncDelete("a.jpg", 2))

	changes, err := media.Changes(0)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	require.Equal(t, "", changes[0].Csum)
}

func TestSanityCheck_CountsMatchInsertedRows(t *testing.T) {
	dir := t.TempDir()
	col, err := Open(dir)
	require.NoError(t, err)
	defer col.Close()

	_, err = col.Exec("INSERT INTO cards (id, nid, did, mod, usn, data) VALUES (1, 1, 1, 0, 0, '')")
	require.NoError(t, err)

	counts, err := col.SanityCheck()
	require.NoError(t, err)
	require.Equal(t, 1, counts[0]) // cards
}
