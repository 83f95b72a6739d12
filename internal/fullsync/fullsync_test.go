package fullsync

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ankisyncd/ankisyncd-go/internal/collection/sqlitecol"
)

func TestDownload_ReturnsFileBytes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "collection.anki2")
	require.NoError(t, os.WriteFile(path, []byte("sqlite-bytes"), 0644))

	mgr := New()
	data, err := mgr.Download(path)
	require.NoError(t, err)
	require.Equal(t, []byte("sqlite-bytes"), data)
}

func TestUpload_RejectsCorruptData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "collection.anki2")
	col, err := sqlitecol.Open(dir)
	require.NoError(t, err)
	defer col.Close()

	mgr := New()
	_, err = mgr.Upload(col, path, []byte("not a sqlite database"))
	require.Error(t, err)

	// the .tmp scratch file must not survive a failed upload
	_, statErr := os.Stat(path + ".tmp")
	require.True(t, os.IsNotExist(statErr))
}

func TestUpload_ReplacesCollectionOnValidData(t *testing.T) {
	srcDir := t.TempDir()
	srcCol, err := sqlitecol.Open(srcDir)
	require.NoError(t, err)
	srcPath := filepath.Join(srcDir, "collection.anki2")
	srcCol.Close()
	validBytes, err := os.ReadFile(srcPath)
	require.NoError(t, err)

	dstDir := t.TempDir()
	dstCol, err := sqlitecol.Open(dstDir)
	require.NoError(t, err)
	dstPath := filepath.Join(dstDir, "collection.anki2")

	mgr := New()
	status, err := mgr.Upload(dstCol, dstPath, validBytes)
	require.NoError(t, err)
	require.Equal(t, "OK", status)

	got, err := os.ReadFile(dstPath)
	require.NoError(t, err)
	require.Equal(t, validBytes, got)
}
