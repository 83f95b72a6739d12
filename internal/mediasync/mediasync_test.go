package mediasync

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ankisyncd/ankisyncd-go/internal/collection/sqlitecol"
)

func newTestHandler(t *testing.T) (*Handler, string) {
	t.Helper()
	dir := t.TempDir()
	mediaDir := filepath.Join(dir, "media")
	require.NoError(t, os.MkdirAll(mediaDir, 0755))

	col, err := sqlitecol.Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { col.Close() })

	return New(col, mediaDir), mediaDir
}

func TestBegin_ReturnsSKeyAndUSN(t *testing.T) {
	h, _ := newTestHandler(t)
	resp := h.Begin("sk123")
	require.Equal(t, "sk123", resp.Data.SKey)
	require.Equal(t, 0, resp.Data.USN)
}

func buildUploadZip(t *testing.T, files map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	meta := make([][2]any, 0, len(files))
	idx := 0
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	for _, name := range names {
		meta = append(meta, [2]any{name, float64(idx)})
		w, err := zw.Create(string(rune('0' + idx)))
		require.NoError(t, err)
		_, err = w.Write(files[name])
		require.NoError(t, err)
		idx++
	}
	metaBytes, err := json.Marshal(meta)
	require.NoError(t, err)
	w, err := zw.Create("_meta")
	require.NoError(t, err)
	_, err = w.Write(metaBytes)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestUploadChanges_AddsFileAndBumpsUSN(t *testing.T) {
	h, mediaDir := newTestHandler(t)

	data := buildUploadZip(t, map[string][]byte{"picture.jpg": []byte("binary-data")})
	resp, err := h.UploadChanges(data)
	require.NoError(t, err)
	require.Equal(t, 1, resp.Data[0]) // processed count
	require.Equal(t, 1, resp.Data[1]) // new lastUsn

	content, err := os.ReadFile(filepath.Join(mediaDir, "picture.jpg"))
	require.NoError(t, err)
	require.Equal(t, []byte("binary-data"), content)
}

func TestUploadChanges_RejectsOversizedMeta(t *testing.T) {
	h, _ := newTestHandler(t)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("_meta")
	require.NoError(t, err)
	_, err = w.Write(make([]byte, MaxMetaFileSize+1))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = h.UploadChanges(buf.Bytes())
	require.Error(t, err)
}

func TestMediaChanges_AscendingOrder(t *testing.T) {
	h, _ := newTestHandler(t)
	media := h.col.Media()
	require.NoError(t, media.AddOrUpdate("z.jpg", 3, "c3"))
	require.NoError(t, media.AddOrUpdate("a.jpg", 1, "c1"))
	media.SetLastUsn(3)

	resp, err := h.MediaChanges(0)
	require.NoError(t, err)
	require.Len(t, resp.Data, 2)
	require.Equal(t, "a.jpg", resp.Data[0][0])
	require.Equal(t, "z.jpg", resp.Data[1][0])
}

func TestMediaSanity_MatchAndMismatch(t *testing.T) {
	h, _ := newTestHandler(t)
	require.NoError(t, h.col.Media().AddOrUpdate("a.jpg", 1, "csum"))

	ok, err := h.MediaSanity(1)
	require.NoError(t, err)
	require.Equal(t, "OK", ok.Data)

	bad, err := h.MediaSanity(5)
	require.NoError(t, err)
	require.Equal(t, "FAILED", bad.Data)
}

func TestDownloadFiles_BuildsZipWithMeta(t *testing.T) {
	h, mediaDir := newTestHandler(t)
	require.NoError(t, os.WriteFile(filepath.Join(mediaDir, "a.jpg"), []byte("hello"), 0644))

	out, err := h.DownloadFiles([]string{"a.jpg"})
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(out), int64(len(out)))
	require.NoError(t, err)
	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	require.Contains(t, names, "_meta")
	require.Contains(t, names, "0")
}
