package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ankisyncd/ankisyncd-go/internal/collection"
	"github.com/ankisyncd/ankisyncd-go/internal/collection/sqlitecol"
	"github.com/ankisyncd/ankisyncd-go/internal/config"
	"github.com/ankisyncd/ankisyncd-go/internal/fullsync"
	"github.com/ankisyncd/ankisyncd-go/internal/sessionstore"
	"github.com/ankisyncd/ankisyncd-go/internal/usermanager"
	"github.com/ankisyncd/ankisyncd-go/internal/workerpool"
)

func newTestDeps(t *testing.T) (*Deps, string) {
	t.Helper()
	dataRoot := t.TempDir()

	users := usermanager.NewStaticUserManager()
	require.NoError(t, users.CreateUser(context.Background(), "alice", "hunter22"))

	openFn := func(path string) (collection.Collection, error) {
		require.NoError(t, os.MkdirAll(path, 0755))
		col, err := sqlitecol.Open(path)
		if err != nil {
			return nil, err
		}
		return col, nil
	}
	pool := workerpool.New(openFn, time.Hour, time.Hour)
	pool.Start(context.Background())
	t.Cleanup(func() { pool.Shutdown(time.Second) })

	return &Deps{
		Config:   &config.Config{BaseURL: "sync/", BaseMediaURL: "msync/", DataRoot: dataRoot},
		Users:    users,
		Sessions: sessionstore.NewMemoryStore(),
		Pool:     pool,
		FullSync: fullsync.New(),
		Metrics:  nil,
	}, dataRoot
}

func postMultipart(t *testing.T, path string, fields map[string]string, dataField []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if dataField != nil {
		fw, err := mw.CreateFormFile("data", "data")
		require.NoError(t, err)
		_, err = fw.Write(dataField)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestDispatcher_HostKey_AuthenticatesAndIssuesKey(t *testing.T) {
	deps, _ := newTestDeps(t)
	d := NewDispatcher(deps)

	payload, _ := json.Marshal(map[string]string{"u": "alice", "p": "hunter22"})
	req := postMultipart(t, "/sync/hostKey", nil, payload)
	rec := httptest.NewRecorder()

	d.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body["key"])
}

func TestDispatcher_HostKey_RejectsBadPassword(t *testing.T) {
	deps, _ := newTestDeps(t)
	d := NewDispatcher(deps)

	payload, _ := json.Marshal(map[string]string{"u": "alice", "p": "wrong"})
	req := postMultipart(t, "/sync/hostKey", nil, payload)
	rec := httptest.NewRecorder()

	d.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func issueHostKey(t *testing.T, d *Dispatcher) string {
	t.Helper()
	payload, _ := json.Marshal(map[string]string{"u": "alice", "p": "hunter22"})
	req := postMultipart(t, "/sync/hostKey", nil, payload)
	rec := httptest.NewRecorder()
	d.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["key"]
}

func TestDispatcher_Meta_RoundTripsThroughCollection(t *testing.T) {
	deps, _ := newTestDeps(t)
	d := NewDispatcher(deps)
	hkey := issueHostKey(t, d)

	payload, _ := json.Marshal(map[string]any{"v": 11, "cv": "ankidesktop,2.1.50,mac"})
	req := postMultipart(t, "/sync/meta?k="+url.QueryEscape(hkey), map[string]string{"k": hkey}, payload)
	rec := httptest.NewRecorder()

	d.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var meta map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &meta))
	require.Equal(t, true, meta["cont"])
}

func TestDispatcher_UnknownSession_Returns403(t *testing.T) {
	deps, _ := newTestDeps(t)
	d := NewDispatcher(deps)

	req := postMultipart(t, "/sync/meta", map[string]string{"k": "does-not-exist"}, []byte("{}"))
	rec := httptest.NewRecorder()

	d.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDispatcher_InvalidOperation_Returns404(t *testing.T) {
	deps, _ := newTestDeps(t)
	d := NewDispatcher(deps)
	hkey := issueHostKey(t, d)

	req := postMultipart(t, "/sync/bogusOp", map[string]string{"k": hkey}, []byte("{}"))
	rec := httptest.NewRecorder()

	d.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDispatcher_Media_Begin(t *testing.T) {
	deps, dataRoot := newTestDeps(t)
	d := NewDispatcher(deps)
	hkey := issueHostKey(t, d)
	require.NoError(t, os.MkdirAll(filepath.Join(dataRoot, "alice", "collection.media"), 0755))

	req := postMultipart(t, "/msync/begin", map[string]string{"k": hkey}, []byte("{}"))
	rec := httptest.NewRecorder()

	d.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "", body["err"])
}
