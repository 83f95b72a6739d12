package workerpool

import (
	"context"
	"database/sql"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ankisyncd/ankisyncd-go/internal/collection"
)

// fakeCollection is a minimal stand-in used only to exercise the pool's
// open/lock/save/close lifecycle; it does not back a real database.
type fakeCollection struct {
	usn    int
	closed int32
	saved  int32
}

func (f *fakeCollection) Close() error                  { atomic.AddInt32(&f.closed, 1); return nil }
func (f *fakeCollection) Save() error                    { atomic.AddInt32(&f.saved, 1); return nil }
func (f *fakeCollection) USN() int                       { return f.usn }
func (f *fakeCollection) SetUSN(usn int)                 { f.usn = usn }
func (f *fakeCollection) Mod() int64                     { return 0 }
func (f *fakeCollection) SetMod(int64)                   {}
func (f *fakeCollection) SCM() int64                     { return 0 }
func (f *fakeCollection) SchedVer() int                  { return 11 }
func (f *fakeCollection) Crt() int64                     { return 0 }
func (f *fakeCollection) Conf() (collection.JSONObject, error) { return collection.JSONObject{}, nil }
func (f *fakeCollection) SetConf(collection.JSONObject) error  { return nil }
func (f *fakeCollection) Media() collection.MediaIndex   { return nil }
func (f *fakeCollection) SanityCheck() ([]int, error)    { return nil, nil }
func (f *fakeCollection) Models() collection.ModelStore  { return nil }
func (f *fakeCollection) Decks() collection.DeckStore    { return nil }
func (f *fakeCollection) Tags() collection.TagStore      { return nil }
func (f *fakeCollection) Graves() collection.GraveStore  { return nil }
func (f *fakeCollection) Query(string, ...any) (*sql.Rows, error)    { return nil, nil }
func (f *fakeCollection) Exec(string, ...any) (sql.Result, error)    { return nil, nil }

var _ collection.Collection = (*fakeCollection)(nil)

func TestPool_ExecuteSynchronous(t *testing.T) {
	opens := int32(0)
	col := &fakeCollection{}
	pool := New(func(path string) (collection.Collection, error) {
		atomic.AddInt32(&opens, 1)
		return col, nil
	}, 15*time.Second, 90*time.Second)
	pool.Start(context.Background())
	defer pool.Shutdown(time.Second)

	result, err := pool.Execute(context.Background(), "/tmp/user1", true, func(c collection.Collection) (any, error) {
		c.SetUSN(7)
		return "ok", nil
	})
	require.NoError(t, err)
	require.Equal(t, "ok", result)
	require.Equal(t, 7, col.usn)
	require.Equal(t, int32(1), atomic.LoadInt32(&opens))
}

func TestPool_ExecuteAsynchronousDiscardsResult(t *testing.T) {
	col := &fakeCollection{}
	pool := New(func(path string) (collection.Collection, error) { return col, nil }, 15*time.Second, 90*time.Second)
	pool.Start(context.Background())
	defer pool.Shutdown(time.Second)

	done := make(chan struct{})
	result, err := pool.Execute(context.Background(), "/tmp/user2", false, func(c collection.Collection) (any, error) {
		defer close(done)
		return "ignored", nil
	})
	require.NoError(t, err)
	require.Nil(t, result)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("async job never ran")
	}
}

func TestPool_OneWorkerPerPath(t *testing.T) {
	pool := New(func(path string) (collection.Collection, error) { return &fakeCollection{}, nil }, 15*time.Second, 90*time.Second)
	pool.Start(context.Background())
	defer pool.Shutdown(time.Second)

	pool.Execute(context.Background(), "/a", true, func(c collection.Collection) (any, error) { return nil, nil })
	pool.Execute(context.Background(), "/b", true, func(c collection.Collection) (any, error) { return nil, nil })

	require.ElementsMatch(t, []string{"/a", "/b"}, pool.Paths())
}

func TestWorker_IdleCloseReopensLazily(t *testing.T) {
	opens := int32(0)
	pool := New(func(path string) (collection.Collection, error) {
		atomic.AddInt32(&opens, 1)
		return &fakeCollection{}, nil
	}, 15*time.Second, 90*time.Second)
	pool.Start(context.Background())
	defer pool.Shutdown(time.Second)

	w := pool.workerFor("/idle")
	pool.Execute(context.Background(), "/idle", true, func(c collection.Collection) (any, error) { return nil, nil })
	require.Equal(t, int32(1), atomic.LoadInt32(&opens))

	w.lastActivity.Store(time.Now().Add(-time.Hour).Unix())
	w.idleClose(90 * time.Second)

	pool.Execute(context.Background(), "/idle", true, func(c collection.Collection) (any, error) { return nil, nil })
	require.Equal(t, int32(2), atomic.LoadInt32(&opens))
}
