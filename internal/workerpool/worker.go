package workerpool

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ankisyncd/ankisyncd-go/internal/collection"
	"github.com/ankisyncd/ankisyncd-go/internal/logger"
)

// State is a worker's lifecycle stage (spec §4.1).
type State int32

const (
	StateNew State = iota
	StateRunning
	StateStopping
	StateStopped
)

// Job is one unit of work submitted to a worker. Fn receives the (possibly
// freshly opened) collection and runs to completion before the next job is
// dequeued; resultCh is nil for asynchronous (fire-and-forget) submissions.
type job struct {
	id       string
	fn       func(col collection.Collection) (any, error)
	resultCh chan jobResult
}

type jobResult struct {
	value any
	err   error
}

// OpenFunc lazily opens the collection backing a worker's path.
type OpenFunc func(path string) (collection.Collection, error)

// worker serializes every job against one collection path, reusing the
// single-goroutine/stopCh/stoppedCh/drain shape of the pack's background
// flush worker with workers=1.
type worker struct {
	path   string
	openFn OpenFunc

	jobs      chan *job
	stopCh    chan struct{}
	stoppedCh chan struct{}

	mu  sync.Mutex
	col collection.Collection

	state        atomic.Int32
	lastActivity atomic.Int64
}

func newWorker(path string, openFn OpenFunc) *worker {
	w := &worker{
		path:      path,
		openFn:    openFn,
		jobs:      make(chan *job, 64),
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
	w.lastActivity.Store(time.Now().Unix())
	w.state.Store(int32(StateNew))
	return w
}

func (w *worker) start() {
	w.state.Store(int32(StateRunning))
	go w.run()
}

func (w *worker) run() {
	defer close(w.stoppedCh)
	for {
		select {
		case j, ok := <-w.jobs:
			if !ok {
				w.closeCollection()
				return
			}
			w.runJob(j)
		case <-w.stopCh:
			w.state.Store(int32(StateStopping))
			w.drain()
			w.closeCollection()
			w.state.Store(int32(StateStopped))
			return
		}
	}
}

// drain runs any jobs already queued before the worker exits, so a shutdown
// racing with an in-flight submission does not silently drop work.
func (w *worker) drain() {
	for {
		select {
		case j := <-w.jobs:
			w.runJob(j)
		default:
			return
		}
	}
}

func (w *worker) runJob(j *job) {
	w.lastActivity.Store(time.Now().Unix())

	col, err := w.collection()
	var result any
	if err == nil {
		result, err = j.fn(col)
		if err == nil {
			if saveErr := col.Save(); saveErr != nil {
				err = saveErr
			}
		}
	}

	w.lastActivity.Store(time.Now().Unix())

	if err != nil {
		logger.Errorf("workerpool: job %s on %s failed: %v", j.id, w.path, err)
	}
	if j.resultCh != nil {
		j.resultCh <- jobResult{value: result, err: err}
		close(j.resultCh)
	}
}

// collection returns the open collection, opening it lazily if the
// inactivity monitor previously closed it.
func (w *worker) collection() (collection.Collection, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.col != nil {
		return w.col, nil
	}
	col, err := w.openFn(w.path)
	if err != nil {
		return nil, err
	}
	w.col = col
	return col, nil
}

func (w *worker) closeCollection() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.col == nil {
		return
	}
	if err := w.col.Close(); err != nil {
		logger.Errorf("workerpool: closing collection %s: %v", w.path, err)
	}
	w.col = nil
}

// idleClose closes the collection when the monitor observes it sitting open
// with an empty queue past the inactivity threshold; the worker goroutine
// keeps running and reopens the collection lazily on the next job.
func (w *worker) idleClose(inactivity time.Duration) {
	if State(w.state.Load()) != StateRunning {
		return
	}
	if len(w.jobs) > 0 {
		return
	}
	if time.Since(time.Unix(w.lastActivity.Load(), 0)) < inactivity {
		return
	}
	w.closeCollection()
}

func (w *worker) submit(wait bool, fn func(col collection.Collection) (any, error)) (any, error) {
	id := uuid.NewString()
	if !wait {
		select {
		case w.jobs <- &job{id: id, fn: fn}:
		default:
			logger.Warnf("workerpool: queue full for %s, dropping async job %s", w.path, id)
		}
		return nil, nil
	}

	resultCh := make(chan jobResult, 1)
	w.jobs <- &job{id: id, fn: fn, resultCh: resultCh}
	res := <-resultCh
	return res.value, res.err
}

func (w *worker) stop() {
	close(w.stopCh)
	<-w.stoppedCh
}
