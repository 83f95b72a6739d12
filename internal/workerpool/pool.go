// Package workerpool implements the Collection Worker Pool (spec §4.1): an
// ordered, single-threaded execution context per collection path, many such
// contexts running concurrently. Grounded on the pack's bounded-channel
// flush worker, generalized from "N workers sharing one queue" to "exactly
// one worker per path" — the pool is a map[path]*worker behind a mutex.
package workerpool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ankisyncd/ankisyncd-go/internal/collection"
	"github.com/ankisyncd/ankisyncd-go/internal/logger"
)

// Pool owns one worker per collection path and a single background monitor
// that idle-closes collections across all of them (spec §9 Design Note).
type Pool struct {
	openFn OpenFunc

	monitorFrequency  time.Duration
	monitorInactivity time.Duration

	mu      sync.Mutex
	workers map[string]*worker

	monitorStop chan struct{}
	monitorDone chan struct{}
}

// New constructs a Pool. openFn is called lazily whenever a worker needs to
// open its collection: on the worker's first job, and again on the first job
// after the inactivity monitor has closed it.
func New(openFn OpenFunc, monitorFrequency, monitorInactivity time.Duration) *Pool {
	if monitorFrequency <= 0 {
		monitorFrequency = 15 * time.Second
	}
	if monitorInactivity <= 0 {
		monitorInactivity = 90 * time.Second
	}
	return &Pool{
		openFn:            openFn,
		monitorFrequency:  monitorFrequency,
		monitorInactivity: monitorInactivity,
		workers:           make(map[string]*worker),
	}
}

// Start launches the inactivity monitor goroutine.
func (p *Pool) Start(ctx context.Context) {
	p.monitorStop = make(chan struct{})
	p.monitorDone = make(chan struct{})
	go p.monitorLoop(ctx)
}

func (p *Pool) monitorLoop(ctx context.Context) {
	defer close(p.monitorDone)
	ticker := time.NewTicker(p.monitorFrequency)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.sweepIdle()
		case <-p.monitorStop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// sweepIdle iterates a snapshot of the worker map, per the spec's design
// note that the monitor must not hold the pool lock while closing workers.
func (p *Pool) sweepIdle() {
	p.mu.Lock()
	snapshot := make([]*worker, 0, len(p.workers))
	for _, w := range p.workers {
		snapshot = append(snapshot, w)
	}
	p.mu.Unlock()

	for _, w := range snapshot {
		w.idleClose(p.monitorInactivity)
	}
}

// Execute enqueues fn for the worker owning path, lazily creating it on
// first use. When wait is true the caller blocks for the result; when
// false, the call returns immediately and fn's result (and any error) is
// discarded after being logged.
func (p *Pool) Execute(
	ctx context.Context, path string, wait bool, fn func(col collection.Collection) (any, error),
) (any, error) {
	w := p.workerFor(path)
	return w.submit(wait, fn)
}

func (p *Pool) workerFor(path string) *worker {
	p.mu.Lock()
	defer p.mu.Unlock()
	if w, ok := p.workers[path]; ok {
		return w
	}
	w := newWorker(path, p.openFn)
	w.start()
	p.workers[path] = w
	return w
}

// Shutdown enqueues a terminating sentinel into every worker, removes them
// from the map, and waits up to timeout for all of them (and the monitor) to
// stop.
func (p *Pool) Shutdown(timeout time.Duration) error {
	p.mu.Lock()
	workers := make([]*worker, 0, len(p.workers))
	for path, w := range p.workers {
		workers = append(workers, w)
		delete(p.workers, path)
	}
	p.mu.Unlock()

	if p.monitorStop != nil {
		close(p.monitorStop)
	}

	done := make(chan struct{})
	go func() {
		for _, w := range workers {
			w.stop()
		}
		if p.monitorDone != nil {
			<-p.monitorDone
		}
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		logger.Warn("workerpool: shutdown timed out waiting for workers to drain")
		return fmt.Errorf("workerpool: shutdown timed out after %s", timeout)
	}
}

// Paths returns the collection paths currently backed by a live worker,
// mainly useful for diagnostics/metrics.
func (p *Pool) Paths() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.workers))
	for path := range p.workers {
		out = append(out, path)
	}
	return out
}
