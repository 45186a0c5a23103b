package core

import (
	"sync"
	"sync/atomic"

	"github.com/joeycumines/logiface"
)

// Library is the top-level object described in spec §9: it owns a fixed
// pool of Workers and assigns each new Context to one of them round-robin,
// so callers never have to reason about which OS thread backs a socket.
type Library struct {
	mu      sync.Mutex
	workers []*Worker
	next    atomic.Uint64
	closed  bool
	log     *logiface.Logger[logiface.Event]
	metrics *Metrics
}

// NewLibrary starts a pool of workers and returns the Library that owns
// them. The pool size defaults to runtime.GOMAXPROCS(0); see
// WithWorkerCount to override it.
func NewLibrary(opts ...LibraryOption) (*Library, error) {
	o, err := resolveLibraryOptions(opts)
	if err != nil {
		return nil, err
	}
	lib := &Library{workers: make([]*Worker, 0, o.workerCount), log: o.log}
	if o.metricsEnabled {
		lib.metrics = &Metrics{}
	}
	for i := 0; i < o.workerCount; i++ {
		w, err := NewWorker(o.log)
		if err != nil {
			lib.Close()
			return nil, err
		}
		lib.workers = append(lib.workers, w)
	}
	return lib, nil
}

// NewSocketContext allocates a Context bound to the next worker in
// round-robin order (spec §9's "Open Question" decision: workers are
// assigned per-context at creation time, not per-message).
func (l *Library) NewSocketContext() *Context {
	idx := l.next.Add(1) - 1
	w := l.workers[idx%uint64(len(l.workers))]
	ctx := NewContext(w)
	ctx.metrics = l.metrics
	return ctx
}

// WorkerCount reports how many workers the library started with.
func (l *Library) WorkerCount() int { return len(l.workers) }

// Metrics returns the library's counters, or nil if metrics collection was
// disabled via WithMetrics(false).
func (l *Library) Metrics() *Metrics { return l.metrics }

// Close terminates every worker, blocking until each has drained its final
// task batch. Idempotent.
func (l *Library) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	workers := l.workers
	l.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(len(workers))
	for _, w := range workers {
		w := w
		go func() {
			defer wg.Done()
			w.Term()
		}()
	}
	wg.Wait()
}
