package core

import (
	"sync"
	"time"

	"github.com/joeycumines/logiface"
)

// maxPollTimeoutMs bounds how long a worker blocks in PollIO even with no
// pending timer, so a stalled Term() request is never waited out
// indefinitely; it is not load-bearing for correctness, only latency.
const maxPollTimeoutMs = 1000

// Task is a unit of work posted to a Worker's own goroutine (spec §4.4).
type Task func()

// Worker is the single-goroutine I/O reactor described in spec §4.4: it
// owns a Poller, a TimerSet, and a cross-thread task queue, and is the only
// goroutine that ever touches any of them except through Post.
type Worker struct {
	poller Poller
	timers *TimerSet
	wake   wakeChannel

	mu      sync.Mutex
	tasks   []Task
	stopped bool

	log *logiface.Logger[logiface.Event]

	done chan struct{}
}

// NewWorker constructs and starts a worker goroutine. Callers must call
// Term to release its resources. log may be nil, silencing diagnostics.
func NewWorker(log *logiface.Logger[logiface.Event]) (*Worker, error) {
	w := &Worker{
		poller: newPlatformPoller(),
		timers: NewTimerSet(),
		log:    log,
		done:   make(chan struct{}),
	}
	if err := w.poller.Init(); err != nil {
		return nil, err
	}
	wk, err := newWakeChannel()
	if err != nil {
		_ = w.poller.Close()
		return nil, err
	}
	w.wake = wk
	if err := w.poller.RegisterFD(wk.fd(), EventRead, func(IOEvents) {
		_ = w.wake.drain()
	}); err != nil {
		_ = w.wake.close()
		_ = w.poller.Close()
		return nil, err
	}
	go w.run()
	return w, nil
}

// Post enqueues task to run on the worker's own goroutine and wakes it if
// it is currently blocked in PollIO. Safe to call from any goroutine.
// Returns ErrWorkerStopped if the worker has already terminated.
func (w *Worker) Post(task Task) error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return ErrWorkerStopped
	}
	w.tasks = append(w.tasks, task)
	w.mu.Unlock()
	return w.wake.signal()
}

// Term requests the worker goroutine stop after draining any task already
// posted, and blocks until it has exited. Idempotent.
func (w *Worker) Term() {
	w.mu.Lock()
	alreadyStopped := w.stopped
	w.stopped = true
	w.mu.Unlock()
	if alreadyStopped {
		<-w.done
		return
	}
	_ = w.wake.signal()
	<-w.done
}

// RegisterFD, ModifyFD, UnregisterFD, AddTimer and RemoveTimer must only be
// called from within a Task running on this worker's own goroutine
// (invariant I2) — typically from a usock's or timerFSM's handler.

func (w *Worker) RegisterFD(fd int, events IOEvents, cb PollCallback) error {
	return w.poller.RegisterFD(fd, events, cb)
}

func (w *Worker) ModifyFD(fd int, events IOEvents) error {
	return w.poller.ModifyFD(fd, events)
}

func (w *Worker) UnregisterFD(fd int) error {
	return w.poller.UnregisterFD(fd)
}

func (w *Worker) AddTimer(deadline time.Time, onFire func()) uint64 {
	return w.timers.Add(deadline, onFire)
}

func (w *Worker) RemoveTimer(id uint64) bool {
	return w.timers.Remove(id)
}

// Log returns the structured logger this worker's components should report
// through; may be nil.
func (w *Worker) Log() *logiface.Logger[logiface.Event] { return w.log }

// run is the reactor loop: drain posted tasks, fire expired timers, poll
// for I/O readiness bounded by the next timer deadline, repeat (spec §4.4
// steps 1-5). It exits once Term has been called and the final task batch
// has drained.
func (w *Worker) run() {
	defer close(w.done)
	for {
		w.drainTasks()
		w.fireExpiredTimers()

		w.mu.Lock()
		stop := w.stopped && len(w.tasks) == 0
		w.mu.Unlock()
		if stop {
			_ = w.poller.UnregisterFD(w.wake.fd())
			_ = w.wake.close()
			_ = w.poller.Close()
			return
		}

		timeout := maxPollTimeoutMs
		if deadline, ok := w.timers.Earliest(); ok {
			if ms := int(time.Until(deadline) / time.Millisecond); ms < timeout {
				if ms < 0 {
					ms = 0
				}
				timeout = ms
			}
		}
		_, _ = w.poller.PollIO(timeout)
	}
}

func (w *Worker) drainTasks() {
	w.mu.Lock()
	tasks := w.tasks
	w.tasks = nil
	w.mu.Unlock()
	for _, t := range tasks {
		t()
	}
}

func (w *Worker) fireExpiredTimers() {
	now := time.Now()
	for {
		onFire, ok := w.timers.PopExpired(now)
		if !ok {
			return
		}
		onFire()
	}
}
