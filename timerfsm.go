package core

import "time"

// Timer event types, offset to avoid colliding with the cross-cutting
// events in event.go or any other component's local range.
const (
	// EvTimerTimeout is raised to the owner when the running timer's
	// deadline has elapsed.
	EvTimerTimeout EventType = 100 + iota
	// EvTimerStopped confirms a Stop() has taken effect; only raised if
	// the timer was running when stopped (spec parity with original
	// nanomsg timer FSM, which distinguishes "was armed" from "already
	// idle" on stop).
	EvTimerStopped
)

const (
	timerStateIdle = iota
	timerStateRunning
	timerStateStopping
)

// TimerFSM is a single-shot countdown usable by any FSM that needs to defer
// or time out an operation (handshake timeout, reconnect backoff, re-listen
// backoff). It owns no OS resources directly; arming and firing are
// delegated to the context's Worker, which is the only goroutine allowed to
// touch a TimerSet (invariant I2).
type TimerFSM struct {
	fsm     *FSM
	worker  *Worker
	id      uint64
	hasID   bool
	stopGen uint64 // incremented on Stop to invalidate in-flight fires
}

// NewTimerFSM constructs a timer rooted at parent within ctx.
func NewTimerFSM(ctx *Context, parent *FSM) *TimerFSM {
	t := &TimerFSM{worker: ctx.Worker()}
	t.fsm = NewFSM(ctx, parent, "timer", t.handle)
	t.fsm.SetState(timerStateIdle)
	return t
}

// FSM returns the underlying node, for RaiseToParent wiring by the owner.
func (t *TimerFSM) FSM() *FSM { return t.fsm }

// Start arms the timer to fire after d, raising EvTimerTimeout to the
// parent. Re-arms if already running (spec parity: restarting a handshake
// or backoff timer replaces the previous deadline).
func (t *TimerFSM) Start(d time.Duration) {
	t.stopGen++
	gen := t.stopGen
	t.fsm.SetState(timerStateRunning)
	deadline := time.Now().Add(d)
	_ = t.worker.Post(func() {
		id := t.worker.AddTimer(deadline, func() {
			t.fsm.Context().Feed(t.fsm, Event{Type: evTimerFired, Source: gen})
		})
		t.fsm.Context().Feed(t.fsm, Event{Type: evTimerArmed, Source: timerArmed{gen: gen, id: id}})
	})
}

// Stop cancels a running timer. A no-op if the timer is already idle or a
// previous Stop is still in flight, so the owner sees at most one
// EvTimerStopped per armed period.
func (t *TimerFSM) Stop() {
	if t.fsm.State() != timerStateRunning {
		return
	}
	t.stopGen++
	gen := t.stopGen
	t.fsm.SetState(timerStateStopping)
	if t.hasID {
		id := t.id
		t.hasID = false
		_ = t.worker.Post(func() {
			t.worker.RemoveTimer(id)
			t.fsm.Context().Feed(t.fsm, Event{Type: evTimerCanceled, Source: gen})
		})
	} else {
		// Arm task hasn't run on the worker yet; transition straight to
		// idle, the arm completion will see stopGen has moved on and
		// discard its own fire silently (see handle).
		t.fsm.SetState(timerStateIdle)
		t.fsm.RaiseToParent(EvTimerStopped)
	}
}

// internal events, local to this FSM's handler only (never raised to a
// parent, so no risk of colliding with another component's range).
const (
	evTimerArmed EventType = 150 + iota
	evTimerFired
	evTimerCanceled
)

type timerArmed struct {
	gen uint64
	id  uint64
}

func (t *TimerFSM) handle(self *FSM, ev Event) {
	switch ev.Type {
	case evTimerArmed:
		armed := ev.Source.(timerArmed)
		if armed.gen != t.stopGen {
			// Stop() already ran before the arm task executed; cancel
			// immediately instead of leaving an orphan timer.
			_ = t.worker.Post(func() { t.worker.RemoveTimer(armed.id) })
			return
		}
		t.id = armed.id
		t.hasID = true
	case evTimerFired:
		gen := ev.Source.(uint64)
		if gen != t.stopGen {
			return
		}
		t.hasID = false
		self.SetState(timerStateIdle)
		self.RaiseToParent(EvTimerTimeout)
	case evTimerCanceled:
		if ev.Source.(uint64) != t.stopGen {
			// Start() re-armed while this cancellation was in flight;
			// the new period owns the FSM state now.
			return
		}
		self.SetState(timerStateIdle)
		self.RaiseToParent(EvTimerStopped)
	}
}
