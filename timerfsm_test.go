package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timerParent struct {
	fsm      *FSM
	timeouts chan struct{}
	stops    chan struct{}
}

func newTimerParent(ctx *Context) *timerParent {
	p := &timerParent{
		timeouts: make(chan struct{}, 8),
		stops:    make(chan struct{}, 8),
	}
	p.fsm = NewFSM(ctx, nil, "timer-parent", func(self *FSM, ev Event) {
		switch ev.Type {
		case EvTimerTimeout:
			p.timeouts <- struct{}{}
		case EvTimerStopped:
			p.stops <- struct{}{}
		}
	})
	return p
}

func TestTimerFSM_FiresTimeout(t *testing.T) {
	w, err := NewWorker(nil)
	require.NoError(t, err)
	defer w.Term()
	ctx := NewContext(w)

	p := newTimerParent(ctx)
	tf := NewTimerFSM(ctx, p.fsm)

	ctx.Enter()
	tf.Start(10 * time.Millisecond)
	ctx.Leave()

	select {
	case <-p.timeouts:
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}
}

func TestTimerFSM_StopCancelsBeforeFire(t *testing.T) {
	w, err := NewWorker(nil)
	require.NoError(t, err)
	defer w.Term()
	ctx := NewContext(w)

	p := newTimerParent(ctx)
	tf := NewTimerFSM(ctx, p.fsm)

	ctx.Enter()
	tf.Start(200 * time.Millisecond)
	ctx.Leave()
	// Let the arm task land on the worker before stopping.
	time.Sleep(20 * time.Millisecond)
	ctx.Enter()
	tf.Stop()
	ctx.Leave()

	select {
	case <-p.stops:
	case <-time.After(time.Second):
		t.Fatal("stop was never acknowledged")
	}

	select {
	case <-p.timeouts:
		t.Fatal("canceled timer fired anyway")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestTimerFSM_DoubleStopRaisesStoppedOnce(t *testing.T) {
	w, err := NewWorker(nil)
	require.NoError(t, err)
	defer w.Term()
	ctx := NewContext(w)

	p := newTimerParent(ctx)
	tf := NewTimerFSM(ctx, p.fsm)

	ctx.Enter()
	tf.Start(time.Hour)
	tf.Stop()
	tf.Stop()
	tf.Stop()
	ctx.Leave()

	assert.Eventually(t, func() bool {
		return len(p.stops) >= 1
	}, time.Second, 5*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	assert.Len(t, p.stops, 1, "Stop while a prior cancellation is in flight must not ack twice")
}

func TestTimerFSM_RestartReplacesDeadline(t *testing.T) {
	w, err := NewWorker(nil)
	require.NoError(t, err)
	defer w.Term()
	ctx := NewContext(w)

	p := newTimerParent(ctx)
	tf := NewTimerFSM(ctx, p.fsm)

	ctx.Enter()
	tf.Start(time.Hour)
	ctx.Leave()
	ctx.Enter()
	tf.Start(10 * time.Millisecond)
	ctx.Leave()

	select {
	case <-p.timeouts:
	case <-time.After(time.Second):
		t.Fatal("re-armed timer never fired")
	}

	time.Sleep(50 * time.Millisecond)
	assert.Len(t, p.timeouts, 0, "the superseded hour-long deadline must not also fire")
}
