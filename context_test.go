package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext(t *testing.T) *Context {
	t.Helper()
	w, err := NewWorker(nil)
	require.NoError(t, err)
	t.Cleanup(w.Term)
	return NewContext(w)
}

func TestContext_FeedRunsToCompletion(t *testing.T) {
	ctx := newTestContext(t)
	var order []string
	var root *FSM
	root = NewFSM(ctx, nil, "root", func(self *FSM, ev Event) {
		order = append(order, "root")
		if ev.Type == EvStopped {
			// self-raise: must be deferred until this call returns.
			self.Self(EvError)
		}
	})
	_ = root

	ctx.Feed(root, Event{Type: EvStopped})
	assert.Equal(t, []string{"root", "root"}, order)
}

func TestContext_RaiseToParentOrdering(t *testing.T) {
	ctx := newTestContext(t)
	var order []string
	parent := NewFSM(ctx, nil, "parent", func(self *FSM, ev Event) {
		order = append(order, "parent:"+string(rune('0'+ev.Type)))
	})
	child := NewFSM(ctx, parent, "child", func(self *FSM, ev Event) {
		order = append(order, "child")
		self.RaiseToParent(EvStopped)
	})

	ctx.Feed(child, Event{Type: EvError})
	require.Len(t, order, 2)
	assert.Equal(t, "child", order[0])
}

func TestContext_EnterLeaveDrainsQueuedEvents(t *testing.T) {
	ctx := newTestContext(t)
	var got EventType
	target := NewFSM(ctx, nil, "target", func(self *FSM, ev Event) {
		got = ev.Type
	})

	ctx.Enter()
	target.Feed(nil, EvError)
	ctx.Leave()

	assert.Equal(t, EvError, got)
}

func TestContext_IsOwnerThreadReentrant(t *testing.T) {
	ctx := newTestContext(t)
	var nested bool
	var fsm *FSM
	fsm = NewFSM(ctx, nil, "x", func(self *FSM, ev Event) {
		if ev.Type == EvError {
			nested = ctx.isOwnerThread()
			self.Feed(nil, EvStopped)
		}
	})
	_ = fsm

	ctx.Feed(fsm, Event{Type: EvError})
	assert.True(t, nested, "handler runs under ownership of the dispatch loop")
}
