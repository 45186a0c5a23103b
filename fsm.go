package core

// Handler is the event-handling function of an FSM. It runs only while the
// owning Context's exclusivity is held (invariant I4) and is the only place
// state transitions may happen (invariant b, spec §3).
type Handler func(self *FSM, ev Event)

// FSM is a node in the hierarchical state-machine tree described in spec
// §3: a handler, a current state, a stable parent pointer, and the context
// it is serialized through. The zero value is not usable; construct with
// NewFSM.
type FSM struct {
	handler Handler
	state   int
	parent  *FSM
	ctx     *Context

	// label is purely diagnostic (used in FatalError messages and debug
	// logging); it has no effect on behavior.
	label string
}

// NewFSM constructs an FSM. parent is nil for a root FSM (a Context's
// top-level endpoint); once set it never changes for the lifetime of the
// FSM (invariant a), with the single exception of Reparent.
func NewFSM(ctx *Context, parent *FSM, label string, handler Handler) *FSM {
	assertFatal(ctx != nil, "fsm", "context must not be nil")
	assertFatal(handler != nil, "fsm", "handler must not be nil")
	return &FSM{handler: handler, parent: parent, ctx: ctx, label: label}
}

// Context returns the FSM's owning context.
func (f *FSM) Context() *Context { return f.ctx }

// Parent returns the FSM's parent, or nil for a root FSM.
func (f *FSM) Parent() *FSM { return f.parent }

// Label returns the FSM's diagnostic label.
func (f *FSM) Label() string { return f.label }

// State returns the FSM's current state integer. Valid only when called
// from within the owning context (a handler, or after Enter/before Leave);
// reading it from an arbitrary goroutine is a race by construction, matched
// to the source design where state "is accessed solely from the worker
// thread" (original usock.h).
func (f *FSM) State() int { return f.state }

// SetState transitions the FSM to a new state. Must only be called from
// within the handler (invariant c).
func (f *FSM) SetState(s int) { f.state = s }

// invoke runs the handler for ev. Called only by Context.Feed/Leave, always
// under the context's exclusivity.
func (f *FSM) invoke(ev Event) {
	f.handler(f, ev)
}

// Feed delivers an event whose source is an external input (typically a
// Worker readiness/task callback, identified by source) to this FSM.
func (f *FSM) Feed(source any, typ EventType) {
	f.ctx.Feed(f, Event{Source: source, Type: typ})
}

// Self raises an event from the FSM to itself. Per spec §4.5 this is
// deferred: it is appended to the context queue and dispatched only after
// the current handler invocation returns.
func (f *FSM) Self(typ EventType) {
	f.ctx.Feed(f, Event{Source: nil, Type: typ})
}

// RaiseToParent delivers an event to the FSM's parent, with Source set to
// the FSM itself so the parent's handler can identify which child raised
// it. A no-op on a root FSM (nothing to notify).
func (f *FSM) RaiseToParent(typ EventType) {
	if f.parent == nil {
		return
	}
	f.parent.ctx.Feed(f.parent, Event{Source: f, Type: typ})
}

// Reparent hands f off to newParent. Used exactly once, when a socket
// accepted or connected under a listening/dialing endpoint's FSM is handed
// to the Session constructed to own it, so that the socket's subsequent
// EvUsock*/EvStopped events route to the session instead of back to the
// endpoint. Must be called before f raises any further event, and only from
// within the handler currently processing the event that prompted the
// handoff (so no event for f is already queued against the old parent).
func (f *FSM) Reparent(newParent *FSM) {
	f.parent = newParent
}
