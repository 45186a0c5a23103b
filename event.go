package core

// EventType is a small integer in a component-local namespace (e.g.
// EvUsockConnected, EvSessionClosed). Each FSM family defines its own set
// of event type constants; the zero value is never a valid event type so a
// zero-valued Event can be recognized as "not sent".
type EventType int

// Cross-cutting event types shared by every FSM in the tree (spec §4.5:
// "Child lifecycle events (STOPPED, ERROR) are the primary cross-FSM
// signal"). Component-specific event types are defined alongside their FSM
// (e.g. EvUsockConnected in usock.go) starting at a disjoint offset so a
// handler can safely switch across both ranges.
const (
	_ EventType = iota

	// EvStopped is emitted by a child FSM to its parent exactly once, as
	// the last event the child ever raises, after stop() has fully torn
	// the child down (spec §4.5 "FSM shutdown").
	EvStopped

	// EvError is emitted by a child FSM to its parent to report a
	// peer-caused or resource failure that the child cannot recover from
	// on its own (spec §7 taxonomy).
	EvError
)

// Event is the transport-unit exchanged between FSMs. It carries the
// identity of whichever child or input emitted it (Source) plus its type.
// An Event is single-shot: once enqueued on a Context it must not be
// re-enqueued until it has been delivered.
type Event struct {
	// Source identifies which child (or external input, e.g. a Worker
	// callback) raised the event. Identity is by pointer; nil for events
	// raised by FSM.Self and for events fed without a source (e.g. a
	// Usock's internal events posted from the Worker).
	Source any
	// Type is the component-local event code.
	Type EventType
}
