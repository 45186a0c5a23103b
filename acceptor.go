package core

import (
	"time"

	"golang.org/x/sys/unix"
)

// Acceptor event types, offset to avoid colliding with other components'
// local ranges.
const (
	// EvAcceptorStopped fires once every child session has drained after
	// Stop().
	EvAcceptorStopped EventType = 400 + iota
)

const (
	acceptorStateIdle = iota
	acceptorStateActive
	acceptorStateStoppingSessions
	acceptorStateDone
)

// reListenBackoffInitial and reListenBackoffMax bound the exponential
// backoff applied after a transient accept() failure (e.g. EMFILE),
// mirroring the reconnect backoff policy applied by Connector.
const (
	reListenBackoffInitial = 100 * time.Millisecond
	reListenBackoffMax     = 10 * time.Second
)

// PipeFactory constructs the protocol-shell Pipe for a newly accepted
// session. Supplied by whatever owns the Acceptor (this module implements
// no protocol shells itself).
type PipeFactory func() Pipe

// Acceptor is the listening-endpoint FSM described in spec §4.7: it owns
// one listening Usock, accepts a session per incoming connection, and
// applies exponential backoff if accept() starts failing transiently.
type Acceptor struct {
	fsm  *FSM
	sock *Usock
	tfsm *TimerFSM

	protocolID  uint16
	newPipe     PipeFactory
	backoff     time.Duration
	sessions    map[*FSM]*Session
	stopPending bool
}

// NewAcceptor constructs an Acceptor bound to sa (already resolved) within
// ctx, rooted at parent.
func NewAcceptor(ctx *Context, parent *FSM, domain int, sa unix.Sockaddr, protocolID uint16, newPipe PipeFactory) (*Acceptor, error) {
	if su, ok := sa.(*unix.SockaddrUnix); ok {
		if err := unlinkStaleUnixSocket(su.Name); err != nil {
			return nil, err
		}
	}
	a := &Acceptor{protocolID: protocolID, newPipe: newPipe, sessions: make(map[*FSM]*Session)}
	a.fsm = NewFSM(ctx, parent, "acceptor", a.handle)
	a.tfsm = NewTimerFSM(ctx, a.fsm)
	sock, err := NewUsock(ctx, a.fsm, domain, unix.SOCK_STREAM)
	if err != nil {
		return nil, err
	}
	a.sock = sock
	if err := sock.Bind(sa); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Acceptor) FSM() *FSM { return a.fsm }

// Start begins listening and accepting.
func (a *Acceptor) Start(backlog int) error {
	var err error
	a.fsm.Context().run(func() {
		if err = a.sock.Listen(backlog); err != nil {
			return
		}
		a.fsm.SetState(acceptorStateActive)
		err = a.sock.Accept()
	})
	return err
}

// Stop begins graceful shutdown: stops accepting new connections and closes
// every active session, raising EvAcceptorStopped once the last one has
// drained. Callable from whatever goroutine the application owns; the body
// runs under the context's exclusivity (see Context.run) rather than racing
// the worker goroutine's concurrent delivery of EvSessionClosed into
// a.sessions. Idempotent.
func (a *Acceptor) Stop() {
	a.fsm.Context().run(func() {
		if a.stopPending {
			return
		}
		a.stopPending = true
		a.tfsm.Stop()
		_ = a.sock.Close()
		if len(a.sessions) == 0 {
			a.finishStop()
			return
		}
		a.fsm.SetState(acceptorStateStoppingSessions)
		for _, sess := range a.sessions {
			sess.Close()
		}
	})
}

func (a *Acceptor) finishStop() {
	a.fsm.SetState(acceptorStateDone)
	a.fsm.RaiseToParent(EvAcceptorStopped)
}

func (a *Acceptor) handle(self *FSM, ev Event) {
	switch {
	case ev.Source == a.tfsm.FSM() && ev.Type == EvTimerTimeout:
		a.retryListen()
	case ev.Source == a.tfsm.FSM():
		// EvTimerStopped: nothing to do.
	case ev.Type == EvUsockAccepted:
		a.onAccepted(ev.Source.(*Usock))
	case ev.Type == EvUsockAcceptError:
		a.onAcceptError()
	case ev.Type == EvSessionActive:
		// Nothing to do; the session's pipe is already live.
	case ev.Type == EvSessionClosed:
		delete(a.sessions, ev.Source.(*FSM))
		if a.stopPending && len(a.sessions) == 0 {
			a.finishStop()
		}
	}
}

func (a *Acceptor) onAccepted(peerSock *Usock) {
	if a.stopPending {
		// Accepted behind an in-progress Stop; the listener is already
		// closing, so just drop the connection.
		_ = peerSock.Close()
		return
	}
	a.backoff = 0
	sess := NewSession(a.fsm.Context(), a.fsm, peerSock, a.newPipe(), a.protocolID)
	peerSock.FSM().Reparent(sess.FSM())
	a.sessions[sess.FSM()] = sess
	sess.Start()
}

func (a *Acceptor) onAcceptError() {
	if a.stopPending {
		return
	}
	if log := a.fsm.Context().Worker().Log(); log != nil {
		log.Warning().Str("component", "acceptor").Log("transient accept failure, backing off")
	}
	if m := a.fsm.Context().Metrics(); m != nil {
		m.AcceptErrors.Add(1)
	}
	if a.backoff == 0 {
		a.backoff = reListenBackoffInitial
	} else {
		a.backoff *= 2
		if a.backoff > reListenBackoffMax {
			a.backoff = reListenBackoffMax
		}
	}
	a.tfsm.Start(a.backoff)
}

func (a *Acceptor) retryListen() {
	_ = a.sock.Accept()
}
