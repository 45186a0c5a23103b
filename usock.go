package core

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Usock event types (spec §4.2), offset to avoid colliding with other
// components' local ranges.
const (
	// EvUsockConnected fires once an outbound Connect has succeeded,
	// either synchronously or when the fd becomes writable with no
	// SO_ERROR set. A failed connect raises EvError instead.
	EvUsockConnected EventType = 200 + iota
	// EvUsockAccepted fires when Accept produced a new peer usock; Source
	// is the *Usock for the new connection.
	EvUsockAccepted
	// EvUsockSent fires once a Send's buffer has been fully written.
	EvUsockSent
	// EvUsockReceived fires once a Recv's buffer has been fully filled;
	// the caller already holds the buffer it passed to Recv.
	EvUsockReceived
	// EvUsockShutdown fires when the peer half-closed its write side
	// (EOF on read) or the socket reported a hangup/error condition.
	EvUsockShutdown
	// EvUsockAcceptError fires when Accept's listening fd produced a
	// transient error (e.g. EMFILE); the acceptor uses this to trigger
	// re-listen backoff instead of tearing down.
	EvUsockAcceptError
)

const (
	usockStateStarting = iota
	usockStateConnecting
	usockStateAccepting
	usockStateActive
	usockStateRemoving
	usockStateDone
)

// Usock is a non-blocking socket FSM (spec §4.2): wraps exactly one file
// descriptor and serializes every operation on it through its owning
// Context, while the actual syscalls and poller calls execute on the bound
// Worker's goroutine (invariant I2). Public methods post a task that feeds
// the corresponding internal event, so every state transition and every
// poller registration happens inside the handler, under the context's
// exclusivity.
type Usock struct {
	fsm    *FSM
	worker *Worker
	fd     int
	domain int
	typ    int

	sendBuf []byte
	sendOff int
	recvBuf []byte
	recvOff int

	// registered/interest track this fd's poller registration. The fd is
	// registered at most once; readiness interest is toggled by modifying
	// the event mask (spec §4.1's set_in/reset_in, set_out/reset_out), so
	// a pending send and a pending recv can each arm their own bit
	// without fighting over the registration.
	registered bool
	interest   IOEvents

	listening bool
}

// NewUsock constructs an unconnected, unbound usock. domain/typ follow
// golang.org/x/sys/unix socket() conventions (e.g. unix.AF_INET,
// unix.SOCK_STREAM), matching nn_usock_init's signature.
func NewUsock(ctx *Context, parent *FSM, domain, typ int) (*Usock, error) {
	fd, err := unix.Socket(domain, typ|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("socket: %w", err)
	}
	if err := applySocketOpts(fd, domain, typ); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("setsockopt: %w", err)
	}
	u := &Usock{worker: ctx.Worker(), fd: fd, domain: domain, typ: typ}
	u.fsm = NewFSM(ctx, parent, "usock", u.handle)
	u.fsm.SetState(usockStateStarting)
	return u, nil
}

// fromAcceptedFD wraps an fd handed back by accept4 as an active usock
// sharing the listener's context, initially parented to the listening
// usock's own parent (the Acceptor); the Acceptor hands it off to the
// Session it constructs via FSM.Reparent.
func fromAcceptedFD(ctx *Context, parent *FSM, fd int) *Usock {
	_ = applySocketOpts(fd, 0, unix.SOCK_STREAM)
	u := &Usock{worker: ctx.Worker(), fd: fd}
	u.fsm = NewFSM(ctx, parent, "usock", u.handle)
	u.fsm.SetState(usockStateActive)
	return u
}

func (u *Usock) FSM() *FSM { return u.fsm }

// FD returns the raw file descriptor, for callers (e.g. session framing)
// that need it for getsockopt/setsockopt calls not otherwise exposed.
func (u *Usock) FD() int { return u.fd }

// Bind binds the local address. Must be called before Listen or Connect.
func (u *Usock) Bind(sa unix.Sockaddr) error {
	return unix.Bind(u.fd, sa)
}

// Listen marks the usock as a listener with the given backlog.
func (u *Usock) Listen(backlog int) error {
	if err := unix.Listen(u.fd, backlog); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	u.listening = true
	u.fsm.SetState(usockStateActive)
	return nil
}

// Accept registers interest in incoming connections; each one raises
// EvUsockAccepted (Source: *Usock) to the parent, or EvUsockAcceptError on
// a transient accept() failure. Per spec §4.6's "STARTING + ACCEPT-task →
// add fd with IN interest → ACCEPTING", the poller registration is posted
// as a task and runs on the worker's own goroutine (invariant I2); only
// Worker.Post itself — safe from any goroutine — runs here.
func (u *Usock) Accept() error {
	return u.worker.Post(func() {
		u.fsm.Context().Feed(u.fsm, Event{Type: evUsockStartAccept})
	})
}

// Connect starts an asynchronous connect to sa; EvUsockConnected or EvError
// fires once the kernel resolves the handshake. The connect(2) syscall
// itself runs immediately on the calling goroutine (the fd is not yet
// registered with any poller, so nothing else can be touching it); per spec
// §4.6's "STARTING + CONNECT-task → add fd to poller with OUT interest →
// CONNECTING" (and the CONNECTED-task variant for a synchronously-completed
// connect), the poller registration is posted as a task and runs on the
// worker's own goroutine (invariant I2).
func (u *Usock) Connect(sa unix.Sockaddr) error {
	err := unix.Connect(u.fd, sa)
	if err != nil && err != unix.EINPROGRESS {
		return fmt.Errorf("connect: %w", err)
	}
	typ := evUsockStartConnect
	if err == nil {
		typ = evUsockStartConnected
	}
	return u.worker.Post(func() {
		u.fsm.Context().Feed(u.fsm, Event{Type: typ})
	})
}

// Send queues buf for writing; EvUsockSent fires once every byte has been
// written. buf must not be modified until then, and a second Send before
// that is a protocol violation by the caller.
func (u *Usock) Send(buf []byte) error {
	return u.worker.Post(func() {
		u.fsm.Context().Feed(u.fsm, Event{Source: buf, Type: evUsockDoSend})
	})
}

// Recv fills buf completely before raising EvUsockReceived; buf must not be
// touched by the caller until then.
func (u *Usock) Recv(buf []byte) error {
	return u.worker.Post(func() {
		u.fsm.Context().Feed(u.fsm, Event{Source: buf, Type: evUsockDoRecv})
	})
}

// Close tears down the fd. The usock raises no further events after
// EvStopped; callers must not invoke any other method afterward. Idempotent:
// calling Close after teardown has already started or finished (spec §8
// "usock.close() after the usock has already reached DONE is a no-op") is a
// no-op rather than a second EvStopped.
func (u *Usock) Close() error {
	var err error
	u.fsm.Context().run(func() {
		switch u.fsm.State() {
		case usockStateRemoving, usockStateDone:
			return
		}
		u.fsm.SetState(usockStateRemoving)
		err = u.worker.Post(func() {
			u.fsm.Context().Feed(u.fsm, Event{Type: evUsockDoClose})
		})
	})
	return err
}

// internal events, local to this FSM's handler.
const (
	evUsockStartAccept EventType = 250 + iota
	evUsockStartConnect
	evUsockStartConnected
	evUsockDoSend
	evUsockDoRecv
	evUsockIOReady
	evUsockDoClose
)

func (u *Usock) handle(self *FSM, ev Event) {
	switch ev.Type {
	case evUsockStartAccept:
		self.SetState(usockStateAccepting)
		if err := u.addInterest(EventRead); err != nil {
			self.RaiseToParent(EvUsockAcceptError)
		}
	case evUsockStartConnect:
		self.SetState(usockStateConnecting)
		if err := u.addInterest(EventWrite); err != nil {
			self.RaiseToParent(EvError)
		}
	case evUsockStartConnected:
		self.SetState(usockStateActive)
		self.RaiseToParent(EvUsockConnected)
	case evUsockDoSend:
		if self.State() != usockStateActive {
			return
		}
		u.sendBuf = ev.Source.([]byte)
		u.sendOff = 0
		u.pumpSend()
	case evUsockDoRecv:
		if self.State() != usockStateActive {
			return
		}
		u.recvBuf = ev.Source.([]byte)
		u.recvOff = 0
		u.pumpRecv()
	case evUsockIOReady:
		u.onIOReady(ev.Source.(IOEvents))
	case evUsockDoClose:
		u.unregister()
		_ = unix.Close(u.fd)
		self.SetState(usockStateDone)
		self.RaiseToParent(EvStopped)
	}
}

// onReadiness is the PollCallback registered for u.fd; it runs on the
// worker goroutine inline during PollIO and defers all real work into the
// handler via the context.
func (u *Usock) onReadiness(events IOEvents) {
	u.fsm.Context().Feed(u.fsm, Event{Source: events, Type: evUsockIOReady})
}

func (u *Usock) onIOReady(mask IOEvents) {
	switch u.fsm.State() {
	case usockStateAccepting:
		u.doAccept()
	case usockStateConnecting:
		u.doConnectComplete()
	case usockStateActive:
		if u.sendBuf != nil && mask&(EventWrite|EventError|EventHangup) != 0 {
			u.pumpSend()
		}
		if u.recvBuf != nil && mask&(EventRead|EventError|EventHangup) != 0 {
			u.pumpRecv()
		}
		if mask&(EventError|EventHangup) != 0 && u.registered && u.sendBuf == nil && u.recvBuf == nil {
			// No operation pending to surface the failure through; report
			// it directly and drop the registration so a level-triggered
			// poller doesn't redeliver the condition forever.
			u.unregister()
			u.fsm.RaiseToParent(EvUsockShutdown)
		}
	default:
		// REMOVING/DONE: stale readiness for an fd mid-teardown.
	}
}

// addInterest registers the fd on first use, then widens the event mask in
// place; clearInterest narrows it without dropping the registration.
func (u *Usock) addInterest(events IOEvents) error {
	want := u.interest | events
	if !u.registered {
		if err := u.worker.RegisterFD(u.fd, want, u.onReadiness); err != nil {
			return err
		}
		u.registered = true
		u.interest = want
		return nil
	}
	if want == u.interest {
		return nil
	}
	if err := u.worker.ModifyFD(u.fd, want); err != nil {
		return err
	}
	u.interest = want
	return nil
}

func (u *Usock) clearInterest(events IOEvents) {
	if !u.registered {
		return
	}
	want := u.interest &^ events
	if want == u.interest {
		return
	}
	if err := u.worker.ModifyFD(u.fd, want); err == nil {
		u.interest = want
	}
}

func (u *Usock) unregister() {
	if !u.registered {
		return
	}
	_ = u.worker.UnregisterFD(u.fd)
	u.registered = false
	u.interest = 0
}

func (u *Usock) doAccept() {
	for {
		fd, err := acceptNonblock(u.fd)
		if err != nil {
			switch err {
			case unix.EAGAIN:
				return
			case unix.ECONNABORTED, unix.EINTR:
				// The connection died between the kernel queuing it and
				// us accepting it; not an error at all (spec §7).
				continue
			default:
				// EMFILE, ENFILE and friends: disarm and let the parent
				// schedule a backoff retry via Accept().
				u.clearInterest(EventRead)
				u.fsm.RaiseToParent(EvUsockAcceptError)
				return
			}
		}
		peer := fromAcceptedFD(u.fsm.Context(), u.fsm.Parent(), fd)
		u.fsm.Context().Feed(u.fsm.Parent(), Event{Source: peer, Type: EvUsockAccepted})
	}
}

func (u *Usock) doConnectComplete() {
	errno, err := unix.GetsockoptInt(u.fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil || errno != 0 {
		u.unregister()
		u.fsm.RaiseToParent(EvError)
		return
	}
	u.clearInterest(EventWrite)
	u.fsm.SetState(usockStateActive)
	u.fsm.RaiseToParent(EvUsockConnected)
}

func (u *Usock) pumpSend() {
	for u.sendOff < len(u.sendBuf) {
		n, err := unix.Write(u.fd, u.sendBuf[u.sendOff:])
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			if err == unix.EAGAIN {
				if aerr := u.addInterest(EventWrite); aerr == nil {
					return
				}
			}
			u.sendBuf = nil
			u.unregister()
			u.fsm.RaiseToParent(EvUsockShutdown)
			return
		}
		u.sendOff += n
	}
	u.sendBuf = nil
	u.clearInterest(EventWrite)
	u.fsm.RaiseToParent(EvUsockSent)
}

func (u *Usock) pumpRecv() {
	for u.recvOff < len(u.recvBuf) {
		n, err := unix.Read(u.fd, u.recvBuf[u.recvOff:])
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			if err == unix.EAGAIN {
				if aerr := u.addInterest(EventRead); aerr == nil {
					return
				}
			}
			u.recvBuf = nil
			u.unregister()
			u.fsm.RaiseToParent(EvUsockShutdown)
			return
		}
		if n == 0 {
			u.recvBuf = nil
			u.unregister()
			u.fsm.RaiseToParent(EvUsockShutdown)
			return
		}
		u.recvOff += n
	}
	u.recvBuf = nil
	u.clearInterest(EventRead)
	u.fsm.RaiseToParent(EvUsockReceived)
}
