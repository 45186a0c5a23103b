package core

import (
	"time"

	"golang.org/x/sys/unix"
)

// Connector event types, offset to avoid colliding with other components'
// local ranges.
const (
	// EvConnectorStopped fires once the connector has torn down (its
	// session, if any, has closed and no reconnect is pending).
	EvConnectorStopped EventType = 500 + iota
)

const (
	connectorStateIdle = iota
	connectorStateConnecting
	connectorStateActive
	connectorStateWaitingRetry
	connectorStateStopping
	connectorStateDone
)

// reconnectBackoffInitial and reconnectBackoffMax bound the exponential
// backoff applied between failed connection attempts: doubling from 100 ms
// up to a 1 s cap.
const (
	reconnectBackoffInitial = 100 * time.Millisecond
	reconnectBackoffMax     = 1 * time.Second
)

// Connector is the outbound-endpoint FSM described in spec §4.7: it owns
// one child Session at a time and reconnects with exponential backoff on
// failure.
type Connector struct {
	fsm  *FSM
	tfsm *TimerFSM

	domain     int
	addr       unix.Sockaddr
	protocolID uint16
	newPipe    PipeFactory

	backoff     time.Duration
	sock        *Usock
	sess        *Session
	stopPending bool
}

// NewConnector constructs a Connector that dials addr within ctx, rooted
// at parent, once Start is called.
func NewConnector(ctx *Context, parent *FSM, domain int, addr unix.Sockaddr, protocolID uint16, newPipe PipeFactory) *Connector {
	c := &Connector{domain: domain, addr: addr, protocolID: protocolID, newPipe: newPipe}
	c.fsm = NewFSM(ctx, parent, "connector", c.handle)
	c.tfsm = NewTimerFSM(ctx, c.fsm)
	return c
}

func (c *Connector) FSM() *FSM { return c.fsm }

// Start issues the first connection attempt.
func (c *Connector) Start() {
	c.fsm.Context().run(c.attempt)
}

// Stop begins graceful shutdown: cancels any pending retry and closes the
// active session, if any, raising EvConnectorStopped once torn down.
// Callable from whatever goroutine the application owns; the body runs
// under the context's exclusivity (see Context.run) rather than racing the
// worker goroutine's concurrent delivery of EvUsockConnected/
// EvSessionClosed into c.sess/c.fsm's state. Idempotent.
func (c *Connector) Stop() {
	c.fsm.Context().run(func() {
		if c.stopPending {
			return
		}
		c.stopPending = true
		c.tfsm.Stop()
		switch c.fsm.State() {
		case connectorStateWaitingRetry, connectorStateIdle:
			c.finishStop()
		case connectorStateConnecting:
			c.fsm.SetState(connectorStateStopping)
			_ = c.sock.Close()
		case connectorStateActive:
			c.fsm.SetState(connectorStateStopping)
			c.sess.Close()
		}
	})
}

func (c *Connector) finishStop() {
	c.fsm.SetState(connectorStateDone)
	c.fsm.RaiseToParent(EvConnectorStopped)
}

func (c *Connector) attempt() {
	sock, err := NewUsock(c.fsm.Context(), c.fsm, c.domain, unix.SOCK_STREAM)
	if err != nil {
		c.scheduleRetry()
		return
	}
	c.sock = sock
	c.fsm.SetState(connectorStateConnecting)
	if err := sock.Connect(c.addr); err != nil {
		c.scheduleRetry()
		return
	}
}

func (c *Connector) scheduleRetry() {
	if m := c.fsm.Context().Metrics(); m != nil {
		m.ReconnectAttempts.Add(1)
	}
	if c.backoff == 0 {
		c.backoff = reconnectBackoffInitial
	} else {
		c.backoff *= 2
		if c.backoff > reconnectBackoffMax {
			c.backoff = reconnectBackoffMax
		}
	}
	c.fsm.SetState(connectorStateWaitingRetry)
	c.tfsm.Start(c.backoff)
}

func (c *Connector) handle(self *FSM, ev Event) {
	switch {
	case ev.Source == c.tfsm.FSM() && ev.Type == EvTimerTimeout:
		if c.stopPending {
			c.finishStop()
			return
		}
		c.attempt()
	case ev.Source == c.tfsm.FSM():
		// EvTimerStopped: nothing to do.
	case ev.Type == EvUsockConnected:
		if c.fsm.State() != connectorStateConnecting {
			// Stop() raced the connect completion; the usock is already
			// mid-teardown.
			return
		}
		c.backoff = 0
		c.sess = NewSession(c.fsm.Context(), c.fsm, c.sock, c.newPipe(), c.protocolID)
		c.sock.FSM().Reparent(c.sess.FSM())
		c.fsm.SetState(connectorStateActive)
		c.sess.Start()
	case c.sock != nil && ev.Source == c.sock.FSM() && ev.Type == EvStopped:
		if c.stopPending {
			c.finishStop()
		}
	case ev.Type == EvError && c.fsm.State() == connectorStateConnecting:
		_ = c.sock.Close()
		c.scheduleRetry()
	case ev.Type == EvSessionActive:
		// Nothing to do; the session's pipe is already live.
	case ev.Type == EvSessionClosed:
		c.sess = nil
		if c.stopPending {
			c.finishStop()
			return
		}
		c.scheduleRetry()
	}
}
