package core

import (
	"time"
)

// Session event types, offset to avoid colliding with other components'
// local ranges.
const (
	// EvSessionActive fires to the parent once the handshake has
	// completed and framed traffic is flowing.
	EvSessionActive EventType = 300 + iota
	// EvSessionClosed fires to the parent once the session has fully
	// torn down; err (via LastError) is non-nil if the close was
	// caused by a protocol or I/O failure rather than a clean Close().
	EvSessionClosed
)

const (
	recvStateHeader = iota
	recvStateMsgLen
	recvStateMsgBody
)

const (
	sendStateHeader = iota
	sendStateIdle
	sendStateMsgLen
	sendStateMsgHeader
	sendStateMsgBody
)

// HandshakeTimeout bounds how long a Session waits for the peer's header
// before giving up (spec §4.6: "arm a HDR_TIMEOUT (default 1000 ms)"; §8
// requires this to fire within 1000 ± 50 ms of a stalled handshake).
const HandshakeTimeout = 1000 * time.Millisecond

// Session implements the handshake-then-length-prefixed-framing protocol
// described in spec §4.6, grounded on original_source's stream.c: it owns
// exactly one Usock and feeds framed messages to and from a Pipe.
type Session struct {
	fsm  *FSM
	sock *Usock
	pipe Pipe
	tfsm *TimerFSM

	protocolID uint16

	recvState int
	sendState int

	headerBuf  [headerSize]byte
	peerHdrBuf [headerSize]byte
	lenBuf     [lengthPrefixSize]byte
	sendLenBuf [lengthPrefixSize]byte
	inMsg      Message
	outMsg     Message
	lastErr    error

	startedAt time.Time
	activated bool
}

// NewSession wires sock and pipe together under parent. protocolID is
// advertised in this session's handshake header.
func NewSession(ctx *Context, parent *FSM, sock *Usock, pipe Pipe, protocolID uint16) *Session {
	s := &Session{sock: sock, pipe: pipe, protocolID: protocolID}
	s.fsm = NewFSM(ctx, parent, "session", s.handle)
	s.tfsm = NewTimerFSM(ctx, s.fsm)
	return s
}

func (s *Session) FSM() *FSM { return s.fsm }

// LastError reports the failure that caused EvSessionClosed, or nil for a
// clean shutdown.
func (s *Session) LastError() error { return s.lastErr }

// Start begins the handshake: concurrently sends this session's header and
// waits to receive the peer's.
func (s *Session) Start() {
	s.fsm.Context().run(func() {
		s.startedAt = time.Now()
		encodeHeader(s.headerBuf[:], s.protocolID)
		s.recvState = recvStateHeader
		s.sendState = sendStateHeader
		s.tfsm.Start(HandshakeTimeout)
		_ = s.sock.Send(s.headerBuf[:])
		_ = s.sock.Recv(s.peerHdrBuf[:])
	})
}

// Close tears the session down, closing the underlying usock. Terminated
// is delivered to the pipe once torn down; EvSessionClosed fires to the
// parent with LastError()==nil.
func (s *Session) Close() {
	s.fsm.Context().run(func() {
		s.tfsm.Stop()
		_ = s.sock.Close()
	})
}

func (s *Session) fail(err error) {
	s.lastErr = err
	logComponentError(s.fsm.Context().Worker().Log(), "session", err)
	s.tfsm.Stop()
	_ = s.sock.Close()
}

func (s *Session) handle(self *FSM, ev Event) {
	switch {
	case ev.Source == s.tfsm.FSM() && ev.Type == EvTimerTimeout:
		s.fail(ErrHandshakeTimeout)
	case ev.Source == s.tfsm.FSM():
		// EvTimerStopped: nothing to do.
	case ev.Source == s.sock.FSM():
		s.handleSockEvent(ev.Type)
	}
}

func (s *Session) handleSockEvent(typ EventType) {
	switch typ {
	case EvUsockSent:
		s.onSent()
	case EvUsockReceived:
		s.onReceived()
	case EvUsockShutdown, EvError:
		s.fail(ErrClosed)
	case EvStopped:
		if s.activated {
			if m := s.fsm.Context().Metrics(); m != nil {
				m.OnSessionClosed()
			}
		}
		s.pipe.Terminated(s.lastErr)
		s.fsm.RaiseToParent(EvSessionClosed)
	}
}

func (s *Session) onSent() {
	switch s.sendState {
	case sendStateHeader:
		s.sendState = sendStateIdle
		s.maybeActivate()
		s.pumpOutbound()
	case sendStateMsgLen:
		if s.outMsg.Header.Len() > 0 {
			s.sendState = sendStateMsgHeader
			_ = s.sock.Send(s.outMsg.Header.Bytes())
		} else {
			s.sendState = sendStateMsgBody
			_ = s.sock.Send(s.outMsg.Body.Bytes())
		}
	case sendStateMsgHeader:
		s.sendState = sendStateMsgBody
		_ = s.sock.Send(s.outMsg.Body.Bytes())
	case sendStateMsgBody:
		if m := s.fsm.Context().Metrics(); m != nil {
			m.MessagesSent.Add(1)
			m.BytesSent.Add(uint64(s.outMsg.Size()))
		}
		s.pipe.Sent()
		s.sendState = sendStateIdle
		s.pumpOutbound()
	}
}

func (s *Session) onReceived() {
	switch s.recvState {
	case recvStateHeader:
		peerProtocolID, err := decodeHeader(s.peerHdrBuf[:])
		if err != nil {
			s.fail(err)
			return
		}
		if !s.pipe.IsPeer(peerProtocolID) {
			s.fail(ErrPeerRejected)
			return
		}
		s.recvState = recvStateMsgLen
		s.maybeActivate()
		_ = s.sock.Recv(s.lenBuf[:])
	case recvStateMsgLen:
		n := decodeFrameLength(s.lenBuf[:])
		if n > maxFrameSize {
			s.fail(ErrBadHeader)
			return
		}
		s.inMsg = NewMessage(int(n))
		if n == 0 {
			s.deliverInbound()
			return
		}
		s.recvState = recvStateMsgBody
		_ = s.sock.Recv(s.inMsg.Body.Bytes())
	case recvStateMsgBody:
		s.deliverInbound()
	}
}

func (s *Session) deliverInbound() {
	msg := s.inMsg
	s.inMsg = Message{}
	if m := s.fsm.Context().Metrics(); m != nil {
		m.MessagesReceived.Add(1)
		m.BytesReceived.Add(uint64(msg.Size()))
	}
	s.pipe.Received(msg)
	s.recvState = recvStateMsgLen
	_ = s.sock.Recv(s.lenBuf[:])
	// Give the pipe a chance to reply inline (e.g. a request/reply shell
	// queuing its response from within Received); Activate exists for
	// pipes that produce outbound data asynchronously instead.
	s.pumpOutbound()
}

// handshakeDone reports whether both directions of the initial header
// exchange have completed.
func (s *Session) handshakeDone() bool {
	return s.sendState != sendStateHeader && s.recvState != recvStateHeader
}

func (s *Session) maybeActivate() {
	if !s.handshakeDone() {
		return
	}
	s.tfsm.Stop()
	s.activated = true
	if m := s.fsm.Context().Metrics(); m != nil {
		m.RecordHandshake(time.Since(s.startedAt))
		m.OnSessionOpened()
	}
	s.pipe.Activated()
	s.pumpOutbound()
	s.fsm.RaiseToParent(EvSessionActive)
}

// Activate notifies the session that its Pipe has new outbound data ready
// (called by the protocol shell via the owning socket, not by the session
// itself); it kicks off a send if the session is idle.
func (s *Session) Activate() {
	s.fsm.Context().run(func() {
		if s.sendState == sendStateIdle {
			s.pumpOutbound()
		}
	})
}

func (s *Session) pumpOutbound() {
	if s.sendState != sendStateIdle {
		return
	}
	msg, ok := s.pipe.Outbound()
	if !ok {
		return
	}
	s.outMsg = msg
	s.sendState = sendStateMsgLen
	encodeFrameLength(s.sendLenBuf[:], uint64(msg.Size()))
	_ = s.sock.Send(s.sendLenBuf[:])
}
