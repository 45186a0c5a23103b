package core

// Pipe is the boundary a protocol shell (PUSH/PULL, REQ/REP, PUB/SUB — not
// implemented by this module) plugs into a Session. A Session owns exactly
// one Pipe for its lifetime and drives it entirely from its own Context, so
// implementations need no internal synchronization (spec's explicit
// Non-goal: protocol shells are out of scope, but the seam they attach
// through is part of this module).
type Pipe interface {
	// Received is called once a complete Message has arrived on the wire,
	// handing ownership of msg to the pipe.
	Received(msg Message)
	// Sent is called once a Message previously returned by Outbound has
	// been fully written to the wire.
	Sent()
	// Outbound asks the pipe whether it has a Message ready to send. ok
	// is false if there is nothing queued right now; the session calls
	// this again whenever the pipe's owner signals new outbound data via
	// Activate.
	Outbound() (msg Message, ok bool)
	// Activated is called once the session's handshake has completed and
	// framed send/recv are available.
	Activated()
	// Terminated is called once the session has torn down, successfully
	// or not; the pipe must not call back into the session afterward.
	Terminated(err error)
	// IsPeer reports whether protocolID, as advertised in the peer's
	// handshake header, is one this pipe is willing to talk to (spec
	// §6 "is_peer(protocol_id) → bool"). A false return fails the
	// handshake with ErrPeerRejected before any message data is
	// exchanged.
	IsPeer(protocolID uint16) bool
}

// NopPipe is a Pipe that never sends anything and discards everything
// received; useful for exercising the transport layer in isolation (tests,
// a raw byte-stream benchmark) without a protocol shell attached.
type NopPipe struct {
	OnReceived   func(Message)
	OnActivated  func()
	OnSent       func()
	OnTerminated func(error)
	// AcceptPeer, if set, overrides the default accept-everything IsPeer
	// behavior.
	AcceptPeer func(protocolID uint16) bool
}

func (p *NopPipe) Received(msg Message) {
	if p.OnReceived != nil {
		p.OnReceived(msg)
	}
}

func (p *NopPipe) Sent() {
	if p.OnSent != nil {
		p.OnSent()
	}
}

func (p *NopPipe) Outbound() (Message, bool) { return Message{}, false }

func (p *NopPipe) Activated() {
	if p.OnActivated != nil {
		p.OnActivated()
	}
}

func (p *NopPipe) Terminated(err error) {
	if p.OnTerminated != nil {
		p.OnTerminated(err)
	}
}

func (p *NopPipe) IsPeer(protocolID uint16) bool {
	if p.AcceptPeer != nil {
		return p.AcceptPeer(protocolID)
	}
	return true
}
