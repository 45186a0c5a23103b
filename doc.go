// Package core implements the asynchronous I/O and protocol-engine core of a
// brokerless scalability-protocols messaging library: the reactor, FSM
// framework, non-blocking socket state machine, stream session handshake and
// framing, and the bind/connect endpoint state machines that a concrete
// messaging pattern (PUSH/PULL, REQ/REP, PUB/SUB, ...) is built on top of.
//
// # Layering
//
// A [Library] owns a fixed pool of [Worker] threads, each running one
// [Poller] (epoll on Linux, kqueue on Darwin/BSD) plus a timer heap and an
// inbound task queue. Every long-lived object — [Acceptor], [Connector],
// [Session], [Usock], timers — is an [FSM] rooted in a [Context]: a
// per-socket serialization domain with one lock and one deferred-event
// queue. Events raised by a child FSM are always delivered to its parent's
// handler.
//
// # Scope
//
// This package does not implement any specific messaging pattern. Patterns
// plug in by implementing [Pipe] against a [Session]; see pipe.go.
package core
