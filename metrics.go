package core

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics tracks low-overhead runtime statistics for a Library: connection
// counts, byte/message throughput, and handshake-latency percentiles.
// Adapted from the teacher's Metrics/LatencyMetrics pair: atomics for the
// hot counters, a P-Square estimator under a dedicated mutex for the one
// field that genuinely needs a distribution rather than a running total.
//
// All methods are safe for concurrent use from any goroutine, including
// worker goroutines recording events inline in an FSM handler.
type Metrics struct {
	MessagesSent      atomic.Uint64
	MessagesReceived  atomic.Uint64
	BytesSent         atomic.Uint64
	BytesReceived     atomic.Uint64
	SessionsActive    atomic.Int64
	SessionsTotal     atomic.Uint64
	AcceptErrors      atomic.Uint64
	ReconnectAttempts atomic.Uint64

	handshake handshakeLatency
}

// handshakeLatency tracks how long the handshake phase of a Session takes
// from Start() to EvSessionActive, per spec §4.6.
type handshakeLatency struct {
	mu sync.Mutex
	ps *pSquareMultiQuantile
}

// RecordHandshake adds a handshake-duration observation.
func (m *Metrics) RecordHandshake(d time.Duration) {
	m.handshake.mu.Lock()
	defer m.handshake.mu.Unlock()
	if m.handshake.ps == nil {
		m.handshake.ps = newPSquareMultiQuantile(0.50, 0.90, 0.99)
	}
	m.handshake.ps.Update(float64(d))
}

// HandshakeSnapshot is a point-in-time read of the handshake latency
// distribution.
type HandshakeSnapshot struct {
	Count int
	P50   time.Duration
	P90   time.Duration
	P99   time.Duration
	Mean  time.Duration
}

// Handshake returns the current handshake latency distribution.
func (m *Metrics) Handshake() HandshakeSnapshot {
	m.handshake.mu.Lock()
	defer m.handshake.mu.Unlock()
	if m.handshake.ps == nil {
		return HandshakeSnapshot{}
	}
	return HandshakeSnapshot{
		Count: m.handshake.ps.Count(),
		P50:   time.Duration(m.handshake.ps.Quantile(0)),
		P90:   time.Duration(m.handshake.ps.Quantile(1)),
		P99:   time.Duration(m.handshake.ps.Quantile(2)),
		Mean:  time.Duration(m.handshake.ps.Mean()),
	}
}

// OnSessionOpened accounts for a newly active session.
func (m *Metrics) OnSessionOpened() {
	m.SessionsActive.Add(1)
	m.SessionsTotal.Add(1)
}

// OnSessionClosed accounts for a session that has fully torn down.
func (m *Metrics) OnSessionClosed() {
	m.SessionsActive.Add(-1)
}
