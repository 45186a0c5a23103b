package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetrics_SessionLifecycle(t *testing.T) {
	m := &Metrics{}
	m.OnSessionOpened()
	m.OnSessionOpened()
	assert.EqualValues(t, 2, m.SessionsActive.Load())
	assert.EqualValues(t, 2, m.SessionsTotal.Load())

	m.OnSessionClosed()
	assert.EqualValues(t, 1, m.SessionsActive.Load())
	assert.EqualValues(t, 2, m.SessionsTotal.Load(), "total never decreases")
}

func TestMetrics_RecordHandshake(t *testing.T) {
	m := &Metrics{}
	snap := m.Handshake()
	assert.Equal(t, 0, snap.Count)

	for i := 1; i <= 10; i++ {
		m.RecordHandshake(time.Duration(i) * time.Millisecond)
	}
	snap = m.Handshake()
	assert.Equal(t, 10, snap.Count)
	assert.Greater(t, snap.Mean, time.Duration(0))
}
