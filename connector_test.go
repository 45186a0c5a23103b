package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnector_ReconnectBackoffDoublesAndCaps(t *testing.T) {
	w, err := NewWorker(nil)
	require.NoError(t, err)
	defer w.Term()
	ctx := NewContext(w)

	c := &Connector{}
	c.fsm = NewFSM(ctx, nil, "connector", c.handle)
	c.tfsm = NewTimerFSM(ctx, c.fsm)

	// scheduleRetry is handler-internal state; hold the context the way a
	// dispatched event would.
	ctx.Enter()
	c.scheduleRetry()
	assert.Equal(t, reconnectBackoffInitial, c.backoff)
	assert.Equal(t, connectorStateWaitingRetry, c.fsm.State())

	c.scheduleRetry()
	assert.Equal(t, reconnectBackoffInitial*2, c.backoff)

	for i := 0; i < 10; i++ {
		c.scheduleRetry()
	}
	assert.Equal(t, time.Second, c.backoff, "backoff caps at 1s")
	ctx.Leave()
}
