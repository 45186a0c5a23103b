package core

import (
	"os"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// defaultLogger writes newline-delimited JSON to stderr, matching the
// teacher's eventloop package default of "usable out of the box, swap the
// writer in production."
func defaultLogger() *logiface.Logger[logiface.Event] {
	return stumpy.L.New(stumpy.L.WithStumpy(stumpy.WithWriter(os.Stderr))).Logger()
}

// logComponentError reports a non-fatal failure surfaced by a component's
// FSM handler (a session's handshake timeout, bad or rejected header, or
// socket shutdown). These never stop the Worker; they are diagnostic only.
func logComponentError(log *logiface.Logger[logiface.Event], component string, err error) {
	if log == nil {
		return
	}
	log.Err().Str("component", component).Err(err).Log("component error")
}
