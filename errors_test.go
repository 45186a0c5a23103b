package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFatalError_UnwrapAndMessage(t *testing.T) {
	cause := errors.New("boom")
	err := &FatalError{Component: "fsm", Reason: "context must not be nil", Cause: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "fsm")
	assert.Contains(t, err.Error(), "context must not be nil")
}

func TestAssertFatal_PanicsOnFalse(t *testing.T) {
	assert.Panics(t, func() {
		assertFatal(false, "test", "condition must hold")
	})
	assert.NotPanics(t, func() {
		assertFatal(true, "test", "condition must hold")
	})
}

func TestAssertFatalErr_WrapsCause(t *testing.T) {
	cause := errors.New("inner")
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic")
		}
		fe, ok := r.(*FatalError)
		if !ok {
			t.Fatalf("expected *FatalError, got %T", r)
		}
		assert.ErrorIs(t, fe, cause)
	}()
	assertFatalErr(false, "test", "wrapped", cause)
}
