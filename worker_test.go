package core

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorker_PostRunsOnWorkerGoroutine(t *testing.T) {
	w, err := NewWorker(nil)
	require.NoError(t, err)
	defer w.Term()

	caller := getGoroutineID()
	done := make(chan uint64, 1)
	require.NoError(t, w.Post(func() {
		done <- getGoroutineID()
	}))

	select {
	case id := <-done:
		assert.NotEqual(t, caller, id, "task must run on the worker goroutine, not the poster's")
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}
}

func TestWorker_PostAfterTermReturnsError(t *testing.T) {
	w, err := NewWorker(nil)
	require.NoError(t, err)
	w.Term()

	err = w.Post(func() {})
	assert.ErrorIs(t, err, ErrWorkerStopped)
}

func TestWorker_TermIsIdempotent(t *testing.T) {
	w, err := NewWorker(nil)
	require.NoError(t, err)
	w.Term()
	w.Term()
}

func TestWorker_ManyPostsFromManyGoroutines(t *testing.T) {
	w, err := NewWorker(nil)
	require.NoError(t, err)
	defer w.Term()

	const n = 200
	var mu sync.Mutex
	count := 0
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_ = w.Post(func() {
				mu.Lock()
				count++
				mu.Unlock()
			})
		}()
	}
	wg.Wait()

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		c := count
		mu.Unlock()
		if c == n {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("only %d/%d tasks ran", c, n)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestWorker_TimerFiresViaRun(t *testing.T) {
	w, err := NewWorker(nil)
	require.NoError(t, err)
	defer w.Term()

	fired := make(chan struct{})
	require.NoError(t, w.Post(func() {
		w.AddTimer(time.Now().Add(10*time.Millisecond), func() {
			close(fired)
		})
	}))

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}
}
