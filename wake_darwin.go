//go:build darwin

package core

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// selfPipeWake is grounded on the teacher's poller_darwin.go notes about the
// lack of an eventfd equivalent on BSD: a non-blocking self-pipe is the
// standard substitute, read side registered with the Poller.
type selfPipeWake struct {
	readFD, writeFD int
}

func newPlatformWakeChannel() (wakeChannel, error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return nil, fmt.Errorf("pipe: %w", err)
	}
	for _, fd := range fds {
		if err := unix.SetNonblock(fd, true); err != nil {
			_ = unix.Close(fds[0])
			_ = unix.Close(fds[1])
			return nil, fmt.Errorf("set nonblock: %w", err)
		}
	}
	return &selfPipeWake{readFD: fds[0], writeFD: fds[1]}, nil
}

func (w *selfPipeWake) fd() int { return w.readFD }

func (w *selfPipeWake) signal() error {
	var b [1]byte
	_, err := unix.Write(w.writeFD, b[:])
	if err != nil && err != unix.EAGAIN {
		return fmt.Errorf("pipe write: %w", err)
	}
	return nil
}

func (w *selfPipeWake) drain() error {
	var buf [64]byte
	for {
		_, err := unix.Read(w.readFD, buf[:])
		if err == nil {
			continue
		}
		if err == unix.EAGAIN {
			return nil
		}
		return fmt.Errorf("pipe read: %w", err)
	}
}

func (w *selfPipeWake) close() error {
	err1 := unix.Close(w.readFD)
	err2 := unix.Close(w.writeFD)
	if err1 != nil {
		return err1
	}
	return err2
}
