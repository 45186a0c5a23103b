//go:build linux

package core

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"
)

// eventfdWake is grounded on the teacher's wakeup_linux.go, which uses a
// non-blocking eventfd for the same cross-thread wake purpose.
type eventfdWake struct {
	efd int
}

func newPlatformWakeChannel() (wakeChannel, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	return &eventfdWake{efd: fd}, nil
}

func (w *eventfdWake) fd() int { return w.efd }

func (w *eventfdWake) signal() error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	_, err := unix.Write(w.efd, buf[:])
	if err != nil && err != unix.EAGAIN {
		return fmt.Errorf("eventfd write: %w", err)
	}
	return nil
}

func (w *eventfdWake) drain() error {
	var buf [8]byte
	for {
		_, err := unix.Read(w.efd, buf[:])
		if err == nil {
			continue
		}
		if err == unix.EAGAIN {
			return nil
		}
		return fmt.Errorf("eventfd read: %w", err)
	}
}

func (w *eventfdWake) close() error {
	return unix.Close(w.efd)
}
