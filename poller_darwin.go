//go:build darwin

package core

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// kqueuePoller adapts a kqueue instance to the Poller interface. Grounded on
// the FastPoller type in the teacher's eventloop package's Darwin variant: a
// growable fd-indexed slice, since BSD fd numbers aren't bounded the way the
// teacher assumed for its Linux array.
type kqueuePoller struct {
	kq   int
	regs []fdReg
}

func newPoller() Poller {
	return &kqueuePoller{}
}

func (p *kqueuePoller) Init() error {
	kq, err := unix.Kqueue()
	if err != nil {
		return fmt.Errorf("kqueue: %w", err)
	}
	p.kq = kq
	p.regs = make([]fdReg, initialFDCapacity)
	return nil
}

func (p *kqueuePoller) ensureCapacity(fd int) {
	if fd < len(p.regs) {
		return
	}
	n := len(p.regs) * 2
	for n <= fd {
		n *= 2
	}
	grown := make([]fdReg, n)
	copy(grown, p.regs)
	p.regs = grown
}

func (p *kqueuePoller) RegisterFD(fd int, events IOEvents, cb PollCallback) error {
	p.ensureCapacity(fd)
	if p.regs[fd].active {
		return ErrFDAlreadyRegistered
	}
	changes := eventsToKevents(fd, events, unix.EV_ADD|unix.EV_CLEAR)
	if len(changes) > 0 {
		if _, err := unix.Kevent(p.kq, changes, nil, nil); err != nil {
			return fmt.Errorf("kevent add fd=%d: %w", fd, err)
		}
	}
	p.regs[fd] = fdReg{cb: cb, events: events, active: true}
	return nil
}

func (p *kqueuePoller) ModifyFD(fd int, events IOEvents) error {
	if fd >= len(p.regs) || !p.regs[fd].active {
		return ErrFDNotRegistered
	}
	prev := p.regs[fd].events
	var changes []unix.Kevent_t
	if prev&EventRead != 0 && events&EventRead == 0 {
		changes = append(changes, kevent(fd, unix.EVFILT_READ, unix.EV_DELETE))
	} else if prev&EventRead == 0 && events&EventRead != 0 {
		changes = append(changes, kevent(fd, unix.EVFILT_READ, unix.EV_ADD|unix.EV_CLEAR))
	}
	if prev&EventWrite != 0 && events&EventWrite == 0 {
		changes = append(changes, kevent(fd, unix.EVFILT_WRITE, unix.EV_DELETE))
	} else if prev&EventWrite == 0 && events&EventWrite != 0 {
		changes = append(changes, kevent(fd, unix.EVFILT_WRITE, unix.EV_ADD|unix.EV_CLEAR))
	}
	if len(changes) > 0 {
		if _, err := unix.Kevent(p.kq, changes, nil, nil); err != nil {
			return fmt.Errorf("kevent mod fd=%d: %w", fd, err)
		}
	}
	p.regs[fd].events = events
	return nil
}

func (p *kqueuePoller) UnregisterFD(fd int) error {
	if fd >= len(p.regs) || !p.regs[fd].active {
		return ErrFDNotRegistered
	}
	changes := eventsToKevents(fd, p.regs[fd].events, unix.EV_DELETE)
	if len(changes) > 0 {
		// Best effort: the kernel drops kevents automatically on fd
		// close, so an error here (fd already closed) is not fatal.
		_, _ = unix.Kevent(p.kq, changes, nil, nil)
	}
	p.regs[fd] = fdReg{}
	return nil
}

func (p *kqueuePoller) PollIO(timeoutMs int) (int, error) {
	var events [256]unix.Kevent_t
	var ts *unix.Timespec
	if timeoutMs >= 0 {
		t := unix.NsecToTimespec(int64(timeoutMs) * 1_000_000)
		ts = &t
	}
	n, err := unix.Kevent(p.kq, nil, events[:], ts)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, fmt.Errorf("kevent wait: %w", err)
	}
	dispatched := 0
	for i := 0; i < n; i++ {
		fd := int(events[i].Ident)
		if fd >= len(p.regs) || !p.regs[fd].active {
			continue
		}
		p.regs[fd].cb(keventToEvents(&events[i]))
		dispatched++
	}
	return dispatched, nil
}

func (p *kqueuePoller) Close() error {
	return unix.Close(p.kq)
}

func kevent(fd int, filter int16, flags uint16) unix.Kevent_t {
	return unix.Kevent_t{Ident: uint64(fd), Filter: filter, Flags: flags}
}

func eventsToKevents(fd int, events IOEvents, flags uint16) []unix.Kevent_t {
	var changes []unix.Kevent_t
	if events&EventRead != 0 {
		changes = append(changes, kevent(fd, unix.EVFILT_READ, flags))
	}
	if events&EventWrite != 0 {
		changes = append(changes, kevent(fd, unix.EVFILT_WRITE, flags))
	}
	return changes
}

func keventToEvents(ev *unix.Kevent_t) IOEvents {
	var e IOEvents
	switch ev.Filter {
	case unix.EVFILT_READ:
		e |= EventRead
	case unix.EVFILT_WRITE:
		e |= EventWrite
	}
	if ev.Flags&unix.EV_EOF != 0 {
		e |= EventHangup
	}
	if ev.Flags&unix.EV_ERROR != 0 {
		e |= EventError
	}
	return e
}
