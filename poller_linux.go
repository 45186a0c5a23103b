//go:build linux

package core

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// epollPoller adapts an epoll instance to the Poller interface. Grounded on
// the FastPoller type in the teacher's eventloop package: a fixed fd-indexed
// slice of registrations avoids a map lookup per event, at the cost of
// memory proportional to the highest fd seen.
type epollPoller struct {
	epfd int
	regs []fdReg
}

type fdReg struct {
	cb     PollCallback
	events IOEvents
	active bool
}

// initialFDCapacity is a starting guess for the regs slice; it grows by
// doubling whenever a registered fd would otherwise be out of range.
const initialFDCapacity = 1024

func newPoller() Poller {
	return &epollPoller{}
}

func (p *epollPoller) Init() error {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return fmt.Errorf("epoll_create1: %w", err)
	}
	p.epfd = fd
	p.regs = make([]fdReg, initialFDCapacity)
	return nil
}

func (p *epollPoller) ensureCapacity(fd int) {
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

func (p *epollPoller) RegisterFD(fd int, events IOEvents, cb PollCallback) error {
	p.ensureCapacity(fd)
	if p.regs[fd].active {
		return ErrFDAlreadyRegistered
	}
	ev := &unix.EpollEvent{Events: eventsToEpoll(events), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		return fmt.Errorf("epoll_ctl add fd=%d: %w", fd, err)
	}
	p.regs[fd] = fdReg{cb: cb, events: events, active: true}
	return nil
}

func (p *epollPoller) ModifyFD(fd int, events IOEvents) error {
	if fd >= len(p.regs) || !p.regs[fd].active {
		return ErrFDNotRegistered
	}
	ev := &unix.EpollEvent{Events: eventsToEpoll(events), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, ev); err != nil {
		return fmt.Errorf("epoll_ctl mod fd=%d: %w", fd, err)
	}
	p.regs[fd].events = events
	return nil
}

func (p *epollPoller) UnregisterFD(fd int) error {
	if fd >= len(p.regs) || !p.regs[fd].active {
		return ErrFDNotRegistered
	}
	// Linux ignores the event argument for EPOLL_CTL_DEL but pre-3.18
	// kernels require a non-nil pointer.
	_ = unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, &unix.EpollEvent{})
	p.regs[fd] = fdReg{}
	return nil
}

func (p *epollPoller) PollIO(timeoutMs int) (int, error) {
	var events [256]unix.EpollEvent
	n, err := unix.EpollWait(p.epfd, events[:], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, fmt.Errorf("epoll_wait: %w", err)
	}
	dispatched := 0
	for i := 0; i < n; i++ {
		fd := int(events[i].Fd)
		if fd >= len(p.regs) || !p.regs[fd].active {
			continue
		}
		p.regs[fd].cb(epollToEvents(events[i].Events))
		dispatched++
	}
	return dispatched, nil
}

func (p *epollPoller) Close() error {
	return unix.Close(p.epfd)
}

func eventsToEpoll(events IOEvents) uint32 {
	var e uint32
	if events&EventRead != 0 {
		e |= unix.EPOLLIN
	}
	if events&EventWrite != 0 {
		e |= unix.EPOLLOUT
	}
	// Error and hangup are always reported by the kernel regardless of
	// the requested mask; no bits to set for them here.
	return e
}

func epollToEvents(mask uint32) IOEvents {
	var e IOEvents
	if mask&unix.EPOLLIN != 0 {
		e |= EventRead
	}
	if mask&unix.EPOLLOUT != 0 {
		e |= EventWrite
	}
	if mask&unix.EPOLLERR != 0 {
		e |= EventError
	}
	if mask&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
		e |= EventHangup
	}
	return e
}
