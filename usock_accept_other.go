//go:build darwin

package core

import "golang.org/x/sys/unix"

// acceptNonblock accepts one pending connection on a listening fd. Darwin
// has no accept4 syscall, so non-blocking and close-on-exec must be set as
// separate fcntl calls after a plain accept.
func acceptNonblock(listenFD int) (int, error) {
	fd, _, err := unix.Accept(listenFD)
	if err != nil {
		return 0, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return 0, err
	}
	if _, err := unix.FcntlInt(uintptr(fd), unix.F_SETFD, unix.FD_CLOEXEC); err != nil {
		_ = unix.Close(fd)
		return 0, err
	}
	return fd, nil
}
