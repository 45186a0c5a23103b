//go:build linux

package core

import "golang.org/x/sys/unix"

// acceptNonblock accepts one pending connection on a listening fd,
// returning it already non-blocking and close-on-exec in a single syscall.
func acceptNonblock(listenFD int) (int, error) {
	fd, _, err := unix.Accept4(listenFD, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	return fd, err
}
