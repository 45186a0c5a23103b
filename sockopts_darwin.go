//go:build darwin

package core

import "golang.org/x/sys/unix"

// applySocketOpts sets SO_NOSIGPIPE on stream sockets (spec §6 "TCP
// transport": "SO_NOSIGPIPE on platforms that have it"), since Darwin has no
// blanket SIGPIPE suppression for socket writes the way Linux's MSG_NOSIGNAL
// semantics give callers that check errors instead.
func applySocketOpts(fd, domain, typ int) error {
	if typ&0xf == unix.SOCK_STREAM {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_NOSIGPIPE, 1); err != nil {
			return err
		}
	}
	return nil
}
