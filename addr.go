package core

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// ResolveUnixAddr builds a unix.SockaddrUnix for an IPC ("ipc://") address,
// returning ErrAddressTooLong if path exceeds the platform's sun_path
// capacity (spec §6 "IPC transport"): "Address length cap is the platform
// sun_path size; exceeding it is ENAMETOOLONG."
func ResolveUnixAddr(path string) (*unix.SockaddrUnix, error) {
	var probe unix.RawSockaddrUnix
	if len(path) >= len(probe.Path) {
		return nil, ErrAddressTooLong
	}
	return &unix.SockaddrUnix{Name: path}, nil
}

// unlinkStaleUnixSocket removes a leftover socket file at path before bind,
// ignoring ENOENT (spec §4.8: "unlinking any stale AF_UNIX path first").
func unlinkStaleUnixSocket(path string) error {
	if err := unix.Unlink(path); err != nil && err != unix.ENOENT {
		return fmt.Errorf("unlink %s: %w", path, err)
	}
	return nil
}
