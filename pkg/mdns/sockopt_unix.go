//go:build !windows

package mdns

import (
	"errors"
	"syscall"

	"golang.org/x/sys/unix"
)

// reuseControl enables address and port reuse on the discovery socket so
// that multiple local instances (and the avatar client itself) can share
// the well-known port.
func reuseControl(_, _ string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
		if sockErr != nil {
			return
		}
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}

// isOversizedDatagram reports whether the receive error means the datagram
// exceeded the buffer (EMSGSIZE-class).
func isOversizedDatagram(err error) bool {
	var errno unix.Errno
	return errors.As(err, &errno) && errno == unix.EMSGSIZE
}
