//go:build windows

package mdns

import (
	"errors"
	"syscall"

	"golang.org/x/sys/windows"
)

// reuseControl enables address reuse on the discovery socket. Windows has
// no SO_REUSEPORT; SO_REUSEADDR alone allows sharing the well-known port.
func reuseControl(_, _ string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}

// isOversizedDatagram reports whether the receive error means the datagram
// exceeded the buffer (WSAEMSGSIZE).
func isOversizedDatagram(err error) bool {
	var errno syscall.Errno
	return errors.As(err, &errno) && errno == syscall.Errno(windows.WSAEMSGSIZE)
}
