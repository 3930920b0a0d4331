// File: transport/sockopt_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

//go:build linux

package transport

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// controlSocket applies listener socket options before bind. SO_REUSEADDR lets
// the relay rebind quickly after a restart while old sockets linger in
// TIME_WAIT.
func controlSocket(network, address string, rc syscall.RawConn) error {
	var soErr error
	err := rc.Control(func(fd uintptr) {
		soErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return soErr
}
