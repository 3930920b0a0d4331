// File: transport/sockopt_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

//go:build !linux

package transport

import "syscall"

// controlSocket is a no-op on platforms without tuned socket options.
func controlSocket(network, address string, rc syscall.RawConn) error {
	return nil
}
