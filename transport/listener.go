// File: transport/listener.go
// Package transport wraps raw TCP connections for the relay.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The listener stays below the WebSocket layer on purpose: the handshake is
// driven by the per-connection session state machine, not by Accept.

package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"

	"github.com/momentics/relay-ws/api"
)

// Listener accepts raw TCP connections and wraps them in Conn.
type Listener struct {
	ln     net.Listener
	closed atomic.Bool
}

// Listen binds addr with platform socket options applied.
func Listen(addr string) (*Listener, error) {
	lc := net.ListenConfig{Control: controlSocket}
	ln, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	return &Listener{ln: ln}, nil
}

// Accept returns the next raw connection.
// After Close, Accept returns api.ErrListenerClosed.
func (l *Listener) Accept() (*Conn, error) {
	nc, err := l.ln.Accept()
	if err != nil {
		if l.closed.Load() || errors.Is(err, net.ErrClosed) {
			return nil, api.ErrListenerClosed
		}
		return nil, fmt.Errorf("accept connection: %w", err)
	}
	return NewConn(nc), nil
}

// Close shuts down the listener to stop Accept; idempotent.
func (l *Listener) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	return l.ln.Close()
}

// Addr returns the bound listener address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}
