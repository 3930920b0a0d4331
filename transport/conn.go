// File: transport/conn.go
// Package transport wraps raw TCP connections for the relay.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Conn serializes writes so frames queued by the router, the keepalive timer,
// and the outbound poller are never interleaved mid-frame on the wire.

package transport

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/momentics/relay-ws/api"
	"github.com/momentics/relay-ws/protocol"
)

// Conn is a full-duplex byte stream owned by one session. Reads are only ever
// issued by the owning session; writes may come from several call sites and
// are serialized by an internal mutex.
type Conn struct {
	nc      net.Conn
	writeMu sync.Mutex
	closed  atomic.Bool

	bytesSent     atomic.Int64
	bytesReceived atomic.Int64
	framesSent    atomic.Int64
}

// NewConn wraps an accepted or dialed net.Conn.
func NewConn(nc net.Conn) *Conn {
	return &Conn{nc: nc}
}

// Read reads into p directly from the underlying connection.
func (c *Conn) Read(p []byte) (int, error) {
	if c.closed.Load() {
		return 0, api.ErrConnClosed
	}
	n, err := c.nc.Read(p)
	c.bytesReceived.Add(int64(n))
	return n, err
}

// Write writes p in full, holding the write lock for the whole frame.
func (c *Conn) Write(p []byte) error {
	if c.closed.Load() {
		return api.ErrConnClosed
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	for len(p) > 0 {
		n, err := c.nc.Write(p)
		c.bytesSent.Add(int64(n))
		if err != nil {
			return fmt.Errorf("write to connection: %w", err)
		}
		p = p[n:]
	}
	return nil
}

// WriteFrame encodes f unmasked (server role) and writes it atomically.
func (c *Conn) WriteFrame(f *protocol.WSFrame) error {
	data, err := protocol.EncodeFrameToBytes(f)
	if err != nil {
		return err
	}
	if err := c.Write(data); err != nil {
		return err
	}
	c.framesSent.Add(1)
	return nil
}

// Close shuts the connection down; idempotent.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.nc.Close()
}

// Closed reports whether Close has been called.
func (c *Conn) Closed() bool {
	return c.closed.Load()
}

// RemoteAddr returns the peer address for logging.
func (c *Conn) RemoteAddr() net.Addr {
	return c.nc.RemoteAddr()
}

// Stats returns a snapshot of connection counters for debug probes.
func (c *Conn) Stats() map[string]int64 {
	return map[string]int64{
		"bytes_sent":     c.bytesSent.Load(),
		"bytes_received": c.bytesReceived.Load(),
		"frames_sent":    c.framesSent.Load(),
	}
}
