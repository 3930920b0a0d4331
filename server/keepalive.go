// File: server/keepalive.go
// Package server hosts the relay: listener, registry, timers, sessions.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"time"

	"github.com/momentics/relay-ws/protocol"
)

// keepaliveLoop sends an empty ping frame to every registered connection at
// the configured interval. A write failure means the peer is gone: the
// connection is removed immediately rather than waiting for a read error.
func (s *Server) keepaliveLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.KeepaliveInterval.Std())
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdown:
			return
		case <-ticker.C:
			s.pingAll()
		}
	}
}

func (s *Server) pingAll() {
	for _, entry := range s.registry.All() {
		if err := entry.Conn.WriteFrame(protocol.NewPingFrame()); err != nil {
			s.log.Warn("keepalive write failed, removing connection",
				"device", entry.DeviceID, "error", err)
			s.registry.Remove(entry.DeviceID)
			entry.Conn.Close()
			continue
		}
		s.log.Debug("ping sent", "device", entry.DeviceID)
	}
}
