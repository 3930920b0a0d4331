// File: server/session.go
// Package server hosts the relay: listener, registry, timers, sessions.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// session is the per-connection state machine:
// AwaitingHandshake → Active → Closed. The receive buffer is owned
// exclusively by the session; no other goroutine ever touches it.

package server

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/momentics/relay-ws/api"
	"github.com/momentics/relay-ws/protocol"
	"github.com/momentics/relay-ws/transport"
)

type sessionState int

const (
	stateAwaitingHandshake sessionState = iota
	stateActive
	stateClosed
)

func (s sessionState) String() string {
	switch s {
	case stateAwaitingHandshake:
		return "awaiting-handshake"
	case stateActive:
		return "active"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type session struct {
	srv  *Server
	conn *transport.Conn

	buf        []byte // growing receive buffer, session-owned
	state      sessionState
	deviceID   string
	registered bool

	closeOnce sync.Once
}

func newSession(srv *Server, conn *transport.Conn) *session {
	return &session{srv: srv, conn: conn, state: stateAwaitingHandshake}
}

// run drives the session until the peer disconnects or an unrecoverable
// error occurs. Suspension points are socket reads only.
func (s *session) run() {
	defer s.close()

	readBuf := s.srv.readBufs.GetBuffer()
	defer s.srv.readBufs.PutBuffer(readBuf)

	for s.state != stateClosed {
		n, err := s.conn.Read(readBuf)
		if n > 0 {
			s.buf = append(s.buf, readBuf[:n]...)
			s.advance()
		}
		if err != nil {
			if !errors.Is(err, api.ErrConnClosed) {
				s.srv.log.Debug("session read ended",
					"remote", s.conn.RemoteAddr().String(), "device", s.deviceID, "error", err)
			}
			return
		}
	}
}

// advance consumes as much of the buffer as the current state allows.
func (s *session) advance() {
	if s.state == stateAwaitingHandshake {
		s.handleHandshake()
	}
	if s.state == stateActive {
		s.processFrames()
	}
}

// handleHandshake waits for a complete header block, validates the upgrade,
// enforces the device-identity and duplicate-connection policies, and flushes
// any bytes that followed the header terminator into the frame path.
func (s *session) handleHandshake() {
	end := protocol.HeaderBlockEnd(s.buf)
	if end < 0 {
		return // header block still incomplete
	}
	startLine, headers := protocol.ParseHeaders(s.buf[:end])
	remote := s.conn.RemoteAddr().String()

	deviceID := protocol.DeviceIdentity(startLine, headers)
	if deviceID == "" {
		if !s.srv.cfg.AllowAnonymous {
			s.srv.log.Warn("handshake rejected: no device identity", "remote", remote)
			s.state = stateClosed
			return
		}
		deviceID = "anon-" + uuid.NewString()
		s.srv.log.Info("assigned temporary device id", "remote", remote, "device", deviceID)
	}

	response, err := protocol.BuildHandshakeResponse(headers)
	if err != nil {
		s.srv.log.Warn("handshake rejected", "remote", remote, "error", err)
		s.state = stateClosed
		return
	}

	if err := s.srv.registry.Add(deviceID, s.conn); err != nil {
		s.srv.log.Warn("duplicate device connection rejected",
			"remote", remote, "device", deviceID)
		_ = s.conn.Write([]byte(protocol.ConflictResponse))
		s.state = stateClosed
		return
	}
	s.deviceID = deviceID
	s.registered = true

	if err := s.conn.Write([]byte(response)); err != nil {
		s.srv.log.Warn("handshake response write failed", "remote", remote, "error", err)
		s.state = stateClosed
		return
	}

	s.srv.log.Info("handshake complete", "remote", remote, "device", deviceID)
	s.state = stateActive
	s.buf = s.buf[end:]
}

// processFrames extracts complete frames from the buffer, one frame's length
// at a time, and dispatches them. Incomplete trailing bytes stay buffered. A
// decode failure leaves the stream unsynchronized, so the buffered bytes are
// dropped and the session waits for the next read.
func (s *session) processFrames() {
	for {
		frame, consumed, err := protocol.DecodeFrameFromBytes(s.buf)
		if err != nil {
			s.srv.log.Warn("frame decode failed, dropping buffered bytes",
				"device", s.deviceID, "bytes", len(s.buf), "error", err)
			s.buf = nil
			return
		}
		if frame == nil {
			return // wait for more bytes
		}
		s.buf = s.buf[consumed:]

		switch frame.Opcode {
		case protocol.OpcodePing:
			if err := s.conn.WriteFrame(protocol.NewPongFrame(frame.Payload)); err != nil {
				s.state = stateClosed
				return
			}
		case protocol.OpcodePong:
			// Keepalive acknowledged; nothing to do.
		case protocol.OpcodeClose:
			_ = s.conn.WriteFrame(protocol.NewCloseFrame())
			s.state = stateClosed
			return
		default:
			s.srv.router.Route(s.deviceID, frame)
		}
	}
}

// close tears the session down: unregister if registered, close transport.
// Reached on peer close, unrecoverable error, or handshake rejection.
func (s *session) close() {
	s.closeOnce.Do(func() {
		s.state = stateClosed
		if s.registered {
			s.srv.registry.Remove(s.deviceID)
		}
		s.conn.Close()
	})
}
