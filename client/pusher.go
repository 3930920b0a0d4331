// File: client/pusher.go
// Package client originates one-shot outbound pushes to the relay.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The pusher opens a transient connection, performs the client-side RFC 6455
// handshake over bare TCP, sends a single masked text frame, and closes.
// Delivery is best-effort, at-most-once, with no automatic retry.

package client

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/momentics/relay-ws/protocol"
)

// Config holds the pusher parameters.
type Config struct {
	Addr        string        // relay address, host:port
	DeviceID    string        // identity presented in the x-device header
	DialTimeout time.Duration // TCP connect budget
	SendTimeout time.Duration // handshake + frame write budget
}

// DefaultConfig returns the conventional local relay target.
func DefaultConfig() Config {
	return Config{
		Addr:        "127.0.0.1:8080",
		DialTimeout: 5 * time.Second,
		SendTimeout: 5 * time.Second,
	}
}

// Pusher sends single messages over short-lived WebSocket connections.
type Pusher struct {
	cfg Config
	log *slog.Logger
}

// NewPusher builds a Pusher; zero timeouts fall back to defaults.
func NewPusher(cfg Config, log *slog.Logger) *Pusher {
	if log == nil {
		log = slog.Default()
	}
	def := DefaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = def.DialTimeout
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = def.SendTimeout
	}
	return &Pusher{cfg: cfg, log: log}
}

// Push marshals message, wraps it in a single-element JSON array envelope,
// and sends it as one text frame.
func (p *Pusher) Push(message any) error {
	payload, err := json.Marshal([]any{message})
	if err != nil {
		return fmt.Errorf("marshal push message: %w", err)
	}
	return p.PushRaw(payload)
}

// PushRaw sends payload bytes as one masked text frame: dial, handshake,
// write, close. Every error is logged and returned; nothing panics and no
// retry is attempted.
func (p *Pusher) PushRaw(payload []byte) error {
	conn, err := net.DialTimeout("tcp", p.cfg.Addr, p.cfg.DialTimeout)
	if err != nil {
		p.log.Warn("push connect failed", "addr", p.cfg.Addr, "error", err)
		return fmt.Errorf("connect to relay %s: %w", p.cfg.Addr, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(p.cfg.SendTimeout)
	_ = conn.SetDeadline(deadline)

	if err := p.handshake(conn); err != nil {
		p.log.Warn("push handshake failed", "addr", p.cfg.Addr, "error", err)
		return err
	}

	frame := &protocol.WSFrame{
		IsFinal:    true,
		Opcode:     protocol.OpcodeText,
		PayloadLen: int64(len(payload)),
		Payload:    payload,
	}
	data, err := protocol.EncodeFrameToBytesWithMask(frame, true)
	if err != nil {
		return fmt.Errorf("encode push frame: %w", err)
	}
	if _, err := conn.Write(data); err != nil {
		p.log.Warn("push write failed", "addr", p.cfg.Addr, "error", err)
		return fmt.Errorf("write push frame: %w", err)
	}

	// Polite close so the relay sees an orderly end of stream.
	closeFrame, err := protocol.EncodeFrameToBytesWithMask(protocol.NewCloseFrame(), true)
	if err == nil {
		_, _ = conn.Write(closeFrame)
	}

	p.log.Debug("push sent", "addr", p.cfg.Addr, "bytes", len(payload))
	return nil
}

// handshake performs the client-side upgrade and validates the response.
func (p *Pusher) handshake(conn net.Conn) error {
	key, err := protocol.GenerateClientKey()
	if err != nil {
		return err
	}
	request := protocol.BuildHandshakeRequest(p.cfg.Addr, "/", key, p.cfg.DeviceID)
	if _, err := conn.Write([]byte(request)); err != nil {
		return fmt.Errorf("write handshake request: %w", err)
	}

	var buf []byte
	tmp := make([]byte, 4096)
	for protocol.HeaderBlockEnd(buf) < 0 {
		if len(buf) > protocol.MaxHandshakeHeadersSize {
			return fmt.Errorf("handshake response headers too large")
		}
		n, err := conn.Read(tmp)
		if err != nil {
			return fmt.Errorf("read handshake response: %w", err)
		}
		buf = append(buf, tmp[:n]...)
	}
	return protocol.ValidateHandshakeResponse(buf, key)
}
