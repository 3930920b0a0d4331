// File: protocol/frame.go
// Package protocol
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// WebSocket frame representation and wire-level constants.

package protocol

// Frame header bit masks.
const (
	FinBit  byte = 0x80
	MaskBit byte = 0x80
)

// Opcodes per RFC 6455 section 5.2.
const (
	OpcodeContinuation byte = 0x0
	OpcodeText         byte = 0x1
	OpcodeBinary       byte = 0x2
	OpcodeClose        byte = 0x8
	OpcodePing         byte = 0x9
	OpcodePong         byte = 0xA
)

// MaxFrameHeaderLen is the worst-case header size:
// 2 base bytes + 8 extended length bytes + 4 mask key bytes.
const MaxFrameHeaderLen = 14

// WSFrame represents a decoded WebSocket frame.
type WSFrame struct {
	IsFinal    bool  // FIN bit
	Opcode     byte  // Operation code
	Masked     bool  // Whether the frame was masked on the wire
	PayloadLen int64 // Actual payload length
	MaskKey    [4]byte
	Payload    []byte
}

// IsControl reports whether the frame carries a control opcode.
func (f *WSFrame) IsControl() bool {
	return f.Opcode&0x8 != 0
}

// NewTextFrame builds a final text frame around payload.
func NewTextFrame(payload []byte) *WSFrame {
	return &WSFrame{
		IsFinal:    true,
		Opcode:     OpcodeText,
		PayloadLen: int64(len(payload)),
		Payload:    payload,
	}
}

// NewPingFrame builds an empty ping frame used for keepalive probing.
func NewPingFrame() *WSFrame {
	return &WSFrame{IsFinal: true, Opcode: OpcodePing}
}

// NewPongFrame builds a pong frame echoing the ping payload.
func NewPongFrame(payload []byte) *WSFrame {
	return &WSFrame{
		IsFinal:    true,
		Opcode:     OpcodePong,
		PayloadLen: int64(len(payload)),
		Payload:    payload,
	}
}

// NewCloseFrame builds an empty close frame.
func NewCloseFrame() *WSFrame {
	return &WSFrame{IsFinal: true, Opcode: OpcodeClose}
}
