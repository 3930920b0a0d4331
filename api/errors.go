// File: api/errors.go
// Package api defines the shared contracts of the relay-ws subsystems.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Common error types used across the relay.

package api

import "errors"

// Common errors used across the relay.
var (
	ErrConnClosed        = errors.New("connection is closed")
	ErrListenerClosed    = errors.New("listener closed")
	ErrHandshakeRejected = errors.New("websocket handshake rejected")
	ErrDuplicateDevice   = errors.New("device already connected")
	ErrDeviceNotFound    = errors.New("device not connected")
	ErrFrameTooLarge     = errors.New("frame payload exceeds maximum allowed size")
	ErrMalformedFrame    = errors.New("malformed websocket frame")
	ErrMessageNotFound   = errors.New("outbound message not found")
)
