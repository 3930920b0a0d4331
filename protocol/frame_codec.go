// File: protocol/frame_codec.go
// Package protocol implements the stream frame codec with payload size enforcement.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Implements WebSocket frame encoding/decoding with payload size limits
// to prevent resource exhaustion from oversized or corrupt frames.

package protocol

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/momentics/relay-ws/api"
)

// MaxFramePayload defines the maximum allowed payload size for a single frame.
const MaxFramePayload = 1 << 20 // 1 MiB

// DecodeFrameFromBytes parses one WebSocket frame from the front of raw.
// Returns the frame, the number of bytes consumed, and an error.
// If the buffer does not yet hold a complete frame, returns (nil, 0, nil);
// callers must retain the unconsumed bytes and retry after the next read.
// A non-nil error means the stream is malformed, not merely short.
func DecodeFrameFromBytes(raw []byte) (*WSFrame, int, error) {
	if len(raw) < 2 {
		return nil, 0, nil // Incomplete
	}
	fin := raw[0]&FinBit != 0
	if raw[0]&0x70 != 0 {
		return nil, 0, fmt.Errorf("%w: reserved bits set", api.ErrMalformedFrame)
	}
	opcode := raw[0] & 0x0F
	masked := raw[1]&MaskBit != 0
	length := int64(raw[1] & 0x7F)
	offset := 2

	switch length {
	case 126:
		if len(raw) < offset+2 {
			return nil, 0, nil // Incomplete
		}
		length = int64(binary.BigEndian.Uint16(raw[offset:]))
		offset += 2
	case 127:
		if len(raw) < offset+8 {
			return nil, 0, nil // Incomplete
		}
		v := binary.BigEndian.Uint64(raw[offset:])
		if v > uint64(MaxFramePayload) {
			return nil, 0, fmt.Errorf("%w: %d bytes", api.ErrFrameTooLarge, v)
		}
		length = int64(v)
		offset += 8
	}

	if length > MaxFramePayload {
		return nil, 0, fmt.Errorf("%w: %d bytes", api.ErrFrameTooLarge, length)
	}

	var maskKey [4]byte
	if masked {
		if len(raw) < offset+4 {
			return nil, 0, nil // Incomplete
		}
		copy(maskKey[:], raw[offset:offset+4])
		offset += 4
	}

	totalLen := offset + int(length)
	if len(raw) < totalLen {
		return nil, 0, nil // Incomplete
	}

	payload := make([]byte, length)
	copy(payload, raw[offset:totalLen])
	if masked {
		unmaskInPlace(payload, maskKey)
	}

	return &WSFrame{
		IsFinal:    fin,
		Opcode:     opcode,
		Masked:     masked,
		PayloadLen: length,
		MaskKey:    maskKey,
		Payload:    payload,
	}, totalLen, nil
}

// EncodeFrameToBytes serializes a frame for the server role: never masked.
func EncodeFrameToBytes(f *WSFrame) ([]byte, error) {
	return EncodeFrameToBytesWithMask(f, false)
}

// EncodeFrameToBytesWithMask serializes a frame, masking the payload with a
// fresh random key when mask is set (client role). The input payload is not
// modified; masked bytes are written into the output buffer only.
func EncodeFrameToBytesWithMask(f *WSFrame, mask bool) ([]byte, error) {
	if f.PayloadLen > MaxFramePayload {
		return nil, fmt.Errorf("%w: %d bytes", api.ErrFrameTooLarge, f.PayloadLen)
	}

	var b0 byte
	if f.IsFinal {
		b0 = FinBit
	}
	b0 |= f.Opcode & 0x0F

	plen := int(f.PayloadLen)
	var hdr [10]byte
	var header []byte

	switch {
	case plen <= 125:
		header = hdr[:2]
		header[0] = b0
		header[1] = byte(plen)
	case plen <= 0xFFFF:
		header = hdr[:4]
		header[0] = b0
		header[1] = 126
		binary.BigEndian.PutUint16(header[2:], uint16(plen))
	default:
		header = hdr[:10]
		header[0] = b0
		header[1] = 127
		binary.BigEndian.PutUint64(header[2:], uint64(plen))
	}
	if mask {
		header[1] |= MaskBit
	}

	dst := make([]byte, 0, len(header)+4+plen)
	dst = append(dst, header...)

	if mask {
		var maskKey [4]byte
		if _, err := rand.Read(maskKey[:]); err != nil {
			return nil, fmt.Errorf("generate mask key: %w", err)
		}
		dst = append(dst, maskKey[:]...)
		start := len(dst)
		dst = append(dst, f.Payload...)
		unmaskInPlace(dst[start:], maskKey)
		return dst, nil
	}

	dst = append(dst, f.Payload...)
	return dst, nil
}

// unmaskInPlace applies the XOR mask; masking and unmasking are symmetric.
func unmaskInPlace(buf []byte, key [4]byte) {
	for i := 0; i < len(buf); i++ {
		buf[i] ^= key[i%4]
	}
}
