// File: protocol/handshake.go
// Package protocol implements the HTTP→WebSocket handshake, server role.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Validates the upgrade request headers, computes the Sec-WebSocket-Accept
// value per RFC 6455 section 1.3, and renders the literal 101 response.

package protocol

import (
	"bytes"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"github.com/momentics/relay-ws/api"
)

const (
	// WebSocketGUID is the fixed GUID appended to the client key per RFC 6455.
	WebSocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

	// RequiredWebSocketVersion is the only protocol version the relay speaks.
	RequiredWebSocketVersion = "13"

	// MaxHandshakeHeadersSize limits the accepted header block size.
	MaxHandshakeHeadersSize = 8192

	// DeviceHeader carries the caller-supplied device identity.
	DeviceHeader = "x-device"

	// DeviceQueryParam is the query-string alternative to DeviceHeader.
	DeviceQueryParam = "device_id"
)

// headerTerminator separates the HTTP header block from the body.
var headerTerminator = []byte("\r\n\r\n")

// HeaderBlockEnd returns the index just past the \r\n\r\n terminator,
// or -1 when the buffer does not yet hold a complete header block.
func HeaderBlockEnd(buf []byte) int {
	i := bytes.Index(buf, headerTerminator)
	if i < 0 {
		return -1
	}
	return i + len(headerTerminator)
}

// ParseHeaders splits an HTTP header block into the start line and a map of
// headers with trimmed, lower-cased keys for case-insensitive lookup.
// Lines without a colon are ignored. The block may include the terminator.
func ParseHeaders(block []byte) (startLine string, headers map[string]string) {
	if i := bytes.Index(block, headerTerminator); i >= 0 {
		block = block[:i]
	}
	headers = make(map[string]string)
	lines := strings.Split(string(block), "\r\n")
	if len(lines) > 0 {
		startLine = lines[0]
	}
	for _, line := range lines[1:] {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		headers[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}
	return startLine, headers
}

// ComputeAcceptKey computes the Sec-WebSocket-Accept value from the client key.
func ComputeAcceptKey(clientKey string) string {
	hash := sha1.Sum([]byte(clientKey + WebSocketGUID))
	return base64.StdEncoding.EncodeToString(hash[:])
}

// ValidateUpgrade checks the parsed request headers for a well-formed
// WebSocket upgrade and returns the client key.
func ValidateUpgrade(headers map[string]string) (clientKey string, err error) {
	total := 0
	for k, v := range headers {
		total += len(k) + len(v)
	}
	if total > MaxHandshakeHeadersSize {
		return "", fmt.Errorf("%w: headers too large", api.ErrHandshakeRejected)
	}
	if !containsToken(headers["upgrade"], "websocket") {
		return "", fmt.Errorf("%w: missing Upgrade: websocket", api.ErrHandshakeRejected)
	}
	if !containsToken(headers["connection"], "upgrade") {
		return "", fmt.Errorf("%w: missing Connection: Upgrade", api.ErrHandshakeRejected)
	}
	if headers["sec-websocket-version"] != RequiredWebSocketVersion {
		return "", fmt.Errorf("%w: unsupported version %q", api.ErrHandshakeRejected, headers["sec-websocket-version"])
	}
	key := headers["sec-websocket-key"]
	if key == "" {
		return "", fmt.Errorf("%w: missing Sec-WebSocket-Key", api.ErrHandshakeRejected)
	}
	return key, nil
}

// BuildHandshakeResponse validates the request headers and renders the
// complete 101 Switching Protocols response, terminated by a blank line.
func BuildHandshakeResponse(headers map[string]string) (string, error) {
	key, err := ValidateUpgrade(headers)
	if err != nil {
		return "", err
	}
	return "HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: " + ComputeAcceptKey(key) + "\r\n\r\n", nil
}

// ConflictResponse is written to a duplicate device connection before close.
const ConflictResponse = "HTTP/1.1 409 Conflict\r\n\r\nDevice already connected"

// DeviceIdentity extracts the caller-supplied device id from the x-device
// header, falling back to the device_id query parameter of the request target.
// Returns the empty string when neither is present.
func DeviceIdentity(startLine string, headers map[string]string) string {
	if id := strings.TrimSpace(headers[DeviceHeader]); id != "" {
		return id
	}
	parts := strings.Split(startLine, " ")
	if len(parts) < 2 {
		return ""
	}
	u, err := url.Parse(parts[1])
	if err != nil {
		return ""
	}
	return strings.TrimSpace(u.Query().Get(DeviceQueryParam))
}

// containsToken checks whether a comma-separated header value contains the
// given token, case-insensitive.
func containsToken(headerValue, token string) bool {
	token = strings.ToLower(strings.TrimSpace(token))
	for _, p := range strings.Split(headerValue, ",") {
		if strings.ToLower(strings.TrimSpace(p)) == token {
			return true
		}
	}
	return false
}
