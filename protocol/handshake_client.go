// File: protocol/handshake_client.go
// Package protocol implements the HTTP→WebSocket handshake, client role.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Generates the upgrade request with a random key and validates the server's
// 101 response, including the Sec-WebSocket-Accept echo of our key.

package protocol

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/momentics/relay-ws/api"
)

// GenerateClientKey returns a fresh base64-encoded random 16-byte key.
func GenerateClientKey() (string, error) {
	keyBytes := make([]byte, 16)
	if _, err := rand.Read(keyBytes); err != nil {
		return "", fmt.Errorf("generate websocket key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(keyBytes), nil
}

// BuildHandshakeRequest renders the client upgrade request. deviceID, when
// non-empty, is carried in the x-device header so the server can register the
// connection under a durable identity.
func BuildHandshakeRequest(host, path, clientKey, deviceID string) string {
	if path == "" {
		path = "/"
	}
	var sb strings.Builder
	sb.WriteString("GET " + path + " HTTP/1.1\r\n")
	sb.WriteString("Host: " + host + "\r\n")
	sb.WriteString("Upgrade: websocket\r\n")
	sb.WriteString("Connection: Upgrade\r\n")
	sb.WriteString("Sec-WebSocket-Key: " + clientKey + "\r\n")
	sb.WriteString("Sec-WebSocket-Version: " + RequiredWebSocketVersion + "\r\n")
	if deviceID != "" {
		sb.WriteString("X-Device: " + deviceID + "\r\n")
	}
	sb.WriteString("\r\n")
	return sb.String()
}

// ValidateHandshakeResponse checks the server's response block against the key
// we sent. Any mismatch is a handshake failure and the caller must close the
// connection.
func ValidateHandshakeResponse(block []byte, clientKey string) error {
	statusLine, headers := ParseHeaders(block)
	if !strings.HasPrefix(statusLine, "HTTP/1.1 101") {
		return fmt.Errorf("%w: unexpected status line %q", api.ErrHandshakeRejected, statusLine)
	}
	if !containsToken(headers["upgrade"], "websocket") ||
		!containsToken(headers["connection"], "upgrade") {
		return fmt.Errorf("%w: missing upgrade headers in response", api.ErrHandshakeRejected)
	}
	if headers["sec-websocket-accept"] != ComputeAcceptKey(clientKey) {
		return fmt.Errorf("%w: Sec-WebSocket-Accept mismatch", api.ErrHandshakeRejected)
	}
	return nil
}
