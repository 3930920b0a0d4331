// File: router/router.go
// Package router implements the unicast/broadcast delivery policy.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The payload of an inbound text frame is a routing envelope: JSON that may
// name a destination device. An explicit destination that cannot be honored
// drops the message; it never falls back to broadcast.

package router

import (
	"encoding/json"
	"log/slog"

	"github.com/momentics/relay-ws/api"
	"github.com/momentics/relay-ws/protocol"
	"github.com/momentics/relay-ws/registry"
)

// Router dispatches decoded frames to their destination connection set.
type Router struct {
	registry *registry.Registry
	resolver api.DeviceResolver
	log      *slog.Logger
}

// New builds a router over the given registry and device resolver.
// resolver may be nil, in which case explicit destinations never resolve.
func New(reg *registry.Registry, resolver api.DeviceResolver, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{registry: reg, resolver: resolver, log: log}
}

// Route delivers one inbound data frame from senderID. The payload is parsed
// as a routing envelope; a non-empty destination selects unicast to exactly
// that device, otherwise the frame is broadcast to every registered
// connection except the sender. The payload is re-encoded as a fresh unmasked
// text frame for delivery. Dead destinations are removed from the registry.
func (r *Router) Route(senderID string, frame *protocol.WSFrame) {
	destination, ok := parseEnvelope(frame.Payload)
	if !ok {
		r.log.Warn("undecodable routing envelope, broadcasting",
			"sender", senderID, "bytes", len(frame.Payload))
	}

	var targets []registry.Entry
	if destination != "" {
		entry, found := r.resolveDestination(destination)
		if !found {
			r.log.Warn("destination requested but not deliverable, dropping",
				"sender", senderID, "destination", destination)
			return
		}
		if entry.DeviceID == senderID {
			// A device addressing itself gets nothing back.
			return
		}
		targets = []registry.Entry{entry}
	} else {
		targets = r.registry.All()
	}

	out := protocol.NewTextFrame(frame.Payload)
	for _, entry := range targets {
		if entry.DeviceID == senderID {
			continue
		}
		if err := entry.Conn.WriteFrame(out); err != nil {
			r.log.Warn("write failed, removing connection",
				"device", entry.DeviceID, "error", err)
			r.registry.Remove(entry.DeviceID)
			entry.Conn.Close()
		}
	}
}

// resolveDestination maps a destination name to a live registry entry.
func (r *Router) resolveDestination(destination string) (registry.Entry, bool) {
	if r.resolver == nil {
		return registry.Entry{}, false
	}
	deviceID, ok := r.resolver.Resolve(destination)
	if !ok {
		return registry.Entry{}, false
	}
	conn, ok := r.registry.Get(deviceID)
	if !ok {
		return registry.Entry{}, false
	}
	return registry.Entry{DeviceID: deviceID, Conn: conn}, true
}

// parseEnvelope extracts the destination field from a JSON payload. The
// envelope is either an object or a single-element array wrapping an object;
// both shapes occur in deployed senders. ok is false when the payload is not
// JSON at all.
func parseEnvelope(payload []byte) (destination string, ok bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(payload, &obj); err == nil {
		return destinationField(obj), true
	}
	var arr []map[string]json.RawMessage
	if err := json.Unmarshal(payload, &arr); err == nil {
		if len(arr) > 0 {
			return destinationField(arr[0]), true
		}
		return "", true
	}
	return "", false
}

func destinationField(obj map[string]json.RawMessage) string {
	raw, ok := obj["destination"]
	if !ok {
		return ""
	}
	var dest string
	if err := json.Unmarshal(raw, &dest); err != nil {
		return ""
	}
	return dest
}
