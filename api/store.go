// File: api/store.go
// Package api defines the shared contracts of the relay-ws subsystems.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Boundary interfaces for the external collaborators: device discovery and the
// durable outbound message store. The relay consumes both through these narrow
// interfaces only; persistence and retry policy stay on the collaborator side.

package api

// DeliveryState enumerates the lifecycle of an outbound message.
type DeliveryState int

const (
	DeliveryPending DeliveryState = iota
	DeliveryDelivered
	DeliveryFailed
)

func (s DeliveryState) String() string {
	switch s {
	case DeliveryPending:
		return "pending"
	case DeliveryDelivered:
		return "delivered"
	case DeliveryFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// OutboundMessage is one durable record queued for a device.
type OutboundMessage struct {
	ID       string
	DeviceID string
	Body     []byte
}

// DeviceResolver resolves a caller-supplied destination name to a device id.
type DeviceResolver interface {
	Resolve(name string) (string, bool)
}

// OutboundStore is the durable queue of messages waiting to be pushed to a
// device once it is connected. Delivery state is mutated only through
// MarkDelivered and MarkFailed; the relay never deletes records.
type OutboundStore interface {
	// FetchPending returns pending messages addressed to any of the given
	// currently-connected device ids.
	FetchPending(connected []string) ([]OutboundMessage, error)

	// MarkDelivered transitions a message to the delivered state.
	MarkDelivered(id string) error

	// MarkFailed transitions a message to the failed state so the store's own
	// policy can retry it.
	MarkFailed(id string) error
}
