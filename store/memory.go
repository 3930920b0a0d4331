// File: store/memory.go
// Package store provides an in-memory outbound store and device resolver.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Reference implementation of the external collaborator boundary, used by the
// default command wiring and by tests. A production deployment substitutes
// its own durable store behind the same interfaces.

package store

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/momentics/relay-ws/api"
)

// Memory is a thread-safe in-memory api.OutboundStore and api.DeviceResolver.
type Memory struct {
	mu       sync.Mutex
	messages map[string]*record
	order    []string          // message ids in enqueue order
	devices  map[string]string // device name -> device id
}

type record struct {
	msg   api.OutboundMessage
	state api.DeliveryState
}

// Interface compliance checks.
var (
	_ api.OutboundStore  = (*Memory)(nil)
	_ api.DeviceResolver = (*Memory)(nil)
)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		messages: make(map[string]*record),
		devices:  make(map[string]string),
	}
}

// RegisterDevice adds a name → device id mapping for Resolve.
func (m *Memory) RegisterDevice(name, deviceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices[name] = deviceID
}

// Resolve implements api.DeviceResolver.
func (m *Memory) Resolve(name string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.devices[name]
	return id, ok
}

// Enqueue stores a pending message for deviceID and returns its id.
func (m *Memory) Enqueue(deviceID string, body []byte) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	m.messages[id] = &record{
		msg: api.OutboundMessage{
			ID:       id,
			DeviceID: deviceID,
			Body:     append([]byte(nil), body...),
		},
		state: api.DeliveryPending,
	}
	m.order = append(m.order, id)
	return id
}

// FetchPending implements api.OutboundStore. Messages are returned in enqueue
// order, restricted to pending records addressed to a connected device.
func (m *Memory) FetchPending(connected []string) ([]api.OutboundMessage, error) {
	online := make(map[string]bool, len(connected))
	for _, id := range connected {
		online[id] = true
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var out []api.OutboundMessage
	for _, id := range m.order {
		rec := m.messages[id]
		if rec.state == api.DeliveryPending && online[rec.msg.DeviceID] {
			out = append(out, rec.msg)
		}
	}
	return out, nil
}

// MarkDelivered implements api.OutboundStore.
func (m *Memory) MarkDelivered(id string) error {
	return m.setState(id, api.DeliveryDelivered)
}

// MarkFailed implements api.OutboundStore.
func (m *Memory) MarkFailed(id string) error {
	return m.setState(id, api.DeliveryFailed)
}

// Retry moves a failed message back to pending; this is the store-side retry
// policy the relay itself never applies.
func (m *Memory) Retry(id string) error {
	return m.setState(id, api.DeliveryPending)
}

// State returns the delivery state of a message.
func (m *Memory) State(id string) (api.DeliveryState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.messages[id]
	if !ok {
		return 0, false
	}
	return rec.state, true
}

func (m *Memory) setState(id string, state api.DeliveryState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.messages[id]
	if !ok {
		return fmt.Errorf("%w: %s", api.ErrMessageNotFound, id)
	}
	rec.state = state
	return nil
}
