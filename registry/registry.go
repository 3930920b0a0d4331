// File: registry/registry.go
// Package registry maintains the live device → connection table.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The registry is the only state shared across sessions and the periodic
// timers. It is an explicit instance owned by the server and injected where
// needed, keyed by device identity — never by a transport-level id.

package registry

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/momentics/relay-ws/api"
	"github.com/momentics/relay-ws/transport"
)

// Entry pairs a device identity with its live connection.
type Entry struct {
	DeviceID string
	Conn     *transport.Conn
}

// Registry is a mutex-guarded device table. At most one connection per device
// id is admitted; later arrivals are rejected until the first is removed.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*transport.Conn
	log   *slog.Logger
}

// New creates an empty registry.
func New(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		conns: make(map[string]*transport.Conn),
		log:   log,
	}
}

// Add registers conn under deviceID. Returns api.ErrDuplicateDevice when the
// device already has a live entry; the existing connection is unaffected.
func (r *Registry) Add(deviceID string, conn *transport.Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.conns[deviceID]; exists {
		return fmt.Errorf("%w: %s", api.ErrDuplicateDevice, deviceID)
	}
	r.conns[deviceID] = conn
	r.log.Info("device registered", "device", deviceID, "total", len(r.conns))
	return nil
}

// Remove drops the entry for deviceID; unknown ids are a logged no-op.
func (r *Registry) Remove(deviceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.conns[deviceID]; !exists {
		r.log.Debug("remove of unknown device", "device", deviceID)
		return
	}
	delete(r.conns, deviceID)
	r.log.Info("device removed", "device", deviceID, "total", len(r.conns))
}

// Get returns the live connection for deviceID.
func (r *Registry) Get(deviceID string) (*transport.Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[deviceID]
	return conn, ok
}

// All returns a point-in-time snapshot of every entry. Callers iterate the
// snapshot without holding the registry lock, so a slow peer write cannot
// block registration.
func (r *Registry) All() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := make([]Entry, 0, len(r.conns))
	for id, conn := range r.conns {
		entries = append(entries, Entry{DeviceID: id, Conn: conn})
	}
	return entries
}

// DeviceIDs returns the ids of all registered devices.
func (r *Registry) DeviceIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of registered devices.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
