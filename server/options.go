// File: server/options.go
// Package server defines functional options for the relay server.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"log/slog"

	"github.com/momentics/relay-ws/api"
)

// Option customizes server initialization.
type Option func(*Server)

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) {
		s.log = log
	}
}

// WithOutboundStore attaches the durable message store polled for deliveries.
func WithOutboundStore(store api.OutboundStore) Option {
	return func(s *Server) {
		s.store = store
	}
}

// WithDeviceResolver attaches the destination-name resolver used for routing.
func WithDeviceResolver(resolver api.DeviceResolver) Option {
	return func(s *Server) {
		s.resolver = resolver
	}
}
