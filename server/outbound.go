// File: server/outbound.go
// Package server hosts the relay: listener, registry, timers, sessions.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The outbound poller pushes durable store messages to connected devices.
// Delivery is best-effort: no transaction spans the store mutation and the
// socket write, but an explicit write error always marks the message failed.

package server

import (
	"time"

	"github.com/eapache/queue"

	"github.com/momentics/relay-ws/api"
	"github.com/momentics/relay-ws/protocol"
)

// outboundLoop polls the external store for pending messages addressed to
// connected devices. The poll is skipped entirely while the registry is empty.
func (s *Server) outboundLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.OutboundPollInterval.Std())
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdown:
			return
		case <-ticker.C:
			if s.registry.Len() == 0 {
				continue
			}
			s.deliverPending()
		}
	}
}

// deliverPending fetches one batch and drains it in store order.
func (s *Server) deliverPending() {
	msgs, err := s.store.FetchPending(s.registry.DeviceIDs())
	if err != nil {
		s.log.Warn("outbound store fetch failed", "error", err)
		return
	}
	if len(msgs) == 0 {
		return
	}

	pending := queue.New()
	for _, msg := range msgs {
		pending.Add(msg)
	}
	for pending.Length() > 0 {
		s.deliverOne(pending.Remove().(api.OutboundMessage))
	}
}

// deliverOne writes one message as a text frame and reports the outcome back
// to the store. A device that disconnected between fetch and write keeps its
// message pending for a later tick.
func (s *Server) deliverOne(msg api.OutboundMessage) {
	conn, ok := s.registry.Get(msg.DeviceID)
	if !ok {
		s.log.Debug("outbound target no longer connected",
			"device", msg.DeviceID, "message", msg.ID)
		return
	}

	if err := conn.WriteFrame(protocol.NewTextFrame(msg.Body)); err != nil {
		s.log.Warn("outbound delivery failed",
			"device", msg.DeviceID, "message", msg.ID, "error", err)
		if merr := s.store.MarkFailed(msg.ID); merr != nil {
			s.log.Warn("mark failed errored", "message", msg.ID, "error", merr)
		}
		s.registry.Remove(msg.DeviceID)
		conn.Close()
		return
	}

	if err := s.store.MarkDelivered(msg.ID); err != nil {
		s.log.Warn("mark delivered errored", "message", msg.ID, "error", err)
	}
	s.log.Debug("outbound message delivered", "device", msg.DeviceID, "message", msg.ID)
}
