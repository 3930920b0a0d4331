// File: server/server.go
// Package server hosts the relay: listener, registry, timers, sessions.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/momentics/relay-ws/api"
	"github.com/momentics/relay-ws/pool"
	"github.com/momentics/relay-ws/registry"
	"github.com/momentics/relay-ws/router"
	"github.com/momentics/relay-ws/transport"
)

// Server owns the listening socket, the connection registry, the keepalive
// timer, and the outbound-delivery poller. One session goroutine is spawned
// per accepted connection; the registry is the only cross-session state.
type Server struct {
	cfg      *Config
	log      *slog.Logger
	registry *registry.Registry
	router   *router.Router
	resolver api.DeviceResolver
	store    api.OutboundStore
	listener *transport.Listener
	readBufs *pool.BytePool

	shutdown  chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	mu       sync.Mutex
	sessions map[*session]struct{}
}

// New builds a Server. The registry and router are created here and injected
// into the timers and sessions; neither is ever package-level state.
func New(cfg *Config, opts ...Option) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	s := &Server{
		cfg:      cfg,
		log:      slog.Default(),
		shutdown: make(chan struct{}),
		sessions: make(map[*session]struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	s.registry = registry.New(s.log)
	s.router = router.New(s.registry, s.resolver, s.log)
	s.readBufs = pool.NewBytePool(cfg.ReadBufferSize)
	return s
}

// Registry exposes the live device table.
func (s *Server) Registry() *registry.Registry {
	return s.registry
}

// Addr returns the bound listener address, or nil before Run.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Run binds the listener and serves until Shutdown is called. The keepalive
// and outbound-delivery loops run for the lifetime of the process; individual
// connection failures never stop the accept loop.
func (s *Server) Run() error {
	ln, err := transport.Listen(s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("start relay: %w", err)
	}
	s.listener = ln
	s.log.Info("relay listening", "addr", ln.Addr().String())

	if s.cfg.KeepaliveInterval.Std() > 0 {
		s.wg.Add(1)
		go s.keepaliveLoop()
	}
	if s.cfg.OutboundPollInterval.Std() > 0 && s.store != nil {
		s.wg.Add(1)
		go s.outboundLoop()
	}

	for {
		conn, err := ln.Accept()
		if err != nil {
			if err == api.ErrListenerClosed {
				break
			}
			s.log.Warn("accept failed", "error", err)
			continue
		}
		s.log.Debug("connection accepted", "remote", conn.RemoteAddr().String())
		sess := newSession(s, conn)
		s.trackSession(sess)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrackSession(sess)
			sess.run()
		}()
	}

	s.wg.Wait()
	return nil
}

// Shutdown stops accepting, closes all sessions, and waits for Run to return,
// up to the configured shutdown timeout.
func (s *Server) Shutdown() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.shutdown)
		if s.listener != nil {
			err = s.listener.Close()
		}
		// Closing the transport unblocks each session's read loop; the
		// session goroutine then runs its own cleanup before wg releases.
		s.mu.Lock()
		for sess := range s.sessions {
			sess.conn.Close()
		}
		s.mu.Unlock()

		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(s.cfg.ShutdownTimeout.Std()):
			err = fmt.Errorf("shutdown timeout after %v", s.cfg.ShutdownTimeout.Std())
		}
	})
	return err
}

func (s *Server) trackSession(sess *session) {
	s.mu.Lock()
	s.sessions[sess] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrackSession(sess *session) {
	s.mu.Lock()
	delete(s.sessions, sess)
	s.mu.Unlock()
}
