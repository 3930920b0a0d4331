// File: server/config.go
// Package server hosts the relay: listener, registry, timers, sessions.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so config files can say "30s" or "500ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds all server-side configuration parameters.
type Config struct {
	ListenAddr           string   `yaml:"listen_addr"`            // TCP bind address
	ReadBufferSize       int      `yaml:"read_buffer_size"`       // size of pooled read buffers
	KeepaliveInterval    Duration `yaml:"keepalive_interval"`     // ping period, 0 disables
	OutboundPollInterval Duration `yaml:"outbound_poll_interval"` // store poll period, 0 disables
	AllowAnonymous       bool     `yaml:"allow_anonymous"`        // assign generated device ids
	ShutdownTimeout      Duration `yaml:"shutdown_timeout"`       // graceful shutdown budget
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:           "0.0.0.0:8080",
		ReadBufferSize:       64 * 1024,
		KeepaliveInterval:    Duration(30 * time.Second),
		OutboundPollInterval: Duration(1 * time.Second),
		AllowAnonymous:       false,
		ShutdownTimeout:      Duration(30 * time.Second),
	}
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
