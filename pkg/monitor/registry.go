/*
 * Copyright 2026 PrintWatch Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package monitor runs one cancellable poll loop per tracked device and
// owns the session lifecycle.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/printwatch/printwatch/pkg/logger"
)

// RegistryConfig carries the session defaults plus optional per-device
// overrides keyed by device id.
type RegistryConfig struct {
	Defaults SessionConfig            `json:"defaults"`
	Devices  map[string]SessionConfig `json:"devices,omitempty"`
}

func (c *RegistryConfig) Validate() error {
	if err := c.Defaults.Validate(); err != nil {
		return fmt.Errorf("defaults: %w", err)
	}

	for deviceID, override := range c.Devices {
		if err := c.Defaults.merged(override).Validate(); err != nil {
			return fmt.Errorf("device %s: %w", deviceID, err)
		}
	}

	return nil
}

// Registry owns the set of monitoring sessions and enforces at most one
// live (Starting/Active/Stopping) session per device.
type Registry struct {
	cfg     RegistryConfig
	fetcher StatusFetcher
	sink    Sink
	clock   Clock
	logger  logger.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates a session registry. A nil clock defaults to the real
// clock.
func NewRegistry(cfg RegistryConfig, fetcher StatusFetcher, sink Sink, clock Clock, log logger.Logger) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if clock == nil {
		clock = realClock{}
	}

	return &Registry{
		cfg:      cfg,
		fetcher:  fetcher,
		sink:     sink,
		clock:    clock,
		logger:   log,
		sessions: make(map[string]*Session),
	}, nil
}

// StartMonitoring begins a poll loop for the device. Idempotent: a device
// with a live session is left alone. The loop's lifetime is bound to ctx,
// so a daemon-wide cancel tears down every session.
func (r *Registry) StartMonitoring(ctx context.Context, deviceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.sessions[deviceID]; ok && existing.State() != SessionStopped {
		r.logger.Debug().
			Str("device_id", deviceID).
			Str("state", existing.State().String()).
			Msg("Duplicate start ignored")

		return
	}

	cfg := r.cfg.Defaults.merged(r.cfg.Devices[deviceID]).withDefaults()
	session := newSession(deviceID, cfg, r.fetcher, r.sink, r.clock, r.logger)
	session.onExit = func(s *Session) { r.remove(s) }

	r.sessions[deviceID] = session
	session.begin(ctx)

	r.logger.Info().
		Str("device_id", deviceID).
		Dur("poll_interval", time.Duration(cfg.PollInterval)).
		Msg("Started monitoring")
}

// StopMonitoring signals the device's session to terminate and lets the
// loop self-terminate. Idempotent: unknown devices and sessions already
// on their way down are a no-op.
func (r *Registry) StopMonitoring(deviceID string) {
	r.mu.Lock()
	session, ok := r.sessions[deviceID]
	r.mu.Unlock()

	if !ok {
		r.logger.Debug().Str("device_id", deviceID).Msg("Stop for unmonitored device ignored")
		return
	}

	session.stop()
}

// SessionState reports the lifecycle state of the device's session, or
// (SessionStopped, false) when none exists.
func (r *Registry) SessionState(deviceID string) (SessionState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[deviceID]
	if !ok {
		return SessionStopped, false
	}

	return session.State(), true
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.sessions)
}

// StopAll stops every session and waits for each loop to terminate or for
// ctx to expire.
func (r *Registry) StopAll(ctx context.Context) error {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))

	for _, session := range r.sessions {
		sessions = append(sessions, session)
	}
	r.mu.Unlock()

	for _, session := range sessions {
		session.stop()
	}

	for _, session := range sessions {
		select {
		case <-session.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

// remove deletes the session from the registry once its loop has exited.
// Identity-checked: a replacement session registered for the same device
// must not be evicted by its predecessor's exit.
func (r *Registry) remove(session *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.sessions[session.deviceID]; ok && current == session {
		delete(r.sessions, session.deviceID)
	}
}
