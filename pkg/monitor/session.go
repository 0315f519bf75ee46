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

package monitor

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/printwatch/printwatch/pkg/logger"
	"github.com/printwatch/printwatch/pkg/models"
)

var errEmptyStatus = errors.New("fetcher returned no fragment")

// SessionState is the lifecycle state of one monitoring session.
type SessionState int32

const (
	SessionStopped SessionState = iota
	SessionStarting
	SessionActive
	SessionStopping
)

func (s SessionState) String() string {
	switch s {
	case SessionStopped:
		return "stopped"
	case SessionStarting:
		return "starting"
	case SessionActive:
		return "active"
	case SessionStopping:
		return "stopping"
	default:
		return "invalid"
	}
}

// Session owns one device's poll loop. Sessions are created and destroyed
// by the Registry and never shared elsewhere. The loop is cooperative:
// cancellation is checked before each fetch and again when it returns, and
// every fetch carries a deadline strictly shorter than the poll interval,
// so a stop request completes within one bounded cycle even mid-fetch.
type Session struct {
	deviceID string
	cfg      SessionConfig
	fetcher  StatusFetcher
	sink     Sink
	clock    Clock
	logger   logger.Logger

	state  atomic.Int32
	cancel context.CancelFunc
	done   chan struct{}
	onExit func(*Session)
}

func newSession(deviceID string, cfg SessionConfig, fetcher StatusFetcher, sink Sink, clock Clock, log logger.Logger) *Session {
	return &Session{
		deviceID: deviceID,
		cfg:      cfg,
		fetcher:  fetcher,
		sink:     sink,
		clock:    clock,
		logger:   log,
		done:     make(chan struct{}),
	}
}

// State reports the current lifecycle state.
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// Done is closed when the loop has fully terminated and released its
// resources.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// begin transitions Stopped -> Starting and launches the loop. The caller
// (the registry) guarantees begin is invoked at most once per Session.
func (s *Session) begin(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state.Store(int32(SessionStarting))

	go s.run(loopCtx)
}

// stop requests cooperative termination. Idempotent: stopping an already
// Stopping or Stopped session is a no-op.
func (s *Session) stop() {
	for {
		cur := s.state.Load()
		if SessionState(cur) == SessionStopped || SessionState(cur) == SessionStopping {
			return
		}

		if s.state.CompareAndSwap(cur, int32(SessionStopping)) {
			s.cancel()
			return
		}
	}
}

func (s *Session) run(ctx context.Context) {
	defer func() {
		s.state.Store(int32(SessionStopped))
		close(s.done)

		if s.onExit != nil {
			s.onExit(s)
		}

		s.logger.Info().Str("device_id", s.deviceID).Msg("Monitoring session stopped")
	}()

	pollInterval := time.Duration(s.cfg.PollInterval)
	failures := 0

	for {
		if ctx.Err() != nil {
			return
		}

		frag, err := s.fetch(ctx)

		// A stop may have arrived while the fetch was in flight; its
		// result, success or failure, is no longer interesting.
		if ctx.Err() != nil {
			return
		}

		if err != nil {
			failures++

			s.logger.Debug().
				Err(err).
				Str("device_id", s.deviceID).
				Int("consecutive_failures", failures).
				Msg("Fetch failed")

			if failures >= s.cfg.FailureThreshold {
				s.publishDegraded()

				s.logger.Warn().
					Str("device_id", s.deviceID).
					Int("threshold", s.cfg.FailureThreshold).
					Msg("Failure threshold exceeded, stopping session")

				return
			}

			if !s.sleep(ctx, s.backoff(failures)) {
				return
			}

			continue
		}

		failures = 0

		if applyErr := s.sink.Apply(*frag); applyErr != nil {
			// Data-quality problem, not connectivity: dropped upstream,
			// and deliberately not counted against the failure threshold.
			s.logger.Warn().
				Err(applyErr).
				Str("device_id", s.deviceID).
				Msg("Fetched fragment rejected")
		}

		s.state.CompareAndSwap(int32(SessionStarting), int32(SessionActive))

		if !s.sleep(ctx, pollInterval) {
			return
		}
	}
}

func (s *Session) fetch(ctx context.Context) (*models.Fragment, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, time.Duration(s.cfg.FetchTimeout))
	defer cancel()

	frag, err := s.fetcher.FetchDeviceStatus(fetchCtx, s.deviceID)
	if err != nil {
		return nil, err
	}

	if frag == nil {
		return nil, errEmptyStatus
	}

	out := *frag
	out.DeviceID = s.deviceID

	if out.ObservedAt.IsZero() {
		out.ObservedAt = s.clock.Now()
	}

	// A successful fetch is proof the device is reachable again, so it
	// clears any degraded marker left by a previous failed session.
	if out.Degraded == nil {
		healthy := false
		out.Degraded = &healthy
	}

	return &out, nil
}

// publishDegraded records the terminal failure in the published state so
// the error is visible to subscribers instead of thrown. No ObservedAt:
// the device was not observed, and lastSeen must not advance.
func (s *Session) publishDegraded() {
	degraded := true

	_ = s.sink.Apply(models.Fragment{
		DeviceID: s.deviceID,
		Connection: &models.ConnectionFragment{
			Status:    models.ConnectionUnknown,
			UpdatedAt: s.clock.Now(),
		},
		Degraded: &degraded,
	})
}

// backoff returns the capped exponential delay for the given consecutive
// failure count (1-based).
func (s *Session) backoff(failures int) time.Duration {
	initial := time.Duration(s.cfg.BackoffInitial)
	maximum := time.Duration(s.cfg.BackoffMax)

	const maxShift = 16

	shift := failures - 1
	if shift > maxShift {
		shift = maxShift
	}

	delay := initial << shift
	if delay <= 0 || delay > maximum {
		delay = maximum
	}

	return delay
}

// sleep waits for d, interruptible by cancellation so a stop request is
// never delayed by a long idle wait. Returns false if canceled.
func (s *Session) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-s.clock.After(d):
		return true
	}
}
