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

package state

import (
	"context"
	"fmt"
	"time"

	"github.com/printwatch/printwatch/pkg/logger"
	"github.com/printwatch/printwatch/pkg/models"
	"github.com/printwatch/printwatch/pkg/snapshot"
)

const (
	defaultSweepInterval   = 10 * time.Second
	defaultStalenessWindow = 60 * time.Second
)

var errWindowTooSmall = fmt.Errorf("staleness window must exceed the sweep interval")

// WatchdogConfig controls the staleness sweep.
type WatchdogConfig struct {
	SweepInterval   models.Duration `json:"sweep_interval"`
	StalenessWindow models.Duration `json:"staleness_window"`
}

func (c *WatchdogConfig) withDefaults() WatchdogConfig {
	out := *c

	if out.SweepInterval == 0 {
		out.SweepInterval = models.Duration(defaultSweepInterval)
	}

	if out.StalenessWindow == 0 {
		out.StalenessWindow = models.Duration(defaultStalenessWindow)
	}

	return out
}

func (c *WatchdogConfig) Validate() error {
	resolved := c.withDefaults()

	if resolved.StalenessWindow <= resolved.SweepInterval {
		return errWindowTooSmall
	}

	return nil
}

// Watchdog periodically scans all tracked devices and forces any device
// whose lastSeen is older than the staleness window to Offline. It is
// deliberately independent of Merge: silence is information no timestamp
// comparison can express, so this is the one path allowed to override
// recency arbitration.
type Watchdog struct {
	publisher *snapshot.Publisher
	pipeline  *Pipeline
	cfg       WatchdogConfig
	clock     Clock
	logger    logger.Logger

	// firstTracked records when a device with no lastSeen was first
	// observed by a sweep, so devices that never produce a timestamped
	// observation (a degraded marker, for instance) still go Offline
	// once the window elapses. Accessed only from the sweep loop.
	firstTracked map[string]time.Time
}

func NewWatchdog(publisher *snapshot.Publisher, pipeline *Pipeline, cfg WatchdogConfig, clock Clock, log logger.Logger) *Watchdog {
	if clock == nil {
		clock = realClock{}
	}

	return &Watchdog{
		publisher:    publisher,
		pipeline:     pipeline,
		cfg:          cfg.withDefaults(),
		clock:        clock,
		logger:       log,
		firstTracked: make(map[string]time.Time),
	}
}

// Run sweeps until the context is canceled.
func (w *Watchdog) Run(ctx context.Context) {
	interval := time.Duration(w.cfg.SweepInterval)
	ticker := w.clock.Ticker(interval)

	defer ticker.Stop()

	w.logger.Info().
		Dur("interval", interval).
		Dur("window", time.Duration(w.cfg.StalenessWindow)).
		Msg("Starting staleness watchdog")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("Staleness watchdog stopped")
			return
		case <-ticker.Chan():
			w.Sweep(w.clock.Now())
		}
	}
}

// Sweep runs one staleness pass. Exported so tests and callers with their
// own scheduling can drive it directly.
func (w *Watchdog) Sweep(now time.Time) {
	window := time.Duration(w.cfg.StalenessWindow)

	for _, snap := range w.publisher.Snapshots() {
		if snap.ConnectionStatus == models.ConnectionOffline {
			delete(w.firstTracked, snap.DeviceID)
			continue
		}

		baseline := snap.LastSeen

		if baseline.IsZero() {
			// Never observed with a timestamp; the first sweep that
			// finds the device starts its staleness clock.
			first, ok := w.firstTracked[snap.DeviceID]
			if !ok {
				w.firstTracked[snap.DeviceID] = now
				continue
			}

			baseline = first
		} else {
			delete(w.firstTracked, snap.DeviceID)
		}

		if now.Sub(baseline) < window {
			continue
		}

		delete(w.firstTracked, snap.DeviceID)
		w.pipeline.ForceOffline(snap.DeviceID, now)
	}
}
