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
	"sync"
	"time"

	"github.com/printwatch/printwatch/pkg/logger"
	"github.com/printwatch/printwatch/pkg/models"
	"github.com/printwatch/printwatch/pkg/snapshot"
)

// Pipeline is the single merge+publish path shared by poll sessions and
// push delivery. The read-merge-publish sequence is serialized per device
// so concurrent sources cannot interleave a read-modify-write; the lock
// covers pure CPU work only, never I/O.
type Pipeline struct {
	publisher *snapshot.Publisher
	logger    logger.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewPipeline(publisher *snapshot.Publisher, log logger.Logger) *Pipeline {
	return &Pipeline{
		publisher: publisher,
		logger:    log,
		locks:     make(map[string]*sync.Mutex),
	}
}

// Apply validates a fragment, merges it into the device's canonical state
// and publishes the result. Invalid fragments are dropped and logged; the
// returned error lets callers distinguish a drop from a merge, but it must
// never feed a connectivity failure counter.
func (p *Pipeline) Apply(frag models.Fragment) error {
	if err := ValidateFragment(&frag); err != nil {
		p.logger.Warn().
			Err(err).
			Str("device_id", frag.DeviceID).
			Msg("Dropping invalid fragment")

		return err
	}

	lock := p.lockFor(frag.DeviceID)
	lock.Lock()
	defer lock.Unlock()

	current, _ := p.publisher.Snapshot(frag.DeviceID)
	p.publisher.Publish(Merge(current, frag))

	return nil
}

// ForceOffline overrides recency arbitration and marks a device Offline.
// Only the staleness watchdog uses this: silence carries no timestamp, so
// it can never win a timestamp comparison.
func (p *Pipeline) ForceOffline(deviceID string, now time.Time) {
	lock := p.lockFor(deviceID)
	lock.Lock()
	defer lock.Unlock()

	current, ok := p.publisher.Snapshot(deviceID)
	if !ok || current.ConnectionStatus == models.ConnectionOffline {
		return
	}

	next := current.Clone()
	next.ConnectionStatus = models.ConnectionOffline
	next.ConnectionUpdatedAt = now

	p.publisher.Publish(next)

	p.logger.Info().
		Str("device_id", deviceID).
		Time("last_seen", current.LastSeen).
		Msg("Device silent beyond staleness window, forcing offline")
}

func (p *Pipeline) lockFor(deviceID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()

	lock, ok := p.locks[deviceID]
	if !ok {
		lock = &sync.Mutex{}
		p.locks[deviceID] = lock
	}

	return lock
}
