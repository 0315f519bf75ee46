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

// Package snapshot holds the canonical last-known state per device and
// notifies subscribers with field-level diffs.
package snapshot

import (
	"sync"

	"github.com/google/uuid"

	"github.com/printwatch/printwatch/pkg/logger"
	"github.com/printwatch/printwatch/pkg/models"
)

// ChangeHandler receives the new state and the dotted paths of the leaves
// that changed, so renderers can apply minimal patches. Handlers run
// synchronously on the publishing goroutine and must not block.
type ChangeHandler func(state models.DeviceState, changed []string)

// Subscription identifies one registered handler. Go function values are
// not comparable, so unsubscription goes through this token instead of the
// callback itself.
type Subscription struct {
	deviceID string
	id       string
}

// Publisher owns the canonical DeviceState values. States stored here are
// never mutated in place; Publish replaces the whole value.
type Publisher struct {
	mu     sync.RWMutex
	states map[string]models.DeviceState
	subs   map[string]map[string]ChangeHandler
	logger logger.Logger
}

func NewPublisher(log logger.Logger) *Publisher {
	return &Publisher{
		states: make(map[string]models.DeviceState),
		subs:   make(map[string]map[string]ChangeHandler),
		logger: log,
	}
}

// Publish compares next to the stored state for its device. If any leaf
// differs it stores next and notifies subscribers; otherwise it is a no-op.
// Returns whether a change was published.
func (p *Publisher) Publish(next models.DeviceState) bool {
	if next.DeviceID == "" {
		return false
	}

	p.mu.Lock()

	var changed []string

	if prev, ok := p.states[next.DeviceID]; ok {
		changed = diffPaths(&prev, &next)
	} else {
		changed = diffPaths(&models.DeviceState{DeviceID: next.DeviceID}, &next)
	}

	if len(changed) == 0 {
		p.mu.Unlock()
		return false
	}

	stored := next.Clone()
	p.states[next.DeviceID] = stored

	handlers := make([]ChangeHandler, 0, len(p.subs[next.DeviceID]))
	for _, handler := range p.subs[next.DeviceID] {
		handlers = append(handlers, handler)
	}

	p.mu.Unlock()

	p.logger.Debug().
		Str("device_id", next.DeviceID).
		Strs("changed", changed).
		Msg("Published device state change")

	for _, handler := range handlers {
		handler(stored.Clone(), changed)
	}

	return true
}

// Subscribe registers a change handler for one device and returns the
// token used to remove it. The subscriber is responsible for
// unsubscribing on teardown; no liveness detection is performed.
func (p *Publisher) Subscribe(deviceID string, handler ChangeHandler) Subscription {
	sub := Subscription{deviceID: deviceID, id: uuid.New().String()}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.subs[deviceID] == nil {
		p.subs[deviceID] = make(map[string]ChangeHandler)
	}

	p.subs[deviceID][sub.id] = handler

	return sub
}

// Unsubscribe removes a previously registered handler. Unknown tokens are
// a no-op.
func (p *Publisher) Unsubscribe(sub Subscription) {
	p.mu.Lock()
	defer p.mu.Unlock()

	handlers := p.subs[sub.deviceID]
	if handlers == nil {
		return
	}

	delete(handlers, sub.id)

	if len(handlers) == 0 {
		delete(p.subs, sub.deviceID)
	}
}

// Snapshot is a synchronous point-in-time read of one device's state.
func (p *Publisher) Snapshot(deviceID string) (models.DeviceState, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	state, ok := p.states[deviceID]
	if !ok {
		return models.DeviceState{}, false
	}

	return state.Clone(), true
}

// Snapshots returns the current state of every tracked device.
func (p *Publisher) Snapshots() []models.DeviceState {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]models.DeviceState, 0, len(p.states))
	for _, state := range p.states {
		out = append(out, state.Clone())
	}

	return out
}
