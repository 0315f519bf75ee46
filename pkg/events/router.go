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

// Package events fans inbound push events out to bounded per-device
// queues feeding the merge pipeline, decoupling inbound event cadence
// from per-device processing cadence.
package events

import (
	"context"
	"sync"

	"github.com/printwatch/printwatch/pkg/logger"
	"github.com/printwatch/printwatch/pkg/models"
)

// Sink is the merge+publish path the router feeds. state.Pipeline
// satisfies this.
type Sink interface {
	Apply(frag models.Fragment) error
}

// Config controls router queueing.
type Config struct {
	// QueueCapacity bounds each per-device queue. Small by design: push
	// events are full observations, so only the most recent few matter.
	QueueCapacity int `json:"queue_capacity"`
}

func (c *Config) withDefaults() Config {
	out := *c

	if out.QueueCapacity == 0 {
		out.QueueCapacity = defaultQueueCapacity
	}

	return out
}

func (c *Config) Validate() error {
	resolved := c.withDefaults()

	if resolved.QueueCapacity < minQueueCapacity || resolved.QueueCapacity > maxQueueCapacity {
		return ErrInvalidCapacity
	}

	return nil
}

const (
	minQueueCapacity     = 1
	maxQueueCapacity     = 4
	defaultQueueCapacity = 2
)

// Router consumes a single inbound stream of push events and dispatches
// each to a lazily created bounded queue for its device. A full queue
// drops its oldest entry (most-recent-wins) rather than blocking the
// inbound stream. Devices without an active poll session flow through
// exactly the same path, so passive viewers still see pushed updates;
// the router never starts a poll loop.
type Router struct {
	sink   Sink
	cfg    Config
	logger logger.Logger

	mu     sync.Mutex
	queues map[string]*deviceQueue
	wg     sync.WaitGroup
}

func NewRouter(sink Sink, cfg Config, log logger.Logger) (*Router, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Router{
		sink:   sink,
		cfg:    cfg.withDefaults(),
		logger: log,
		queues: make(map[string]*deviceQueue),
	}, nil
}

// Run dispatches until ctx is canceled or the inbound channel closes,
// then tears down the per-device consumers and waits for them.
func (r *Router) Run(ctx context.Context, inbound <-chan models.PushEvent) {
	r.logger.Info().Int("queue_capacity", r.cfg.QueueCapacity).Msg("Push event router started")

	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		r.wg.Wait()
		r.logger.Info().Msg("Push event router stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-inbound:
			if !ok {
				return
			}

			r.dispatch(ctx, event)
		}
	}
}

func (r *Router) dispatch(ctx context.Context, event models.PushEvent) {
	if event.DeviceID == "" && event.Fragment.DeviceID == "" {
		r.logger.Warn().Msg("Dropping push event without device id")
		return
	}

	frag := event.Normalized()

	queue := r.queueFor(ctx, frag.DeviceID)
	if dropped := queue.push(frag); dropped {
		r.logger.Debug().
			Str("device_id", frag.DeviceID).
			Msg("Push queue full, dropped oldest event")
	}
}

func (r *Router) queueFor(ctx context.Context, deviceID string) *deviceQueue {
	r.mu.Lock()
	defer r.mu.Unlock()

	queue, ok := r.queues[deviceID]
	if ok {
		return queue
	}

	queue = newDeviceQueue(r.cfg.QueueCapacity)
	r.queues[deviceID] = queue

	r.wg.Add(1)

	go func() {
		defer r.wg.Done()
		r.consume(ctx, deviceID, queue)
	}()

	return queue
}

// consume drains one device's queue and applies each fragment to the
// pipeline.
func (r *Router) consume(ctx context.Context, deviceID string, queue *deviceQueue) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-queue.ready:
			for {
				frag, ok := queue.pop()
				if !ok {
					break
				}

				if err := r.sink.Apply(frag); err != nil {
					r.logger.Warn().
						Err(err).
						Str("device_id", deviceID).
						Msg("Dropped invalid push fragment")
				}
			}
		}
	}
}

// deviceQueue is a bounded FIFO with drop-oldest overflow. ready carries
// at most one pending wakeup for the consumer.
type deviceQueue struct {
	mu       sync.Mutex
	items    []models.Fragment
	capacity int
	ready    chan struct{}
}

func newDeviceQueue(capacity int) *deviceQueue {
	return &deviceQueue{
		items:    make([]models.Fragment, 0, capacity),
		capacity: capacity,
		ready:    make(chan struct{}, 1),
	}
}

// push enqueues, evicting the oldest entry when full. Reports whether an
// eviction happened.
func (q *deviceQueue) push(frag models.Fragment) bool {
	q.mu.Lock()

	dropped := false

	if len(q.items) == q.capacity {
		copy(q.items, q.items[1:])
		q.items = q.items[:len(q.items)-1]
		dropped = true
	}

	q.items = append(q.items, frag)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}

	return dropped
}

func (q *deviceQueue) pop() (models.Fragment, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return models.Fragment{}, false
	}

	frag := q.items[0]
	copy(q.items, q.items[1:])
	q.items = q.items[:len(q.items)-1]

	return frag, true
}

func (q *deviceQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}
