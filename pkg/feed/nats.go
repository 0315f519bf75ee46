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

package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/printwatch/printwatch/pkg/logger"
	"github.com/printwatch/printwatch/pkg/models"
)

const (
	defaultMaxPullMessages = 10
	defaultMaxRetries      = 3
	fetchRetryDelay        = time.Second

	// Fetch is not context-aware, so a pull can outlive cancellation by
	// up to this long. Kept well under the daemon's shutdown budget.
	defaultPullExpiry = 5 * time.Second
)

// pullConsumer is the slice of jetstream.Consumer the feed uses.
type pullConsumer interface {
	Fetch(batch int, opts ...jetstream.FetchOpt) (jetstream.MessageBatch, error)
}

// NATSConfig describes a JetStream pull consumer that delivers push events.
type NATSConfig struct {
	URL      string `json:"url"`
	Stream   string `json:"stream"`
	Consumer string `json:"consumer"`
	Subject  string `json:"subject,omitempty"`
}

func (c *NATSConfig) Validate() error {
	if c.URL == "" {
		return ErrMissingURL
	}

	if c.Stream == "" {
		return ErrMissingStream
	}

	if c.Consumer == "" {
		return ErrMissingConsumer
	}

	return nil
}

// NATSFeed pulls push events from a JetStream stream and forwards them to
// the router's inbound channel. Messages that fail to decode are retried
// up to defaultMaxRetries deliveries, then acknowledged and dropped.
type NATSFeed struct {
	cfg      NATSConfig
	conn     *nats.Conn
	consumer pullConsumer
	out      chan<- models.PushEvent
	logger   logger.Logger
}

// NewNATSFeed connects to the NATS server and binds the durable consumer,
// creating it when it does not exist yet.
func NewNATSFeed(ctx context.Context, cfg NATSConfig, out chan<- models.PushEvent, log logger.Logger) (*NATSFeed, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	conn, err := nats.Connect(cfg.URL, nats.Name("printwatch-feed"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	consumer, err := js.Consumer(ctx, cfg.Stream, cfg.Consumer)
	if err != nil {
		consumerCfg := jetstream.ConsumerConfig{
			Durable:       cfg.Consumer,
			AckPolicy:     jetstream.AckExplicitPolicy,
			AckWait:       30 * time.Second,
			MaxDeliver:    defaultMaxRetries,
			MaxAckPending: 1000,
		}
		if cfg.Subject != "" {
			consumerCfg.FilterSubject = cfg.Subject
		}

		consumer, err = js.CreateConsumer(ctx, cfg.Stream, consumerCfg)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to create consumer: %w", err)
		}
	}

	return &NATSFeed{
		cfg:      cfg,
		conn:     conn,
		consumer: consumer,
		out:      out,
		logger:   log,
	}, nil
}

// Run fetches and forwards messages until the context is cancelled.
func (f *NATSFeed) Run(ctx context.Context) {
	f.logger.Info().
		Str("stream", f.cfg.Stream).
		Str("consumer", f.cfg.Consumer).
		Msg("Starting NATS push feed")

	for {
		select {
		case <-ctx.Done():
			f.logger.Info().Msg("Stopping NATS push feed")
			return
		default:
			msgs, err := f.consumer.Fetch(defaultMaxPullMessages, jetstream.FetchMaxWait(defaultPullExpiry))
			if err != nil {
				f.logger.Error().Err(err).Msg("Failed to fetch messages")

				if !sleep(ctx, fetchRetryDelay) {
					return
				}

				continue
			}

			for msg := range msgs.Messages() {
				f.handleMessage(ctx, msg)
			}

			if fetchErr := msgs.Error(); fetchErr != nil {
				f.logger.Error().Err(fetchErr).Msg("Fetch error")
			}
		}
	}
}

func (f *NATSFeed) handleMessage(ctx context.Context, msg jetstream.Msg) {
	ev, err := decodeEvent(msg.Data())
	if err != nil {
		metadata, _ := msg.Metadata()

		f.logger.Warn().
			Err(err).
			Str("subject", msg.Subject()).
			Msg("Failed to decode push event")

		if metadata != nil && metadata.NumDelivered >= defaultMaxRetries {
			_ = msg.Ack()
			return
		}

		_ = msg.Nak()

		return
	}

	select {
	case f.out <- ev:
		_ = msg.Ack()
	case <-ctx.Done():
		_ = msg.Nak()
	}
}

// Close drains the NATS connection.
func (f *NATSFeed) Close() {
	if err := f.conn.Drain(); err != nil {
		f.logger.Warn().Err(err).Msg("Failed to drain NATS connection")
	}
}
