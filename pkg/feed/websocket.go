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
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/printwatch/printwatch/pkg/logger"
	"github.com/printwatch/printwatch/pkg/models"
)

const (
	reconnectInitial = time.Second
	reconnectMax     = 30 * time.Second
	pingInterval     = 30 * time.Second
	pongWait         = 60 * time.Second
	writeWait        = 10 * time.Second
)

// WebSocketConfig describes a WebSocket endpoint that streams push events
// as JSON text messages.
type WebSocketConfig struct {
	URL    string `json:"url"`
	APIKey string `json:"api_key,omitempty"`
}

func (c *WebSocketConfig) Validate() error {
	if c.URL == "" {
		return ErrMissingURL
	}

	return nil
}

// WebSocketFeed maintains a connection to a push event stream, decoding
// each message and forwarding it to the router's inbound channel. Lost
// connections are re-dialed with capped exponential backoff.
type WebSocketFeed struct {
	cfg    WebSocketConfig
	out    chan<- models.PushEvent
	logger logger.Logger
}

func NewWebSocketFeed(cfg WebSocketConfig, out chan<- models.PushEvent, log logger.Logger) (*WebSocketFeed, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &WebSocketFeed{cfg: cfg, out: out, logger: log}, nil
}

// Run dials and reads until the context is cancelled.
func (f *WebSocketFeed) Run(ctx context.Context) {
	backoff := reconnectInitial

	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := f.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}

			f.logger.Warn().
				Err(err).
				Str("url", f.cfg.URL).
				Dur("retry_in", backoff).
				Msg("WebSocket dial failed")

			if !sleep(ctx, backoff) {
				return
			}

			backoff = nextBackoff(backoff)

			continue
		}

		f.logger.Info().Str("url", f.cfg.URL).Msg("WebSocket feed connected")

		backoff = reconnectInitial

		f.readLoop(ctx, conn)

		if ctx.Err() != nil {
			return
		}

		f.logger.Info().Str("url", f.cfg.URL).Msg("WebSocket feed disconnected, reconnecting")
	}
}

func (f *WebSocketFeed) dial(ctx context.Context) (*websocket.Conn, error) {
	var headers http.Header
	if f.cfg.APIKey != "" {
		headers = http.Header{"X-API-Key": []string{f.cfg.APIKey}}
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, f.cfg.URL, headers)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	return conn, err
}

// readLoop reads messages until the connection drops or the context is
// cancelled. A companion goroutine sends pings and closes the connection
// on cancellation so that the blocking read returns promptly.
func (f *WebSocketFeed) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	defer close(done)

	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-ctx.Done():
				conn.Close()
				return
			case <-done:
				return
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				f.logger.Warn().Err(err).Msg("WebSocket read failed")
			}

			return
		}

		ev, err := decodeEvent(data)
		if err != nil {
			f.logger.Warn().Err(err).Msg("Discarding undecodable push event")
			continue
		}

		select {
		case f.out <- ev:
		case <-ctx.Done():
			return
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > reconnectMax {
		return reconnectMax
	}

	return next
}
