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

// Package fetcher implements fetchDeviceStatus against per-device HTTP
// status endpoints.
package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/printwatch/printwatch/pkg/logger"
	"github.com/printwatch/printwatch/pkg/models"
)

// maxStatusBody caps how much of a status response is read; printer
// status documents are small and an unbounded read would let a broken
// endpoint stall a poll cycle's memory budget.
const maxStatusBody = 1 << 20

// Config maps device ids to their status endpoint URLs.
type Config struct {
	Endpoints map[string]string `json:"endpoints"`
}

func (c *Config) Validate() error {
	for deviceID, endpoint := range c.Endpoints {
		if endpoint == "" {
			return fmt.Errorf("%w: %s", ErrEmptyEndpoint, deviceID)
		}
	}

	return nil
}

// Client fetches device status over HTTP. Timeouts come from the caller's
// context; sessions always pass a deadline strictly shorter than their
// poll interval.
type Client struct {
	httpClient *http.Client
	endpoints  map[string]string
	logger     logger.Logger
}

func NewClient(cfg Config, log logger.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Client{
		httpClient: &http.Client{},
		endpoints:  cfg.Endpoints,
		logger:     log,
	}, nil
}

// statusResponse is the JSON document printer status endpoints return.
type statusResponse struct {
	Connection   string                     `json:"connection"`
	PrintState   string                     `json:"print_state"`
	Temperatures map[string]temperatureBody `json:"temperatures"`
	Job          *jobBody                   `json:"job"`
	Timestamp    time.Time                  `json:"timestamp"`
}

type temperatureBody struct {
	Current float64 `json:"current"`
	Target  float64 `json:"target"`
}

type jobBody struct {
	Name             string  `json:"name"`
	Progress         float64 `json:"progress"`
	RemainingSeconds int64   `json:"remaining_seconds"`
}

// FetchDeviceStatus implements monitor.StatusFetcher.
func (c *Client) FetchDeviceStatus(ctx context.Context, deviceID string) (*models.Fragment, error) {
	endpoint, ok := c.endpoints[deviceID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build status request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %d", ErrUnexpectedStatus, deviceID, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxStatusBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read status response: %w", err)
	}

	var status statusResponse
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("failed to decode status response: %w", err)
	}

	return c.toFragment(deviceID, &status), nil
}

// toFragment maps the wire document to a state fragment. The endpoint's
// own timestamp stamps every leaf; an endpoint that omits it gets the
// local receive time, which is the best recency signal available.
func (c *Client) toFragment(deviceID string, status *statusResponse) *models.Fragment {
	observed := status.Timestamp
	if observed.IsZero() {
		observed = time.Now()
	}

	frag := &models.Fragment{
		DeviceID:   deviceID,
		ObservedAt: observed,
	}

	if status.Connection != "" {
		frag.Connection = &models.ConnectionFragment{
			Status:    parseConnectionStatus(status.Connection),
			UpdatedAt: observed,
		}
	}

	if status.PrintState != "" {
		frag.Print = &models.PrintFragment{
			Status:    parsePrintStatus(status.PrintState),
			UpdatedAt: observed,
		}
	}

	if len(status.Temperatures) > 0 {
		frag.Temperatures = make(map[string]models.TemperatureReading, len(status.Temperatures))

		for name, reading := range status.Temperatures {
			frag.Temperatures[name] = models.TemperatureReading{
				Current:   reading.Current,
				Target:    reading.Target,
				UpdatedAt: observed,
			}
		}
	}

	if status.Job != nil {
		frag.Job = &models.JobFragment{
			Name:             status.Job.Name,
			ProgressPercent:  status.Job.Progress,
			RemainingSeconds: status.Job.RemainingSeconds,
			UpdatedAt:        observed,
		}
	}

	return frag
}

func parseConnectionStatus(s string) models.ConnectionStatus {
	switch s {
	case "online", "connected":
		return models.ConnectionOnline
	case "offline", "disconnected":
		return models.ConnectionOffline
	case "connecting":
		return models.ConnectionConnecting
	default:
		return models.ConnectionUnknown
	}
}

func parsePrintStatus(s string) models.PrintStatus {
	switch s {
	case "printing", "busy":
		return models.PrintPrinting
	case "paused":
		return models.PrintPaused
	case "error":
		return models.PrintError
	default:
		return models.PrintIdle
	}
}
