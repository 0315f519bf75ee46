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

package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printwatch/printwatch/pkg/logger"
	"github.com/printwatch/printwatch/pkg/models"
)

func newTestClient(t *testing.T, deviceID string, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{Endpoints: map[string]string{deviceID: server.URL}}, logger.NewTestLogger())
	require.NoError(t, err)

	return client
}

func TestClient_FetchDeviceStatus(t *testing.T) {
	client := newTestClient(t, "p1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"connection": "online",
			"print_state": "printing",
			"temperatures": {
				"nozzle": {"current": 210.4, "target": 215},
				"bed": {"current": 60.1, "target": 60}
			},
			"job": {"name": "benchy.gcode", "progress": 42.5, "remaining_seconds": 1800},
			"timestamp": "2026-03-01T12:00:00Z"
		}`))
	})

	frag, err := client.FetchDeviceStatus(context.Background(), "p1")
	require.NoError(t, err)

	wantTime := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "p1", frag.DeviceID)
	assert.Equal(t, wantTime, frag.ObservedAt)

	require.NotNil(t, frag.Connection)
	assert.Equal(t, models.ConnectionOnline, frag.Connection.Status)
	assert.Equal(t, wantTime, frag.Connection.UpdatedAt)

	require.NotNil(t, frag.Print)
	assert.Equal(t, models.PrintPrinting, frag.Print.Status)

	require.Len(t, frag.Temperatures, 2)
	assert.InDelta(t, 210.4, frag.Temperatures["nozzle"].Current, 0.001)

	require.NotNil(t, frag.Job)
	assert.Equal(t, "benchy.gcode", frag.Job.Name)
	assert.InDelta(t, 42.5, frag.Job.ProgressPercent, 0.001)
	assert.EqualValues(t, 1800, frag.Job.RemainingSeconds)
}

func TestClient_PartialStatusDocument(t *testing.T) {
	client := newTestClient(t, "p1", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"temperatures": {"nozzle": {"current": 180, "target": 0}}}`))
	})

	frag, err := client.FetchDeviceStatus(context.Background(), "p1")
	require.NoError(t, err)

	assert.Nil(t, frag.Connection)
	assert.Nil(t, frag.Print)
	assert.Nil(t, frag.Job)
	require.Len(t, frag.Temperatures, 1)

	// Endpoint had no timestamp: leaves get the local receive time.
	assert.False(t, frag.ObservedAt.IsZero())
	assert.Equal(t, frag.ObservedAt, frag.Temperatures["nozzle"].UpdatedAt)
}

func TestClient_HTTPError(t *testing.T) {
	client := newTestClient(t, "p1", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := client.FetchDeviceStatus(context.Background(), "p1")
	require.ErrorIs(t, err, ErrUnexpectedStatus)
}

func TestClient_MalformedBody(t *testing.T) {
	client := newTestClient(t, "p1", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})

	_, err := client.FetchDeviceStatus(context.Background(), "p1")
	require.Error(t, err)
}

func TestClient_UnknownDevice(t *testing.T) {
	client, err := NewClient(Config{Endpoints: map[string]string{}}, logger.NewTestLogger())
	require.NoError(t, err)

	_, err = client.FetchDeviceStatus(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrUnknownDevice)
}

func TestClient_ContextTimeout(t *testing.T) {
	client := newTestClient(t, "p1", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.FetchDeviceStatus(ctx, "p1")

	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestParseStatuses(t *testing.T) {
	assert.Equal(t, models.ConnectionOnline, parseConnectionStatus("connected"))
	assert.Equal(t, models.ConnectionOffline, parseConnectionStatus("disconnected"))
	assert.Equal(t, models.ConnectionUnknown, parseConnectionStatus("weird"))

	assert.Equal(t, models.PrintPrinting, parsePrintStatus("busy"))
	assert.Equal(t, models.PrintIdle, parsePrintStatus(""))
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, (&Config{}).Validate())
	assert.ErrorIs(t, (&Config{Endpoints: map[string]string{"p1": ""}}).Validate(), ErrEmptyEndpoint)
}
