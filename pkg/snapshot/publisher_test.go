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

package snapshot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printwatch/printwatch/pkg/logger"
	"github.com/printwatch/printwatch/pkg/models"
)

func baseState(deviceID string, seen time.Time) models.DeviceState {
	return models.DeviceState{
		DeviceID:            deviceID,
		ConnectionStatus:    models.ConnectionOnline,
		ConnectionUpdatedAt: seen,
		PrintStatus:         models.PrintPrinting,
		PrintUpdatedAt:      seen,
		Temperatures: map[string]models.TemperatureReading{
			"nozzle": {Current: 210, Target: 215, UpdatedAt: seen},
		},
		CurrentJob: &models.JobStatus{Name: "benchy.gcode", ProgressPercent: 10, UpdatedAt: seen},
		LastSeen:   seen,
	}
}

func TestPublisher_PublishNotifiesChangedPaths(t *testing.T) {
	pub := NewPublisher(logger.NewTestLogger())
	seen := time.Now()

	var (
		gotState   models.DeviceState
		gotChanged []string
		calls      int
	)

	sub := pub.Subscribe("p1", func(state models.DeviceState, changed []string) {
		gotState = state
		gotChanged = changed
		calls++
	})
	defer pub.Unsubscribe(sub)

	require.True(t, pub.Publish(baseState("p1", seen)))
	require.Equal(t, 1, calls)
	assert.Contains(t, gotChanged, "connection_status")
	assert.Contains(t, gotChanged, "temperatures.nozzle")
	assert.Contains(t, gotChanged, "current_job")

	// Identical state publishes nothing.
	require.False(t, pub.Publish(baseState("p1", seen)))
	require.Equal(t, 1, calls)

	// Progress change notifies only the leaves that moved.
	next := baseState("p1", seen)
	next.CurrentJob.ProgressPercent = 20

	require.True(t, pub.Publish(next))
	require.Equal(t, 2, calls)
	assert.Equal(t, []string{"current_job.progress_percent"}, gotChanged)
	assert.InDelta(t, 20, gotState.CurrentJob.ProgressPercent, 0.001)
}

func TestPublisher_LastSeenIsALeaf(t *testing.T) {
	pub := NewPublisher(logger.NewTestLogger())
	seen := time.Now()

	var gotChanged []string

	pub.Subscribe("p1", func(_ models.DeviceState, changed []string) {
		gotChanged = changed
	})

	require.True(t, pub.Publish(baseState("p1", seen)))

	// A heartbeat that only advances last_seen still notifies: silence vs
	// liveness is information renderers display.
	next := baseState("p1", seen)
	next.LastSeen = seen.Add(time.Second)

	require.True(t, pub.Publish(next))
	assert.Equal(t, []string{"last_seen"}, gotChanged)
}

func TestPublisher_SnapshotIsIsolated(t *testing.T) {
	pub := NewPublisher(logger.NewTestLogger())
	seen := time.Now()

	require.True(t, pub.Publish(baseState("p1", seen)))

	snap, ok := pub.Snapshot("p1")
	require.True(t, ok)

	// Mutating the returned snapshot must not leak into the stored state.
	snap.Temperatures["nozzle"] = models.TemperatureReading{Current: 0}
	snap.CurrentJob.ProgressPercent = 99

	again, ok := pub.Snapshot("p1")
	require.True(t, ok)
	assert.InDelta(t, 210, again.Temperatures["nozzle"].Current, 0.001)
	assert.InDelta(t, 10, again.CurrentJob.ProgressPercent, 0.001)
}

func TestPublisher_SnapshotUnknownDevice(t *testing.T) {
	pub := NewPublisher(logger.NewTestLogger())

	_, ok := pub.Snapshot("ghost")
	assert.False(t, ok)
	assert.Empty(t, pub.Snapshots())
}

func TestPublisher_Unsubscribe(t *testing.T) {
	pub := NewPublisher(logger.NewTestLogger())
	seen := time.Now()

	calls := 0
	sub := pub.Subscribe("p1", func(models.DeviceState, []string) { calls++ })

	require.True(t, pub.Publish(baseState("p1", seen)))
	require.Equal(t, 1, calls)

	pub.Unsubscribe(sub)
	pub.Unsubscribe(sub) // duplicate unsubscribe is a no-op

	next := baseState("p1", seen)
	next.PrintStatus = models.PrintPaused
	require.True(t, pub.Publish(next))
	assert.Equal(t, 1, calls)
}

func TestPublisher_SubscribersAreperDevice(t *testing.T) {
	pub := NewPublisher(logger.NewTestLogger())
	seen := time.Now()

	p1Calls, p2Calls := 0, 0
	pub.Subscribe("p1", func(models.DeviceState, []string) { p1Calls++ })
	pub.Subscribe("p2", func(models.DeviceState, []string) { p2Calls++ })

	require.True(t, pub.Publish(baseState("p1", seen)))

	assert.Equal(t, 1, p1Calls)
	assert.Equal(t, 0, p2Calls)
}
