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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printwatch/printwatch/pkg/models"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// ts returns t0 shifted by the given number of seconds, so tests read like
// the timelines they model.
func ts(seconds int) time.Time {
	return t0.Add(time.Duration(seconds) * time.Second)
}

func tempFragment(deviceID, sensor string, current float64, at time.Time) models.Fragment {
	return models.Fragment{
		DeviceID: deviceID,
		Temperatures: map[string]models.TemperatureReading{
			sensor: {Current: current, Target: current, UpdatedAt: at},
		},
		ObservedAt: at,
	}
}

func TestMerge_StaleLeafDiscardedFreshLeafAccepted(t *testing.T) {
	// Scenario: nozzle stored at T10; a push fragment at T5 must not win,
	// a poll fragment at T15 must.
	current := Merge(models.DeviceState{}, tempFragment("p1", "nozzle", 210, ts(10)))
	require.InDelta(t, 210, current.Temperatures["nozzle"].Current, 0.001)

	afterStale := Merge(current, tempFragment("p1", "nozzle", 195, ts(5)))
	assert.InDelta(t, 210, afterStale.Temperatures["nozzle"].Current, 0.001)
	assert.Equal(t, ts(10), afterStale.Temperatures["nozzle"].UpdatedAt)

	afterFresh := Merge(afterStale, tempFragment("p1", "nozzle", 216, ts(15)))
	assert.InDelta(t, 216, afterFresh.Temperatures["nozzle"].Current, 0.001)
	assert.Equal(t, ts(15), afterFresh.Temperatures["nozzle"].UpdatedAt)
}

func TestMerge_OutOfOrderInvariance(t *testing.T) {
	fragments := []models.Fragment{
		tempFragment("p1", "nozzle", 200, ts(1)),
		tempFragment("p1", "nozzle", 205, ts(3)),
		tempFragment("p1", "nozzle", 210, ts(2)),
		{
			DeviceID:   "p1",
			Connection: &models.ConnectionFragment{Status: models.ConnectionOnline, UpdatedAt: ts(4)},
			ObservedAt: ts(4),
		},
		{
			DeviceID:   "p1",
			Connection: &models.ConnectionFragment{Status: models.ConnectionConnecting, UpdatedAt: ts(2)},
			ObservedAt: ts(2),
		},
	}

	// Apply in several orders; the per-leaf winners must be identical and
	// per-field updatedAt must end up at its maximum either way.
	orders := [][]int{
		{0, 1, 2, 3, 4},
		{4, 3, 2, 1, 0},
		{2, 0, 4, 1, 3},
	}

	for _, order := range orders {
		result := models.DeviceState{}
		for _, i := range order {
			result = Merge(result, fragments[i])
		}

		assert.InDelta(t, 205, result.Temperatures["nozzle"].Current, 0.001)
		assert.Equal(t, ts(3), result.Temperatures["nozzle"].UpdatedAt)
		assert.Equal(t, models.ConnectionOnline, result.ConnectionStatus)
		assert.Equal(t, ts(4), result.ConnectionUpdatedAt)
		assert.Equal(t, ts(4), result.LastSeen)
	}
}

func TestMerge_EqualTimestampWins(t *testing.T) {
	first := Merge(models.DeviceState{}, tempFragment("p1", "bed", 60, ts(10)))
	second := Merge(first, tempFragment("p1", "bed", 61, ts(10)))

	// Recency uses >=, so an equal timestamp overwrites.
	assert.InDelta(t, 61, second.Temperatures["bed"].Current, 0.001)
}

func TestMerge_AbsentFieldsCarryOver(t *testing.T) {
	current := Merge(models.DeviceState{}, models.Fragment{
		DeviceID:   "p1",
		Connection: &models.ConnectionFragment{Status: models.ConnectionOnline, UpdatedAt: ts(1)},
		Print:      &models.PrintFragment{Status: models.PrintPrinting, UpdatedAt: ts(1)},
		Job:        &models.JobFragment{Name: "benchy.gcode", ProgressPercent: 10, UpdatedAt: ts(1)},
		ObservedAt: ts(1),
	})

	next := Merge(current, tempFragment("p1", "nozzle", 210, ts(2)))

	assert.Equal(t, models.ConnectionOnline, next.ConnectionStatus)
	assert.Equal(t, models.PrintPrinting, next.PrintStatus)
	require.NotNil(t, next.CurrentJob)
	assert.Equal(t, "benchy.gcode", next.CurrentJob.Name)
	assert.Equal(t, ts(2), next.LastSeen)
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	current := Merge(models.DeviceState{}, tempFragment("p1", "nozzle", 210, ts(1)))

	frag := tempFragment("p1", "bed", 60, ts(2))
	next := Merge(current, frag)

	next.Temperatures["nozzle"] = models.TemperatureReading{Current: 0, UpdatedAt: ts(9)}

	assert.InDelta(t, 210, current.Temperatures["nozzle"].Current, 0.001)
	assert.NotContains(t, current.Temperatures, "bed")
	assert.InDelta(t, 60, frag.Temperatures["bed"].Current, 0.001)
}

func TestMerge_DegradedFragmentKeepsLastSeen(t *testing.T) {
	current := Merge(models.DeviceState{}, tempFragment("p1", "nozzle", 210, ts(1)))

	degraded := true
	next := Merge(current, models.Fragment{
		DeviceID:   "p1",
		Connection: &models.ConnectionFragment{Status: models.ConnectionUnknown, UpdatedAt: ts(5)},
		Degraded:   &degraded,
		// No ObservedAt: the device was not actually observed.
	})

	assert.Equal(t, models.ConnectionUnknown, next.ConnectionStatus)
	assert.True(t, next.Degraded)
	assert.Equal(t, ts(1), next.LastSeen)
}

func TestMerge_OlderJobFragmentDiscarded(t *testing.T) {
	current := Merge(models.DeviceState{}, models.Fragment{
		DeviceID:   "p1",
		Job:        &models.JobFragment{Name: "benchy.gcode", ProgressPercent: 50, UpdatedAt: ts(10)},
		ObservedAt: ts(10),
	})

	next := Merge(current, models.Fragment{
		DeviceID:   "p1",
		Job:        &models.JobFragment{Name: "benchy.gcode", ProgressPercent: 30, UpdatedAt: ts(7)},
		ObservedAt: ts(12),
	})

	assert.InDelta(t, 50, next.CurrentJob.ProgressPercent, 0.001)
	// The observation itself still counts for liveness.
	assert.Equal(t, ts(12), next.LastSeen)
}
