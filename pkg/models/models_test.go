package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuration_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Duration
		wantErr  bool
	}{
		{name: "string duration", input: `"5s"`, expected: Duration(5 * time.Second)},
		{name: "numeric duration (nanoseconds)", input: `5000000000`, expected: Duration(5 * time.Second)},
		{name: "complex duration string", input: `"1h30m45s"`, expected: Duration(1*time.Hour + 30*time.Minute + 45*time.Second)},
		{name: "invalid duration string", input: `"invalid"`, wantErr: true},
		{name: "invalid type", input: `true`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration

			err := json.Unmarshal([]byte(tt.input), &d)
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, d)
		})
	}
}

func TestDeviceState_Clone(t *testing.T) {
	now := time.Now()
	state := DeviceState{
		DeviceID:         "p1",
		ConnectionStatus: ConnectionOnline,
		Temperatures: map[string]TemperatureReading{
			"nozzle": {Current: 210.5, Target: 215, UpdatedAt: now},
		},
		CurrentJob: &JobStatus{Name: "benchy.gcode", ProgressPercent: 42, UpdatedAt: now},
		LastSeen:   now,
	}

	clone := state.Clone()

	clone.Temperatures["nozzle"] = TemperatureReading{Current: 0, Target: 0, UpdatedAt: now}
	clone.CurrentJob.ProgressPercent = 99

	assert.InDelta(t, 210.5, state.Temperatures["nozzle"].Current, 0.001)
	assert.InDelta(t, 42, state.CurrentJob.ProgressPercent, 0.001)
}

func TestPushEvent_Normalized(t *testing.T) {
	eventTime := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	leafTime := eventTime.Add(-2 * time.Second)

	event := PushEvent{
		DeviceID:  "p1",
		UpdatedAt: eventTime,
		Fragment: Fragment{
			Connection: &ConnectionFragment{Status: ConnectionOnline},
			Print:      &PrintFragment{Status: PrintPrinting, UpdatedAt: leafTime},
			Temperatures: map[string]TemperatureReading{
				"bed": {Current: 60, Target: 60},
			},
		},
	}

	frag := event.Normalized()

	assert.Equal(t, "p1", frag.DeviceID)
	assert.Equal(t, eventTime, frag.ObservedAt)
	assert.Equal(t, eventTime, frag.Connection.UpdatedAt)
	// Leaf timestamps provided by the transport are left alone.
	assert.Equal(t, leafTime, frag.Print.UpdatedAt)
	assert.Equal(t, eventTime, frag.Temperatures["bed"].UpdatedAt)

	// The original event is not mutated.
	assert.True(t, event.Fragment.Connection.UpdatedAt.IsZero())
	assert.True(t, event.Fragment.Temperatures["bed"].UpdatedAt.IsZero())
}

func TestFragment_Empty(t *testing.T) {
	assert.True(t, (&Fragment{DeviceID: "p1", ObservedAt: time.Now()}).Empty())
	assert.False(t, (&Fragment{Print: &PrintFragment{Status: PrintIdle}}).Empty())
}
