package models

import (
	"time"
)

// ConnectionFragment updates the connection status leaf.
type ConnectionFragment struct {
	Status    ConnectionStatus `json:"status"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// PrintFragment updates the print status leaf.
type PrintFragment struct {
	Status    PrintStatus `json:"status"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// JobFragment updates the current job leaf group.
type JobFragment struct {
	Name             string    `json:"name"`
	ProgressPercent  float64   `json:"progress_percent"`
	RemainingSeconds int64     `json:"remaining_seconds"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Fragment is a partial state update touching a subset of DeviceState
// leaves. Nil leaves are absent and carried over unchanged by the merger.
// Every present leaf must carry its own update timestamp; a fragment with
// an untimestamped leaf fails validation and is dropped.
//
// ObservedAt records when the source actually observed the device and is
// the only input that advances LastSeen. It is optional: a synthesized
// fragment (such as the degraded marker a failing poll session publishes)
// leaves it zero so silence remains visible to the staleness watchdog.
type Fragment struct {
	DeviceID     string                        `json:"device_id"`
	Connection   *ConnectionFragment           `json:"connection,omitempty"`
	Print        *PrintFragment                `json:"print,omitempty"`
	Temperatures map[string]TemperatureReading `json:"temperatures,omitempty"`
	Job          *JobFragment                  `json:"job,omitempty"`
	Degraded     *bool                         `json:"degraded,omitempty"`
	ObservedAt   time.Time                     `json:"observed_at,omitempty"`
}

// Empty reports whether the fragment touches no leaf at all.
func (f *Fragment) Empty() bool {
	return f.Connection == nil && f.Print == nil && len(f.Temperatures) == 0 &&
		f.Job == nil && f.Degraded == nil
}
