package models

import (
	"time"
)

// ConnectionStatus describes reachability of a printer.
type ConnectionStatus string

const (
	ConnectionOnline     ConnectionStatus = "online"
	ConnectionOffline    ConnectionStatus = "offline"
	ConnectionConnecting ConnectionStatus = "connecting"
	ConnectionUnknown    ConnectionStatus = "unknown"
)

// PrintStatus describes what the printer is doing with its current job.
type PrintStatus string

const (
	PrintIdle     PrintStatus = "idle"
	PrintPrinting PrintStatus = "printing"
	PrintPaused   PrintStatus = "paused"
	PrintError    PrintStatus = "error"
)

// TemperatureReading is one sensor's current/target pair. UpdatedAt is the
// source-side observation time used for recency arbitration.
type TemperatureReading struct {
	Current   float64   `json:"current"`
	Target    float64   `json:"target"`
	UpdatedAt time.Time `json:"updated_at"`
}

// JobStatus describes the job currently on the printer.
type JobStatus struct {
	Name             string    `json:"name"`
	ProgressPercent  float64   `json:"progress_percent"`
	RemainingSeconds int64     `json:"remaining_seconds"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// DeviceState is the canonical snapshot for one printer. Every leaf carries
// its own update timestamp so fragments from independent sources (polling
// and push) can be arbitrated purely by recency. Values handed out by the
// publisher are treated as immutable; use Clone before deriving a new one.
type DeviceState struct {
	DeviceID            string                        `json:"device_id"`
	ConnectionStatus    ConnectionStatus              `json:"connection_status"`
	ConnectionUpdatedAt time.Time                     `json:"connection_updated_at"`
	PrintStatus         PrintStatus                   `json:"print_status"`
	PrintUpdatedAt      time.Time                     `json:"print_updated_at"`
	Temperatures        map[string]TemperatureReading `json:"temperatures,omitempty"`
	CurrentJob          *JobStatus                    `json:"current_job,omitempty"`
	LastSeen            time.Time                     `json:"last_seen"`
	Degraded            bool                          `json:"degraded"`
}

// Clone returns a deep copy so callers can derive a successor state without
// mutating the published value.
func (s *DeviceState) Clone() DeviceState {
	out := *s

	if s.Temperatures != nil {
		out.Temperatures = make(map[string]TemperatureReading, len(s.Temperatures))
		for name, reading := range s.Temperatures {
			out.Temperatures[name] = reading
		}
	}

	if s.CurrentJob != nil {
		job := *s.CurrentJob
		out.CurrentJob = &job
	}

	return out
}
