package models

import (
	"time"
)

// PushEvent is one inbound push update as delivered by a feed transport.
// UpdatedAt is the event-level timestamp; Normalized stamps it onto any
// fragment leaf the transport left untimestamped so older gateways that
// only timestamp the envelope still merge correctly.
type PushEvent struct {
	ID        string    `json:"id,omitempty"`
	DeviceID  string    `json:"device_id"`
	Fragment  Fragment  `json:"fragment"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Normalized returns the event's fragment with the envelope device id and
// timestamp applied wherever the fragment itself is silent.
func (e *PushEvent) Normalized() Fragment {
	frag := e.Fragment

	if frag.DeviceID == "" {
		frag.DeviceID = e.DeviceID
	}

	if frag.ObservedAt.IsZero() {
		frag.ObservedAt = e.UpdatedAt
	}

	if frag.Connection != nil && frag.Connection.UpdatedAt.IsZero() {
		conn := *frag.Connection
		conn.UpdatedAt = e.UpdatedAt
		frag.Connection = &conn
	}

	if frag.Print != nil && frag.Print.UpdatedAt.IsZero() {
		print := *frag.Print
		print.UpdatedAt = e.UpdatedAt
		frag.Print = &print
	}

	if frag.Job != nil && frag.Job.UpdatedAt.IsZero() {
		job := *frag.Job
		job.UpdatedAt = e.UpdatedAt
		frag.Job = &job
	}

	if len(frag.Temperatures) > 0 {
		temps := make(map[string]TemperatureReading, len(frag.Temperatures))

		for name, reading := range frag.Temperatures {
			if reading.UpdatedAt.IsZero() {
				reading.UpdatedAt = e.UpdatedAt
			}

			temps[name] = reading
		}

		frag.Temperatures = temps
	}

	return frag
}
