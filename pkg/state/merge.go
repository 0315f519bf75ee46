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

// Package state implements field-level merge-by-recency of device state
// fragments, the shared merge+publish pipeline, and the staleness
// watchdog.
package state

import (
	"github.com/printwatch/printwatch/pkg/models"
)

// Merge folds a fragment into the current state and returns a freshly
// constructed value; neither input is mutated. A leaf present in the
// fragment is accepted iff its timestamp is >= the stored leaf's
// timestamp — recency is the sole admissibility rule, no source wins by
// type. Stale leaves are discarded silently; absent leaves carry over.
func Merge(current models.DeviceState, frag models.Fragment) models.DeviceState {
	next := current.Clone()

	if next.DeviceID == "" {
		next.DeviceID = frag.DeviceID
	}

	if frag.Connection != nil && !frag.Connection.UpdatedAt.Before(next.ConnectionUpdatedAt) {
		next.ConnectionStatus = frag.Connection.Status
		next.ConnectionUpdatedAt = frag.Connection.UpdatedAt
	}

	if frag.Print != nil && !frag.Print.UpdatedAt.Before(next.PrintUpdatedAt) {
		next.PrintStatus = frag.Print.Status
		next.PrintUpdatedAt = frag.Print.UpdatedAt
	}

	if len(frag.Temperatures) > 0 {
		if next.Temperatures == nil {
			next.Temperatures = make(map[string]models.TemperatureReading, len(frag.Temperatures))
		}

		for name, reading := range frag.Temperatures {
			if old, ok := next.Temperatures[name]; ok && reading.UpdatedAt.Before(old.UpdatedAt) {
				continue
			}

			next.Temperatures[name] = reading
		}
	}

	if frag.Job != nil {
		if next.CurrentJob == nil || !frag.Job.UpdatedAt.Before(next.CurrentJob.UpdatedAt) {
			next.CurrentJob = &models.JobStatus{
				Name:             frag.Job.Name,
				ProgressPercent:  frag.Job.ProgressPercent,
				RemainingSeconds: frag.Job.RemainingSeconds,
				UpdatedAt:        frag.Job.UpdatedAt,
			}
		}
	}

	if frag.Degraded != nil {
		next.Degraded = *frag.Degraded
	}

	if frag.ObservedAt.After(next.LastSeen) {
		next.LastSeen = frag.ObservedAt
	}

	return next
}
