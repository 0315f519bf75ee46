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
	"sort"

	"github.com/printwatch/printwatch/pkg/models"
)

const (
	pathConnectionStatus = "connection_status"
	pathPrintStatus      = "print_status"
	pathDegraded         = "degraded"
	pathLastSeen         = "last_seen"
	pathCurrentJob       = "current_job"
	pathTemperatures     = "temperatures"
)

// diffPaths returns the dotted leaf paths that differ between two states,
// sorted for stable notification payloads. Leaf timestamps count as part
// of the leaf for temperatures and the job so a fresher reading with the
// same value still registers; the status enums compare by value only,
// with last_seen carrying the "device was observed" signal.
func diffPaths(prev, next *models.DeviceState) []string {
	var changed []string

	if prev.ConnectionStatus != next.ConnectionStatus {
		changed = append(changed, pathConnectionStatus)
	}

	if prev.PrintStatus != next.PrintStatus {
		changed = append(changed, pathPrintStatus)
	}

	if prev.Degraded != next.Degraded {
		changed = append(changed, pathDegraded)
	}

	if !prev.LastSeen.Equal(next.LastSeen) {
		changed = append(changed, pathLastSeen)
	}

	changed = append(changed, diffTemperatures(prev.Temperatures, next.Temperatures)...)
	changed = append(changed, diffJob(prev.CurrentJob, next.CurrentJob)...)

	sort.Strings(changed)

	return changed
}

func diffTemperatures(prev, next map[string]models.TemperatureReading) []string {
	var changed []string

	for name, reading := range next {
		old, ok := prev[name]
		if !ok || old.Current != reading.Current || old.Target != reading.Target ||
			!old.UpdatedAt.Equal(reading.UpdatedAt) {
			changed = append(changed, pathTemperatures+"."+name)
		}
	}

	for name := range prev {
		if _, ok := next[name]; !ok {
			changed = append(changed, pathTemperatures+"."+name)
		}
	}

	return changed
}

func diffJob(prev, next *models.JobStatus) []string {
	switch {
	case prev == nil && next == nil:
		return nil
	case prev == nil || next == nil:
		return []string{pathCurrentJob}
	}

	var changed []string

	if prev.Name != next.Name {
		changed = append(changed, pathCurrentJob+".name")
	}

	if prev.ProgressPercent != next.ProgressPercent {
		changed = append(changed, pathCurrentJob+".progress_percent")
	}

	if prev.RemainingSeconds != next.RemainingSeconds {
		changed = append(changed, pathCurrentJob+".remaining_seconds")
	}

	if len(changed) == 0 && !prev.UpdatedAt.Equal(next.UpdatedAt) {
		changed = append(changed, pathCurrentJob)
	}

	return changed
}
