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
	"fmt"
	"math"

	"github.com/printwatch/printwatch/pkg/models"
)

// ValidateFragment runs the schema/timestamp sanity check. A failing
// fragment is a data-quality problem, not a connectivity problem: callers
// drop it, log it, and leave their failure counters alone.
func ValidateFragment(frag *models.Fragment) error {
	if frag.DeviceID == "" {
		return ErrMissingDeviceID
	}

	if frag.Empty() {
		return ErrEmptyFragment
	}

	if frag.Connection != nil {
		if frag.Connection.UpdatedAt.IsZero() {
			return fmt.Errorf("%w: connection", ErrMissingLeafTimestamp)
		}

		if !validConnectionStatus(frag.Connection.Status) {
			return fmt.Errorf("%w: connection %q", ErrUnknownStatusValue, frag.Connection.Status)
		}
	}

	if frag.Print != nil {
		if frag.Print.UpdatedAt.IsZero() {
			return fmt.Errorf("%w: print", ErrMissingLeafTimestamp)
		}

		if !validPrintStatus(frag.Print.Status) {
			return fmt.Errorf("%w: print %q", ErrUnknownStatusValue, frag.Print.Status)
		}
	}

	for name, reading := range frag.Temperatures {
		if reading.UpdatedAt.IsZero() {
			return fmt.Errorf("%w: temperatures.%s", ErrMissingLeafTimestamp, name)
		}

		if !isFinite(reading.Current) || !isFinite(reading.Target) {
			return fmt.Errorf("%w: %s", ErrNonFiniteTemperature, name)
		}
	}

	if frag.Job != nil {
		if frag.Job.UpdatedAt.IsZero() {
			return fmt.Errorf("%w: job", ErrMissingLeafTimestamp)
		}

		if frag.Job.ProgressPercent < 0 || frag.Job.ProgressPercent > 100 {
			return fmt.Errorf("%w: %.2f", ErrProgressOutOfRange, frag.Job.ProgressPercent)
		}

		if frag.Job.RemainingSeconds < 0 {
			return ErrNegativeRemainingTime
		}
	}

	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func validConnectionStatus(s models.ConnectionStatus) bool {
	switch s {
	case models.ConnectionOnline, models.ConnectionOffline,
		models.ConnectionConnecting, models.ConnectionUnknown:
		return true
	default:
		return false
	}
}

func validPrintStatus(s models.PrintStatus) bool {
	switch s {
	case models.PrintIdle, models.PrintPrinting, models.PrintPaused, models.PrintError:
		return true
	default:
		return false
	}
}
