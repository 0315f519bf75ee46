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

package monitor

import (
	"time"

	"github.com/printwatch/printwatch/pkg/models"
)

const (
	defaultPollInterval     = 5 * time.Second
	defaultFetchTimeout     = 2 * time.Second
	defaultFailureThreshold = 5
	defaultBackoffInitial   = time.Second
	defaultBackoffMax       = 30 * time.Second
)

// SessionConfig controls one device's poll loop.
type SessionConfig struct {
	PollInterval     models.Duration `json:"poll_interval"`
	FetchTimeout     models.Duration `json:"fetch_timeout"`
	FailureThreshold int             `json:"failure_threshold"`
	BackoffInitial   models.Duration `json:"backoff_initial"`
	BackoffMax       models.Duration `json:"backoff_max"`
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.PollInterval == 0 {
		c.PollInterval = models.Duration(defaultPollInterval)
	}

	if c.FetchTimeout == 0 {
		timeout := defaultFetchTimeout
		if interval := time.Duration(c.PollInterval); timeout >= interval {
			timeout = interval / 2
		}

		c.FetchTimeout = models.Duration(timeout)
	}

	if c.FailureThreshold == 0 {
		c.FailureThreshold = defaultFailureThreshold
	}

	if c.BackoffInitial == 0 {
		c.BackoffInitial = models.Duration(defaultBackoffInitial)
	}

	if c.BackoffMax == 0 {
		c.BackoffMax = models.Duration(defaultBackoffMax)
	}

	return c
}

// Validate enforces the timing contract: the fetch timeout must be
// strictly shorter than the poll interval so a stop request always
// completes within one bounded cycle.
func (c SessionConfig) Validate() error {
	resolved := c.withDefaults()

	if time.Duration(resolved.FetchTimeout) >= time.Duration(resolved.PollInterval) {
		return ErrTimeoutNotBelowInterval
	}

	if resolved.FailureThreshold < 0 {
		return ErrInvalidFailureThreshold
	}

	if resolved.BackoffInitial <= 0 || resolved.BackoffMax < resolved.BackoffInitial {
		return ErrInvalidBackoff
	}

	return nil
}

// merged overlays the non-zero fields of override onto c.
func (c SessionConfig) merged(override SessionConfig) SessionConfig {
	if override.PollInterval != 0 {
		c.PollInterval = override.PollInterval
	}

	if override.FetchTimeout != 0 {
		c.FetchTimeout = override.FetchTimeout
	}

	if override.FailureThreshold != 0 {
		c.FailureThreshold = override.FailureThreshold
	}

	if override.BackoffInitial != 0 {
		c.BackoffInitial = override.BackoffInitial
	}

	if override.BackoffMax != 0 {
		c.BackoffMax = override.BackoffMax
	}

	return c
}
