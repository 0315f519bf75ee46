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
	"context"
	"time"

	"github.com/printwatch/printwatch/pkg/models"
)

// StatusFetcher retrieves the current status of one device. Implementations
// must honor ctx cancellation and deadlines; every call made by a session
// carries a deadline strictly shorter than the poll interval.
type StatusFetcher interface {
	FetchDeviceStatus(ctx context.Context, deviceID string) (*models.Fragment, error)
}

// Sink is the merge+publish path a session feeds. state.Pipeline satisfies
// this.
type Sink interface {
	Apply(frag models.Fragment) error
}

// Clock abstracts time-related operations.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}
