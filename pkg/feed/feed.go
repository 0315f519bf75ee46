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

// Package feed ingests push events from external transports and forwards
// them to the event router. Two transports are supported: a NATS JetStream
// pull consumer and a reconnecting WebSocket client.
package feed

import (
	"encoding/json"

	"github.com/printwatch/printwatch/pkg/models"
)

// decodeEvent parses a transport payload into a push event. Events without
// a device id are rejected here so that a malformed payload is handled at
// the transport boundary (ack/nak, reconnect) rather than being dropped
// silently by the router.
func decodeEvent(data []byte) (models.PushEvent, error) {
	var ev models.PushEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return models.PushEvent{}, err
	}

	if ev.DeviceID == "" {
		return models.PushEvent{}, ErrMissingDeviceID
	}

	return ev, nil
}
