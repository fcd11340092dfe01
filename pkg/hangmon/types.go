/*
 * Copyright 2025 Carver Automation Corporation.
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

package hangmon

import (
	"time"

	"github.com/carverauto/hangwatch/pkg/logger"
	"github.com/carverauto/hangwatch/pkg/models"
	"github.com/carverauto/hangwatch/pkg/sampler"
)

// Config holds the monitor worker configuration.
type Config struct {
	// Enabled gates hang detection globally. When false, activity and wait
	// notifications are dropped at the handle and no hang checkpoints run;
	// registration, unregistration, and sampling still work.
	Enabled bool `json:"enabled"`
	// CheckInterval is the hang checkpoint period. Defaults to 100ms.
	CheckInterval models.Duration `json:"check_interval,omitempty"`
	Logging       *logger.Config  `json:"logging,omitempty"`
}

// ControlKind distinguishes control messages from the supervising process.
type ControlKind int

const (
	// ControlToggleSampler flips the sampling profiler on or off. Turning
	// it off drains the sample buffer into one profile artifact.
	ControlToggleSampler ControlKind = iota
	// ControlExit signals every currently-registered component to exit and
	// marks the worker as shutting down. It does not stop the worker loop.
	ControlExit
)

// ControlMessage is one inbound message on the control channel.
type ControlMessage struct {
	Kind ControlKind
	// Rate and MaxDuration configure sampling when Kind is
	// ControlToggleSampler and sampling is currently off.
	Rate        time.Duration
	MaxDuration time.Duration
}

// eventKind discriminates inbound component events.
type eventKind int

const (
	eventRegister eventKind = iota
	eventUnregister
	eventNotifyActivity
	eventNotifyWait
)

// componentEvent is one tagged message on the shared inbound queue.
type componentEvent struct {
	kind eventKind
	id   models.ComponentID

	// register payload
	sampler          sampler.Sampler
	name             string
	transientTimeout time.Duration
	permanentTimeout time.Duration
	exitSignal       ExitSignaler

	// notifyActivity payload
	annotation string
}

// monitoredComponent is one registry entry, owned exclusively by the
// worker goroutine.
type monitoredComponent struct {
	sampler            sampler.Sampler
	lastActivity       time.Time
	lastAnnotation     string
	transientTimeout   time.Duration
	permanentTimeout   time.Duration
	sentTransientAlert bool
	sentPermanentAlert bool
	isWaiting          bool
	exitSignal         ExitSignaler
}
