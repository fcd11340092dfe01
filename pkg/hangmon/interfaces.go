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

//go:generate mockgen -destination=mock_hangmon.go -package=hangmon github.com/carverauto/hangwatch/pkg/hangmon Clock,Timer,ExitSignaler

import "time"

// Clock abstracts time-related operations.
type Clock interface {
	Now() time.Time
	Timer(d time.Duration) Timer
}

// Timer abstracts a one-shot timer.
type Timer interface {
	Chan() <-chan time.Time
	Stop() bool
}

// ExitSignaler tells a monitored component to terminate. Implementations
// must tolerate being signalled more than once.
type ExitSignaler interface {
	SignalToExit()
}
