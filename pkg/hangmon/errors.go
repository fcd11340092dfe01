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

import "errors"

var (
	// ErrMonitorTerminated is the panic value raised when a handle tries to
	// enqueue to a monitor whose worker has already exited. The whole
	// monitoring subsystem is gone at that point; this is not a recoverable
	// per-call error.
	ErrMonitorTerminated = errors.New("hang monitor worker has terminated")

	// errAlreadyRegistered and errNotRegistered are programming-error
	// invariant violations; the worker panics on them rather than corrupt
	// its registry.
	errAlreadyRegistered = errors.New("component is already registered")
	errNotRegistered     = errors.New("component is not registered")
)
