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

// Package sampler captures call stacks of monitored goroutines.
package sampler

import (
	"errors"

	"github.com/carverauto/hangwatch/pkg/models"
)

//go:generate mockgen -destination=mock_sampler.go -package=sampler github.com/carverauto/hangwatch/pkg/sampler Sampler

var (
	// ErrGoroutineNotFound means the sampled goroutine has exited or its
	// stack was not present in the runtime dump.
	ErrGoroutineNotFound = errors.New("goroutine not found in stack dump")
	// ErrStackTruncated means the runtime dump did not fit in the largest
	// buffer the sampler is willing to allocate.
	ErrStackTruncated = errors.New("stack dump truncated")
)

// Sampler captures the current call stack of one monitored unit.
// A failed capture is recoverable: the monitor treats it as "no data
// this tick".
type Sampler interface {
	SuspendAndSample() (models.NativeStack, error)
}

// New returns a Sampler bound to the calling goroutine. The returned
// sampler extracts that goroutine's frames from a full runtime stack
// dump; the runtime stops the world for the dump, so the target is
// effectively suspended at capture time.
//
// New must be called from the goroutine that is to be monitored.
func New() Sampler {
	return &goroutineSampler{gid: currentGoroutineID()}
}

// NewNoop returns a guaranteed-success stand-in for environments where
// sampling is unsupported or undesirable.
func NewNoop() Sampler {
	return noopSampler{}
}

type noopSampler struct{}

func (noopSampler) SuspendAndSample() (models.NativeStack, error) {
	return models.NativeStack{}, nil
}
