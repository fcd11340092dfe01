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
	"container/list"
	"time"

	"github.com/carverauto/hangwatch/pkg/models"
)

// sampleRing is a FIFO sample buffer bounded by time span rather than by
// count: once the time elapsed since the sampling baseline exceeds the
// configured maximum, the oldest sample is evicted before each append.
// It is owned exclusively by the worker goroutine.
type sampleRing struct {
	samples *list.List
}

func newSampleRing() *sampleRing {
	return &sampleRing{samples: list.New()}
}

// push appends a sample, evicting the oldest one first when the buffer's
// span measured from baseline exceeds maxDuration.
func (r *sampleRing) push(s models.Sample, baseline time.Time, maxDuration time.Duration) {
	if s.CapturedAt.Sub(baseline) > maxDuration {
		if front := r.samples.Front(); front != nil {
			r.samples.Remove(front)
		}
	}

	r.samples.PushBack(s)
}

// drain returns all samples in insertion order (oldest first) and empties
// the buffer.
func (r *sampleRing) drain() []models.Sample {
	out := make([]models.Sample, 0, r.samples.Len())

	for e := r.samples.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(models.Sample))
	}

	r.samples.Init()

	return out
}

func (r *sampleRing) len() int {
	return r.samples.Len()
}
