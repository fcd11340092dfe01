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
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/carverauto/hangwatch/pkg/models"
)

const unknownComponentName = "unknown"

// processCreationTime resolves the current process's creation time once.
// Failure degrades to the zero time: the profile's start offset then
// becomes meaningless but the samples stay usable.
var processCreationTime = sync.OnceValue(func() time.Time {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return time.Time{}
	}

	createMillis, err := proc.CreateTime()
	if err != nil {
		return time.Time{}
	}

	return time.UnixMilli(createMillis)
})

// buildProfile resolves the drained samples against the display name map
// into the logical profile shape: sampling rate, start offset from
// process creation, and samples in insertion order.
func (w *worker) buildProfile(samples []models.Sample) models.HangProfile {
	profile := models.HangProfile{
		RateMillis: durationMillis(w.samplingInterval),
		Samples:    make([]models.ProfileSample, 0, len(samples)),
	}

	if created := processCreationTime(); !created.IsZero() {
		profile.StartOffset = durationMillis(w.samplingBaseline.Sub(created))
	}

	for _, s := range samples {
		name, ok := w.names[s.ID]
		if !ok {
			name = unknownComponentName
		}

		profile.Samples = append(profile.Samples, models.ProfileSample{
			Name:      name,
			Namespace: s.ID.Namespace,
			Index:     s.ID.Index,
			Kind:      s.ID.Kind,
			Offset:    durationMillis(s.CapturedAt.Sub(w.samplingBaseline)),
			Stack:     s.Stack,
		})
	}

	return profile
}

// flushProfile drains the entire sample buffer into a single serialized
// profile artifact and pushes it to the sink, best-effort.
func (w *worker) flushProfile() {
	profile := w.buildProfile(w.samples.drain())

	payload, err := json.Marshal(profile)
	if err != nil {
		w.logger.Error().Err(err).Msg("Failed to serialize sampling profile")
		return
	}

	if err := w.sink.SendProfile(payload); err != nil {
		w.logger.Warn().Err(err).Int("samples", len(profile.Samples)).Msg("Failed to deliver sampling profile")
		return
	}

	w.logger.Info().Int("samples", len(profile.Samples)).Msg("Sampling profile sent")
}

func durationMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
