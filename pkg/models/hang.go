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

package models

import (
	"fmt"
	"time"
)

// ComponentKind tags the kind of work a monitored component performs.
// Callers choose their own vocabulary; the monitor treats it as opaque.
type ComponentKind string

// ComponentID uniquely names one monitored unit. It is comparable and is
// used as the registry key; a given ID must be unique among the
// currently-registered components.
type ComponentID struct {
	Namespace uint32        `json:"namespace"`
	Index     uint32        `json:"index"`
	Kind      ComponentKind `json:"kind"`
}

func (id ComponentID) String() string {
	return fmt.Sprintf("%d:%d:%s", id.Namespace, id.Index, id.Kind)
}

// HangSeverity distinguishes the two hang alert tiers.
type HangSeverity string

const (
	// HangTransient is the first-tier timeout crossing, considered advisory.
	HangTransient HangSeverity = "transient"
	// HangPermanent is the second-tier crossing, considered serious and
	// eligible for a stack capture.
	HangPermanent HangSeverity = "permanent"
)

// StackFrame is a single resolved call frame of a captured stack.
type StackFrame struct {
	Function string `json:"function"`
	File     string `json:"file,omitempty"`
	Line     int    `json:"line,omitempty"`
}

// NativeStack is a snapshot of one goroutine's call frames at a point in
// time, opaque to the monitor beyond being serializable.
type NativeStack struct {
	GoroutineID uint64       `json:"goroutine_id,omitempty"`
	State       string       `json:"state,omitempty"`
	Frames      []StackFrame `json:"frames"`
	// CreatedBy names the function that spawned the goroutine. It is not a
	// call frame and is kept out of Frames.
	CreatedBy string `json:"created_by,omitempty"`
}

// HangAlert reports one hang episode tier crossing for one component.
// Profile is only ever set on permanent alerts, and only when the
// best-effort stack capture succeeded.
type HangAlert struct {
	Severity   HangSeverity `json:"severity"`
	ID         ComponentID  `json:"id"`
	Annotation string       `json:"annotation,omitempty"`
	Profile    *NativeStack `json:"profile,omitempty"`
}

// ProfileSample is one resolved entry of a serialized sampling profile.
type ProfileSample struct {
	Name      string        `json:"name"`
	Namespace uint32        `json:"namespace"`
	Index     uint32        `json:"index"`
	Kind      ComponentKind `json:"kind"`
	Offset    float64       `json:"offset_ms"`
	Stack     NativeStack   `json:"stack"`
}

// HangProfile is the logical shape of a drained sampling session:
// the sampling rate, the baseline's offset from process creation, and the
// samples in ring-buffer insertion order (oldest first).
type HangProfile struct {
	RateMillis  float64         `json:"rate_ms"`
	StartOffset float64         `json:"start_offset_ms"`
	Samples     []ProfileSample `json:"samples"`
}

// Sample is one element of the monitor's bounded sampling buffer.
type Sample struct {
	ID         ComponentID
	CapturedAt time.Time
	Stack      NativeStack
}
