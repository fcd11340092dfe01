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
	"sync"
	"sync/atomic"
	"time"

	"github.com/carverauto/hangwatch/pkg/models"
	"github.com/carverauto/hangwatch/pkg/sampler"
)

// sharedState is the queue and enablement flag shared by every Registry
// clone and Handle. senders counts the live producers; when the last one
// is released the inbound queue closes, which is the worker's only normal
// termination signal.
type sharedState struct {
	queue   *eventQueue
	enabled bool
	senders atomic.Int64
}

func (s *sharedState) acquire() {
	s.senders.Add(1)
}

func (s *sharedState) release() {
	if s.senders.Add(-1) == 0 {
		s.queue.close()
	}
}

// Registry is the handle application code uses to register new monitored
// components. Clones are cheap and share the same queue and enablement
// flag.
type Registry struct {
	state      *sharedState
	newSampler func() sampler.Sampler
	closeOnce  sync.Once
}

// Clone returns a new Registry sharing this one's monitor. Each clone
// must be released with Close.
func (r *Registry) Clone() *Registry {
	r.state.acquire()

	return &Registry{state: r.state, newSampler: r.newSampler}
}

// Close releases this Registry's hold on the monitor. Once every Registry
// and Handle has been released, the worker loop exits.
func (r *Registry) Close() {
	r.closeOnce.Do(r.state.release)
}

// RegisterComponent registers a new monitored component and returns the
// Handle it must use for the rest of its life. It obtains a Sampler for
// the calling goroutine, so it must be called from the goroutine to be
// monitored. The id must not already be registered; a duplicate is a
// programming error and panics the worker.
func (r *Registry) RegisterComponent(
	id models.ComponentID,
	name string,
	transientTimeout, permanentTimeout time.Duration,
	exitSignal ExitSignaler,
) *Handle {
	smp := r.newSampler()

	r.state.acquire()

	ev := componentEvent{
		kind:             eventRegister,
		id:               id,
		sampler:          smp,
		name:             name,
		transientTimeout: transientTimeout,
		permanentTimeout: permanentTimeout,
		exitSignal:       exitSignal,
	}

	if !r.state.queue.push(ev) {
		panic(ErrMonitorTerminated)
	}

	return &Handle{id: id, state: r.state}
}

// Handle is the per-component channel into the monitor. All methods tag
// outgoing events with the component's identity.
type Handle struct {
	id        models.ComponentID
	state     *sharedState
	unregOnce sync.Once
}

// NotifyActivity records the start of new work described by annotation.
// It is a no-op while monitoring is globally disabled.
func (h *Handle) NotifyActivity(annotation string) {
	if !h.state.enabled {
		return
	}

	h.send(componentEvent{kind: eventNotifyActivity, id: h.id, annotation: annotation})
}

// NotifyWait records that the component has become idle; it is exempt
// from hang detection until its next NotifyActivity. It is a no-op while
// monitoring is globally disabled.
func (h *Handle) NotifyWait() {
	if !h.state.enabled {
		return
	}

	h.send(componentEvent{kind: eventNotifyWait, id: h.id})
}

// Unregister removes the component from the monitor. It is always
// delivered, even while monitoring is disabled; omitting it would leak
// the registry entry. Safe to call more than once.
func (h *Handle) Unregister() {
	h.unregOnce.Do(func() {
		h.send(componentEvent{kind: eventUnregister, id: h.id})
		h.state.release()
	})
}

func (h *Handle) send(ev componentEvent) {
	if !h.state.queue.push(ev) {
		panic(ErrMonitorTerminated)
	}
}
