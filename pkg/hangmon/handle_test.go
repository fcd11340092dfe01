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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/hangwatch/pkg/models"
	"github.com/carverauto/hangwatch/pkg/sampler"
)

func newTestState(enabled bool) *sharedState {
	state := &sharedState{queue: newEventQueue(), enabled: enabled}
	state.acquire()

	return state
}

func popAll(q *eventQueue) []componentEvent {
	var out []componentEvent

	for {
		ev, ok := q.pop()
		if !ok {
			return out
		}

		out = append(out, ev)
	}
}

func TestHandleDisabledDropsNotifyButDeliversUnregister(t *testing.T) {
	state := newTestState(false)
	h := &Handle{id: models.ComponentID{Namespace: 1, Index: 1}, state: state}
	state.acquire()

	h.NotifyActivity("work")
	h.NotifyWait()
	assert.Empty(t, popAll(state.queue))

	// Unregister always goes through: dropping it would leak the entry.
	h.Unregister()

	events := popAll(state.queue)
	require.Len(t, events, 1)
	assert.Equal(t, eventUnregister, events[0].kind)
}

func TestHandleEnabledForwardsTaggedEvents(t *testing.T) {
	state := newTestState(true)

	id := models.ComponentID{Namespace: 2, Index: 3, Kind: "script"}
	h := &Handle{id: id, state: state}
	state.acquire()

	h.NotifyActivity("layout")
	h.NotifyWait()

	events := popAll(state.queue)
	require.Len(t, events, 2)

	assert.Equal(t, eventNotifyActivity, events[0].kind)
	assert.Equal(t, id, events[0].id)
	assert.Equal(t, "layout", events[0].annotation)

	assert.Equal(t, eventNotifyWait, events[1].kind)
	assert.Equal(t, id, events[1].id)
}

func TestHandleUnregisterIsIdempotent(t *testing.T) {
	state := newTestState(true)
	h := &Handle{id: models.ComponentID{Namespace: 3, Index: 1}, state: state}
	state.acquire()

	h.Unregister()
	h.Unregister()
	h.Unregister()

	assert.Len(t, popAll(state.queue), 1)
	assert.Equal(t, int64(1), state.senders.Load())
}

func TestLastReleaseClosesQueue(t *testing.T) {
	state := newTestState(true)

	reg := &Registry{state: state, newSampler: sampler.NewNoop}

	clone := reg.Clone()
	assert.Equal(t, int64(2), state.senders.Load())

	h := &Handle{id: models.ComponentID{Namespace: 4, Index: 1}, state: state}
	state.acquire()

	reg.Close()
	reg.Close() // safe to call twice
	clone.Close()
	assert.False(t, state.queue.closedAndEmpty())

	h.Unregister()

	// The unregister event is still queued, but no sender remains.
	events := popAll(state.queue)
	require.Len(t, events, 1)
	assert.True(t, state.queue.closedAndEmpty())
}

func TestHandlePanicsWhenMonitorGone(t *testing.T) {
	state := newTestState(true)
	h := &Handle{id: models.ComponentID{Namespace: 5, Index: 1}, state: state}
	state.acquire()

	state.queue.close()

	assert.PanicsWithValue(t, ErrMonitorTerminated, func() {
		h.NotifyActivity("too late")
	})
}

func TestRegisterComponentEnqueuesRegisterEvent(t *testing.T) {
	state := newTestState(true)

	stack := models.NativeStack{Frames: []models.StackFrame{{Function: "test.Fn"}}}
	reg := &Registry{state: state, newSampler: func() sampler.Sampler { return &stubSampler{stack: stack} }}

	id := models.ComponentID{Namespace: 6, Index: 1, Kind: "net"}
	exit := &countingExit{}

	h := reg.RegisterComponent(id, "fetcher", 50*time.Millisecond, time.Second, exit)
	require.NotNil(t, h)

	events := popAll(state.queue)
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, eventRegister, ev.kind)
	assert.Equal(t, id, ev.id)
	assert.Equal(t, "fetcher", ev.name)
	assert.Equal(t, 50*time.Millisecond, ev.transientTimeout)
	assert.Equal(t, time.Second, ev.permanentTimeout)
	require.NotNil(t, ev.sampler)

	got, err := ev.sampler.SuspendAndSample()
	require.NoError(t, err)
	assert.Equal(t, stack, got)
}
