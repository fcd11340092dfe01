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

import "sync"

// eventQueue is an unbounded multi-producer single-consumer FIFO queue.
// Producers never block: activity notifications must not be able to
// deadlock the very components being monitored. The worker waits on
// Ready() and then drains with pop.
type eventQueue struct {
	mu     sync.Mutex
	items  []componentEvent
	closed bool
	ready  chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{ready: make(chan struct{}, 1)}
}

// push appends an event and wakes the consumer. It reports false if the
// queue has been closed.
func (q *eventQueue) push(ev componentEvent) bool {
	q.mu.Lock()

	if q.closed {
		q.mu.Unlock()
		return false
	}

	q.items = append(q.items, ev)
	q.mu.Unlock()

	q.signal()

	return true
}

// pop removes the oldest event. It reports false when the queue is empty.
func (q *eventQueue) pop() (componentEvent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return componentEvent{}, false
	}

	ev := q.items[0]
	q.items = q.items[1:]

	if len(q.items) == 0 {
		q.items = nil
	}

	return ev, true
}

// close marks the queue closed and wakes the consumer so it can observe
// termination. Events already queued remain poppable.
func (q *eventQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	q.signal()
}

// closedAndEmpty reports whether no event can ever be delivered again.
func (q *eventQueue) closedAndEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.closed && len(q.items) == 0
}

// Ready returns a channel that receives whenever new events or closure
// need the consumer's attention.
func (q *eventQueue) Ready() <-chan struct{} {
	return q.ready
}

func (q *eventQueue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
