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

// Package hangmon implements the background hang monitor: a single
// coordinating worker that watches registered components for
// unresponsiveness, reports transient and permanent hangs to a
// supervising process, and can switch into a sampling-profiler mode that
// periodically captures the stacks of all monitored components.
package hangmon

import (
	"fmt"
	"time"

	"github.com/carverauto/hangwatch/pkg/logger"
	"github.com/carverauto/hangwatch/pkg/models"
	"github.com/carverauto/hangwatch/pkg/sampler"
	"github.com/carverauto/hangwatch/pkg/sink"
)

const defaultCheckInterval = 100 * time.Millisecond

// worker holds all monitor state. The registry, sample buffer, and timing
// state are owned and mutated by the worker goroutine only; the queues
// are the sole shared surface.
type worker struct {
	state   *sharedState
	control <-chan ControlMessage
	sink    sink.Sink
	clock   Clock
	logger  logger.Logger

	checkInterval time.Duration
	enabled       bool

	components map[models.ComponentID]*monitoredComponent
	// names outlives registry entries so profiles can still attribute
	// samples taken before a component unregistered.
	names map[models.ComponentID]string

	samples             *sampleRing
	sampling            bool
	samplingInterval    time.Duration
	samplingMaxDuration time.Duration
	samplingBaseline    time.Time
	lastSample          time.Time

	shuttingDown bool
	done         chan struct{}
}

// Start spawns the monitor worker on its own goroutine and returns the
// Registry used to register components plus a channel that closes when
// the worker loop has exited. The loop exits only once every Registry and
// Handle has been released; the ControlExit message alone does not stop
// it. A nil clock defaults to the real clock; a nil log discards output.
func Start(
	cfg *Config,
	snk sink.Sink,
	control <-chan ControlMessage,
	clock Clock,
	log logger.Logger,
) (*Registry, <-chan struct{}) {
	if clock == nil {
		clock = realClock{}
	}

	if log == nil {
		log = logger.NewTestLogger()
	}

	checkInterval := time.Duration(cfg.CheckInterval)
	if checkInterval <= 0 {
		checkInterval = defaultCheckInterval
	}

	state := &sharedState{queue: newEventQueue(), enabled: cfg.Enabled}
	state.acquire() // the initial Registry

	w := &worker{
		state:         state,
		control:       control,
		sink:          snk,
		clock:         clock,
		logger:        log,
		checkInterval: checkInterval,
		enabled:       cfg.Enabled,
		components:    make(map[models.ComponentID]*monitoredComponent),
		names:         make(map[models.ComponentID]string),
		samples:       newSampleRing(),
		done:          make(chan struct{}),
	}

	reg := &Registry{state: state, newSampler: sampler.New}

	go w.run()

	return reg, w.done
}

func (w *worker) run() {
	defer close(w.done)

	w.logger.Info().
		Bool("enabled", w.enabled).
		Dur("check_interval", w.checkInterval).
		Msg("Background hang monitor started")

	for w.runOne() {
	}

	w.logger.Info().Msg("Background hang monitor stopped")
}

// runOne executes one tick: wait for the next relevant event, apply it
// and any immediately-available follow-up events, then perform one
// checkpoint pass or one sampling pass, never both. It reports false when
// the inbound queue can never deliver again.
func (w *worker) runOne() bool {
	timerCh, stopTimer := w.nextTimer()
	defer stopTimer()

	select {
	case <-w.state.queue.Ready():
		if !w.drainEvents() {
			return false
		}
	case msg, ok := <-w.control:
		if !ok {
			// The supervising process went away; hang detection keeps
			// running for the remaining components.
			w.control = nil
			break
		}

		w.handleControl(msg)
	case <-timerCh:
	}

	if w.sampling {
		if w.clock.Now().Sub(w.lastSample) >= w.samplingInterval {
			w.samplePass()
		}
	} else if w.enabled {
		w.checkpoint()
	}

	return true
}

// nextTimer computes this tick's wait. While sampling it is the remainder
// until the next sample; with hang checking enabled it is the checkpoint
// period; otherwise there is no periodic work and the worker waits on the
// queues alone (nil channel).
func (w *worker) nextTimer() (<-chan time.Time, func()) {
	var d time.Duration

	switch {
	case w.sampling:
		d = w.samplingInterval - w.clock.Now().Sub(w.lastSample)
		if d < 0 {
			d = 0
		}
	case w.enabled:
		d = w.checkInterval
	default:
		return nil, func() {}
	}

	t := w.clock.Timer(d)

	return t.Chan(), func() { t.Stop() }
}

// drainEvents applies every immediately-available inbound event, so a
// component that just burst several activity notifications is never
// checkpointed against a stale timestamp.
func (w *worker) drainEvents() bool {
	for {
		ev, ok := w.state.queue.pop()
		if !ok {
			break
		}

		w.handleEvent(ev)
	}

	return !w.state.queue.closedAndEmpty()
}

func (w *worker) handleEvent(ev componentEvent) {
	switch ev.kind {
	case eventRegister:
		w.registerComponent(ev)
	case eventUnregister:
		if _, exists := w.components[ev.id]; !exists {
			panic(fmt.Errorf("%w: %s", errNotRegistered, ev.id))
		}

		delete(w.components, ev.id)

		w.logger.Debug().Str("component_id", ev.id.String()).Msg("Component unregistered")
	case eventNotifyActivity:
		c := w.mustGet(ev.id)
		c.lastActivity = w.clock.Now()
		c.lastAnnotation = ev.annotation
		c.sentTransientAlert = false
		c.sentPermanentAlert = false
		c.isWaiting = false
	case eventNotifyWait:
		c := w.mustGet(ev.id)
		c.lastActivity = w.clock.Now()
		c.lastAnnotation = ""
		c.sentTransientAlert = false
		c.sentPermanentAlert = false
		c.isWaiting = true
	}
}

func (w *worker) registerComponent(ev componentEvent) {
	// A component racing its own startup against process shutdown still
	// gets told to exit.
	if w.shuttingDown {
		ev.exitSignal.SignalToExit()
	}

	if _, exists := w.components[ev.id]; exists {
		panic(fmt.Errorf("%w: %s", errAlreadyRegistered, ev.id))
	}

	w.components[ev.id] = &monitoredComponent{
		sampler:          ev.sampler,
		lastActivity:     w.clock.Now(),
		transientTimeout: ev.transientTimeout,
		permanentTimeout: ev.permanentTimeout,
		isWaiting:        true,
		exitSignal:       ev.exitSignal,
	}

	if ev.name != "" {
		w.names[ev.id] = ev.name
	}

	w.logger.Debug().
		Str("component_id", ev.id.String()).
		Dur("transient_timeout", ev.transientTimeout).
		Dur("permanent_timeout", ev.permanentTimeout).
		Msg("Component registered")
}

func (w *worker) mustGet(id models.ComponentID) *monitoredComponent {
	c, exists := w.components[id]
	if !exists {
		panic(fmt.Errorf("%w: %s", errNotRegistered, id))
	}

	return c
}

func (w *worker) handleControl(msg ControlMessage) {
	switch msg.Kind {
	case ControlToggleSampler:
		w.toggleSampler(msg.Rate, msg.MaxDuration)
	case ControlExit:
		for _, c := range w.components {
			c.exitSignal.SignalToExit()
		}

		w.shuttingDown = true

		w.logger.Info().Int("components", len(w.components)).Msg("Exit signalled to all monitored components")
	}
}

func (w *worker) toggleSampler(rate, maxDuration time.Duration) {
	if w.sampling {
		w.flushProfile()

		w.sampling = false

		w.logger.Info().Msg("Sampling profiler stopped")

		return
	}

	w.sampling = true
	w.samplingInterval = rate
	w.samplingMaxDuration = maxDuration
	w.samplingBaseline = w.clock.Now()
	w.lastSample = w.samplingBaseline

	w.logger.Info().
		Dur("rate", rate).
		Dur("max_duration", maxDuration).
		Msg("Sampling profiler started")
}

// checkpoint performs one hang detection pass. It never mutates
// lastActivity, so repeated passes with no intervening activity stay
// idempotent: at most one transient and one permanent alert per hang
// episode.
func (w *worker) checkpoint() {
	now := w.clock.Now()

	for id, c := range w.components {
		if c.isWaiting {
			continue
		}

		elapsed := now.Sub(c.lastActivity)

		if elapsed > c.permanentTimeout {
			if c.sentPermanentAlert {
				continue
			}

			// Best-effort capture: a failed sample only omits the profile.
			var profile *models.NativeStack

			if stack, err := c.sampler.SuspendAndSample(); err == nil {
				profile = &stack
			} else {
				w.logger.Debug().Err(err).Str("component_id", id.String()).Msg("Stack capture failed for permanent hang")
			}

			w.sendAlert(models.HangAlert{
				Severity:   models.HangPermanent,
				ID:         id,
				Annotation: c.lastAnnotation,
				Profile:    profile,
			})

			c.sentPermanentAlert = true

			continue
		}

		if elapsed > c.transientTimeout && !c.sentTransientAlert {
			w.sendAlert(models.HangAlert{
				Severity:   models.HangTransient,
				ID:         id,
				Annotation: c.lastAnnotation,
			})

			c.sentTransientAlert = true
		}
	}
}

// samplePass captures a stack for every registered component, skipping
// components whose capture fails this tick.
func (w *worker) samplePass() {
	for id, c := range w.components {
		now := w.clock.Now()

		stack, err := c.sampler.SuspendAndSample()
		if err != nil {
			continue
		}

		w.samples.push(
			models.Sample{ID: id, CapturedAt: now, Stack: stack},
			w.samplingBaseline,
			w.samplingMaxDuration,
		)
	}

	w.lastSample = w.clock.Now()
}

// sendAlert delivers best-effort: a supervisor that has gone away must
// not stop hang detection for the remaining components.
func (w *worker) sendAlert(alert models.HangAlert) {
	if err := w.sink.SendAlert(alert); err != nil {
		w.logger.Warn().
			Err(err).
			Str("component_id", alert.ID.String()).
			Str("severity", string(alert.Severity)).
			Msg("Failed to deliver hang alert")

		return
	}

	w.logger.Info().
		Str("component_id", alert.ID.String()).
		Str("severity", string(alert.Severity)).
		Str("annotation", alert.Annotation).
		Msg("Hang alert sent")
}
