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

// Package sink delivers hang alerts and serialized profiles to a
// supervising process.
package sink

import (
	"context"
	"errors"

	"github.com/carverauto/hangwatch/pkg/logger"
	"github.com/carverauto/hangwatch/pkg/models"
)

//go:generate mockgen -destination=mock_sink.go -package=sink github.com/carverauto/hangwatch/pkg/sink Sink

// ErrSinkFull means the receiving side has stopped draining and the
// message was dropped. Delivery is fire-and-forget: the monitor logs and
// continues.
var ErrSinkFull = errors.New("sink buffer full")

// Sink is the outbound channel toward the supervising process. Errors are
// advisory; the monitor never stops on a failed send.
type Sink interface {
	SendAlert(alert models.HangAlert) error
	SendProfile(profile []byte) error
}

// ChannelSink is an in-process Sink backed by buffered channels, for a
// supervisor living in the same process.
type ChannelSink struct {
	alerts   chan models.HangAlert
	profiles chan []byte
}

// NewChannelSink creates a ChannelSink holding up to buffer undelivered
// messages of each kind.
func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{
		alerts:   make(chan models.HangAlert, buffer),
		profiles: make(chan []byte, buffer),
	}
}

func (s *ChannelSink) SendAlert(alert models.HangAlert) error {
	select {
	case s.alerts <- alert:
		return nil
	default:
		return ErrSinkFull
	}
}

func (s *ChannelSink) SendProfile(profile []byte) error {
	select {
	case s.profiles <- profile:
		return nil
	default:
		return ErrSinkFull
	}
}

// Alerts returns the receiving end of the alert channel.
func (s *ChannelSink) Alerts() <-chan models.HangAlert {
	return s.alerts
}

// Profiles returns the receiving end of the profile channel.
func (s *ChannelSink) Profiles() <-chan []byte {
	return s.profiles
}

// DrainToLog consumes the sink's alerts and profiles into the log until
// ctx is cancelled, for processes where the supervisor is the process
// itself.
func (s *ChannelSink) DrainToLog(ctx context.Context, log logger.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case alert := <-s.alerts:
			log.Warn().
				Str("component_id", alert.ID.String()).
				Str("severity", string(alert.Severity)).
				Str("annotation", alert.Annotation).
				Msg("Hang detected")
		case profile := <-s.profiles:
			log.Info().Int("bytes", len(profile)).Msg("Sampling profile drained")
		}
	}
}

var _ Sink = (*ChannelSink)(nil)
