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

package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/hangwatch/pkg/models"
)

const (
	subjectHangTransient = "events.hang.transient"
	subjectHangPermanent = "events.hang.permanent"
	subjectHangProfile   = "events.hang.profile"

	eventTypeHang    = "com.carverauto.hangwatch.hang"
	eventTypeProfile = "com.carverauto.hangwatch.profile"

	publishTimeout = 5 * time.Second
)

// NATSSink publishes hang alerts and profiles as CloudEvents to NATS
// JetStream for an out-of-process supervisor.
type NATSSink struct {
	js     jetstream.JetStream
	source string
}

// NewNATSSink creates a NATSSink publishing events attributed to source.
func NewNATSSink(js jetstream.JetStream, source string) *NATSSink {
	return &NATSSink{js: js, source: source}
}

// Connect creates a NATS connection with JetStream and returns a sink
// publishing to it, plus the connection for lifecycle management.
func Connect(natsURL, source string, opts ...nats.Option) (*NATSSink, *nats.Conn, error) {
	nc, err := nats.Connect(natsURL, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return NewNATSSink(js, source), nc, nil
}

// alertSubject maps an alert severity to its JetStream subject.
func alertSubject(severity models.HangSeverity) string {
	if severity == models.HangPermanent {
		return subjectHangPermanent
	}

	return subjectHangTransient
}

func (s *NATSSink) SendAlert(alert models.HangAlert) error {
	subject := alertSubject(alert.Severity)

	data := models.HangEventData{
		Component:  alert.ID,
		Severity:   alert.Severity,
		Annotation: alert.Annotation,
		Timestamp:  time.Now(),
		Profile:    alert.Profile,
	}

	return s.publish(subject, eventTypeHang, data)
}

func (s *NATSSink) SendProfile(profile []byte) error {
	return s.publish(subjectHangProfile, eventTypeProfile, json.RawMessage(profile))
}

// newEvent wraps a payload in a CloudEvents v1.0 envelope.
func newEvent(source, subject, eventType string, data interface{}) models.CloudEvent {
	now := time.Now()

	return models.CloudEvent{
		SpecVersion:     "1.0",
		ID:              uuid.New().String(),
		Source:          source,
		Type:            eventType,
		DataContentType: "application/json",
		Subject:         subject,
		Time:            &now,
		Data:            data,
	}
}

func (s *NATSSink) publish(subject, eventType string, data interface{}) error {
	event := newEvent(s.source, subject, eventType, data)

	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal hang event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if _, err := s.js.Publish(ctx, subject, eventBytes); err != nil {
		return fmt.Errorf("failed to publish hang event: %w", err)
	}

	return nil
}

var _ Sink = (*NATSSink)(nil)
