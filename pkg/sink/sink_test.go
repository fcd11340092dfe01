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
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/hangwatch/pkg/logger"
	"github.com/carverauto/hangwatch/pkg/models"
)

func TestChannelSinkDeliversInOrder(t *testing.T) {
	s := NewChannelSink(4)

	first := models.HangAlert{
		Severity: models.HangTransient,
		ID:       models.ComponentID{Namespace: 1, Index: 1, Kind: "script"},
	}
	second := models.HangAlert{
		Severity: models.HangPermanent,
		ID:       models.ComponentID{Namespace: 1, Index: 2, Kind: "layout"},
	}

	require.NoError(t, s.SendAlert(first))
	require.NoError(t, s.SendAlert(second))

	assert.Equal(t, first, <-s.Alerts())
	assert.Equal(t, second, <-s.Alerts())
}

func TestChannelSinkDropsWhenFull(t *testing.T) {
	s := NewChannelSink(1)

	require.NoError(t, s.SendAlert(models.HangAlert{Severity: models.HangTransient}))
	assert.ErrorIs(t, s.SendAlert(models.HangAlert{Severity: models.HangTransient}), ErrSinkFull)

	require.NoError(t, s.SendProfile([]byte(`{}`)))
	assert.ErrorIs(t, s.SendProfile([]byte(`{}`)), ErrSinkFull)

	// Draining makes room again.
	<-s.Alerts()
	assert.NoError(t, s.SendAlert(models.HangAlert{Severity: models.HangPermanent}))
}

func TestDrainToLogConsumesUntilCancelled(t *testing.T) {
	s := NewChannelSink(4)

	require.NoError(t, s.SendAlert(models.HangAlert{Severity: models.HangTransient}))
	require.NoError(t, s.SendProfile([]byte(`{}`)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		s.DrainToLog(ctx, logger.NewTestLogger())
	}()

	require.Eventually(t, func() bool {
		return len(s.alerts) == 0 && len(s.profiles) == 0
	}, time.Second, time.Millisecond)

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("drain goroutine did not stop on cancellation")
	}
}

func TestAlertSubjectBySeverity(t *testing.T) {
	assert.Equal(t, subjectHangTransient, alertSubject(models.HangTransient))
	assert.Equal(t, subjectHangPermanent, alertSubject(models.HangPermanent))
}

func TestNewEventEnvelope(t *testing.T) {
	data := models.HangEventData{
		Component: models.ComponentID{Namespace: 3, Index: 7, Kind: "script"},
		Severity:  models.HangPermanent,
	}

	event := newEvent("hangwatch-test", subjectHangPermanent, eventTypeHang, data)

	assert.Equal(t, "1.0", event.SpecVersion)
	assert.Equal(t, "hangwatch-test", event.Source)
	assert.Equal(t, eventTypeHang, event.Type)
	assert.Equal(t, "application/json", event.DataContentType)
	assert.Equal(t, subjectHangPermanent, event.Subject)
	require.NotNil(t, event.Time)

	_, err := uuid.Parse(event.ID)
	assert.NoError(t, err, "event ID should be a valid UUID")

	payload, err := json.Marshal(event)
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"specversion":"1.0"`)
}
