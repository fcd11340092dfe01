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
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDurationUnmarshalString(t *testing.T) {
	var d Duration

	require.NoError(t, json.Unmarshal([]byte(`"1m30s"`), &d))
	assert.Equal(t, Duration(90*time.Second), d)
}

func TestDurationUnmarshalNanoseconds(t *testing.T) {
	var d Duration

	require.NoError(t, json.Unmarshal([]byte(`500000000`), &d))
	assert.Equal(t, Duration(500*time.Millisecond), d)
}

func TestDurationUnmarshalInvalid(t *testing.T) {
	var d Duration

	assert.Error(t, json.Unmarshal([]byte(`"not-a-duration"`), &d))
	assert.Error(t, json.Unmarshal([]byte(`true`), &d))
	assert.Error(t, json.Unmarshal([]byte(`{`), &d))
}

func TestDurationMarshal(t *testing.T) {
	b, err := json.Marshal(Duration(250 * time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, `"250ms"`, string(b))
}
