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

package sampler

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testWaitTimeout  = 2 * time.Second
	testWaitInterval = 10 * time.Millisecond
)

func TestSamplerCapturesOwnGoroutine(t *testing.T) {
	s := New()

	stack, err := s.SuspendAndSample()
	require.NoError(t, err)
	require.NotEmpty(t, stack.Frames)

	var found bool

	for _, frame := range stack.Frames {
		if strings.Contains(frame.Function, "TestSamplerCapturesOwnGoroutine") {
			found = true

			assert.True(t, strings.HasSuffix(frame.File, "sampler_test.go"))
			assert.Positive(t, frame.Line)
		}
	}

	assert.True(t, found, "expected the test function in the captured frames")
}

func TestSamplerCapturesAnotherGoroutine(t *testing.T) {
	samplers := make(chan Sampler, 1)
	release := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)

		samplers <- New()
		<-release
	}()

	s := <-samplers

	stack, err := s.SuspendAndSample()
	require.NoError(t, err)
	assert.NotZero(t, stack.GoroutineID)
	assert.NotEmpty(t, stack.Frames)

	close(release)
	<-done
}

func TestSamplerReportsExitedGoroutine(t *testing.T) {
	samplers := make(chan Sampler, 1)
	done := make(chan struct{})

	go func() {
		defer close(done)

		samplers <- New()
	}()

	s := <-samplers
	<-done

	// The target may linger briefly in the runtime after done closes.
	require.Eventually(t, func() bool {
		_, err := s.SuspendAndSample()
		return err == ErrGoroutineNotFound
	}, testWaitTimeout, testWaitInterval)
}

func TestNoopSamplerAlwaysSucceeds(t *testing.T) {
	stack, err := NewNoop().SuspendAndSample()
	require.NoError(t, err)
	assert.Empty(t, stack.Frames)
}

func TestCurrentGoroutineIDIsStable(t *testing.T) {
	first := currentGoroutineID()
	second := currentGoroutineID()

	assert.NotZero(t, first)
	assert.Equal(t, first, second)
}

const sampleDumpBlock = `goroutine 42 [chan receive]:
main.worker(0xc000010000, 0x2?)
	/src/app/worker.go:57 +0x9c
main.run()
	/src/app/main.go:31 +0x45
created by main.main in goroutine 1
	/src/app/main.go:18 +0x7a`

func TestParseGoroutineBlock(t *testing.T) {
	stack, ok := parseGoroutineBlock(sampleDumpBlock)
	require.True(t, ok)

	assert.Equal(t, uint64(42), stack.GoroutineID)
	assert.Equal(t, "chan receive", stack.State)

	// The "created by" trailer is the spawning function, not a call frame.
	require.Len(t, stack.Frames, 2)
	assert.Equal(t, "main.main", stack.CreatedBy)

	assert.Equal(t, "main.worker", stack.Frames[0].Function)
	assert.Equal(t, "/src/app/worker.go", stack.Frames[0].File)
	assert.Equal(t, 57, stack.Frames[0].Line)

	assert.Equal(t, "main.run", stack.Frames[1].Function)
	assert.Equal(t, 31, stack.Frames[1].Line)
}

func TestParseGoroutineBlockWithoutCreatedByTrailer(t *testing.T) {
	block := "goroutine 1 [running]:\nmain.main()\n\t/src/app/main.go:10 +0x1a"

	stack, ok := parseGoroutineBlock(block)
	require.True(t, ok)

	require.Len(t, stack.Frames, 1)
	assert.Empty(t, stack.CreatedBy)
}

func TestParseGoroutineBlockRejectsGarbage(t *testing.T) {
	for _, block := range []string{
		"",
		"SIGQUIT: quit",
		"goroutine abc [running]:",
		"goroutine",
	} {
		_, ok := parseGoroutineBlock(block)
		assert.False(t, ok, "block %q should not parse", block)
	}
}

func TestTrimCallSuffix(t *testing.T) {
	assert.Equal(t, "main.work", trimCallSuffix("main.work(0x0?, 0x1)"))
	assert.Equal(t, "runtime.gopark", trimCallSuffix("\truntime.gopark(...)"))
	assert.Equal(t, "main.main", trimCallSuffix("main.main"))
}

func TestParseLocation(t *testing.T) {
	file, line := parseLocation("\t/src/app/worker.go:57 +0x9c")
	assert.Equal(t, "/src/app/worker.go", file)
	assert.Equal(t, 57, line)

	file, line = parseLocation("\tC:/go/src/app/worker.go:12 +0x1b")
	assert.Equal(t, "C:/go/src/app/worker.go", file)
	assert.Equal(t, 12, line)

	file, line = parseLocation("\t/no/line/number")
	assert.Equal(t, "/no/line/number", file)
	assert.Zero(t, line)
}
