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
	"runtime"
	"strconv"
	"strings"

	"github.com/carverauto/hangwatch/pkg/models"
)

const (
	initialDumpSize = 64 << 10
	maxDumpSize     = 16 << 20
)

// goroutineSampler captures the stack of a single goroutine identified at
// registration time.
type goroutineSampler struct {
	gid uint64
}

func (s *goroutineSampler) SuspendAndSample() (models.NativeStack, error) {
	dump, err := fullStackDump()
	if err != nil {
		return models.NativeStack{}, err
	}

	for _, block := range strings.Split(dump, "\n\n") {
		stack, ok := parseGoroutineBlock(block)
		if !ok || stack.GoroutineID != s.gid {
			continue
		}

		return stack, nil
	}

	return models.NativeStack{}, ErrGoroutineNotFound
}

// fullStackDump stops the world and records the stacks of all goroutines,
// growing the buffer until the dump fits.
func fullStackDump() (string, error) {
	for size := initialDumpSize; size <= maxDumpSize; size *= 2 {
		buf := make([]byte, size)

		n := runtime.Stack(buf, true)
		if n < size {
			return string(buf[:n]), nil
		}
	}

	return "", ErrStackTruncated
}

// parseGoroutineBlock parses one "goroutine N [state]:" block of a runtime
// stack dump into a NativeStack.
func parseGoroutineBlock(block string) (models.NativeStack, bool) {
	lines := strings.Split(strings.TrimSpace(block), "\n")
	if len(lines) == 0 {
		return models.NativeStack{}, false
	}

	header := lines[0]
	if !strings.HasPrefix(header, "goroutine ") {
		return models.NativeStack{}, false
	}

	rest := strings.TrimPrefix(header, "goroutine ")

	idEnd := strings.IndexByte(rest, ' ')
	if idEnd < 0 {
		return models.NativeStack{}, false
	}

	gid, err := strconv.ParseUint(rest[:idEnd], 10, 64)
	if err != nil {
		return models.NativeStack{}, false
	}

	state := strings.TrimSuffix(strings.TrimSpace(rest[idEnd:]), ":")
	state = strings.Trim(state, "[]")

	frames, createdBy := parseFrames(lines[1:])

	stack := models.NativeStack{
		GoroutineID: gid,
		State:       state,
		Frames:      frames,
		CreatedBy:   createdBy,
	}

	return stack, true
}

// parseFrames converts the alternating function/location lines that follow
// a goroutine header into stack frames. The "created by" trailer names the
// spawning function, not a call frame, and is returned separately.
func parseFrames(lines []string) ([]models.StackFrame, string) {
	frames := make([]models.StackFrame, 0, len(lines)/2)

	var createdBy string

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if strings.HasPrefix(line, "\t") {
			continue
		}

		if rest, ok := strings.CutPrefix(line, "created by "); ok {
			createdBy, _, _ = strings.Cut(rest, " in goroutine")
			continue
		}

		frame := models.StackFrame{Function: trimCallSuffix(line)}

		if i+1 < len(lines) && strings.HasPrefix(lines[i+1], "\t") {
			frame.File, frame.Line = parseLocation(lines[i+1])
			i++
		}

		frames = append(frames, frame)
	}

	return frames, createdBy
}

// trimCallSuffix strips the argument list from a function line, e.g.
// "main.work(0x0?, 0x1)" becomes "main.work".
func trimCallSuffix(line string) string {
	line = strings.TrimSpace(line)

	if idx := strings.IndexByte(line, '('); idx > 0 {
		return line[:idx]
	}

	return line
}

// parseLocation parses a "\t/path/file.go:42 +0x1b" location line.
func parseLocation(line string) (file string, lineNo int) {
	loc := strings.TrimSpace(line)

	if idx := strings.IndexByte(loc, ' '); idx > 0 {
		loc = loc[:idx]
	}

	colon := strings.LastIndexByte(loc, ':')
	if colon < 0 {
		return loc, 0
	}

	n, err := strconv.Atoi(loc[colon+1:])
	if err != nil {
		return loc, 0
	}

	return loc[:colon], n
}

// currentGoroutineID extracts the calling goroutine's id from its own
// stack header.
func currentGoroutineID() uint64 {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)

	header := strings.TrimPrefix(string(buf[:n]), "goroutine ")

	idEnd := strings.IndexByte(header, ' ')
	if idEnd < 0 {
		return 0
	}

	gid, err := strconv.ParseUint(header[:idEnd], 10, 64)
	if err != nil {
		return 0
	}

	return gid
}
