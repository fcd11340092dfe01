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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/carverauto/hangwatch/pkg/config"
	"github.com/carverauto/hangwatch/pkg/hangmon"
	"github.com/carverauto/hangwatch/pkg/logger"
	"github.com/carverauto/hangwatch/pkg/models"
	"github.com/carverauto/hangwatch/pkg/sink"
)

var (
	errFailedToLoadConfig = fmt.Errorf("failed to load config")
	errInvalidWorkerCount = errors.New("workers must be positive")
)

// Config is the hangwatch daemon configuration.
type Config struct {
	Monitor hangmon.Config `json:"monitor"`
	// NATSURL, when set, publishes alerts and profiles to NATS JetStream;
	// otherwise they are drained to the log.
	NATSURL string `json:"nats_url,omitempty"`
	// Workers is the number of demo heartbeat workers to monitor.
	Workers int `json:"workers,omitempty"`
	// StallAfter makes the last worker stop reporting after this long, to
	// demonstrate the alert path. Zero disables the stall.
	StallAfter models.Duration `json:"stall_after,omitempty"`
}

func (c *Config) Validate() error {
	if c.Workers < 0 {
		return errInvalidWorkerCount
	}

	if c.Workers == 0 {
		c.Workers = 2
	}

	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/hangwatch/hangwatch.json", "Path to hangwatch config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := Config{Monitor: hangmon.Config{Enabled: true}}

	if _, err := os.Stat(*configPath); err == nil {
		cfgLoader := config.NewConfig(nil)

		if err := cfgLoader.LoadAndValidate(ctx, *configPath, &cfg); err != nil {
			return fmt.Errorf("%w: %w", errFailedToLoadConfig, err)
		}
	} else if err := cfg.Validate(); err != nil {
		return err
	}

	mainLogger, err := logger.New(cfg.Monitor.Logging, "hangwatch")
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	snk, cleanup, err := buildSink(ctx, &cfg, mainLogger)
	if err != nil {
		return err
	}
	defer cleanup()

	control := make(chan hangmon.ControlMessage, 1)

	registry, done := hangmon.Start(&cfg.Monitor, snk, control, nil, mainLogger)

	var wg sync.WaitGroup

	for i := 0; i < cfg.Workers; i++ {
		stall := time.Duration(0)
		if i == cfg.Workers-1 {
			stall = time.Duration(cfg.StallAfter)
		}

		wg.Add(1)

		go func(index uint32, stallAfter time.Duration) {
			defer wg.Done()
			runWorker(registry, index, stallAfter, mainLogger)
		}(uint32(i), stall)
	}

	<-ctx.Done()

	mainLogger.Info().Msg("Shutting down")

	control <- hangmon.ControlMessage{Kind: hangmon.ControlExit}

	wg.Wait()
	registry.Close()
	<-done

	return nil
}

func buildSink(ctx context.Context, cfg *Config, log logger.Logger) (sink.Sink, func(), error) {
	if cfg.NATSURL != "" {
		natsSink, nc, err := sink.Connect(cfg.NATSURL, "hangwatch/daemon")
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect alert sink: %w", err)
		}

		return natsSink, nc.Close, nil
	}

	channelSink := sink.NewChannelSink(64)

	// Without NATS the supervisor is this process; drain alerts to the log
	// until the signal context ends the run.
	go channelSink.DrainToLog(ctx, log)

	return channelSink, func() {}, nil
}

// exitSignal adapts a close-once channel to hangmon.ExitSignaler.
type exitSignal struct {
	once sync.Once
	ch   chan struct{}
}

func newExitSignal() *exitSignal {
	return &exitSignal{ch: make(chan struct{})}
}

func (s *exitSignal) SignalToExit() {
	s.once.Do(func() { close(s.ch) })
}

// runWorker registers a heartbeat worker and reports activity until told
// to exit. When stallAfter is positive the worker goes silent after that
// long, so the monitor's alerts can be observed end to end.
func runWorker(registry *hangmon.Registry, index uint32, stallAfter time.Duration, log logger.Logger) {
	sig := newExitSignal()

	id := models.ComponentID{Namespace: 0, Index: index, Kind: "heartbeat"}

	handle := registry.RegisterComponent(id, fmt.Sprintf("worker-%d", index), 200*time.Millisecond, 2*time.Second, sig)
	defer handle.Unregister()

	started := time.Now()
	stalled := false

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-sig.ch:
			log.Debug().Uint32("worker", index).Msg("Worker exiting")
			return
		case <-ticker.C:
			if stallAfter > 0 && time.Since(started) > stallAfter {
				// Report one last activity and then go silent, so the
				// component counts as hung rather than waiting.
				if !stalled {
					handle.NotifyActivity("stalled")
					stalled = true
				}

				continue
			}

			handle.NotifyActivity("heartbeat")
			time.Sleep(10 * time.Millisecond)
			handle.NotifyWait()
		}
	}
}
