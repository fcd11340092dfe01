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

// Package config loads and validates the JSON configuration of the
// hangwatch daemon.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/carverauto/hangwatch/pkg/logger"
)

// Validator is implemented by configs that can validate themselves.
type Validator interface {
	Validate() error
}

// Config holds the configuration loading dependencies.
type Config struct {
	logger logger.Logger
}

// NewConfig initializes a new Config instance. If log is nil, a quiet
// stderr logger is used during loading.
func NewConfig(log logger.Logger) *Config {
	if log == nil {
		log = createBasicLogger()
	}

	return &Config{logger: log}
}

// LoadAndValidate reads path as JSON into cfg and validates the result if
// it implements Validator.
func (c *Config) LoadAndValidate(_ context.Context, path string, cfg interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w %q: %w", errReadConfigFile, path, err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("%w %q: %w", errParseConfigFile, path, err)
	}

	c.logger.Debug().Str("path", path).Msg("Configuration loaded")

	return ValidateConfig(cfg)
}

// ValidateConfig validates a configuration if it implements Validator.
func ValidateConfig(cfg interface{}) error {
	v, ok := cfg.(Validator)
	if !ok {
		return nil
	}

	return v.Validate()
}

func createBasicLogger() logger.Logger {
	log, err := logger.New(&logger.Config{Level: "warn", Output: "stderr"}, "config")
	if err != nil {
		// ParseLevel cannot fail on the literal above.
		panic(err)
	}

	// Quiet default so config loading never spams stdout.
	log.SetLevel(zerolog.WarnLevel)

	return log
}
