// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the optional sbench YAML file that supplies defaults
// for the CLI's persistent flags.
package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidConfig is returned when a loaded file fails validation.
var ErrInvalidConfig = errors.New("invalid config")

// SbenchConfig is the on-disk configuration. Command-line flags override
// every field.
type SbenchConfig struct {
	Log        LogConfig       `yaml:"log"`
	Telemetry  TelemetryConfig `yaml:"telemetry"`
	Progress   string          `yaml:"progress" validate:"oneof=auto bar plain none"`
	Executions int             `yaml:"executions" validate:"gt=0"`
}

// LogConfig configures pkg/logging.
type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn warning error"`
	JSON  bool   `yaml:"json"`
	Dir   string `yaml:"dir,omitempty"`
}

// TelemetryConfig names the optional telemetry output files. Empty means
// disabled.
type TelemetryConfig struct {
	MetricsFile string `yaml:"metrics_file,omitempty"`
	TraceFile   string `yaml:"trace_file,omitempty"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() SbenchConfig {
	return SbenchConfig{
		Log: LogConfig{
			Level: "info",
		},
		Progress:   "auto",
		Executions: 101,
	}
}

var validate = validator.New()

// Validate checks enumerated fields and the execution count.
func (c SbenchConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %q (got %v)", ErrInvalidConfig, fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}
