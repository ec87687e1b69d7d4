// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sweep

import (
	"errors"
	"fmt"

	"github.com/AleutianAI/sbench/pkg/params"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrInvalidSweep is returned when a sweep description cannot be run.
	ErrInvalidSweep = errors.New("invalid sweep")

	// ErrClosed is wrapped by kernels whose Run is called after Close.
	ErrClosed = errors.New("kernel instance already closed")
)

// ConfigurationError reports an invalid or inconsistent parameter
// combination, detected while constructing a kernel instance.
//
// # Example
//
//	var cfgErr *sweep.ConfigurationError
//	if errors.As(err, &cfgErr) {
//	    fmt.Println(cfgErr.Variant, cfgErr.Domain)
//	}
type ConfigurationError struct {
	// Variant is the variant name, empty if the kernel did not know it.
	Variant string

	// Domain is the domain the instance was being built for.
	Domain params.Domain

	// Err is the underlying cause.
	Err error
}

// Error returns a formatted error message.
func (e *ConfigurationError) Error() string {
	if e.Variant != "" {
		return fmt.Sprintf("configuration error in %s at domain %s: %v", e.Variant, e.Domain, e.Err)
	}
	return fmt.Sprintf("configuration error at domain %s: %v", e.Domain, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// NewConfigurationError wraps cause as a ConfigurationError.
func NewConfigurationError(domain params.Domain, cause error) *ConfigurationError {
	return &ConfigurationError{Domain: domain, Err: cause}
}

// ExecutionError reports a failure during a timed run.
type ExecutionError struct {
	Variant    string
	Domain     params.Domain
	Repetition int
	Err        error
}

// Error returns a formatted error message.
func (e *ExecutionError) Error() string {
	if e.Variant != "" {
		return fmt.Sprintf("execution error in %s at domain %s (repetition %d): %v",
			e.Variant, e.Domain, e.Repetition, e.Err)
	}
	return fmt.Sprintf("execution error at domain %s: %v", e.Domain, e.Err)
}

// Unwrap returns the underlying error.
func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// NewExecutionError wraps cause as an ExecutionError.
func NewExecutionError(domain params.Domain, cause error) *ExecutionError {
	return &ExecutionError{Domain: domain, Err: cause}
}

// attachVariant names the variant on the ConfigurationError or
// ExecutionError carried by err when the kernel left it empty. err itself is
// not replaced.
func attachVariant(err error, variant string) {
	var cfgErr *ConfigurationError
	if errors.As(err, &cfgErr) && cfgErr.Variant == "" {
		cfgErr.Variant = variant
	}
	var execErr *ExecutionError
	if errors.As(err, &execErr) && execErr.Variant == "" {
		execErr.Variant = variant
	}
}

// IsConfigurationError reports whether err carries a ConfigurationError.
func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// IsExecutionError reports whether err carries an ExecutionError.
func IsExecutionError(err error) bool {
	var target *ExecutionError
	return errors.As(err, &target)
}
