// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation checks user-provided paths before a sweep starts.
//
// A full sweep can run for hours; an output path that cannot be written
// should fail the command before the first kernel is built, not after the
// last one finished.
package validation

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidOutput is returned for an unusable output path.
var ErrInvalidOutput = errors.New("invalid output path")

// OutputPath validates a result file destination.
//
// Valid paths:
//   - are not empty or all whitespace
//   - do not name an existing directory
//   - have an existing parent directory
//
// An existing regular file is valid; it is replaced.
//
// Example:
//
//	if err := validation.OutputPath(output); err != nil {
//	    return err
//	}
func OutputPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("%w: path cannot be empty", ErrInvalidOutput)
	}

	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrInvalidOutput, path)
	}

	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("%w: parent directory %s: %v", ErrInvalidOutput, dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrInvalidOutput, dir)
	}
	return nil
}
