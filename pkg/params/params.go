// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package params defines the parameter sets handed to stencil kernels.
//
// # Overview
//
// A Set has a fixed block of known fields shared by every kernel (backend,
// compiler, alignment, data type, domain, block size, ...) and an Options
// extension area for variant-specific overrides such as loop layout, halo
// width, axis, and direction flags. Option keys are checked against a table
// of known names and value kinds, so a misspelled override fails validation
// instead of being silently ignored.
//
// Sets are values. With* methods return modified copies and never touch the
// receiver, which lets a suite derive many variants from one base set.
package params

import (
	"errors"
	"fmt"
	"maps"
	"strconv"
	"strings"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrInvalidParameters is returned by Validate for any rejected set.
	ErrInvalidParameters = errors.New("invalid parameters")

	// ErrUnknownBackend is returned by ParseBackend.
	ErrUnknownBackend = errors.New("unknown backend")

	// ErrUnknownDType is returned by ParseDType.
	ErrUnknownDType = errors.New("unknown data type")
)

// -----------------------------------------------------------------------------
// Backend and data type tags
// -----------------------------------------------------------------------------

// Backend identifies the GPU programming backend.
type Backend string

const (
	BackendCUDA Backend = "cuda"
	BackendHIP  Backend = "hip"
)

// Backends lists the accepted backend tags in CLI order.
var Backends = []Backend{BackendCUDA, BackendHIP}

// ParseBackend converts a CLI argument to a Backend.
func ParseBackend(s string) (Backend, error) {
	for _, b := range Backends {
		if string(b) == s {
			return b, nil
		}
	}
	return "", fmt.Errorf("%w: %q (choose from cuda, hip)", ErrUnknownBackend, s)
}

// DType is the element type of the stencil fields.
type DType string

const (
	Float32 DType = "float32"
	Float64 DType = "float64"
)

// ParseDType converts a CLI argument to a DType.
func ParseDType(s string) (DType, error) {
	switch DType(s) {
	case Float32, Float64:
		return DType(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDType, s)
}

// Size returns the element size in bytes, or 0 for an unknown type.
func (d DType) Size() int {
	switch d {
	case Float32:
		return 4
	case Float64:
		return 8
	default:
		return 0
	}
}

// -----------------------------------------------------------------------------
// Tuples and domains
// -----------------------------------------------------------------------------

// Tuple is an ordered list of integer extents.
type Tuple []int

// TupleOf builds a Tuple from its components.
func TupleOf(v ...int) Tuple {
	return Tuple(v)
}

// String renders the tuple as space-separated integers.
func (t Tuple) String() string {
	parts := make([]string, len(t))
	for i, v := range t {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, " ")
}

// Clone returns an independent copy; nil stays nil.
func (t Tuple) Clone() Tuple {
	if t == nil {
		return nil
	}
	out := make(Tuple, len(t))
	copy(out, t)
	return out
}

// Equal reports whether both tuples have the same components.
func (t Tuple) Equal(o Tuple) bool {
	if len(t) != len(o) {
		return false
	}
	for i := range t {
		if t[i] != o[i] {
			return false
		}
	}
	return true
}

// Product returns the product of all components.
func (t Tuple) Product() int {
	p := 1
	for _, v := range t {
		p *= v
	}
	return p
}

// Domain is a three-dimensional problem size (i, j, k).
type Domain [3]int

// Tuple converts the domain to a Tuple.
func (d Domain) Tuple() Tuple {
	return Tuple{d[0], d[1], d[2]}
}

// String renders the domain as space-separated integers.
func (d Domain) String() string {
	return d.Tuple().String()
}

// -----------------------------------------------------------------------------
// Set
// -----------------------------------------------------------------------------

// Set is the resolved parameter set for one kernel instance.
type Set struct {
	Backend         Backend `validate:"required,oneof=cuda hip"`
	Compiler        string  `validate:"required"`
	GPUArchitecture string  `validate:"required"`
	Verify          bool
	RunTwice        bool
	GPUTimers       bool
	Alignment       int   `validate:"oneof=64 128"`
	DType           DType `validate:"required,oneof=float32 float64"`

	// Domain is nil until the sweep assigns one.
	Domain Tuple `validate:"omitempty,len=3,dive,gt=0"`

	// BlockSize is nil for kernels without a tiling parameter.
	BlockSize Tuple `validate:"omitempty,min=1,max=3,dive,gt=0"`

	// Options holds variant-specific overrides keyed by option name.
	Options Options
}

// Clone returns a deep copy of the set.
func (s Set) Clone() Set {
	out := s
	out.Domain = s.Domain.Clone()
	out.BlockSize = s.BlockSize.Clone()
	out.Options = maps.Clone(s.Options)
	return out
}

// WithDomain returns a copy with the domain replaced.
func (s Set) WithDomain(d Domain) Set {
	out := s.Clone()
	out.Domain = d.Tuple()
	return out
}

// WithBlockSize returns a copy with the block size replaced.
func (s Set) WithBlockSize(b ...int) Set {
	out := s.Clone()
	out.BlockSize = TupleOf(b...).Clone()
	return out
}

// With returns a copy with one option set.
func (s Set) With(key string, value any) Set {
	out := s.Clone()
	if out.Options == nil {
		out.Options = make(Options)
	}
	out.Options[key] = value
	return out
}

// WithOptions returns a copy with every given option set.
func (s Set) WithOptions(opts Options) Set {
	out := s.Clone()
	if out.Options == nil {
		out.Options = make(Options, len(opts))
	}
	maps.Copy(out.Options, opts)
	return out
}

// Has reports whether an option is present.
func (s Set) Has(key string) bool {
	_, ok := s.Options[key]
	return ok
}

// IntOption returns an integer option or def when absent or mistyped.
func (s Set) IntOption(key string, def int) int {
	if v, ok := s.Options[key].(int); ok {
		return v
	}
	return def
}

// BoolOption returns a boolean option or def when absent or mistyped.
func (s Set) BoolOption(key string, def bool) bool {
	if v, ok := s.Options[key].(bool); ok {
		return v
	}
	return def
}

// StringOption returns a string option or def when absent or mistyped.
func (s Set) StringOption(key string, def string) string {
	if v, ok := s.Options[key].(string); ok {
		return v
	}
	return def
}
