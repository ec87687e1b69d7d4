// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package suites declares the benchmark suites and the registry the CLI
// builds its commands from.
package suites

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/AleutianAI/sbench/pkg/params"
	"github.com/AleutianAI/sbench/pkg/sweep"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrNotFound is returned when a suite is not registered.
	ErrNotFound = errors.New("suite not found")

	// ErrAlreadyRegistered is returned when a suite name is taken.
	ErrAlreadyRegistered = errors.New("suite already registered")

	// ErrInvalidSuite is returned when a suite declaration is incomplete.
	ErrInvalidSuite = errors.New("invalid suite")
)

// Suite is one benchmark command: a named, declarative variant table.
type Suite struct {
	// Name is the command name, e.g. "basic-bandwidth".
	Name string

	// Short is the one-line command description.
	Short string

	// DefaultDType is the --dtype default.
	DefaultDType params.DType

	// Variants derives the variant table from the base parameter set. It
	// may branch on base.Backend but must not have other control flow.
	Variants func(base params.Set) []sweep.Variant

	// Preprocess is applied to every variant's parameters after the domain
	// is merged in. Nil means unchanged.
	Preprocess func(params.Set) params.Set
}

// Validate checks that the declaration is complete.
func (s Suite) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidSuite)
	}
	if s.Variants == nil {
		return fmt.Errorf("%w: variants are required for %s", ErrInvalidSuite, s.Name)
	}
	if _, err := params.ParseDType(string(s.DefaultDType)); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidSuite, s.Name, err)
	}
	return nil
}

// Sweep builds the sweep description for one invocation.
func (s Suite) Sweep(base params.Set, executions int) sweep.Sweep {
	return sweep.Sweep{
		Domains:    sweep.Domains(),
		Variants:   s.Variants(base),
		Executions: executions,
		Preprocess: s.Preprocess,
	}
}

// Registry maps command names to suites.
//
// Thread Safety: Safe for concurrent use via read-write mutex.
type Registry struct {
	mu     sync.RWMutex
	suites map[string]Suite
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{suites: make(map[string]Suite)}
}

// Register adds a suite under its name.
//
// Outputs:
//   - error: ErrInvalidSuite for an incomplete declaration,
//     ErrAlreadyRegistered if the name is taken.
func (r *Registry) Register(s Suite) error {
	if err := s.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.suites[s.Name]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, s.Name)
	}
	r.suites[s.Name] = s
	return nil
}

// MustRegister registers a suite and panics on error. For use during
// initialization only.
func (r *Registry) MustRegister(s Suite) {
	if err := r.Register(s); err != nil {
		panic(fmt.Sprintf("suites: failed to register %s: %v", s.Name, err))
	}
}

// Get returns the suite registered under name.
func (r *Registry) Get(name string) (Suite, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.suites[name]
	if !ok {
		return Suite{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return s, nil
}

// List returns the registered suite names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.suites))
	for name := range r.suites {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Default holds the built-in suites.
var Default = NewRegistry()

func init() {
	Default.MustRegister(BasicBandwidth)
	Default.MustRegister(HorizontalDiffusionBandwidth)
	Default.MustRegister(VerticalAdvectionBandwidth)
}
