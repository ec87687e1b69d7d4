// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package kernels provides host implementations of the bandwidth stencils.
//
// Every exported kernel is a sweep.Capability. Construction validates the
// parameter set and allocates aligned, halo-padded fields; Run executes an
// optional warm-up pass and one timed pass tiled by the block size, and
// reports the elapsed time and the effective bandwidth. The kernels run on
// the CPU so that sweeps work without a GPU toolchain; their numbers are
// host numbers.
package kernels

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/AleutianAI/sbench/pkg/params"
	"github.com/AleutianAI/sbench/pkg/sweep"
	"github.com/AleutianAI/sbench/pkg/table"
)

// Loop layouts.
const (
	LoopOneD   = "1D"
	LoopThreeD = "3D"
)

// Measurement columns of a run record.
const (
	ColumnTime      = "time"
	ColumnBandwidth = "bandwidth"
)

// settings are the resolved construction inputs shared by every kernel.
type settings struct {
	domain    params.Domain
	block     params.Tuple
	loop      string
	halo      int
	alignment int
	params    params.Set
	layout    layout
}

// kernel is the per-type body of an instance.
type kernel[T Float] interface {
	// apply computes one tile of the output.
	apply(t tile)

	// reference recomputes the whole output with a plain loop into a new
	// slice laid out like output().
	reference() []T

	// output is the field apply writes.
	output() []T

	// accesses is the number of field reads and writes per interior point.
	accesses() int

	// release drops every field.
	release()
}

type factory[T Float] func(s settings) (kernel[T], error)

// shape describes the construction rules of one kernel.
type shape struct {
	name  string
	rank  int
	loops []string

	// halo resolves the halo width from the parameters.
	halo func(p params.Set) int

	// minHalo is the smallest halo the kernel's neighbor accesses allow.
	minHalo int
}

// optionHalo reads the halo option, defaulting to 0.
func optionHalo(p params.Set) int {
	return p.IntOption(params.OptHalo, 0)
}

// fixedHalo returns a halo resolver that ignores the parameters.
func fixedHalo(h int) func(params.Set) int {
	return func(params.Set) int { return h }
}

// configError builds a ConfigurationError for a kernel.
func configError(name string, domain params.Domain, format string, args ...any) error {
	return &sweep.ConfigurationError{Domain: domain, Err: fmt.Errorf("%s: %s", name, fmt.Sprintf(format, args...))}
}

// construct validates p against sp and builds the instance for the set's
// data type.
func construct(sp shape, domain params.Domain, p params.Set, f32 factory[float32], f64 factory[float64]) (sweep.Instance, error) {
	if err := p.Validate(); err != nil {
		return nil, &sweep.ConfigurationError{Domain: domain, Err: fmt.Errorf("%s: %w", sp.name, err)}
	}
	for axis, d := range domain {
		if d <= 0 {
			return nil, configError(sp.name, domain, "domain extent %d along axis %d must be positive", d, axis)
		}
	}

	if len(p.BlockSize) != sp.rank {
		return nil, configError(sp.name, domain, "block size %q must have %d components", p.BlockSize.String(), sp.rank)
	}

	loop := p.StringOption(params.OptLoop, LoopThreeD)
	if !slices.Contains(sp.loops, loop) {
		return nil, configError(sp.name, domain, "loop %q not supported (choose from %v)", loop, sp.loops)
	}

	halo := sp.halo(p)
	if halo < sp.minHalo {
		return nil, configError(sp.name, domain, "halo %d too small, need at least %d", halo, sp.minHalo)
	}
	for axis, d := range domain {
		if 2*halo >= d {
			return nil, configError(sp.name, domain, "halo %d does not fit domain extent %d along axis %d", halo, d, axis)
		}
	}

	if size := p.DType.Size(); size > 0 {
		if _, ok := fieldElements(domain, halo, max(1, p.Alignment/size)); !ok {
			return nil, configError(sp.name, domain, "domain too large: a field would exceed %d elements", maxFieldElements)
		}
	}

	s := settings{
		domain:    domain,
		block:     p.BlockSize.Clone(),
		loop:      loop,
		halo:      halo,
		alignment: p.Alignment,
		params:    p,
	}

	switch p.DType {
	case params.Float32:
		return newInstance(sp, s, f32)
	case params.Float64:
		return newInstance(sp, s, f64)
	default:
		return nil, configError(sp.name, domain, "unsupported dtype %q", p.DType)
	}
}

// -----------------------------------------------------------------------------
// Instance
// -----------------------------------------------------------------------------

type instance[T Float] struct {
	shape  shape
	s      settings
	k      kernel[T]
	runs   int
	closed bool
}

func newInstance[T Float](sp shape, s settings, f factory[T]) (sweep.Instance, error) {
	s.layout = newLayout(s.domain, s.halo, max(1, s.alignment/elemSize[T]()))
	k, err := f(s)
	if err != nil {
		return nil, &sweep.ConfigurationError{Domain: s.domain, Err: fmt.Errorf("%s: %w", sp.name, err)}
	}
	return &instance[T]{shape: sp, s: s, k: k}, nil
}

// pass computes the whole output once.
func (in *instance[T]) pass() {
	for t := range in.s.layout.tiles(in.s.block, in.s.loop) {
		in.k.apply(t)
	}
}

// Run implements sweep.Instance.
func (in *instance[T]) Run() (table.Row, error) {
	rep := in.runs
	in.runs++
	if in.closed {
		return nil, &sweep.ExecutionError{Domain: in.s.domain, Repetition: rep,
			Err: fmt.Errorf("%s: %w", in.shape.name, sweep.ErrClosed)}
	}

	if in.s.params.RunTwice {
		in.pass()
	}
	start := time.Now()
	in.pass()
	elapsed := time.Since(start).Seconds()

	if in.s.params.Verify {
		if err := in.verify(); err != nil {
			return nil, &sweep.ExecutionError{Domain: in.s.domain, Repetition: rep,
				Err: fmt.Errorf("%s: %w", in.shape.name, err)}
		}
	}

	bytes := float64(in.s.layout.points() * in.k.accesses() * elemSize[T]())
	bandwidth := 0.0
	if bytes > 0 && elapsed > 0 {
		bandwidth = bytes / elapsed / 1e9
	}
	return table.Row{
		{Key: ColumnTime, Value: elapsed},
		{Key: ColumnBandwidth, Value: bandwidth},
	}, nil
}

// verify compares the interior of the output with the reference loop.
func (in *instance[T]) verify() error {
	got := in.k.output()
	if got == nil {
		return nil
	}
	want := in.k.reference()

	tol := 1e-12
	if elemSize[T]() == 4 {
		tol = 1e-5
	}
	for idx := range in.s.layout.interior() {
		g, w := float64(got[idx]), float64(want[idx])
		if math.IsNaN(g) || math.Abs(g-w) > tol*max(1, math.Abs(w)) {
			return fmt.Errorf("verification failed at storage index %d: got %g, want %g", idx, g, w)
		}
	}
	return nil
}

// Parameters implements sweep.Instance.
func (in *instance[T]) Parameters() params.Set {
	return in.s.params
}

// Close implements sweep.Instance. Closing twice is a no-op.
func (in *instance[T]) Close() error {
	if in.closed {
		return nil
	}
	in.closed = true
	in.k.release()
	in.k = nil
	return nil
}
