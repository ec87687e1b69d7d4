// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package kernels

import (
	"errors"
	"fmt"

	"github.com/AleutianAI/sbench/pkg/params"
	"github.com/AleutianAI/sbench/pkg/sweep"
)

// =============================================================================
// Basic bandwidth kernels
// =============================================================================

var basicLoops = []string{LoopOneD, LoopThreeD}

// pointFunc computes one output element from the source field at a storage
// index.
type pointFunc[T Float] func(src []T, idx int) T

// basicKernel applies a point function from src to dst.
type basicKernel[T Float] struct {
	l        layout
	src, dst []T
	point    pointFunc[T]
	reads    int
}

func newBasic[T Float](s settings, reads int, point pointFunc[T]) *basicKernel[T] {
	rng := newRand()
	k := &basicKernel[T]{l: s.layout, point: point, reads: reads}
	if point != nil {
		k.src = alignedField[T](s.layout, s.alignment, rng, -1, 1)
		k.dst = alloc[T](s.layout.size, s.alignment)
	}
	return k
}

func (k *basicKernel[T]) apply(t tile) {
	if k.point == nil {
		return
	}
	src, dst := k.src, k.dst
	if t.flat {
		for idx := t.lo; idx < t.hi; idx++ {
			dst[idx] = k.point(src, idx)
		}
		return
	}
	for kk := t.k0; kk < t.k1; kk++ {
		for j := t.j0; j < t.j1; j++ {
			row := k.l.index(0, j, kk)
			for i := t.i0; i < t.i1; i++ {
				dst[row+i] = k.point(src, row+i)
			}
		}
	}
}

func (k *basicKernel[T]) reference() []T {
	out := make([]T, k.l.size)
	for idx := range k.l.interior() {
		out[idx] = k.point(k.src, idx)
	}
	return out
}

func (k *basicKernel[T]) output() []T {
	if k.point == nil {
		return nil
	}
	return k.dst
}

func (k *basicKernel[T]) accesses() int {
	if k.point == nil {
		return 0
	}
	return k.reads + 1
}

func (k *basicKernel[T]) release() {
	k.src, k.dst = nil, nil
}

// stride returns the storage stride of an axis.
func (l layout) stride(axis int) int {
	switch axis {
	case 0:
		return 1
	case 1:
		return l.jstride
	default:
		return l.kstride
	}
}

// axisOption reads and checks the axis option.
func axisOption(p params.Set) (int, error) {
	if !p.Has(params.OptAxis) {
		return 0, errors.New("axis option is required")
	}
	axis := p.IntOption(params.OptAxis, -1)
	if axis < 0 || axis > 2 {
		return 0, fmt.Errorf("axis %d out of range 0..2", axis)
	}
	return axis, nil
}

// -----------------------------------------------------------------------------
// Capabilities
// -----------------------------------------------------------------------------

var copyShape = shape{name: "copy", rank: 3, loops: basicLoops, halo: optionHalo}

// Copy copies one field to another.
func Copy(domain params.Domain, p params.Set) (sweep.Instance, error) {
	return construct(copyShape, domain, p, newCopy[float32], newCopy[float64])
}

func newCopy[T Float](s settings) (kernel[T], error) {
	return newBasic[T](s, 1, func(src []T, idx int) T { return src[idx] }), nil
}

var emptyShape = shape{name: "empty", rank: 3, loops: basicLoops, halo: optionHalo}

// Empty launches the tiling without touching memory. It measures the
// fixed cost of a pass.
func Empty(domain params.Domain, p params.Set) (sweep.Instance, error) {
	return construct(emptyShape, domain, p, newEmpty[float32], newEmpty[float64])
}

func newEmpty[T Float](s settings) (kernel[T], error) {
	return newBasic[T](s, 0, nil), nil
}

var onesidedShape = shape{name: "onesided-average", rank: 3, loops: basicLoops, halo: optionHalo, minHalo: 1}

// OnesidedAverage averages each point with its successor along the axis
// option.
func OnesidedAverage(domain params.Domain, p params.Set) (sweep.Instance, error) {
	return construct(onesidedShape, domain, p, newOnesided[float32], newOnesided[float64])
}

func newOnesided[T Float](s settings) (kernel[T], error) {
	axis, err := axisOption(s.params)
	if err != nil {
		return nil, err
	}
	st := s.layout.stride(axis)
	return newBasic[T](s, 1, func(src []T, idx int) T {
		return (src[idx] + src[idx+st]) / 2
	}), nil
}

var symmetricShape = shape{name: "symmetric-average", rank: 3, loops: basicLoops, halo: optionHalo, minHalo: 1}

// SymmetricAverage averages the two neighbors of each point along the axis
// option.
func SymmetricAverage(domain params.Domain, p params.Set) (sweep.Instance, error) {
	return construct(symmetricShape, domain, p, newSymmetric[float32], newSymmetric[float64])
}

func newSymmetric[T Float](s settings) (kernel[T], error) {
	axis, err := axisOption(s.params)
	if err != nil {
		return nil, err
	}
	st := s.layout.stride(axis)
	return newBasic[T](s, 1, func(src []T, idx int) T {
		return (src[idx-st] + src[idx+st]) / 2
	}), nil
}

var laplacianShape = shape{name: "laplacian", rank: 3, loops: basicLoops, halo: optionHalo, minHalo: 1}

// Laplacian computes the discrete Laplacian along the enabled directions.
func Laplacian(domain params.Domain, p params.Set) (sweep.Instance, error) {
	return construct(laplacianShape, domain, p, newLaplacian[float32], newLaplacian[float64])
}

func newLaplacian[T Float](s settings) (kernel[T], error) {
	var strides []int
	for axis, key := range []string{params.OptAlongX, params.OptAlongY, params.OptAlongZ} {
		if s.params.BoolOption(key, false) {
			strides = append(strides, s.layout.stride(axis))
		}
	}
	if len(strides) == 0 {
		return nil, errors.New("laplacian needs at least one of along-x, along-y, along-z")
	}
	center := T(2 * len(strides))
	return newBasic[T](s, 1, func(src []T, idx int) T {
		v := center * src[idx]
		for _, st := range strides {
			v -= src[idx-st] + src[idx+st]
		}
		return v
	}), nil
}
