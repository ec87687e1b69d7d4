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
	"iter"
	"math/rand/v2"
	"unsafe"

	"github.com/AleutianAI/sbench/pkg/params"
)

// Float is the element type of a field.
type Float interface {
	~float32 | ~float64
}

// -----------------------------------------------------------------------------
// Layout
// -----------------------------------------------------------------------------

// layout describes a halo-padded, i-contiguous 3D field.
//
// Rows are padded so that every (0, j, k) interior point starts on an
// alignment boundary, and the origin is shifted so that (0, 0, 0) is
// aligned as well.
type layout struct {
	isize, jsize, ksize int
	halo                int
	jstride, kstride    int
	origin              int
	size                int
}

func roundUp(n, m int) int {
	if m <= 1 {
		return n
	}
	return (n + m - 1) / m * m
}

// newLayout builds the layout of a domain with the given halo and alignment
// in elements.
func newLayout(domain params.Domain, halo, alignElems int) layout {
	l := layout{
		isize: domain[0],
		jsize: domain[1],
		ksize: domain[2],
		halo:  halo,
	}
	l.jstride = roundUp(l.isize+2*halo, alignElems)
	l.kstride = l.jstride * (l.jsize + 2*halo)

	pad := roundUp(halo, alignElems) - halo
	l.origin = pad + halo + halo*l.jstride + halo*l.kstride
	l.size = pad + l.kstride*(l.ksize+2*halo)
	return l
}

// maxFieldElements bounds the storage of one field. Domains whose fields
// would be larger are rejected before anything is allocated.
const maxFieldElements = 1 << 32

// fieldElements returns an upper estimate of the storage newLayout and alloc
// would need for one field, and false when it exceeds maxFieldElements.
// The estimate is computed in floating point so that it cannot overflow.
func fieldElements(domain params.Domain, halo, alignElems int) (int, bool) {
	row := float64(domain[0]) + 2*float64(halo) + float64(alignElems)
	n := row*(float64(domain[1])+2*float64(halo))*(float64(domain[2])+2*float64(halo)) + 2*float64(alignElems)
	if n > maxFieldElements {
		return 0, false
	}
	return int(n), true
}

// index returns the storage index of interior point (i, j, k). Negative and
// past-the-end coordinates address the halo.
func (l layout) index(i, j, k int) int {
	return l.origin + i + j*l.jstride + k*l.kstride
}

// points returns the number of interior points.
func (l layout) points() int {
	return l.isize * l.jsize * l.ksize
}

// interior yields the storage index of every interior point.
func (l layout) interior() iter.Seq[int] {
	return func(yield func(int) bool) {
		for k := range l.ksize {
			for j := range l.jsize {
				row := l.index(0, j, k)
				for i := range l.isize {
					if !yield(row + i) {
						return
					}
				}
			}
		}
	}
}

// -----------------------------------------------------------------------------
// Tiling
// -----------------------------------------------------------------------------

// tile is one block of work. Flat tiles cover the storage index range
// [lo, hi); others cover [i0,i1) x [j0,j1) x [k0,k1) in interior
// coordinates.
type tile struct {
	flat   bool
	lo, hi int

	i0, i1 int
	j0, j1 int
	k0, k1 int
}

// tiles yields the blocks of one pass.
//
// A 1D loop walks the storage linearly from the first to the last interior
// point in chunks of block[0] elements. A 3D loop tiles the interior by the
// block size; a missing k component means whole columns.
func (l layout) tiles(block params.Tuple, loop string) iter.Seq[tile] {
	if loop == LoopOneD {
		lo := l.index(0, 0, 0)
		hi := l.index(l.isize-1, l.jsize-1, l.ksize-1) + 1
		step := block[0]
		return func(yield func(tile) bool) {
			for a := lo; a < hi; a += step {
				if !yield(tile{flat: true, lo: a, hi: min(a+step, hi)}) {
					return
				}
			}
		}
	}

	bi, bj, bk := block[0], 1, l.ksize
	if len(block) > 1 {
		bj = block[1]
	}
	if len(block) > 2 {
		bk = block[2]
	}
	return func(yield func(tile) bool) {
		for k0 := 0; k0 < l.ksize; k0 += bk {
			for j0 := 0; j0 < l.jsize; j0 += bj {
				for i0 := 0; i0 < l.isize; i0 += bi {
					t := tile{
						i0: i0, i1: min(i0+bi, l.isize),
						j0: j0, j1: min(j0+bj, l.jsize),
						k0: k0, k1: min(k0+bk, l.ksize),
					}
					if !yield(t) {
						return
					}
				}
			}
		}
	}
}

// -----------------------------------------------------------------------------
// Allocation
// -----------------------------------------------------------------------------

// alloc returns n zeroed elements whose first element sits on an alignment
// byte boundary.
func alloc[T Float](n, alignment int) []T {
	var zero T
	size := int(unsafe.Sizeof(zero))
	if alignment <= size {
		return make([]T, n)
	}

	buf := make([]T, n+alignment/size)
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
	shift := 0
	if rem := int(addr % uintptr(alignment)); rem != 0 {
		shift = (alignment - rem) / size
	}
	return buf[shift : shift+n : shift+n]
}

// alignedField allocates a field for l and fills every element, halo
// included, with deterministic values in [lo, hi).
func alignedField[T Float](l layout, alignment int, rng *rand.Rand, lo, hi float64) []T {
	f := alloc[T](l.size, alignment)
	for i := range f {
		f[i] = T(lo + (hi-lo)*rng.Float64())
	}
	return f
}

// newRand returns the generator used for field initialization. Fixed seeds
// keep runs and their reference checks reproducible.
func newRand() *rand.Rand {
	return rand.New(rand.NewPCG(0x5be4c4, 0x9e3779b97f4a7c15))
}

// elemSize returns the byte size of T.
func elemSize[T Float]() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}
