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
	"github.com/AleutianAI/sbench/pkg/params"
	"github.com/AleutianAI/sbench/pkg/sweep"
)

// =============================================================================
// Horizontal diffusion
// =============================================================================
//
// out = in - coeff * (flx(i) - flx(i-1) + fly(j) - fly(j-1)), where the
// fluxes are differences of the 5-point Laplacian of in, zeroed when they
// point against the gradient of in. The Laplacian of a flux neighbor reaches
// two points out, so the halo is fixed at 2.

const hdiffHalo = 2

// hdiffFields holds the storage shared by the three schedules.
type hdiffFields[T Float] struct {
	l              layout
	in, coeff, out []T
}

func newHdiffFields[T Float](s settings) hdiffFields[T] {
	rng := newRand()
	return hdiffFields[T]{
		l:     s.layout,
		in:    alignedField[T](s.layout, s.alignment, rng, -1, 1),
		coeff: alignedField[T](s.layout, s.alignment, rng, 0, 0.1),
		out:   alloc[T](s.layout.size, s.alignment),
	}
}

func (f *hdiffFields[T]) lap(idx int) T {
	in, js := f.in, f.l.jstride
	return 4*in[idx] - (in[idx+1] + in[idx-1] + in[idx+js] + in[idx-js])
}

// flux limits a Laplacian difference against the gradient of in.
func flux[T Float](d, grad T) T {
	if d*grad > 0 {
		return 0
	}
	return d
}

func (f *hdiffFields[T]) flx(idx int) T {
	return flux(f.lap(idx+1)-f.lap(idx), f.in[idx+1]-f.in[idx])
}

func (f *hdiffFields[T]) fly(idx int) T {
	js := f.l.jstride
	return flux(f.lap(idx+js)-f.lap(idx), f.in[idx+js]-f.in[idx])
}

// point computes one output element with no temporaries.
func (f *hdiffFields[T]) point(idx int) T {
	js := f.l.jstride
	return f.in[idx] - f.coeff[idx]*(f.flx(idx)-f.flx(idx-1)+f.fly(idx)-f.fly(idx-js))
}

func (f *hdiffFields[T]) reference() []T {
	out := make([]T, f.l.size)
	for idx := range f.l.interior() {
		out[idx] = f.point(idx)
	}
	return out
}

func (f *hdiffFields[T]) output() []T { return f.out }

// accesses counts reads of in and coeff and the write of out.
func (f *hdiffFields[T]) accesses() int { return 3 }

func (f *hdiffFields[T]) release() {
	f.in, f.coeff, f.out = nil, nil, nil
}

// -----------------------------------------------------------------------------
// On the fly
// -----------------------------------------------------------------------------

type hdiffOnTheFly[T Float] struct {
	hdiffFields[T]
}

func (k *hdiffOnTheFly[T]) apply(t tile) {
	for kk := t.k0; kk < t.k1; kk++ {
		for j := t.j0; j < t.j1; j++ {
			row := k.l.index(0, j, kk)
			for i := t.i0; i < t.i1; i++ {
				k.out[row+i] = k.point(row + i)
			}
		}
	}
}

var onTheFlyShape = shape{name: "hdiff-on-the-fly", rank: 3, loops: []string{LoopThreeD}, halo: fixedHalo(hdiffHalo)}

// OnTheFly recomputes every Laplacian and flux per output point.
func OnTheFly(domain params.Domain, p params.Set) (sweep.Instance, error) {
	return construct(onTheFlyShape, domain, p, newOnTheFly[float32], newOnTheFly[float64])
}

func newOnTheFly[T Float](s settings) (kernel[T], error) {
	return &hdiffOnTheFly[T]{hdiffFields: newHdiffFields[T](s)}, nil
}

// -----------------------------------------------------------------------------
// Classic
// -----------------------------------------------------------------------------

// hdiffClassic stages the Laplacian and both fluxes of a tile in
// block-sized temporaries before computing the output.
type hdiffClassic[T Float] struct {
	hdiffFields[T]
	lapBuf, flxBuf, flyBuf []T
}

func (k *hdiffClassic[T]) apply(t tile) {
	ni, nj := t.i1-t.i0, t.j1-t.j0
	lw := ni + 2 // lap covers i0-1..i1, j0-1..j1
	fw := ni + 1 // flx covers i0-1..i1-1, j0..j1-1
	in := k.in

	for kk := t.k0; kk < t.k1; kk++ {
		for j := -1; j <= nj; j++ {
			row := k.l.index(t.i0, t.j0+j, kk)
			for i := -1; i <= ni; i++ {
				k.lapBuf[(j+1)*lw+i+1] = k.lap(row + i)
			}
		}
		for j := range nj {
			row := k.l.index(t.i0, t.j0+j, kk)
			for i := -1; i < ni; i++ {
				l := (j+1)*lw + i + 1
				k.flxBuf[j*fw+i+1] = flux(k.lapBuf[l+1]-k.lapBuf[l], in[row+i+1]-in[row+i])
			}
		}
		for j := -1; j < nj; j++ {
			row := k.l.index(t.i0, t.j0+j, kk)
			for i := range ni {
				l := (j+1)*lw + i + 1
				k.flyBuf[(j+1)*ni+i] = flux(k.lapBuf[l+lw]-k.lapBuf[l], in[row+i+k.l.jstride]-in[row+i])
			}
		}
		for j := range nj {
			row := k.l.index(t.i0, t.j0+j, kk)
			for i := range ni {
				dx := k.flxBuf[j*fw+i+1] - k.flxBuf[j*fw+i]
				dy := k.flyBuf[(j+1)*ni+i] - k.flyBuf[j*ni+i]
				k.out[row+i] = in[row+i] - k.coeff[row+i]*(dx+dy)
			}
		}
	}
}

func (k *hdiffClassic[T]) release() {
	k.hdiffFields.release()
	k.lapBuf, k.flxBuf, k.flyBuf = nil, nil, nil
}

var classicShape = shape{name: "hdiff-classic", rank: 3, loops: []string{LoopThreeD}, halo: fixedHalo(hdiffHalo)}

// Classic computes the Laplacian and fluxes of each tile into temporaries.
func Classic(domain params.Domain, p params.Set) (sweep.Instance, error) {
	return construct(classicShape, domain, p, newClassic[float32], newClassic[float64])
}

func newClassic[T Float](s settings) (kernel[T], error) {
	bi, bj := s.block[0], s.block[1]
	return &hdiffClassic[T]{
		hdiffFields: newHdiffFields[T](s),
		lapBuf:      make([]T, (bi+2)*(bj+2)),
		flxBuf:      make([]T, (bi+1)*bj),
		flyBuf:      make([]T, bi*(bj+1)),
	}, nil
}

// -----------------------------------------------------------------------------
// J-scan
// -----------------------------------------------------------------------------

// hdiffJScan walks each tile along j and carries the y-flux of the previous
// row, so every y-flux is computed once.
type hdiffJScan[T Float] struct {
	hdiffFields[T]
	prev, cur []T
}

func (k *hdiffJScan[T]) apply(t tile) {
	ni := t.i1 - t.i0

	for kk := t.k0; kk < t.k1; kk++ {
		prev, cur := k.prev[:ni], k.cur[:ni]
		row := k.l.index(t.i0, t.j0-1, kk)
		for i := range ni {
			prev[i] = k.fly(row + i)
		}
		for j := t.j0; j < t.j1; j++ {
			row = k.l.index(t.i0, j, kk)
			left := k.flx(row - 1)
			for i := range ni {
				right := k.flx(row + i)
				cur[i] = k.fly(row + i)
				k.out[row+i] = k.in[row+i] - k.coeff[row+i]*(right-left+cur[i]-prev[i])
				left = right
			}
			prev, cur = cur, prev
		}
	}
}

func (k *hdiffJScan[T]) release() {
	k.hdiffFields.release()
	k.prev, k.cur = nil, nil
}

var jscanShape = shape{name: "hdiff-j-scan-otf-aligned", rank: 3, loops: []string{LoopThreeD}, halo: fixedHalo(hdiffHalo)}

// JScanOtfAligned scans tiles along j, computing fluxes on the fly.
func JScanOtfAligned(domain params.Domain, p params.Set) (sweep.Instance, error) {
	return construct(jscanShape, domain, p, newJScan[float32], newJScan[float64])
}

func newJScan[T Float](s settings) (kernel[T], error) {
	bi := s.block[0]
	return &hdiffJScan[T]{
		hdiffFields: newHdiffFields[T](s),
		prev:        make([]T, bi),
		cur:         make([]T, bi),
	}, nil
}
