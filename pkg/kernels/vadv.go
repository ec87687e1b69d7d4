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

	"github.com/AleutianAI/sbench/pkg/params"
	"github.com/AleutianAI/sbench/pkg/sweep"
)

// =============================================================================
// Vertical advection
// =============================================================================
//
// Implicit vertical advection of the u-stage: a tridiagonal system along k
// per (i, j) column, solved with a forward elimination sweep and a backward
// substitution sweep. The vertical wind is staggered in i, so the halo is 1.

const (
	vadvHalo     = 1
	vadvDtrStage = 3.0 / 20.0
	vadvBetaV    = 0.0
	vadvBetM     = 0.5 * (1.0 - vadvBetaV)
	vadvBetP     = 0.5 * (1.0 + vadvBetaV)
)

type vadvKInnermost[T Float] struct {
	l layout

	ustage, upos, utens, utensStage, wcon []T
	out                                   []T

	// column temporaries, one element per k level
	ccol, dcol, datacol []T
}

// column solves one (i, j) column into dst.
func (k *vadvKInnermost[T]) column(dst []T, i, j int, ccol, dcol, datacol []T) {
	const (
		dtr  = vadvDtrStage
		betM = vadvBetM
		betP = vadvBetP
	)
	ks := k.l.kstride
	ksize := k.l.ksize
	us, up, ut, uts, w := k.ustage, k.upos, k.utens, k.utensStage, k.wcon

	// forward sweep, k minimum
	idx := k.l.index(i, j, 0)
	gcv := T(0.25) * (w[idx+1+ks] + w[idx+ks])
	cs := gcv * betM
	c := gcv * betP
	b := dtr - c
	corr := -cs * (us[idx+ks] - us[idx])
	d := dtr*up[idx] + ut[idx] + uts[idx] + corr
	div := 1 / b
	ccol[0] = c * div
	dcol[0] = d * div

	// forward sweep, body
	for kk := 1; kk < ksize-1; kk++ {
		idx = k.l.index(i, j, kk)
		gav := T(-0.25) * (w[idx+1] + w[idx])
		gcv = T(0.25) * (w[idx+1+ks] + w[idx+ks])
		as := gav * betM
		cs = gcv * betM
		a := gav * betP
		c = gcv * betP
		b = dtr - a - c
		corr = -as*(us[idx-ks]-us[idx]) - cs*(us[idx+ks]-us[idx])
		d = dtr*up[idx] + ut[idx] + uts[idx] + corr
		div = 1 / (b - ccol[kk-1]*a)
		ccol[kk] = c * div
		dcol[kk] = (d - dcol[kk-1]*a) * div
	}

	// forward sweep, k maximum
	last := ksize - 1
	idx = k.l.index(i, j, last)
	gav := T(-0.25) * (w[idx+1] + w[idx])
	as := gav * betM
	a := gav * betP
	b = dtr - a
	corr = -as * (us[idx-ks] - us[idx])
	d = dtr*up[idx] + ut[idx] + uts[idx] + corr
	div = 1 / (b - ccol[last-1]*a)
	dcol[last] = (d - dcol[last-1]*a) * div

	// backward sweep
	datacol[last] = dcol[last]
	dst[idx] = dtr * (datacol[last] - up[idx])
	for kk := last - 1; kk >= 0; kk-- {
		idx = k.l.index(i, j, kk)
		datacol[kk] = dcol[kk] - ccol[kk]*datacol[kk+1]
		dst[idx] = dtr * (datacol[kk] - up[idx])
	}
}

func (k *vadvKInnermost[T]) apply(t tile) {
	for j := t.j0; j < t.j1; j++ {
		for i := t.i0; i < t.i1; i++ {
			k.column(k.out, i, j, k.ccol, k.dcol, k.datacol)
		}
	}
}

func (k *vadvKInnermost[T]) reference() []T {
	out := make([]T, k.l.size)
	n := k.l.ksize
	ccol, dcol, datacol := make([]T, n), make([]T, n), make([]T, n)
	for j := range k.l.jsize {
		for i := range k.l.isize {
			k.column(out, i, j, ccol, dcol, datacol)
		}
	}
	return out
}

func (k *vadvKInnermost[T]) output() []T { return k.out }

// accesses counts the five input fields and the output.
func (k *vadvKInnermost[T]) accesses() int { return 6 }

func (k *vadvKInnermost[T]) release() {
	k.ustage, k.upos, k.utens, k.utensStage, k.wcon, k.out = nil, nil, nil, nil, nil, nil
	k.ccol, k.dcol, k.datacol = nil, nil, nil
}

var kInnermostShape = shape{name: "vadv-k-innermost", rank: 2, loops: []string{LoopThreeD}, halo: fixedHalo(vadvHalo)}

// KInnermost solves each column with k as the innermost loop; the block
// size tiles i and j.
func KInnermost(domain params.Domain, p params.Set) (sweep.Instance, error) {
	return construct(kInnermostShape, domain, p, newKInnermost[float32], newKInnermost[float64])
}

func newKInnermost[T Float](s settings) (kernel[T], error) {
	l := s.layout
	if l.ksize < 2 {
		return nil, errors.New("vertical advection needs at least 2 levels")
	}
	rng := newRand()
	return &vadvKInnermost[T]{
		l:          l,
		ustage:     alignedField[T](l, s.alignment, rng, -1, 1),
		upos:       alignedField[T](l, s.alignment, rng, -1, 1),
		utens:      alignedField[T](l, s.alignment, rng, -1, 1),
		utensStage: alignedField[T](l, s.alignment, rng, -1, 1),
		wcon:       alignedField[T](l, s.alignment, rng, 0, 0.1),
		out:        alloc[T](l.size, s.alignment),
		ccol:       make([]T, l.ksize),
		dcol:       make([]T, l.ksize),
		datacol:    make([]T, l.ksize),
	}, nil
}
