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
	"math"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/sbench/pkg/params"
	"github.com/AleutianAI/sbench/pkg/sweep"
)

// -----------------------------------------------------------------------------
// Test Helpers
// -----------------------------------------------------------------------------

var testDomain = params.Domain{9, 7, 5}

func verifyingBase(backend params.Backend, dtype params.DType) params.Set {
	p := params.BuildBaseConfig(backend, "test-arch", dtype)
	p.Verify = true
	return p
}

type capabilityCase struct {
	name string
	cap  sweep.Capability
	p    params.Set
}

func capabilityCases(dtype params.DType) []capabilityCase {
	basic := verifyingBase(params.BackendCUDA, dtype).
		WithBlockSize(4, 3, 2).
		With(params.OptLoop, LoopThreeD).
		With(params.OptHalo, 1)
	hdiff := verifyingBase(params.BackendHIP, dtype).WithBlockSize(4, 3, 2)
	vadv := verifyingBase(params.BackendHIP, dtype).WithBlockSize(4, 1)

	return []capabilityCase{
		{"copy", Copy, basic},
		{"stream", Copy, basic.WithBlockSize(16, 1, 1).With(params.OptLoop, LoopOneD).With(params.OptHalo, 0)},
		{"empty", Empty, basic},
		{"avg-i", OnesidedAverage, basic.With(params.OptAxis, 0)},
		{"avg-j", OnesidedAverage, basic.With(params.OptAxis, 1)},
		{"avg-k", OnesidedAverage, basic.With(params.OptAxis, 2)},
		{"avg-k-1d", OnesidedAverage, basic.With(params.OptAxis, 2).With(params.OptLoop, LoopOneD)},
		{"sym-avg-i", SymmetricAverage, basic.With(params.OptAxis, 0)},
		{"sym-avg-k", SymmetricAverage, basic.With(params.OptAxis, 2)},
		{"lap-ij", Laplacian, basic.WithOptions(params.Options{
			params.OptAlongX: true, params.OptAlongY: true, params.OptAlongZ: false,
		})},
		{"on-the-fly", OnTheFly, hdiff.With(params.OptLoop, LoopThreeD)},
		{"classic", Classic, hdiff},
		{"j-scan", JScanOtfAligned, hdiff},
		{"k-innermost", KInnermost, vadv},
	}
}

func outputOf(t *testing.T, inst sweep.Instance) []float64 {
	t.Helper()
	in, ok := inst.(*instance[float64])
	require.True(t, ok)
	out := make([]float64, 0, in.s.layout.points())
	for idx := range in.s.layout.interior() {
		out = append(out, in.k.output()[idx])
	}
	return out
}

// -----------------------------------------------------------------------------
// Run Tests
// -----------------------------------------------------------------------------

func TestCapabilities_RunAndVerify(t *testing.T) {
	for _, dtype := range []params.DType{params.Float32, params.Float64} {
		for _, tc := range capabilityCases(dtype) {
			t.Run(string(dtype)+"/"+tc.name, func(t *testing.T) {
				inst, err := tc.cap(testDomain, tc.p.WithDomain(testDomain))
				require.NoError(t, err)
				defer inst.Close()

				for range 2 {
					rec, err := inst.Run()
					require.NoError(t, err)
					assert.Equal(t, []string{ColumnTime, ColumnBandwidth}, rec.Keys())

					secs, _ := rec.Get(ColumnTime)
					bw, _ := rec.Get(ColumnBandwidth)
					assert.GreaterOrEqual(t, secs.(float64), 0.0)
					assert.GreaterOrEqual(t, bw.(float64), 0.0)
					assert.False(t, math.IsInf(bw.(float64), 0))
				}
				assert.Equal(t, tc.p.WithDomain(testDomain), inst.Parameters())
			})
		}
	}
}

func TestEmpty_ReportsZeroBandwidth(t *testing.T) {
	p := verifyingBase(params.BackendCUDA, params.Float64).WithBlockSize(4, 4, 1)
	inst, err := Empty(testDomain, p)
	require.NoError(t, err)
	defer inst.Close()

	rec, err := inst.Run()
	require.NoError(t, err)
	bw, _ := rec.Get(ColumnBandwidth)
	assert.Equal(t, 0.0, bw)
}

func TestHdiff_SchedulesAgree(t *testing.T) {
	p := verifyingBase(params.BackendHIP, params.Float64).WithBlockSize(4, 3, 2)

	var outputs [][]float64
	for _, c := range []sweep.Capability{OnTheFly, Classic, JScanOtfAligned} {
		inst, err := c(testDomain, p)
		require.NoError(t, err)
		_, err = inst.Run()
		require.NoError(t, err)
		outputs = append(outputs, outputOf(t, inst))
		require.NoError(t, inst.Close())
	}
	assert.InDeltaSlice(t, outputs[0], outputs[1], 1e-12)
	assert.InDeltaSlice(t, outputs[0], outputs[2], 1e-12)
}

func TestLoops_OneDAndThreeDAgree(t *testing.T) {
	base := verifyingBase(params.BackendCUDA, params.Float64).With(params.OptHalo, 1).With(params.OptAxis, 1)

	flat, err := SymmetricAverage(testDomain, base.WithBlockSize(5, 1, 1).With(params.OptLoop, LoopOneD))
	require.NoError(t, err)
	tiled, err := SymmetricAverage(testDomain, base.WithBlockSize(2, 2, 2).With(params.OptLoop, LoopThreeD))
	require.NoError(t, err)

	_, err = flat.Run()
	require.NoError(t, err)
	_, err = tiled.Run()
	require.NoError(t, err)
	assert.Equal(t, outputOf(t, tiled), outputOf(t, flat))
}

func TestRun_AfterClose(t *testing.T) {
	p := verifyingBase(params.BackendCUDA, params.Float32).WithBlockSize(4, 4, 1)
	inst, err := Copy(testDomain, p)
	require.NoError(t, err)

	require.NoError(t, inst.Close())
	require.NoError(t, inst.Close(), "second close is a no-op")

	_, err = inst.Run()
	require.Error(t, err)
	assert.True(t, sweep.IsExecutionError(err))
	assert.ErrorIs(t, err, sweep.ErrClosed)
}

// -----------------------------------------------------------------------------
// Configuration Tests
// -----------------------------------------------------------------------------

func TestConstruct_ConfigurationErrors(t *testing.T) {
	basic := params.BuildBaseConfig(params.BackendCUDA, "sm_80", params.Float64).
		WithBlockSize(4, 4, 1).
		With(params.OptHalo, 1)
	hdiff := params.BuildBaseConfig(params.BackendHIP, "gfx90a", params.Float32).WithBlockSize(4, 4, 1)

	tests := []struct {
		name    string
		cap     sweep.Capability
		domain  params.Domain
		p       params.Set
		message string
	}{
		{"invalid dtype", Copy, testDomain, func() params.Set { p := basic; p.DType = "int8"; return p }(), "DType"},
		{"backend mismatch", Copy, testDomain, func() params.Set { p := basic; p.Alignment = 64; return p }(), "Alignment"},
		{"block rank", Copy, testDomain, basic.WithBlockSize(4, 4), "3 components"},
		{"missing block", Copy, testDomain, func() params.Set { p := basic; p.BlockSize = nil; return p }(), "3 components"},
		{"zero block", Copy, testDomain, basic.WithBlockSize(4, 0, 1), "BlockSize"},
		{"loop", Copy, testDomain, basic.With(params.OptLoop, "2D"), "loop"},
		{"negative halo", Copy, testDomain, basic.With(params.OptHalo, -1), "halo"},
		{"halo too wide", Copy, params.Domain{9, 7, 2}, basic, "does not fit"},
		{"halo too small", OnesidedAverage, testDomain, basic.With(params.OptHalo, 0).With(params.OptAxis, 0), "too small"},
		{"missing axis", OnesidedAverage, testDomain, basic, "axis option is required"},
		{"axis range", SymmetricAverage, testDomain, basic.With(params.OptAxis, 3), "out of range"},
		{"no laplacian direction", Laplacian, testDomain, basic.With(params.OptAlongZ, false), "at least one"},
		{"hdiff 1D loop", OnTheFly, testDomain, hdiff.With(params.OptLoop, LoopOneD), "loop"},
		{"hdiff narrow domain", Classic, params.Domain{4, 16, 4}, hdiff, "does not fit"},
		{"vadv rank", KInnermost, testDomain, hdiff, "2 components"},
		{"unknown option", Copy, testDomain, basic.With("unroll", 4), "unroll"},
		{"non-positive domain", Copy, params.Domain{0, 7, 5}, basic, "domain"},
		{"oversized domain", Copy, params.Domain{1 << 40, 1 << 40, 80}, basic, "domain too large"},
		{"oversized hdiff domain", Classic, params.Domain{8192, 8192, 80}, hdiff, "domain too large"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, err := tt.cap(tt.domain, tt.p)
			require.Error(t, err)
			assert.Nil(t, inst)

			var cfgErr *sweep.ConfigurationError
			require.True(t, errors.As(err, &cfgErr), "got %T: %v", err, err)
			assert.Equal(t, tt.domain, cfgErr.Domain)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

// -----------------------------------------------------------------------------
// Storage Tests
// -----------------------------------------------------------------------------

func TestFieldElements(t *testing.T) {
	n, ok := fieldElements(params.Domain{32, 32, 80}, 1, 16)
	require.True(t, ok)
	l := newLayout(params.Domain{32, 32, 80}, 1, 16)
	assert.GreaterOrEqual(t, n, l.size+16, "estimate covers the layout plus alignment slack")

	_, ok = fieldElements(params.Domain{4096, 4096, 80}, 2, 32)
	assert.True(t, ok)

	for _, d := range []params.Domain{
		{8192, 8192, 80},
		{1 << 40, 1 << 40, 80},
		{math.MaxInt / 2, math.MaxInt / 2, math.MaxInt / 2},
	} {
		_, ok := fieldElements(d, 2, 32)
		assert.False(t, ok, "domain %v", d)
	}
}

func TestLayout_Alignment(t *testing.T) {
	for _, tc := range []struct {
		halo, align int
	}{
		{0, 16}, {1, 16}, {2, 16}, {1, 32}, {2, 8}, {1, 1},
	} {
		l := newLayout(params.Domain{13, 5, 3}, tc.halo, tc.align)
		assert.Zero(t, l.jstride%tc.align, "jstride")
		assert.Zero(t, l.index(0, 0, 0)%tc.align, "origin")
		assert.Zero(t, l.index(0, 4, 2)%tc.align, "row start")
		assert.GreaterOrEqual(t, l.jstride, 13+2*tc.halo)

		// the last halo point must be addressable
		assert.Less(t, l.index(12+tc.halo, 4+tc.halo, 2+tc.halo), l.size)
		assert.GreaterOrEqual(t, l.index(-tc.halo, -tc.halo, -tc.halo), 0)
	}
}

func TestLayout_TilesCoverInterior(t *testing.T) {
	l := newLayout(params.Domain{10, 7, 3}, 1, 4)
	for _, block := range []params.Tuple{{3, 2, 2}, {32, 8, 1}, {4, 4}, {1, 1, 1}} {
		seen := make(map[int]int)
		for tl := range l.tiles(block, LoopThreeD) {
			for k := tl.k0; k < tl.k1; k++ {
				for j := tl.j0; j < tl.j1; j++ {
					for i := tl.i0; i < tl.i1; i++ {
						seen[l.index(i, j, k)]++
					}
				}
			}
		}
		assert.Len(t, seen, l.points(), "block %v", block)
		for _, n := range seen {
			assert.Equal(t, 1, n)
		}
	}
}

func TestLayout_FlatTiles(t *testing.T) {
	l := newLayout(params.Domain{10, 7, 3}, 0, 1)
	covered := 0
	prev := l.index(0, 0, 0)
	for tl := range l.tiles(params.TupleOf(16, 1, 1), LoopOneD) {
		assert.True(t, tl.flat)
		assert.Equal(t, prev, tl.lo)
		assert.LessOrEqual(t, tl.hi-tl.lo, 16)
		covered += tl.hi - tl.lo
		prev = tl.hi
	}
	assert.Equal(t, l.index(9, 6, 2)+1-l.index(0, 0, 0), covered)
}

func TestAlloc_Aligned(t *testing.T) {
	for _, align := range []int{64, 128} {
		f32 := alloc[float32](100, align)
		f64 := alloc[float64](100, align)
		assert.Len(t, f32, 100)
		assert.Len(t, f64, 100)
		assert.Zero(t, uintptr(unsafe.Pointer(&f32[0]))%uintptr(align))
		assert.Zero(t, uintptr(unsafe.Pointer(&f64[0]))%uintptr(align))
	}
}
