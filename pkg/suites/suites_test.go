// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package suites

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/sbench/pkg/params"
	"github.com/AleutianAI/sbench/pkg/sweep"
)

func names(vs []sweep.Variant) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.Name
	}
	return out
}

// -----------------------------------------------------------------------------
// Registry Tests
// -----------------------------------------------------------------------------

func TestDefault_ListsBuiltins(t *testing.T) {
	assert.Equal(t, []string{
		"basic-bandwidth",
		"horizontal-diffusion-bandwidth",
		"vertical-advection-bandwidth",
	}, Default.List())
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(BasicBandwidth))

	got, err := r.Get("basic-bandwidth")
	require.NoError(t, err)
	assert.Equal(t, BasicBandwidth.Name, got.Name)

	assert.ErrorIs(t, r.Register(BasicBandwidth), ErrAlreadyRegistered)

	_, err = r.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_RejectsIncompleteSuite(t *testing.T) {
	r := NewRegistry()
	assert.ErrorIs(t, r.Register(Suite{}), ErrInvalidSuite)
	assert.ErrorIs(t, r.Register(Suite{Name: "x", DefaultDType: params.Float32}), ErrInvalidSuite)
	assert.ErrorIs(t, r.Register(Suite{Name: "x", Variants: basicVariants, DefaultDType: "half"}), ErrInvalidSuite)
	assert.Panics(t, func() { r.MustRegister(Suite{}) })
}

func TestDefaultDTypes(t *testing.T) {
	assert.Equal(t, params.Float64, BasicBandwidth.DefaultDType)
	assert.Equal(t, params.Float32, HorizontalDiffusionBandwidth.DefaultDType)
	assert.Equal(t, params.Float32, VerticalAdvectionBandwidth.DefaultDType)
}

// -----------------------------------------------------------------------------
// Declaration Tests
// -----------------------------------------------------------------------------

func TestBasicVariants(t *testing.T) {
	base := params.BuildBaseConfig(params.BackendCUDA, "sm_80", params.Float64)
	vs := basicVariants(base)

	assert.Equal(t, []string{
		"stream", "empty", "copy",
		"avg-i", "avg-j", "avg-k",
		"sym-avg-i", "sym-avg-j", "sym-avg-k",
		"lap-ij",
	}, names(vs))

	stream := vs[0].Params
	assert.Equal(t, params.TupleOf(1024, 1, 1), stream.BlockSize)
	assert.Equal(t, "1D", stream.StringOption(params.OptLoop, ""))
	assert.Equal(t, 0, stream.IntOption(params.OptHalo, -1))

	for _, v := range vs[1:] {
		assert.Equal(t, params.TupleOf(32, 8, 1), v.Params.BlockSize, v.Name)
		assert.Equal(t, "3D", v.Params.StringOption(params.OptLoop, ""), v.Name)
		assert.Equal(t, 1, v.Params.IntOption(params.OptHalo, -1), v.Name)
		assert.Equal(t, "nvcc", v.Params.Compiler, v.Name)
		require.NoError(t, v.Params.Validate(), v.Name)
	}
	assert.Equal(t, 0, vs[3].Params.IntOption(params.OptAxis, -1))
	assert.Equal(t, 2, vs[8].Params.IntOption(params.OptAxis, -1))
	assert.False(t, vs[1].Params.Has(params.OptAxis))

	lap := vs[9].Params
	assert.True(t, lap.BoolOption(params.OptAlongX, false))
	assert.True(t, lap.BoolOption(params.OptAlongY, false))
	assert.False(t, lap.BoolOption(params.OptAlongZ, true))

	assert.Nil(t, BasicBandwidth.Preprocess, "basic blocks are not truncated")
}

func TestHdiffVariants_BlockTables(t *testing.T) {
	tests := []struct {
		backend params.Backend
		want    []params.Tuple
	}{
		{params.BackendHIP, []params.Tuple{{128, 4, 1}, {64, 8, 1}, {256, 4, 1}}},
		{params.BackendCUDA, []params.Tuple{{256, 2, 1}, {32, 16, 1}, {256, 2, 2}}},
	}
	for _, tt := range tests {
		t.Run(string(tt.backend), func(t *testing.T) {
			vs := hdiffVariants(params.BuildBaseConfig(tt.backend, "arch", params.Float32))
			assert.Equal(t, []string{"on-the-fly", "classic", "j-scan-otf-aligned"}, names(vs))
			for i, v := range vs {
				assert.Equal(t, tt.want[i], v.Params.BlockSize, v.Name)
			}
			assert.Equal(t, "3D", vs[0].Params.StringOption(params.OptLoop, ""))
			assert.False(t, vs[1].Params.Has(params.OptLoop))
			assert.False(t, vs[2].Params.Has(params.OptLoop))
		})
	}
}

func TestVadvVariants(t *testing.T) {
	vs := vadvVariants(params.BuildBaseConfig(params.BackendHIP, "gfx90a", params.Float32))
	require.Len(t, vs, 1)
	assert.Equal(t, "on-the-fly", vs[0].Name)
	assert.Equal(t, params.TupleOf(1024, 1), vs[0].Params.BlockSize)
}

func TestTruncationApplied(t *testing.T) {
	base := params.BuildBaseConfig(params.BackendCUDA, "sm_80", params.Float32)
	for _, s := range []Suite{HorizontalDiffusionBandwidth, VerticalAdvectionBandwidth} {
		require.NotNil(t, s.Preprocess, s.Name)
		for _, v := range s.Variants(base) {
			p := s.Preprocess(v.Params.WithDomain(params.Domain{32, 32, 80}))
			for i, b := range p.BlockSize {
				assert.LessOrEqual(t, b, p.Domain[i], "%s/%s", s.Name, v.Name)
			}
		}
	}
}

// -----------------------------------------------------------------------------
// End-to-end Tests
// -----------------------------------------------------------------------------

func TestSuites_RunSmallSweep(t *testing.T) {
	for _, name := range Default.List() {
		t.Run(name, func(t *testing.T) {
			s, err := Default.Get(name)
			require.NoError(t, err)

			base := params.BuildBaseConfig(params.BackendHIP, "gfx90a", s.DefaultDType)
			base.Verify = true
			base.RunTwice = false

			sw := s.Sweep(base, 2)
			sw.Domains = sweep.DomainRange(4, 5, 6)

			d := &sweep.Driver{Reclaimer: sweep.ReclaimFunc(func() {})}
			tbl, err := d.Run(context.Background(), sw)
			require.NoError(t, err)
			assert.Equal(t, 2*len(sw.Variants)*2, tbl.Len())
			assert.Contains(t, tbl.Columns(), "bandwidth")
			assert.Contains(t, tbl.Columns(), sweep.StencilColumn)
		})
	}
}
