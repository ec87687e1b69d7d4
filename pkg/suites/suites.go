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
	"github.com/AleutianAI/sbench/pkg/kernels"
	"github.com/AleutianAI/sbench/pkg/params"
	"github.com/AleutianAI/sbench/pkg/sweep"
)

// variant is shorthand for a declaration row.
func variant(name, kernel string, c sweep.Capability, p params.Set) sweep.Variant {
	return sweep.Variant{Name: name, Kernel: kernel, New: c, Params: p}
}

// =============================================================================
// basic-bandwidth
// =============================================================================

// BasicBandwidth measures copy, averaging, and Laplacian kernels.
var BasicBandwidth = Suite{
	Name:         "basic-bandwidth",
	Short:        "Sweep copy, average, and Laplacian kernels",
	DefaultDType: params.Float64,
	Variants:     basicVariants,
}

func basicVariants(base params.Set) []sweep.Variant {
	p := base.WithBlockSize(32, 8, 1).WithOptions(params.Options{
		params.OptLoop: kernels.LoopThreeD,
		params.OptHalo: 1,
	})
	stream := p.WithBlockSize(1024, 1, 1).WithOptions(params.Options{
		params.OptLoop: kernels.LoopOneD,
		params.OptHalo: 0,
	})
	axis := func(a int) params.Set { return p.With(params.OptAxis, a) }

	return []sweep.Variant{
		variant("stream", "Copy", kernels.Copy, stream),
		variant("empty", "Empty", kernels.Empty, p),
		variant("copy", "Copy", kernels.Copy, p),
		variant("avg-i", "OnesidedAverage", kernels.OnesidedAverage, axis(0)),
		variant("avg-j", "OnesidedAverage", kernels.OnesidedAverage, axis(1)),
		variant("avg-k", "OnesidedAverage", kernels.OnesidedAverage, axis(2)),
		variant("sym-avg-i", "SymmetricAverage", kernels.SymmetricAverage, axis(0)),
		variant("sym-avg-j", "SymmetricAverage", kernels.SymmetricAverage, axis(1)),
		variant("sym-avg-k", "SymmetricAverage", kernels.SymmetricAverage, axis(2)),
		variant("lap-ij", "Laplacian", kernels.Laplacian, p.WithOptions(params.Options{
			params.OptAlongX: true,
			params.OptAlongY: true,
			params.OptAlongZ: false,
		})),
	}
}

// =============================================================================
// horizontal-diffusion-bandwidth
// =============================================================================

// hdiffBlocks are the hand-tuned block sizes per backend.
var hdiffBlocks = map[params.Backend]struct {
	onTheFly, classic, jscan params.Tuple
}{
	params.BackendHIP: {
		onTheFly: params.TupleOf(128, 4, 1),
		classic:  params.TupleOf(64, 8, 1),
		jscan:    params.TupleOf(256, 4, 1),
	},
	params.BackendCUDA: {
		onTheFly: params.TupleOf(256, 2, 1),
		classic:  params.TupleOf(32, 16, 1),
		jscan:    params.TupleOf(256, 2, 2),
	},
}

// HorizontalDiffusionBandwidth measures three horizontal diffusion schedules.
var HorizontalDiffusionBandwidth = Suite{
	Name:         "horizontal-diffusion-bandwidth",
	Short:        "Sweep horizontal diffusion schedules",
	DefaultDType: params.Float32,
	Variants:     hdiffVariants,
	Preprocess:   sweep.TruncateBlockToDomain,
}

func hdiffVariants(base params.Set) []sweep.Variant {
	blocks := hdiffBlocks[base.Backend]
	return []sweep.Variant{
		variant("on-the-fly", "OnTheFly", kernels.OnTheFly,
			base.WithBlockSize(blocks.onTheFly...).With(params.OptLoop, kernels.LoopThreeD)),
		variant("classic", "Classic", kernels.Classic, base.WithBlockSize(blocks.classic...)),
		variant("j-scan-otf-aligned", "JScanOtfAligned", kernels.JScanOtfAligned, base.WithBlockSize(blocks.jscan...)),
	}
}

// =============================================================================
// vertical-advection-bandwidth
// =============================================================================

// VerticalAdvectionBandwidth measures the k-innermost vertical advection.
var VerticalAdvectionBandwidth = Suite{
	Name:         "vertical-advection-bandwidth",
	Short:        "Sweep the vertical advection solver",
	DefaultDType: params.Float32,
	Variants:     vadvVariants,
	Preprocess:   sweep.TruncateBlockToDomain,
}

func vadvVariants(base params.Set) []sweep.Variant {
	return []sweep.Variant{
		variant("on-the-fly", "KInnermost", kernels.KInnermost, base.WithBlockSize(1024, 1)),
	}
}
