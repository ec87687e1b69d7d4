// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package params

// backendDefaults is the only place backend-specific defaults are decided.
var backendDefaults = map[Backend]struct {
	compiler  string
	alignment int
}{
	BackendCUDA: {compiler: "nvcc", alignment: 128},
	BackendHIP:  {compiler: "hipcc", alignment: 64},
}

// CompilerFor returns the compiler tag for a backend, "" if unknown.
func CompilerFor(b Backend) string {
	return backendDefaults[b].compiler
}

// AlignmentFor returns the alignment in bytes for a backend, 0 if unknown.
func AlignmentFor(b Backend) int {
	return backendDefaults[b].alignment
}

// BuildBaseConfig returns the base parameter set every benchmark command
// derives its variants from.
//
// Description:
//
//	Compiler and alignment follow the backend (cuda: nvcc/128, hip:
//	hipcc/64). Verification is off, the warm-up run and native GPU timers are
//	on. The GPU architecture and data type are passed through unchanged. An
//	unknown backend yields an empty compiler and zero alignment, which
//	Validate rejects.
//
// Inputs:
//   - backend: Backend tag.
//   - gpuArchitecture: Free-form architecture identifier (e.g. "sm_80").
//   - dtype: Field element type.
//
// Outputs:
//   - Set: Base set without domain, block size, or options.
func BuildBaseConfig(backend Backend, gpuArchitecture string, dtype DType) Set {
	return Set{
		Backend:         backend,
		Compiler:        CompilerFor(backend),
		GPUArchitecture: gpuArchitecture,
		Verify:          false,
		RunTwice:        true,
		GPUTimers:       true,
		Alignment:       AlignmentFor(backend),
		DType:           dtype,
	}
}
