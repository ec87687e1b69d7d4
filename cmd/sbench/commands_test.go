// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/sbench/pkg/config"
	"github.com/AleutianAI/sbench/pkg/table"
)

// sbench runs the CLI with an isolated HOME so no user config is read.
func sbench(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	var out, errOut bytes.Buffer
	code = run(context.Background(), args, &out, &errOut)
	return code, out.String(), errOut.String()
}

// small keeps sweeps to one 8x8x80 domain.
var small = []string{"--min-exponent", "3", "--max-exponent", "3", "--progress", "none", "--log-level", "warn"}

// =============================================================================
// Command tree
// =============================================================================

func TestRoot_HelpListsSuites(t *testing.T) {
	code, stdout, _ := sbench(t, "--help")
	require.Equal(t, 0, code)
	for _, name := range []string{
		"basic-bandwidth", "horizontal-diffusion-bandwidth", "vertical-advection-bandwidth",
		"variants", "summarize", "config",
	} {
		assert.Contains(t, stdout, name)
	}
}

func TestSuiteCmd_Defaults(t *testing.T) {
	root := newRootCmd(&bytes.Buffer{}, &bytes.Buffer{})
	tests := []struct {
		suite string
		dtype string
	}{
		{"basic-bandwidth", "float64"},
		{"horizontal-diffusion-bandwidth", "float32"},
		{"vertical-advection-bandwidth", "float32"},
	}
	for _, tt := range tests {
		cmd, _, err := root.Find([]string{tt.suite})
		require.NoError(t, err)
		assert.Equal(t, tt.dtype, cmd.Flags().Lookup("dtype").DefValue, tt.suite)
		assert.Equal(t, "101", cmd.Flags().Lookup("executions").DefValue, tt.suite)
		assert.Equal(t, "e", cmd.Flags().Lookup("executions").Shorthand)
		assert.Equal(t, "d", cmd.Flags().Lookup("dtype").Shorthand)
	}
}

func TestSuiteCmd_RejectsBadArgs(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.csv")
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown backend", []string{"basic-bandwidth", "opencl", "x", out}, "unknown backend"},
		{"missing output", []string{"basic-bandwidth", "cuda", "sm_80"}, "accepts 3 arg(s)"},
		{"bad dtype", []string{"basic-bandwidth", "cuda", "sm_80", out, "-d", "half"}, "unknown data type"},
		{"bad exponents", []string{"basic-bandwidth", "cuda", "sm_80", out, "--min-exponent", "6", "--max-exponent", "5"}, "min-exponent"},
		{"exponent past limit", []string{"basic-bandwidth", "cuda", "sm_80", out, "--min-exponent", "40", "--max-exponent", "40"}, "<= 16"},
		{"exponent overflow", []string{"basic-bandwidth", "cuda", "sm_80", out, "--min-exponent", "5", "--max-exponent", "64"}, "invalid usage"},
		{"bad progress", []string{"basic-bandwidth", "cuda", "sm_80", out, "--progress", "fancy"}, "unknown progress mode"},
		{"bad log level", []string{"basic-bandwidth", "cuda", "sm_80", out, "--log-level", "loud"}, "unknown log level"},
		{"output is a directory", []string{"basic-bandwidth", "cuda", "sm_80", t.TempDir()}, "is a directory"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := sbench(t, tt.args...)
			assert.Equal(t, 1, code)
			assert.Contains(t, stderr, "ERROR: ")
			assert.Contains(t, stderr, tt.want)
		})
	}
	assert.NoFileExists(t, out)
}

// =============================================================================
// Sweeps
// =============================================================================

func TestSuiteCmd_WritesResults(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "basic.csv")
	metrics := filepath.Join(dir, "sweep.prom")
	trace := filepath.Join(dir, "sweep.trace.json")

	args := append([]string{"basic-bandwidth", "hip", "gfx90a", out, "-e", "2",
		"--metrics-file", metrics, "--trace-file", trace}, small...)
	code, stdout, stderr := sbench(t, args...)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "wrote 20 rows")

	results, err := table.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, 1*10*2, results.Len())
	assert.Equal(t, []string{"stream", "stream", "empty", "empty"}, results.Column("stencil")[:4])
	assert.Equal(t, "8 8 80", results.Column("domain")[0])
	assert.Equal(t, "hipcc", results.Column("compiler")[0])
	assert.Equal(t, "float64", results.Column("dtype")[0])

	prom, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "sbench_rows_total")

	spans, err := os.ReadFile(trace)
	require.NoError(t, err)
	assert.Contains(t, string(spans), "sweep.Run")
}

func TestSuiteCmd_WarnsBeforeReplacingOutput(t *testing.T) {
	out := filepath.Join(t.TempDir(), "basic.csv")
	require.NoError(t, os.WriteFile(out, []byte("stale\n"), 0644))

	args := append([]string{"basic-bandwidth", "cuda", "sm_80", out, "-e", "1"}, small...)
	code, _, stderr := sbench(t, args...)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stderr, "WARN: "+out+" exists and will be replaced")

	results, err := table.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, 10, results.Len())
}

func TestSuiteCmd_ExecutionsFromConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "sbench.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("executions: 3\nprogress: none\n"), 0644))
	out := filepath.Join(dir, "vadv.csv")

	code, _, stderr := sbench(t, "vertical-advection-bandwidth", "cuda", "sm_80", out,
		"--config", cfgPath, "--min-exponent", "3", "--max-exponent", "4")
	require.Equal(t, 0, code, stderr)

	results, err := table.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, 2*1*3, results.Len())
	assert.Equal(t, "8 1", results.Column("block-size")[0], "block truncated to the domain")
}

func TestSuiteCmd_FlagBeatsConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "sbench.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("executions: 3\n"), 0644))
	out := filepath.Join(dir, "vadv.csv")

	args := append([]string{"vertical-advection-bandwidth", "cuda", "sm_80", out, "--config", cfgPath, "-e", "1"}, small...)
	code, _, stderr := sbench(t, args...)
	require.Equal(t, 0, code, stderr)

	results, err := table.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, 1, results.Len())
}

func TestSuiteCmd_MissingExplicitConfig(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.csv")
	code, _, stderr := sbench(t, "basic-bandwidth", "cuda", "sm_80", out, "--config", "/nonexistent/sbench.yaml")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "config")
}

func TestSuiteCmd_ConfigurationErrorAborts(t *testing.T) {
	// 4x4 domains leave no interior for the 2-point diffusion halo.
	out := filepath.Join(t.TempDir(), "hdiff.csv")
	code, _, stderr := sbench(t, "horizontal-diffusion-bandwidth", "cuda", "sm_80", out,
		"--min-exponent", "2", "--max-exponent", "2", "--progress", "none")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "halo")
	assert.NoFileExists(t, out)
}

// =============================================================================
// variants, summarize, config
// =============================================================================

func TestVariantsCmd(t *testing.T) {
	code, stdout, stderr := sbench(t, "variants", "horizontal-diffusion-bandwidth", "hip")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "horizontal-diffusion-bandwidth (hip, float32)")
	for _, want := range []string{"on-the-fly", "classic", "j-scan-otf-aligned", "128 4 1", "loop=3D"} {
		assert.Contains(t, stdout, want)
	}
}

func TestVariantsCmd_UnknownSuite(t *testing.T) {
	code, _, stderr := sbench(t, "variants", "nope", "cuda")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "suite not found")
	assert.Contains(t, stderr, "basic-bandwidth")
}

func TestSummarizeCmd_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "basic.csv")
	args := append([]string{"basic-bandwidth", "cuda", "sm_80", out, "-e", "3"}, small...)
	code, _, stderr := sbench(t, args...)
	require.Equal(t, 0, code, stderr)

	code, stdout, stderr := sbench(t, "summarize", out)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "GB/s median")
	assert.Contains(t, stdout, "lap-ij")
	assert.Equal(t, 10, strings.Count(stdout, "8 8 80"))
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "sbench.yaml")
	code, stdout, stderr := sbench(t, "config", "init", path)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, path)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig(), cfg)

	code, _, stderr = sbench(t, "config", "init", path)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "exists")
}
