// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package table

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Row Tests
// =============================================================================

func TestRow_SetOverwritesInPlace(t *testing.T) {
	r := Row{{Key: "a", Value: 1}, {Key: "b", Value: 2}}
	r.Set("a", 10)
	r.Set("c", 3)

	assert.Equal(t, []string{"a", "b", "c"}, r.Keys())
	v, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, 10, v)
}

func TestRow_Update(t *testing.T) {
	r := Row{{Key: "time", Value: 0.5}}
	r.Update(Row{{Key: "stencil", Value: "copy"}, {Key: "time", Value: 0.25}})

	assert.Equal(t, []string{"time", "stencil"}, r.Keys())
	v, _ := r.Get("time")
	assert.Equal(t, 0.25, v)
}

func TestTable_AppendClonesRow(t *testing.T) {
	tbl := New()
	r := Row{{Key: "a", Value: 1}}
	tbl.Append(r)
	r[0].Value = 99

	v, _ := tbl.Row(0).Get("a")
	assert.Equal(t, 1, v, "table must not alias the caller's row")
}

// =============================================================================
// Column Growth Tests
// =============================================================================

func TestTable_ColumnsFirstSeenOrder(t *testing.T) {
	tbl := New()
	tbl.Append(Row{{Key: "time", Value: 1.0}, {Key: "stencil", Value: "copy"}})
	tbl.Append(Row{{Key: "stencil", Value: "avg-i"}, {Key: "axis", Value: 0}})
	tbl.Append(Row{{Key: "halo", Value: 1}})

	assert.Equal(t, []string{"time", "stencil", "axis", "halo"}, tbl.Columns())
	assert.Equal(t, 3, tbl.Len())
}

func TestTable_MaterializeFillsMissingCells(t *testing.T) {
	tbl := New()
	tbl.Append(Row{{Key: "a", Value: 1}})
	tbl.Append(Row{{Key: "b", Value: true}})

	lines := tbl.Materialize()
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"", "a", "b"}, lines[0])
	assert.Equal(t, []string{"0", "1", ""}, lines[1])
	assert.Equal(t, []string{"1", "", "true"}, lines[2])
}

func TestTable_EmptyMaterialize(t *testing.T) {
	lines := New().Materialize()
	require.Len(t, lines, 1)
	assert.Equal(t, []string{""}, lines[0])
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"string", "copy", "copy"},
		{"bool", false, "false"},
		{"int", 128, "128"},
		{"float64", 0.125, "0.125"},
		{"float32", float32(1.5), "1.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatValue(tt.in))
		})
	}
}

// =============================================================================
// CSV Round-Trip Tests
// =============================================================================

func TestCSV_RoundTripPreservesCells(t *testing.T) {
	tbl := New()
	tbl.Append(Row{{Key: "time", Value: 0.001}, {Key: "stencil", Value: "copy"}, {Key: "block-size", Value: "32 8 1"}})
	tbl.Append(Row{{Key: "time", Value: 0.002}, {Key: "stencil", Value: "avg-i"}, {Key: "axis", Value: 0}})
	tbl.Append(Row{{Key: "stencil", Value: "a,b \"quoted\""}})

	var buf bytes.Buffer
	require.NoError(t, tbl.WriteCSV(&buf))

	back, err := ReadCSV(&buf)
	require.NoError(t, err)
	require.Equal(t, tbl.Len(), back.Len())
	assert.Equal(t, tbl.Columns(), back.Columns())

	for i, orig := range tbl.Rows() {
		got := back.Row(i)
		for _, f := range orig {
			v, ok := got.Get(f.Key)
			require.True(t, ok, "row %d lost %q", i, f.Key)
			assert.Equal(t, FormatValue(f.Value), v)
		}
		assert.Len(t, got, len(orig), "missing cells must read back as absent")
	}
}

func TestReadCSV_Errors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmptyHeader)

	_, err = ReadCSV(strings.NewReader("idx,a\n0,1\n"))
	assert.ErrorIs(t, err, ErrIndexColumn)

	_, err = ReadCSV(strings.NewReader(",a,a\n0,1,2\n"))
	assert.ErrorIs(t, err, ErrDuplicateColumn)
}

func TestWriteFile_ReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.csv")

	tbl := New()
	tbl.Append(Row{{Key: "stencil", Value: "copy"}})
	require.NoError(t, tbl.WriteFile(path))

	back, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, back.Len())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file must not be left behind")
}

func TestWriteFile_MissingDirectory(t *testing.T) {
	err := New().WriteFile(filepath.Join(t.TempDir(), "nope", "out.csv"))
	assert.Error(t, err)
}
