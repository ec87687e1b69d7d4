// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package table accumulates heterogeneous result rows and materializes them
// as a rectangular, index-prefixed table.
//
// # Overview
//
// Rows carry no schema. Each row is an ordered list of named fields and the
// table's column set is the union of every key seen so far, in first-seen
// order. Cells a row does not carry render as empty strings on export.
//
//	t := table.New()
//	t.Append(table.Row{{Key: "time", Value: 0.25}, {Key: "stencil", Value: "copy"}})
//	t.Append(table.Row{{Key: "stencil", Value: "avg-i"}, {Key: "axis", Value: 0}})
//	// columns: time, stencil, axis
//
// # Thread Safety
//
// Table is not safe for concurrent mutation. The sweep driver is its only
// writer and runs strictly sequentially.
package table

import (
	"errors"
	"fmt"
	"strconv"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrEmptyHeader is returned when a parsed table has no header line.
	ErrEmptyHeader = errors.New("table: missing header")

	// ErrIndexColumn is returned when the first header cell is not the
	// positional index column.
	ErrIndexColumn = errors.New("table: first column must be the row index")

	// ErrDuplicateColumn is returned when a parsed header repeats a column.
	ErrDuplicateColumn = errors.New("table: duplicate column")
)

// -----------------------------------------------------------------------------
// Rows
// -----------------------------------------------------------------------------

// Field is a single named cell.
type Field struct {
	Key   string
	Value any
}

// Row is an ordered set of fields with unique keys.
//
// Set and Update behave like a dictionary update: an existing key keeps its
// position and takes the new value, a new key is appended.
type Row []Field

// Get returns the value stored under key.
func (r Row) Get(key string) (any, bool) {
	for _, f := range r {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Set stores value under key.
func (r *Row) Set(key string, value any) {
	for i := range *r {
		if (*r)[i].Key == key {
			(*r)[i].Value = value
			return
		}
	}
	*r = append(*r, Field{Key: key, Value: value})
}

// Update copies every field of other into r, in other's order.
func (r *Row) Update(other Row) {
	for _, f := range other {
		r.Set(f.Key, f.Value)
	}
}

// Keys returns the row's keys in order.
func (r Row) Keys() []string {
	keys := make([]string, len(r))
	for i, f := range r {
		keys[i] = f.Key
	}
	return keys
}

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	copy(out, r)
	return out
}

// -----------------------------------------------------------------------------
// Table
// -----------------------------------------------------------------------------

// Table is an append-only sequence of rows.
type Table struct {
	rows    []Row
	columns []string
	index   map[string]int
}

// New creates an empty table.
func New() *Table {
	return &Table{index: make(map[string]int)}
}

// Append adds a copy of row to the table.
//
// Description:
//
//	The row does not need to agree with earlier rows. Keys not seen before
//	extend the column set at the end; earlier rows are never revisited, they
//	simply read as empty in the new columns.
func (t *Table) Append(row Row) {
	for _, f := range row {
		if _, ok := t.index[f.Key]; !ok {
			t.index[f.Key] = len(t.columns)
			t.columns = append(t.columns, f.Key)
		}
	}
	t.rows = append(t.rows, row.Clone())
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Columns returns the column set in first-seen order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// Row returns a copy of the i-th row.
func (t *Table) Row(i int) Row {
	return t.rows[i].Clone()
}

// Rows returns copies of all rows in insertion order.
func (t *Table) Rows() []Row {
	out := make([]Row, len(t.rows))
	for i, r := range t.rows {
		out[i] = r.Clone()
	}
	return out
}

// Column returns the formatted cells of one column, "" where a row lacks it.
func (t *Table) Column(key string) []string {
	out := make([]string, len(t.rows))
	for i, r := range t.rows {
		if v, ok := r.Get(key); ok {
			out[i] = FormatValue(v)
		}
	}
	return out
}

// Materialize renders the table as lines of cells.
//
// Description:
//
//	The first line is the header: an empty index header followed by the
//	column set. Every following line starts with the row's positional index
//	and carries one formatted cell per column, empty where the row has no
//	value for that column.
//
// Outputs:
//   - [][]string: Len()+1 lines, each len(Columns())+1 cells wide.
func (t *Table) Materialize() [][]string {
	lines := make([][]string, 0, len(t.rows)+1)

	header := make([]string, 0, len(t.columns)+1)
	header = append(header, "")
	header = append(header, t.columns...)
	lines = append(lines, header)

	for i, r := range t.rows {
		line := make([]string, len(t.columns)+1)
		line[0] = strconv.Itoa(i)
		for _, f := range r {
			line[t.index[f.Key]+1] = FormatValue(f.Value)
		}
		lines = append(lines, line)
	}
	return lines
}

// FormatValue renders a cell value for export.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
