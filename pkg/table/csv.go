// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteCSV writes the materialized table as comma-separated lines.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(t.Materialize()); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// WriteFile writes the table to path.
//
// Description:
//
//	The table is written to a temporary file in the destination directory and
//	renamed into place once complete, so path either holds a whole table or
//	is left untouched.
//
// Inputs:
//   - path: Destination file. Its directory must exist.
//
// Outputs:
//   - error: Non-nil if any write, sync, or rename step fails.
func (t *Table) WriteFile(path string) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = t.WriteCSV(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", tmp.Name(), err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename to %s: %w", path, err)
	}
	return nil
}

// ReadCSV parses a table previously produced by WriteCSV.
//
// Description:
//
//	The first column is the positional index and is discarded. Every other
//	cell is read back as a string; empty cells are treated as missing and do
//	not appear in the resulting row.
//
// Outputs:
//   - *Table: Parsed table with the header's column order.
//   - error: ErrEmptyHeader, ErrIndexColumn, ErrDuplicateColumn, or a csv
//     parse error.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyHeader
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) == 0 || header[0] != "" {
		return nil, ErrIndexColumn
	}

	columns := header[1:]
	seen := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		if _, dup := seen[c]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, c)
		}
		seen[c] = struct{}{}
	}

	t := New()
	for _, c := range columns {
		t.index[c] = len(t.columns)
		t.columns = append(t.columns, c)
	}

	for {
		line, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", t.Len(), err)
		}

		row := make(Row, 0, len(columns))
		for i, cell := range line[1:] {
			if cell == "" {
				continue
			}
			row = append(row, Field{Key: columns[i], Value: cell})
		}
		t.rows = append(t.rows, row)
	}
	return t, nil
}

// ReadFile parses the table stored at path.
func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadCSV(f)
}
