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

import (
	"sort"

	"github.com/AleutianAI/sbench/pkg/table"
)

// Pretty returns the snapshot of a set as it appears in result rows.
//
// Known fields come first in a fixed order, followed by options sorted by
// name. Domain and block size are omitted when unset. Tuples are rendered as
// space-separated integers.
func Pretty(s Set) table.Row {
	row := table.Row{
		{Key: "backend", Value: string(s.Backend)},
		{Key: "compiler", Value: s.Compiler},
		{Key: "gpu-architecture", Value: s.GPUArchitecture},
		{Key: "verify", Value: s.Verify},
		{Key: "run-twice", Value: s.RunTwice},
		{Key: "gpu-timers", Value: s.GPUTimers},
		{Key: "alignment", Value: s.Alignment},
		{Key: "dtype", Value: string(s.DType)},
	}
	if s.Domain != nil {
		row = append(row, table.Field{Key: "domain", Value: s.Domain.String()})
	}
	if s.BlockSize != nil {
		row = append(row, table.Field{Key: "block-size", Value: s.BlockSize.String()})
	}

	keys := make([]string, 0, len(s.Options))
	for k := range s.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		row = append(row, table.Field{Key: k, Value: s.Options[k]})
	}
	return row
}
