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

// Option names understood by the kernels.
const (
	OptLoop   = "loop"
	OptHalo   = "halo"
	OptAxis   = "axis"
	OptAlongX = "along-x"
	OptAlongY = "along-y"
	OptAlongZ = "along-z"
)

// Options is the extension area of a Set.
type Options map[string]any

// OptionKind is the value kind an option accepts.
type OptionKind int

const (
	KindInt OptionKind = iota
	KindBool
	KindString
)

// String returns the kind name used in validation messages.
func (k OptionKind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

func (k OptionKind) accepts(v any) bool {
	switch v.(type) {
	case int:
		return k == KindInt
	case bool:
		return k == KindBool
	case string:
		return k == KindString
	default:
		return false
	}
}

// knownOptions is the closed set of override keys.
var knownOptions = map[string]OptionKind{
	OptLoop:   KindString,
	OptHalo:   KindInt,
	OptAxis:   KindInt,
	OptAlongX: KindBool,
	OptAlongY: KindBool,
	OptAlongZ: KindBool,
}

// KnownOption reports the kind of a known option key.
func KnownOption(key string) (OptionKind, bool) {
	k, ok := knownOptions[key]
	return k, ok
}
