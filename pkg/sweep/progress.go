// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sweep

import "iter"

// Level is a nesting level of the sweep.
type Level int

const (
	LevelDomain Level = iota
	LevelVariant
	LevelRepetition
)

// String returns the level name.
func (l Level) String() string {
	switch l {
	case LevelDomain:
		return "domain"
	case LevelVariant:
		return "variant"
	case LevelRepetition:
		return "repetition"
	default:
		return "unknown"
	}
}

// Progress receives sweep progress notifications. Implementations must not
// influence the sweep; they only observe it.
type Progress interface {
	// Begin announces a level with total items.
	Begin(level Level, total int)

	// Advance announces the item about to be processed.
	Advance(level Level, label string)

	// End closes the level, whether or not every item was processed.
	End(level Level)
}

type nopProgress struct{}

func (nopProgress) Begin(Level, int)      {}
func (nopProgress) Advance(Level, string) {}
func (nopProgress) End(Level)             {}

// report wraps seq so that p observes it. The wrapped sequence yields the
// same elements in the same order.
func report[T any](p Progress, level Level, total int, seq iter.Seq[T], label func(T) string) iter.Seq[T] {
	return func(yield func(T) bool) {
		p.Begin(level, total)
		defer p.End(level)
		for item := range seq {
			p.Advance(level, label(item))
			if !yield(item) {
				return
			}
		}
	}
}
