// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/progress"

	"github.com/AleutianAI/sbench/pkg/sweep"
)

// ProgressMode selects how sweep progress is displayed.
type ProgressMode string

const (
	// ProgressAuto uses a bar on terminals and plain lines otherwise.
	ProgressAuto ProgressMode = "auto"

	// ProgressBar redraws a single status line with a progress bar.
	ProgressBar ProgressMode = "bar"

	// ProgressPlain prints one line per domain and per variant.
	ProgressPlain ProgressMode = "plain"

	// ProgressNone prints nothing.
	ProgressNone ProgressMode = "none"
)

// ErrUnknownProgressMode is returned by ParseProgressMode.
var ErrUnknownProgressMode = errors.New("unknown progress mode")

// ParseProgressMode converts a flag value to a ProgressMode.
func ParseProgressMode(s string) (ProgressMode, error) {
	switch m := ProgressMode(strings.ToLower(strings.TrimSpace(s))); m {
	case ProgressAuto, ProgressBar, ProgressPlain, ProgressNone:
		return m, nil
	case "":
		return ProgressAuto, nil
	default:
		return "", fmt.Errorf("%w: %q (choose from auto, bar, plain, none)", ErrUnknownProgressMode, s)
	}
}

// levelState tracks one nesting level.
type levelState struct {
	total int
	index int // 1-based index of the item being processed
	label string
}

// Progress renders the three nested sweep levels (domain, variant,
// repetition). It implements sweep.Progress.
//
// Thread Safety: Safe for concurrent use, although the driver only calls
// it from one goroutine.
type Progress struct {
	w    io.Writer
	mode ProgressMode
	bar  progress.Model

	mu     sync.Mutex
	levels [3]levelState
	dirty  bool // a status line is on screen without a trailing newline
}

// NewProgress creates a progress display writing to w. ProgressAuto
// resolves to ProgressBar when w is a terminal and ProgressPlain otherwise.
func NewProgress(w io.Writer, mode ProgressMode) *Progress {
	if mode == ProgressAuto || mode == "" {
		mode = ProgressPlain
		if IsTerminal(w) {
			mode = ProgressBar
		}
	}
	return &Progress{
		w:    w,
		mode: mode,
		bar: progress.New(
			progress.WithGradient(string(ColorTealDeep), string(ColorTealBright)),
			progress.WithWidth(30),
		),
	}
}

// Mode returns the resolved display mode.
func (p *Progress) Mode() ProgressMode {
	return p.mode
}

var _ sweep.Progress = (*Progress)(nil)

// Begin implements sweep.Progress.
func (p *Progress) Begin(level sweep.Level, total int) {
	if !valid(level) {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.levels[level] = levelState{total: total}
}

// Advance implements sweep.Progress.
func (p *Progress) Advance(level sweep.Level, label string) {
	if !valid(level) {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	st := &p.levels[level]
	st.index++
	st.label = label

	switch p.mode {
	case ProgressPlain:
		p.plainLine(level)
	case ProgressBar:
		p.redraw()
	}
}

// End implements sweep.Progress.
func (p *Progress) End(level sweep.Level) {
	if !valid(level) {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if level == sweep.LevelDomain && p.mode == ProgressBar && p.dirty {
		fmt.Fprintln(p.w)
		p.dirty = false
	}
}

func valid(level sweep.Level) bool {
	return level >= sweep.LevelDomain && level <= sweep.LevelRepetition
}

// plainLine prints domain and variant transitions. Repetitions are too
// frequent to print one per line.
func (p *Progress) plainLine(level sweep.Level) {
	st := p.levels[level]
	switch level {
	case sweep.LevelDomain:
		fmt.Fprintf(p.w, "domain %d/%d: %s\n", st.index, st.total, st.label)
	case sweep.LevelVariant:
		fmt.Fprintf(p.w, "  variant %d/%d: %s\n", st.index, st.total, st.label)
	}
}

// Fraction returns the overall completion in [0, 1], counting the item
// being processed as done.
func (p *Progress) Fraction() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fraction()
}

func (p *Progress) fraction() float64 {
	// Mixed-radix position over (domain, variant, repetition).
	done, span := 0.0, 1.0
	for i := range p.levels {
		st := p.levels[i]
		if st.total <= 0 {
			break
		}
		span /= float64(st.total)
		done += float64(max(st.index-1, 0)) * span
		if i == len(p.levels)-1 {
			done += span
		}
	}
	return min(max(done, 0), 1)
}

func (p *Progress) redraw() {
	d, v, r := p.levels[sweep.LevelDomain], p.levels[sweep.LevelVariant], p.levels[sweep.LevelRepetition]
	line := fmt.Sprintf("%s %s  %s %s  %s",
		Styles.Muted.Render(fmt.Sprintf("[%d/%d]", d.index, d.total)),
		Styles.Bold.Render(d.label),
		Styles.Muted.Render(fmt.Sprintf("[%d/%d]", v.index, v.total)),
		Styles.Highlight.Render(v.label),
		p.bar.ViewAs(p.fraction()),
	)
	if r.total > 0 {
		line += Styles.Muted.Render(fmt.Sprintf(" rep %d/%d", r.index, r.total))
	}
	// \r returns to column 0, \033[K clears the rest of the previous line.
	fmt.Fprintf(p.w, "\r\033[K%s", line)
	p.dirty = true
}
