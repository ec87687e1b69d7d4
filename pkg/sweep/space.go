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

import (
	"iter"

	"github.com/AleutianAI/sbench/pkg/params"
)

// Default domain range: (2^5, 2^5, 80) through (2^10, 2^10, 80).
const (
	MinExponent = 5
	MaxExponent = 10
	DomainDepth = 80
)

// Domains returns the default sweep domains, from cache-sized to
// device-memory-sized problems with a fixed vertical extent.
//
// The sequence is finite and restartable: every range over it yields
// (32,32,80), (64,64,80), ..., (1024,1024,80).
func Domains() iter.Seq[params.Domain] {
	return DomainRange(MinExponent, MaxExponent, DomainDepth)
}

// DomainRange yields (2^e, 2^e, depth) for e = minExp..maxExp inclusive.
// The sequence holds no state between ranges.
func DomainRange(minExp, maxExp, depth int) iter.Seq[params.Domain] {
	return func(yield func(params.Domain) bool) {
		for e := minExp; e <= maxExp; e++ {
			d := 1 << e
			if !yield(params.Domain{d, d, depth}) {
				return
			}
		}
	}
}

// DomainList yields the given domains in order.
func DomainList(domains ...params.Domain) iter.Seq[params.Domain] {
	list := append([]params.Domain(nil), domains...)
	return func(yield func(params.Domain) bool) {
		for _, d := range list {
			if !yield(d) {
				return
			}
		}
	}
}

// TruncateBlockToDomain clamps each block-size component to the matching
// domain component.
//
// Description:
//
//	When both a block size and a domain are set, returns a copy whose block
//	size is min(block_i, domain_i) over the shorter of the two tuples.
//	Otherwise returns p unchanged. The function is pure and idempotent.
func TruncateBlockToDomain(p params.Set) params.Set {
	if p.BlockSize == nil || p.Domain == nil {
		return p
	}
	n := min(len(p.BlockSize), len(p.Domain))
	block := make(params.Tuple, n)
	for i := range n {
		block[i] = min(p.BlockSize[i], p.Domain[i])
	}
	out := p.Clone()
	out.BlockSize = block
	return out
}

// count returns the number of elements a finite sequence yields.
func count[T any](seq iter.Seq[T]) int {
	n := 0
	for range seq {
		n++
	}
	return n
}

// repetitions yields 0..n-1.
func repetitions(n int) iter.Seq[int] {
	return func(yield func(int) bool) {
		for i := range n {
			if !yield(i) {
				return
			}
		}
	}
}
