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
	"runtime/debug"

	"github.com/AleutianAI/sbench/pkg/params"
	"github.com/AleutianAI/sbench/pkg/table"
)

// Instance is a constructed kernel ready to be timed.
//
// An instance owns its backend resources from construction until Close.
// The driver holds exactly one instance at a time.
type Instance interface {
	// Run executes the kernel once (plus any warm-up the parameters ask
	// for) and returns the measurement fields of that execution.
	Run() (table.Row, error)

	// Parameters returns the parameters the instance actually resolved.
	Parameters() params.Set

	// Close releases every resource the instance holds.
	Close() error
}

// Capability constructs an instance for one domain. Failures caused by the
// parameters must be reported as *ConfigurationError.
type Capability func(domain params.Domain, p params.Set) (Instance, error)

// Variant is one named kernel configuration of a benchmark suite.
type Variant struct {
	// Name tags every row produced by this variant.
	Name string

	// Kernel names the capability, for listings.
	Kernel string

	// New builds instances of the kernel.
	New Capability

	// Params is the variant's parameter set before a domain is assigned.
	Params params.Set
}

// Reclaimer forces a full, synchronous resource reclamation pass.
type Reclaimer interface {
	Reclaim()
}

// ReclaimFunc adapts a function to Reclaimer.
type ReclaimFunc func()

// Reclaim calls f.
func (f ReclaimFunc) Reclaim() { f() }

// GCReclaimer runs a blocking garbage collection and returns freed memory
// to the operating system before returning.
type GCReclaimer struct{}

// Reclaim forces collection and scavenging.
func (GCReclaimer) Reclaim() {
	debug.FreeOSMemory()
}
