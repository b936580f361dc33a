// Copyright 2024 Harald Albrecht.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not
// use this file except in compliance with the License. You may obtain a copy
// of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
// WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
// License for the specific language governing permissions and limitations
// under the License.

package cputopo

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/thediveo/cputopo/affinity"
)

// DefaultProbeTimeout is the time a single probe may take before it counts as
// failed.
const DefaultProbeTimeout = 2 * time.Second

// Affinity enumerates the logical CPUs available for probing and pins the
// calling OS thread to one of them. [affinity.System] is the implementation
// for the real system.
type Affinity interface {
	CPUs() (affinity.List, error)
	Pin(cpu uint) error
}

var _ Affinity = affinity.System{}

// IDReader reads the APIC ID of the logical CPU the calling OS thread
// currently executes on.
type IDReader func() (uint32, error)

// Probe is the outcome of probing a single logical CPU for its APIC ID.
type Probe struct {
	CPU uint   // logical CPU number
	ID  uint32 // APIC ID, only valid if Err is nil
	Err error  // non-nil if the CPU could not be probed
}

// OK reports whether the logical CPU was successfully probed.
func (p Probe) OK() bool { return p.Err == nil }

// Collector gathers the APIC IDs of all logical CPUs.
type Collector struct {
	Affinity Affinity
	Read     IDReader
	// Timeout per probe; zero means DefaultProbeTimeout.
	Timeout time.Duration
}

// Gather probes all logical CPUs in parallel, returning one Probe per logical
// CPU in the order enumerated by the Affinity. Failing to probe individual
// CPUs doesn't fail Gather; instead, the Probe of a failed CPU carries the
// error, wrapping ErrAffinityFailure. Gather only fails when the logical CPUs
// cannot be enumerated.
//
// A probe that doesn't finish within the timeout, or before ctx is done,
// counts as failed. Its go routine is left behind to finish on its own, as
// neither pinning nor CPUID can be interrupted.
func (c *Collector) Gather(ctx context.Context) ([]Probe, error) {
	cpus, err := c.Affinity.CPUs()
	if err != nil {
		return nil, fmt.Errorf("cannot enumerate logical CPUs: %w", err)
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	probes := make([]Probe, cpus.Len())
	var eg errgroup.Group
	for idx, cpu := range cpus.CPUs() {
		eg.Go(func() error {
			probes[idx] = c.probe(ctx, cpu, timeout)
			return nil
		})
	}
	_ = eg.Wait()
	return probes, nil
}

// probe the specified logical CPU from a separate, pinned OS thread.
func (c *Collector) probe(ctx context.Context, cpu uint, timeout time.Duration) Probe {
	result := make(chan Probe, 1)
	go func() {
		// Never unlock: this thread's affinity is tainted, so the Go runtime
		// must throw it away when this go routine terminates.
		runtime.LockOSThread()
		if err := c.Affinity.Pin(cpu); err != nil {
			result <- Probe{CPU: cpu, Err: fmt.Errorf("%w: %w", ErrAffinityFailure, err)}
			return
		}
		id, err := c.Read()
		if err != nil {
			result <- Probe{CPU: cpu, Err: fmt.Errorf("%w: CPU %d: %w", ErrAffinityFailure, cpu, err)}
			return
		}
		result <- Probe{CPU: cpu, ID: id}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case probe := <-result:
		return probe
	case <-timer.C:
		return Probe{CPU: cpu, Err: fmt.Errorf("%w: CPU %d: probe timed out after %s",
			ErrAffinityFailure, cpu, timeout)}
	case <-ctx.Done():
		return Probe{CPU: cpu, Err: fmt.Errorf("%w: CPU %d: %w",
			ErrAffinityFailure, cpu, ctx.Err())}
	}
}

// SentinelIDs returns the APIC IDs of the probes, with failed probes
// reporting APIC ID 0. Please note that 0 is also the valid APIC ID of the
// first logical CPU.
func SentinelIDs(probes []Probe) []uint32 {
	ids := make([]uint32, len(probes))
	for idx, probe := range probes {
		if probe.OK() {
			ids[idx] = probe.ID
		}
	}
	return ids
}
