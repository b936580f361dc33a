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
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/thediveo/cputopo/affinity"
	"github.com/thediveo/cputopo/cpuid"
)

// Mode selects how APIC IDs get decoded.
type Mode int

const (
	// ModeAuto uses ModeExtended if the CPU supports the extended topology
	// leaf, and ModeLegacy otherwise.
	ModeAuto Mode = iota
	// ModeExtended decodes 32 bit x2APIC IDs using the extended topology leaf.
	ModeExtended
	// ModeLegacy decodes 8 bit xAPIC IDs using the vendor-specific limits.
	ModeLegacy
)

var modeNames = map[Mode]string{
	ModeAuto:     "auto",
	ModeExtended: "x2apic",
	ModeLegacy:   "xapic",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode returns the Mode with the specified name: "auto", "x2apic", or
// "xapic".
func ParseMode(name string) (Mode, error) {
	for mode, modeName := range modeNames {
		if modeName == name {
			return mode, nil
		}
	}
	return ModeAuto, fmt.Errorf("unknown mode %q", name)
}

// Processor is a logical CPU with its decoded APIC ID.
type Processor struct {
	CPU   uint   // logical CPU number
	RawID uint32 // APIC ID
	DecodedID
}

// Topology of the logical CPUs of this machine.
type Topology struct {
	Mode Mode // either ModeExtended or ModeLegacy
	// Levels of the extended topology leaf in ModeExtended, nil otherwise.
	Levels []cpuid.TopologyLevel
	// Limits in ModeLegacy, zero otherwise.
	Limits Limits
	Masks  MaskSet
	// Processors sorted by their APIC IDs in ascending order.
	Processors []Processor
	// Failed probes of logical CPUs, not included in Processors.
	Failed []Probe
}

// Option configures [Enumerate].
type Option func(*enumerator)

type enumerator struct {
	mode     Mode
	id       *cpuid.Identification
	affinity Affinity
	timeout  time.Duration
	log      *slog.Logger
}

// WithMode sets the decoding mode; defaults to ModeAuto.
func WithMode(mode Mode) Option {
	return func(e *enumerator) { e.mode = mode }
}

// WithIdentification reads CPUID leaves from the specified Identification
// instead of the native CPU. The Identification's Querier must report the
// APIC ID of whichever logical CPU the calling thread is pinned to.
func WithIdentification(id *cpuid.Identification) Option {
	return func(e *enumerator) { e.id = id }
}

// WithAffinity enumerates and pins logical CPUs using the specified Affinity
// instead of [affinity.System].
func WithAffinity(a Affinity) Option {
	return func(e *enumerator) { e.affinity = a }
}

// WithProbeTimeout sets the timeout of individual logical CPU probes.
func WithProbeTimeout(timeout time.Duration) Option {
	return func(e *enumerator) { e.timeout = timeout }
}

// WithLogger logs to the specified logger; by default, nothing is logged.
func WithLogger(log *slog.Logger) Option {
	return func(e *enumerator) { e.log = log }
}

// Enumerate the topology of all logical CPUs this process is allowed to run
// on.
func Enumerate(ctx context.Context, opts ...Option) (*Topology, error) {
	e := &enumerator{
		mode:     ModeAuto,
		affinity: affinity.System{},
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.id == nil {
		q, err := cpuid.Native()
		if err != nil {
			return nil, err
		}
		e.id = cpuid.New(q)
	}

	topo, err := Layout(e.id, e.mode)
	if err != nil {
		return nil, err
	}
	read := x2APICIDReader(e.id)
	if topo.Mode == ModeLegacy {
		read = xAPICIDReader(e.id)
	}
	e.log.Debug("topology masks",
		slog.String("mode", topo.Mode.String()),
		slog.String("masks", topo.Masks.String()),
		slog.Uint64("smt_width", uint64(topo.Masks.SMTWidth())),
		slog.Uint64("core_width", uint64(topo.Masks.CoreWidth())))

	collector := &Collector{Affinity: e.affinity, Read: read, Timeout: e.timeout}
	probes, err := collector.Gather(ctx)
	if err != nil {
		return nil, err
	}
	for _, probe := range probes {
		if !probe.OK() {
			e.log.Warn("probing logical CPU failed",
				slog.Uint64("cpu", uint64(probe.CPU)),
				slog.String("err", probe.Err.Error()))
			topo.Failed = append(topo.Failed, probe)
			continue
		}
		topo.Processors = append(topo.Processors, Processor{
			CPU:       probe.CPU,
			RawID:     probe.ID,
			DecodedID: topo.Masks.Decompose(probe.ID),
		})
	}
	slices.SortStableFunc(topo.Processors, func(a, b Processor) int {
		return cmp.Compare(a.RawID, b.RawID)
	})
	e.log.Debug("enumerated logical CPUs",
		slog.Int("probed", len(topo.Processors)),
		slog.Int("failed", len(topo.Failed)))
	return topo, nil
}

// Layout determines the topology masks of the CPU described by id for the
// specified mode, without probing any logical CPUs. ModeAuto resolves to
// ModeExtended if the extended topology leaf is supported, and to ModeLegacy
// otherwise. The returned Topology thus lacks any Processors.
func Layout(id *cpuid.Identification, mode Mode) (*Topology, error) {
	if mode == ModeAuto {
		mode = ModeLegacy
		if id.HasExtendedTopology() {
			mode = ModeExtended
		}
	}
	topo := &Topology{Mode: mode}
	switch mode {
	case ModeExtended:
		levels, ok := id.ExtendedTopology()
		if !ok {
			return nil, fmt.Errorf("%w: no extended topology leaf", ErrUnsupportedCPU)
		}
		smtShift, coreShift, err := ExtendedShifts(levels)
		if err != nil {
			return nil, err
		}
		if topo.Masks, err = NewMaskSet32(smtShift, coreShift); err != nil {
			return nil, err
		}
		topo.Levels = levels
	case ModeLegacy:
		limits, err := ResolveLimits(id)
		if err != nil {
			return nil, err
		}
		smtWidth, coreWidth, err := LegacyWidths(limits)
		if err != nil {
			return nil, err
		}
		topo.Limits = limits
		topo.Masks = NewMaskSet8(smtWidth, coreWidth)
	default:
		return nil, fmt.Errorf("invalid mode %s", mode)
	}
	return topo, nil
}

func x2APICIDReader(id *cpuid.Identification) IDReader {
	return func() (uint32, error) {
		x2apicid, ok := id.X2APICID()
		if !ok {
			return 0, errors.New("no extended topology leaf")
		}
		return x2apicid, nil
	}
}

func xAPICIDReader(id *cpuid.Identification) IDReader {
	return func() (uint32, error) {
		apicid, ok := id.InitialAPICID()
		if !ok {
			return 0, errors.New("no feature information leaf")
		}
		return uint32(apicid), nil
	}
}
