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
	"fmt"
	"math"

	"github.com/thediveo/cputopo/cpuid"
)

// Limits are the vendor-specific maximum numbers of logical processor IDs and
// of cores per package, needed to derive the topology field widths of 8 bit
// (legacy) APIC IDs.
type Limits struct {
	MaxLogicalProcessorIDs uint8
	MaxCoresPerPackage     uint8
}

// LimitsResolver resolves the processor Limits following a particular
// vendor convention.
type LimitsResolver interface {
	ResolveLimits() (Limits, error)
}

// capacityLimits follows AMD's convention of leaf 0x8000_0008.
type capacityLimits struct {
	capacity cpuid.ProcessorCapacity
}

func (l capacityLimits) ResolveLimits() (Limits, error) {
	if l.capacity.NumPhysThreads > math.MaxUint8 {
		return Limits{}, fmt.Errorf("%w: %d threads per package exceed 8 bit APIC IDs",
			ErrUnsupportedCPU, l.capacity.NumPhysThreads)
	}
	return Limits{
		MaxLogicalProcessorIDs: uint8(l.capacity.NumPhysThreads),
		MaxCoresPerPackage:     l.capacity.APICIDSize,
	}, nil
}

// cacheParameterLimits follows Intel's convention of leaves 0x01 and 0x04.
type cacheParameterLimits struct {
	features *cpuid.FeatureInfo // nil if leaf 0x01 is missing
	caches   []cpuid.CacheParameters
}

func (l cacheParameterLimits) ResolveLimits() (Limits, error) {
	limits := Limits{MaxLogicalProcessorIDs: 1, MaxCoresPerPackage: 1}
	if l.features != nil {
		limits.MaxLogicalProcessorIDs = l.features.MaxLogicalProcessorIDs
	}
	// Only the first cache counts; all caches report the same maximum
	// number of cores in the package.
	if len(l.caches) > 0 {
		limits.MaxCoresPerPackage = l.caches[0].MaxCoresForPackage
	}
	return limits, nil
}

// NewLimitsResolver returns the LimitsResolver matching the vendor convention
// of the identified CPU: AMD's processor capacity leaf takes precedence over
// Intel's cache parameters leaf. If neither is available, NewLimitsResolver
// returns ErrUnsupportedCPU.
func NewLimitsResolver(id *cpuid.Identification) (LimitsResolver, error) {
	if capacity, ok := id.ProcessorCapacity(); ok {
		return capacityLimits{capacity: capacity}, nil
	}
	if caches, ok := id.CacheParameters(); ok {
		l := cacheParameterLimits{caches: caches}
		if features, ok := id.FeatureInfo(); ok {
			l.features = &features
		}
		return l, nil
	}
	return nil, fmt.Errorf("%w: %q has neither processor capacity nor cache parameters leaf",
		ErrUnsupportedCPU, id.Vendor())
}

// ResolveLimits returns the processor Limits of the identified CPU.
func ResolveLimits(id *cpuid.Identification) (Limits, error) {
	resolver, err := NewLimitsResolver(id)
	if err != nil {
		return Limits{}, err
	}
	limits, err := resolver.ResolveLimits()
	if err != nil {
		return Limits{}, err
	}
	if limits.MaxCoresPerPackage == 0 {
		return Limits{}, fmt.Errorf("%w: zero cores per package", ErrUnsupportedCPU)
	}
	return limits, nil
}
