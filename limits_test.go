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
	"github.com/thediveo/cputopo/cpuid"

	. "github.com/onsi/ginkgo/v2/dsl/core"
	. "github.com/onsi/gomega"
	. "github.com/thediveo/success"
)

// amdFixture returns an AMD CPU with the processor capacity leaf reporting
// the specified number of physical threads and APIC ID size.
func amdFixture(threads uint16, apicIDSize uint8) cpuid.Fixture {
	return cpuid.NewFixture("AuthenticAMD", 0x10, cpuid.LeafProcessorCapacity).
		Set(cpuid.LeafFeatureInfo, 0, cpuid.Registers{EAX: 0x00a20f10, EBX: 0x00200800}).
		Set(cpuid.LeafProcessorCapacity, 0, cpuid.Registers{
			EAX: 0x3030,
			ECX: uint32(apicIDSize)<<12 | uint32(threads-1)&0xff,
		})
}

var _ = Describe("limits", func() {

	It("resolves limits from the processor capacity leaf", func() {
		id := cpuid.New(amdFixture(16, 4))
		resolver := Successful(NewLimitsResolver(id))
		Expect(resolver).To(BeAssignableToTypeOf(capacityLimits{}))
		Expect(resolver.ResolveLimits()).To(Equal(Limits{
			MaxLogicalProcessorIDs: 16,
			MaxCoresPerPackage:     4,
		}))
	})

	It("resolves limits from the cache parameters leaf", func() {
		id := cpuid.New(xapicFixture(8, 4))
		resolver := Successful(NewLimitsResolver(id))
		Expect(resolver).To(BeAssignableToTypeOf(cacheParameterLimits{}))
		Expect(ResolveLimits(id)).To(Equal(Limits{
			MaxLogicalProcessorIDs: 8,
			MaxCoresPerPackage:     4,
		}))
	})

	It("uses only the first cache", func() {
		id := cpuid.New(xapicFixture(16, 8).
			Set(cpuid.LeafCacheParameters, 1, cpuid.Registers{EAX: 1<<26 | 2<<5 | 3}))
		caches, ok := id.CacheParameters()
		Expect(ok).To(BeTrue())
		Expect(caches).To(HaveLen(2))
		Expect(ResolveLimits(id)).To(Equal(Limits{
			MaxLogicalProcessorIDs: 16,
			MaxCoresPerPackage:     8,
		}))
	})

	It("defaults to a single logical processor without feature information", func() {
		l := cacheParameterLimits{
			caches: []cpuid.CacheParameters{{Type: cpuid.CacheData, MaxCoresForPackage: 2}},
		}
		Expect(l.ResolveLimits()).To(Equal(Limits{
			MaxLogicalProcessorIDs: 1,
			MaxCoresPerPackage:     2,
		}))
		Expect(cacheParameterLimits{}.ResolveLimits()).To(Equal(Limits{
			MaxLogicalProcessorIDs: 1,
			MaxCoresPerPackage:     1,
		}))
	})

	It("rejects CPUs without any limits leaf", func() {
		Expect(NewLimitsResolver(cpuid.New(cpuid.NewFixture("AuthenticAMD", 0x01, 0)))).Error().
			To(MatchError(ErrUnsupportedCPU))
		Expect(ResolveLimits(cpuid.New(cpuid.NewFixture("GenuineIntel", 0x02, 0)))).Error().
			To(MatchError(ErrUnsupportedCPU))
	})

	It("rejects more physical threads than 8 bit APIC IDs can address", func() {
		Expect(ResolveLimits(cpuid.New(amdFixture(256, 8)))).Error().
			To(MatchError(ErrUnsupportedCPU))
		Expect(ResolveLimits(cpuid.New(amdFixture(255, 8)))).To(Equal(Limits{
			MaxLogicalProcessorIDs: 255,
			MaxCoresPerPackage:     8,
		}))
	})

	It("rejects zero cores per package", func() {
		Expect(ResolveLimits(cpuid.New(amdFixture(8, 0)))).Error().
			To(MatchError(ErrUnsupportedCPU))
	})

})
