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
	. "github.com/onsi/ginkgo/v2/dsl/table"
	. "github.com/onsi/gomega"
)

func level(number uint8, typ cpuid.LevelType, shift uint8) cpuid.TopologyLevel {
	return cpuid.TopologyLevel{LevelNumber: number, Type: typ, Shift: shift}
}

var _ = Describe("extended x2APIC topology", func() {

	DescribeTable("extracting shifts",
		func(levels []cpuid.TopologyLevel, smtShift, coreShift uint) {
			actsmt, actcore, err := ExtendedShifts(levels)
			Expect(err).NotTo(HaveOccurred())
			Expect(actsmt).To(Equal(smtShift), "SMT shift")
			Expect(actcore).To(Equal(coreShift), "core shift")
		},
		Entry("no levels", nil, uint(0), uint(0)),
		Entry("SMT and core",
			[]cpuid.TopologyLevel{
				level(0, cpuid.LevelSMT, 1),
				level(1, cpuid.LevelCore, 4),
			}, uint(1), uint(4)),
		Entry("no SMT",
			[]cpuid.TopologyLevel{
				level(0, cpuid.LevelSMT, 0),
				level(1, cpuid.LevelCore, 3),
			}, uint(0), uint(3)),
		Entry("missing core level",
			[]cpuid.TopologyLevel{
				level(0, cpuid.LevelSMT, 2),
			}, uint(2), uint(2)),
		Entry("first levels win",
			[]cpuid.TopologyLevel{
				level(0, cpuid.LevelSMT, 1),
				level(1, cpuid.LevelCore, 4),
				level(2, cpuid.LevelSMT, 5),
				level(3, cpuid.LevelCore, 7),
			}, uint(1), uint(4)),
	)

	DescribeTable("rejecting unsupported or invalid hierarchies",
		func(levels []cpuid.TopologyLevel, expectedErr error) {
			_, _, err := ExtendedShifts(levels)
			Expect(err).To(MatchError(expectedErr))
		},
		Entry("unknown level",
			[]cpuid.TopologyLevel{
				level(0, cpuid.LevelSMT, 1),
				level(1, cpuid.LevelUnknown, 4),
			}, ErrUnsupportedTopologyCategory),
		Entry("unknown level first",
			[]cpuid.TopologyLevel{
				level(0, cpuid.LevelUnknown, 1),
			}, ErrUnsupportedTopologyCategory),
		Entry("decreasing shifts",
			[]cpuid.TopologyLevel{
				level(0, cpuid.LevelSMT, 4),
				level(1, cpuid.LevelCore, 1),
			}, ErrInvalidHierarchy),
		Entry("core before SMT with larger shift",
			[]cpuid.TopologyLevel{
				level(0, cpuid.LevelCore, 1),
				level(1, cpuid.LevelSMT, 4),
			}, ErrInvalidHierarchy),
	)

	It("decodes levels from the extended topology leaf", func() {
		id := cpuid.New(x2apicFixture(1, 4))
		levels, ok := id.ExtendedTopology()
		Expect(ok).To(BeTrue())
		Expect(levels).To(HaveLen(2))
		smtShift, coreShift, err := ExtendedShifts(levels)
		Expect(err).NotTo(HaveOccurred())
		Expect(smtShift).To(Equal(uint(1)))
		Expect(coreShift).To(Equal(uint(4)))
	})

})
