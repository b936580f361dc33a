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
	. "github.com/onsi/ginkgo/v2/dsl/core"
	. "github.com/onsi/ginkgo/v2/dsl/table"
	. "github.com/onsi/gomega"
	. "github.com/thediveo/success"
)

func mustMaskSet32(smtShift, coreShift uint) MaskSet {
	m, err := NewMaskSet32(smtShift, coreShift)
	if err != nil {
		panic(err)
	}
	return m
}

// domain returns the all-ones mask of the MaskSet's ID domain.
func domain(m MaskSet) uint32 {
	return uint32(uint64(1)<<m.Bits - 1)
}

var _ = Describe("topology masks", func() {

	It("partitions the 32 bit ID domain for all valid shifts", func() {
		for smtShift := uint(0); smtShift <= 32; smtShift++ {
			for coreShift := smtShift; coreShift <= 32; coreShift++ {
				m := Successful(NewMaskSet32(smtShift, coreShift))
				Expect(m.SMT&m.Core).To(BeZero(), "shifts %d, %d", smtShift, coreShift)
				Expect(m.SMT&m.Package).To(BeZero(), "shifts %d, %d", smtShift, coreShift)
				Expect(m.Core&m.Package).To(BeZero(), "shifts %d, %d", smtShift, coreShift)
				Expect(m.SMT|m.Core|m.Package).To(Equal(domain(m)), "shifts %d, %d", smtShift, coreShift)
				Expect(m.SMTWidth() + m.CoreWidth() + m.PackageWidth()).To(Equal(uint(32)))
			}
		}
	})

	It("partitions the 8 bit ID domain for all widths", func() {
		for smtWidth := uint8(0); smtWidth <= 8; smtWidth++ {
			for coreWidth := uint8(0); coreWidth <= 8; coreWidth++ {
				m := NewMaskSet8(smtWidth, coreWidth)
				Expect(m.SMT & m.Core).To(BeZero())
				Expect(m.SMT & m.Package).To(BeZero())
				Expect(m.Core & m.Package).To(BeZero())
				Expect(m.SMT | m.Core | m.Package).To(Equal(uint32(0xff)))
			}
		}
	})

	It("rejects SMT shifts beyond core shifts", func() {
		Expect(NewMaskSet32(4, 1)).Error().To(MatchError(ErrInvalidHierarchy))
		Expect(NewMaskSet32(1, 33)).Error().To(MatchError(ErrInvalidHierarchy))
	})

	DescribeTable("computing x2APIC masks",
		func(smtShift, coreShift uint, smt, core, pkg uint32) {
			m := Successful(NewMaskSet32(smtShift, coreShift))
			Expect(m.SMT).To(Equal(smt))
			Expect(m.Core).To(Equal(core))
			Expect(m.Package).To(Equal(pkg))
		},
		Entry("no SMT, no cores", uint(0), uint(0), uint32(0), uint32(0), uint32(0xffffffff)),
		Entry("2 threads, 8 cores", uint(1), uint(4), uint32(0x1), uint32(0xe), uint32(0xfffffff0)),
		Entry("4 threads, 64 cores", uint(2), uint(8), uint32(0x3), uint32(0xfc), uint32(0xffffff00)),
		Entry("single package", uint(1), uint(32), uint32(0x1), uint32(0xfffffffe), uint32(0)),
	)

	DescribeTable("round-tripping IDs",
		func(m MaskSet) {
			for pkg := uint32(0); pkg < 4; pkg++ {
				for core := uint32(0); core < 1<<m.CoreWidth(); core++ {
					for smt := uint32(0); smt < 1<<m.SMTWidth(); smt++ {
						d := DecodedID{Package: pkg, Core: core, SMT: smt}
						id := m.Compose(d)
						Expect(m.Decompose(id)).To(Equal(d))
						Expect(m.Compose(m.Decompose(id))).To(Equal(id))
					}
				}
			}
		},
		Entry("x2APIC, 2 threads, 8 cores", mustMaskSet32(1, 4)),
		Entry("x2APIC, no SMT, 16 cores", mustMaskSet32(0, 4)),
		Entry("x2APIC, 4 threads, no cores", mustMaskSet32(2, 2)),
		Entry("xAPIC, 2 threads, 4 cores", NewMaskSet8(1, 2)),
		Entry("xAPIC, no SMT, 8 cores", NewMaskSet8(0, 3)),
	)

	It("decomposes x2APIC IDs", func() {
		m := Successful(NewMaskSet32(1, 4))
		Expect(m.Decompose(0x00000000)).To(Equal(DecodedID{}))
		Expect(m.Decompose(0x0000001b)).To(Equal(DecodedID{Package: 1, Core: 5, SMT: 1}))
		Expect(m.Decompose(0x12345678)).To(Equal(DecodedID{Package: 0x1234567, Core: 4, SMT: 0}))
		Expect(m.Decompose(0x1b).String()).To(Equal("pkg: 1, core: 5, smt: 1"))
	})

	It("renders masks", func() {
		Expect(NewMaskSet8(1, 2).String()).To(Equal("smt: 0x01, core: 0x06, pkg: 0xf8"))
	})

})
