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

import "fmt"

// MaskSet splits APIC IDs into their package, core, and SMT fields. The SMT,
// Core, and Package select masks partition the Bits wide ID domain: they
// never overlap and together cover all bits.
type MaskSet struct {
	Bits      uint // width of the APIC ID domain: 8 (xAPIC) or 32 (x2APIC)
	SMTShift  uint // right shift to get the core ID
	CoreShift uint // right shift to get the package ID
	SMT       uint32
	Core      uint32
	Package   uint32
}

// DecodedID is an APIC ID split into its topology fields.
type DecodedID struct {
	Package uint32
	Core    uint32
	SMT     uint32
}

func (d DecodedID) String() string {
	return fmt.Sprintf("pkg: %d, core: %d, smt: %d", d.Package, d.Core, d.SMT)
}

// selectMasks returns the SMT, core, and package select masks for the ID
// domain T.
func selectMasks[T uint8 | uint32](smtShift, coreShift uint) (smt, core, pkg T) {
	all := ^T(0)
	smt = ^(all << smtShift)
	core = ^(all << coreShift) ^ smt
	pkg = all << coreShift
	return smt, core, pkg
}

// NewMaskSet32 returns the MaskSet for 32 bit x2APIC IDs, given the shifts
// of the SMT and core levels.
func NewMaskSet32(smtShift, coreShift uint) (MaskSet, error) {
	if smtShift > coreShift || coreShift > 32 {
		return MaskSet{}, fmt.Errorf("%w: SMT shift %d, core shift %d",
			ErrInvalidHierarchy, smtShift, coreShift)
	}
	smt, core, pkg := selectMasks[uint32](smtShift, coreShift)
	return MaskSet{
		Bits:      32,
		SMTShift:  smtShift,
		CoreShift: coreShift,
		SMT:       smt,
		Core:      core,
		Package:   pkg,
	}, nil
}

// NewMaskSet8 returns the MaskSet for 8 bit xAPIC IDs, given the widths of
// the SMT and core ID fields.
func NewMaskSet8(smtWidth, coreWidth uint8) MaskSet {
	smtShift := uint(smtWidth)
	coreShift := uint(smtWidth) + uint(coreWidth)
	smt, core, pkg := selectMasks[uint8](smtShift, coreShift)
	return MaskSet{
		Bits:      8,
		SMTShift:  smtShift,
		CoreShift: coreShift,
		SMT:       uint32(smt),
		Core:      uint32(core),
		Package:   uint32(pkg),
	}
}

// Decompose the APIC ID into its package, core, and SMT IDs.
func (m MaskSet) Decompose(id uint32) DecodedID {
	return DecodedID{
		Package: (id & m.Package) >> m.CoreShift,
		Core:    (id & m.Core) >> m.SMTShift,
		SMT:     id & m.SMT,
	}
}

// Compose the APIC ID from its package, core, and SMT IDs; IDs not fitting
// into their fields get truncated.
func (m MaskSet) Compose(d DecodedID) uint32 {
	return (d.Package<<m.CoreShift)&m.Package |
		(d.Core<<m.SMTShift)&m.Core |
		d.SMT&m.SMT
}

// SMTWidth returns the number of bits of the SMT ID field.
func (m MaskSet) SMTWidth() uint { return min(m.SMTShift, m.Bits) }

// CoreWidth returns the number of bits of the core ID field.
func (m MaskSet) CoreWidth() uint { return min(m.CoreShift, m.Bits) - m.SMTWidth() }

// PackageWidth returns the number of bits of the package ID field.
func (m MaskSet) PackageWidth() uint { return m.Bits - min(m.CoreShift, m.Bits) }

func (m MaskSet) String() string {
	digits := int(m.Bits / 4)
	return fmt.Sprintf("smt: %#0*x, core: %#0*x, pkg: %#0*x",
		digits, m.SMT, digits, m.Core, digits, m.Package)
}
