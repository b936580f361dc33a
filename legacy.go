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

// BitsNeeded returns the number of low order bits needed to represent all
// values from 0 to count. It scans from the most significant bit downwards for
// the first bit set in count.
func BitsNeeded(count uint8) uint8 {
	mask := uint8(0x80)
	cnt := uint8(8)
	for cnt > 0 && mask&count != mask {
		mask >>= 1
		cnt--
	}
	return cnt
}

// nextPowerOfTwo returns the smallest power of two greater than or equal to
// v; this is 1 for v=0 and 256 for v>128.
func nextPowerOfTwo(v uint8) uint16 {
	p := uint16(1)
	for p < uint16(v) {
		p <<= 1
	}
	return p
}

// LegacyWidths returns the widths of the SMT and core fields of 8 bit xAPIC
// IDs, given the processor limits.
//
// When there are fewer logical processor IDs than cores per package, the
// package is assumed to have no SMT.
func LegacyWidths(limits Limits) (smtWidth, coreWidth uint8, err error) {
	if limits.MaxCoresPerPackage == 0 {
		return 0, 0, fmt.Errorf("%w: zero cores per package", ErrUnsupportedCPU)
	}
	threadsPerCore := max(
		nextPowerOfTwo(limits.MaxLogicalProcessorIDs)/uint16(limits.MaxCoresPerPackage), 1)
	smtWidth = BitsNeeded(uint8(threadsPerCore - 1))
	coreWidth = BitsNeeded(limits.MaxCoresPerPackage - 1)
	return smtWidth, coreWidth, nil
}
