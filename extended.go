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

	"github.com/thediveo/cputopo/cpuid"
)

// ExtendedShifts returns the SMT and core shifts from the extended topology
// levels. The first SMT level and the first core level count. Levels other
// than SMT and core cannot be handled and result in
// ErrUnsupportedTopologyCategory; shifts decreasing from one level to the
// next in ErrInvalidHierarchy.
//
// Without any core level the core shift equals the SMT shift, so there are no
// core ID bits.
func ExtendedShifts(levels []cpuid.TopologyLevel) (smtShift, coreShift uint, err error) {
	var haveSMT, haveCore bool
	var prevShift uint
	for idx, level := range levels {
		shift := uint(level.Shift)
		switch level.Type {
		case cpuid.LevelSMT:
			if !haveSMT {
				smtShift, haveSMT = shift, true
			}
		case cpuid.LevelCore:
			if !haveCore {
				coreShift, haveCore = shift, true
			}
		default:
			return 0, 0, fmt.Errorf("%w: level %d is of type %s",
				ErrUnsupportedTopologyCategory, level.LevelNumber, level.Type)
		}
		if idx > 0 && shift < prevShift {
			return 0, 0, fmt.Errorf("%w: level %d shift %d below previous level shift %d",
				ErrInvalidHierarchy, level.LevelNumber, shift, prevShift)
		}
		prevShift = shift
	}
	if !haveCore {
		coreShift = smtShift
	}
	if smtShift > coreShift {
		return 0, 0, fmt.Errorf("%w: SMT shift %d above core shift %d",
			ErrInvalidHierarchy, smtShift, coreShift)
	}
	return smtShift, coreShift, nil
}
