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

import "errors"

var (
	// ErrUnsupportedCPU indicates that neither the extended topology leaf nor
	// any of the vendor-specific legacy leaves give the topology field widths.
	ErrUnsupportedCPU = errors.New("unsupported CPU")
	// ErrUnsupportedTopologyCategory indicates an extended topology level
	// other than SMT or Core.
	ErrUnsupportedTopologyCategory = errors.New("unsupported topology category")
	// ErrInvalidHierarchy indicates topology levels with decreasing shifts.
	ErrInvalidHierarchy = errors.New("invalid topology hierarchy")
	// ErrAffinityFailure indicates that a logical CPU could not be probed.
	ErrAffinityFailure = errors.New("affinity failure")
)
