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

package cpuid

import "errors"

// ErrNotSupported is returned by [Native] on architectures without a CPUID
// instruction.
var ErrNotSupported = errors.New("cpuid: not supported on this architecture")

// Registers holds the four result registers of a single CPUID invocation.
type Registers struct {
	EAX uint32 `yaml:"eax"`
	EBX uint32 `yaml:"ebx"`
	ECX uint32 `yaml:"ecx"`
	EDX uint32 `yaml:"edx"`
}

// Querier executes CPUID for the specified leaf and sub-leaf.
type Querier interface {
	CPUID(leaf, subleaf uint32) Registers
}

// QuerierFunc adapts an ordinary function to a [Querier].
type QuerierFunc func(leaf, subleaf uint32) Registers

// CPUID calls f(leaf, subleaf).
func (f QuerierFunc) CPUID(leaf, subleaf uint32) Registers {
	return f(leaf, subleaf)
}

// Native returns the Querier executing the CPUID instruction on the current
// logical CPU. Please note that the results depend on the CPU the calling OS
// thread happens to run on, unless the thread has been locked and pinned.
func Native() (Querier, error) {
	if !nativeSupported {
		return nil, ErrNotSupported
	}
	return QuerierFunc(nativeCPUID), nil
}
