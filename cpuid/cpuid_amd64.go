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

const nativeSupported = true

// cpuidex is implemented in cpuid_amd64.s.
func cpuidex(leaf, subleaf uint32) (eax, ebx, ecx, edx uint32)

func nativeCPUID(leaf, subleaf uint32) Registers {
	eax, ebx, ecx, edx := cpuidex(leaf, subleaf)
	return Registers{EAX: eax, EBX: ebx, ECX: ecx, EDX: edx}
}
