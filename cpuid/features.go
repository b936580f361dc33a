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

// Feature is a leaf 0x01 feature flag: bits 0-31 map onto ECX, bits 32-63
// onto EDX.
type Feature uint

// A selection of leaf 0x01 feature flags.
const (
	FeatureSSE3       Feature = 0
	FeatureVMX        Feature = 5
	FeatureX2APIC     Feature = 21
	FeatureHypervisor Feature = 31
	FeatureAPIC       Feature = 32 + 9
	FeatureHTT        Feature = 32 + 28
)

var featureNames = map[Feature]string{
	0:  "sse3",
	1:  "pclmulqdq",
	2:  "ds_area",
	3:  "monitor_mwait",
	4:  "cpl",
	5:  "vmx",
	6:  "smx",
	7:  "eist",
	8:  "tm2",
	9:  "ssse3",
	10: "cnxtid",
	12: "fma",
	13: "cmpxchg16b",
	15: "pdcm",
	17: "pcid",
	18: "dca",
	19: "sse41",
	20: "sse42",
	21: "x2apic",
	22: "movbe",
	23: "popcnt",
	24: "tsc_deadline",
	25: "aesni",
	26: "xsave",
	27: "oxsave",
	28: "avx",
	29: "f16c",
	30: "rdrand",
	31: "hypervisor",

	32 + 0:  "fpu",
	32 + 1:  "vme",
	32 + 2:  "de",
	32 + 3:  "pse",
	32 + 4:  "tsc",
	32 + 5:  "msr",
	32 + 6:  "pae",
	32 + 7:  "mce",
	32 + 8:  "cmpxchg8b",
	32 + 9:  "apic",
	32 + 11: "sysenter_sysexit",
	32 + 12: "mtrr",
	32 + 13: "pge",
	32 + 14: "mca",
	32 + 15: "cmov",
	32 + 16: "pat",
	32 + 17: "pse36",
	32 + 18: "psn",
	32 + 19: "clflush",
	32 + 21: "ds",
	32 + 22: "acpi",
	32 + 23: "mmx",
	32 + 24: "fxsave_fxstor",
	32 + 25: "sse",
	32 + 26: "sse2",
	32 + 27: "ss",
	32 + 28: "htt",
	32 + 29: "tm",
	32 + 31: "pbe",
}
