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

import (
	"strings"
)

// Well-known leaves.
const (
	LeafVendor            = uint32(0x00)
	LeafFeatureInfo       = uint32(0x01)
	LeafCacheParameters   = uint32(0x04)
	LeafExtendedFeatures  = uint32(0x07)
	LeafExtendedTopology  = uint32(0x0b)
	LeafExtendedMax       = uint32(0x8000_0000)
	LeafBrandString       = uint32(0x8000_0002)
	LeafBrandStringLast   = uint32(0x8000_0004)
	LeafProcessorCapacity = uint32(0x8000_0008)
)

// maxSubleaves bounds sub-leaf enumerations, so that a broken (or virtualized)
// CPUID implementation never lets us loop forever.
const maxSubleaves = 64

// Identification decodes CPUID leaves obtained from a [Querier]. The maximum
// supported basic and extended leaves as well as the vendor are read once when
// creating an Identification; all other leaves are read afresh on each call.
type Identification struct {
	q          Querier
	maxLeaf    uint32
	maxExtLeaf uint32
	vendor     string
}

// New returns an Identification reading leaves from the specified Querier.
func New(q Querier) *Identification {
	id := &Identification{q: q}
	regs := q.CPUID(LeafVendor, 0)
	id.maxLeaf = regs.EAX
	id.vendor = string(le32(regs.EBX)) + string(le32(regs.EDX)) + string(le32(regs.ECX))
	id.vendor = strings.TrimRight(id.vendor, "\x00")
	if ext := q.CPUID(LeafExtendedMax, 0).EAX; ext >= LeafExtendedMax {
		id.maxExtLeaf = ext
	}
	return id
}

// Querier returns the underlying Querier.
func (id *Identification) Querier() Querier { return id.q }

// MaxLeaf returns the highest supported basic leaf.
func (id *Identification) MaxLeaf() uint32 { return id.maxLeaf }

// MaxExtendedLeaf returns the highest supported extended leaf, or zero if
// there are no extended leaves.
func (id *Identification) MaxExtendedLeaf() uint32 { return id.maxExtLeaf }

// Vendor returns the 12 character vendor identification string, such as
// "GenuineIntel" or "AuthenticAMD".
func (id *Identification) Vendor() string { return id.vendor }

// IsAMD reports whether the vendor follows AMD's conventions (AMD and Hygon).
func (id *Identification) IsAMD() bool {
	return id.vendor == "AuthenticAMD" || id.vendor == "HygonGenuine"
}

func (id *Identification) hasLeaf(leaf uint32) bool {
	if leaf >= LeafExtendedMax {
		return id.maxExtLeaf >= leaf
	}
	return id.maxLeaf >= leaf
}

// FeatureInfo returns the decoded leaf 0x01, if supported.
func (id *Identification) FeatureInfo() (FeatureInfo, bool) {
	if !id.hasLeaf(LeafFeatureInfo) {
		return FeatureInfo{}, false
	}
	return newFeatureInfo(id.q.CPUID(LeafFeatureInfo, 0)), true
}

// InitialAPICID returns the 8 bit initial local APIC ID of the logical CPU
// the caller is currently running on.
func (id *Identification) InitialAPICID() (uint8, bool) {
	fi, ok := id.FeatureInfo()
	if !ok {
		return 0, false
	}
	return fi.InitialLocalAPICID, true
}

// HasExtendedTopology reports whether leaf 0x0b is supported. A CPU might
// well report a maximum basic leaf beyond 0x0b, yet return all zeros for leaf
// 0x0b; this counts as unsupported.
func (id *Identification) HasExtendedTopology() bool {
	return id.hasLeaf(LeafExtendedTopology) &&
		id.q.CPUID(LeafExtendedTopology, 0).EBX != 0
}

// ExtendedTopology returns the topology levels of leaf 0x0b in sub-leaf order,
// up to (but excluding) the first invalid level.
func (id *Identification) ExtendedTopology() ([]TopologyLevel, bool) {
	if !id.HasExtendedTopology() {
		return nil, false
	}
	levels := []TopologyLevel{}
	for subleaf := uint32(0); subleaf < maxSubleaves; subleaf++ {
		regs := id.q.CPUID(LeafExtendedTopology, subleaf)
		level := newTopologyLevel(regs)
		if level.Type == levelInvalid {
			break
		}
		levels = append(levels, level)
	}
	return levels, true
}

// X2APICID returns the 32 bit x2APIC ID of the logical CPU the caller is
// currently running on.
func (id *Identification) X2APICID() (uint32, bool) {
	if !id.HasExtendedTopology() {
		return 0, false
	}
	return id.q.CPUID(LeafExtendedTopology, 0).EDX, true
}

// ProcessorCapacity returns the decoded leaf 0x8000_0008, if this is an AMD
// CPU supporting this leaf. Intel CPUs support this leaf too, but leave the
// core count fields reserved.
func (id *Identification) ProcessorCapacity() (ProcessorCapacity, bool) {
	if !id.IsAMD() || !id.hasLeaf(LeafProcessorCapacity) {
		return ProcessorCapacity{}, false
	}
	return newProcessorCapacity(id.q.CPUID(LeafProcessorCapacity, 0)), true
}

// CacheParameters returns the deterministic cache parameters of leaf 0x04 in
// sub-leaf order, up to (but excluding) the first null cache type.
func (id *Identification) CacheParameters() ([]CacheParameters, bool) {
	if id.IsAMD() || !id.hasLeaf(LeafCacheParameters) {
		return nil, false
	}
	caches := []CacheParameters{}
	for subleaf := uint32(0); subleaf < maxSubleaves; subleaf++ {
		cache := newCacheParameters(id.q.CPUID(LeafCacheParameters, subleaf))
		if cache.Type == CacheNull {
			break
		}
		caches = append(caches, cache)
	}
	return caches, true
}

// BrandString returns the processor brand string, if supported.
func (id *Identification) BrandString() (string, bool) {
	if !id.hasLeaf(LeafBrandStringLast) {
		return "", false
	}
	var brand []byte
	for leaf := LeafBrandString; leaf <= LeafBrandStringLast; leaf++ {
		regs := id.q.CPUID(leaf, 0)
		brand = append(brand, le32(regs.EAX)...)
		brand = append(brand, le32(regs.EBX)...)
		brand = append(brand, le32(regs.ECX)...)
		brand = append(brand, le32(regs.EDX)...)
	}
	if idx := strings.IndexByte(string(brand), 0); idx >= 0 {
		brand = brand[:idx]
	}
	return strings.TrimSpace(string(brand)), true
}

func le32(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

// bits returns the register bits [lo..hi].
func bits(reg uint32, lo, hi uint) uint32 {
	return (reg >> lo) & (1<<(hi-lo+1) - 1)
}
