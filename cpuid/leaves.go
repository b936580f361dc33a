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

import "fmt"

// FeatureInfo is the decoded leaf 0x01.
type FeatureInfo struct {
	Stepping       uint8
	Model          uint8
	Family         uint8
	ExtendedModel  uint8
	ExtendedFamily uint8
	BrandIndex     uint8
	// CLFlushLineSize in units of 8 bytes.
	CLFlushLineSize uint8
	// MaxLogicalProcessorIDs is the maximum number of addressable IDs for
	// logical processors in a physical package.
	MaxLogicalProcessorIDs uint8
	// InitialLocalAPICID of the logical CPU that executed CPUID.
	InitialLocalAPICID uint8
	ECX                uint32
	EDX                uint32
}

func newFeatureInfo(regs Registers) FeatureInfo {
	return FeatureInfo{
		Stepping:               uint8(bits(regs.EAX, 0, 3)),
		Model:                  uint8(bits(regs.EAX, 4, 7)),
		Family:                 uint8(bits(regs.EAX, 8, 11)),
		ExtendedModel:          uint8(bits(regs.EAX, 16, 19)),
		ExtendedFamily:         uint8(bits(regs.EAX, 20, 27)),
		BrandIndex:             uint8(bits(regs.EBX, 0, 7)),
		CLFlushLineSize:        uint8(bits(regs.EBX, 8, 15)),
		MaxLogicalProcessorIDs: uint8(bits(regs.EBX, 16, 23)),
		InitialLocalAPICID:     uint8(bits(regs.EBX, 24, 31)),
		ECX:                    regs.ECX,
		EDX:                    regs.EDX,
	}
}

// DisplayFamily returns the family, taking the extended family into account.
func (f FeatureInfo) DisplayFamily() uint {
	if f.Family == 0x0f {
		return uint(f.Family) + uint(f.ExtendedFamily)
	}
	return uint(f.Family)
}

// DisplayModel returns the model, taking the extended model into account.
func (f FeatureInfo) DisplayModel() uint {
	if f.Family == 0x06 || f.Family == 0x0f {
		return uint(f.ExtendedModel)<<4 | uint(f.Model)
	}
	return uint(f.Model)
}

// Has reports whether the specified leaf 0x01 feature flag is set.
func (f FeatureInfo) Has(feature Feature) bool {
	if feature < 32 {
		return f.ECX&(1<<feature) != 0
	}
	return f.EDX&(1<<(feature-32)) != 0
}

// Flags returns the names of all set leaf 0x01 feature flags, ECX flags first.
func (f FeatureInfo) Flags() []string {
	flags := []string{}
	for feature := Feature(0); feature < 64; feature++ {
		name, ok := featureNames[feature]
		if !ok || !f.Has(feature) {
			continue
		}
		flags = append(flags, name)
	}
	return flags
}

// LevelType is the type of an extended topology level.
type LevelType uint8

// Topology level types as reported by leaf 0x0b. Type 0 marks the end of the
// enumeration and never shows up in [Identification.ExtendedTopology] results.
const (
	levelInvalid LevelType = 0
	LevelSMT     LevelType = 1
	LevelCore    LevelType = 2
	LevelUnknown LevelType = 0xff
)

func (t LevelType) String() string {
	switch t {
	case LevelSMT:
		return "SMT"
	case LevelCore:
		return "Core"
	case levelInvalid:
		return "Invalid"
	default:
		return "Unknown"
	}
}

// TopologyLevel is a single level of the extended topology leaf 0x0b.
type TopologyLevel struct {
	LevelNumber uint8
	Type        LevelType
	// Processors is the number of logical processors at this level.
	Processors uint16
	// Shift right the x2APIC ID by this number of bits to get the unique
	// topology ID of the next level type.
	Shift uint8
	// X2APICID of the logical CPU that executed CPUID.
	X2APICID uint32
}

func newTopologyLevel(regs Registers) TopologyLevel {
	level := TopologyLevel{
		LevelNumber: uint8(bits(regs.ECX, 0, 7)),
		Processors:  uint16(bits(regs.EBX, 0, 15)),
		Shift:       uint8(bits(regs.EAX, 0, 4)),
		X2APICID:    regs.EDX,
	}
	switch typ := LevelType(bits(regs.ECX, 8, 15)); typ {
	case levelInvalid, LevelSMT, LevelCore:
		level.Type = typ
	default:
		level.Type = LevelUnknown
	}
	return level
}

func (l TopologyLevel) String() string {
	return fmt.Sprintf("level %d: %d %s processors, shift %d",
		l.LevelNumber, l.Processors, l.Type, l.Shift)
}

// ProcessorCapacity is the decoded AMD leaf 0x8000_0008.
type ProcessorCapacity struct {
	PhysicalAddressBits uint8
	LinearAddressBits   uint8
	// NumPhysThreads is the number of threads in the package, 1..256.
	NumPhysThreads uint16
	// APICIDSize is the number of least significant APIC ID bits that
	// identify a thread within the package.
	APICIDSize uint8
}

func newProcessorCapacity(regs Registers) ProcessorCapacity {
	return ProcessorCapacity{
		PhysicalAddressBits: uint8(bits(regs.EAX, 0, 7)),
		LinearAddressBits:   uint8(bits(regs.EAX, 8, 15)),
		NumPhysThreads:      uint16(bits(regs.ECX, 0, 7)) + 1,
		APICIDSize:          uint8(bits(regs.ECX, 12, 15)),
	}
}

// CacheType of a deterministic cache parameters sub-leaf.
type CacheType uint8

// Cache types of leaf 0x04.
const (
	CacheNull        CacheType = 0
	CacheData        CacheType = 1
	CacheInstruction CacheType = 2
	CacheUnified     CacheType = 3
)

func (t CacheType) String() string {
	switch t {
	case CacheData:
		return "data"
	case CacheInstruction:
		return "instruction"
	case CacheUnified:
		return "unified"
	}
	return "null"
}

// CacheParameters is a single sub-leaf of the deterministic cache parameters
// leaf 0x04.
type CacheParameters struct {
	Type  CacheType
	Level uint8
	// MaxLogicalSharing is the maximum number of addressable IDs for logical
	// processors sharing this cache.
	MaxLogicalSharing uint16
	// MaxCoresForPackage is the maximum number of addressable IDs for
	// processor cores in the physical package.
	MaxCoresForPackage uint8
	LineSize           uint16
	Partitions         uint16
	Ways               uint16
	Sets               uint32
}

func newCacheParameters(regs Registers) CacheParameters {
	return CacheParameters{
		Type:               CacheType(bits(regs.EAX, 0, 4)),
		Level:              uint8(bits(regs.EAX, 5, 7)),
		MaxLogicalSharing:  uint16(bits(regs.EAX, 14, 25)) + 1,
		MaxCoresForPackage: uint8(bits(regs.EAX, 26, 31)) + 1,
		LineSize:           uint16(bits(regs.EBX, 0, 11)) + 1,
		Partitions:         uint16(bits(regs.EBX, 12, 21)) + 1,
		Ways:               uint16(bits(regs.EBX, 22, 31)) + 1,
		Sets:               regs.ECX + 1,
	}
}

// Size returns the cache size in bytes.
func (c CacheParameters) Size() uint64 {
	return uint64(c.Ways) * uint64(c.Partitions) * uint64(c.LineSize) * uint64(c.Sets)
}
