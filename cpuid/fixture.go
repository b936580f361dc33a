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
	"cmp"
	"fmt"
	"io"
	"maps"
	"slices"

	"gopkg.in/yaml.v3"
)

// Leaf addresses a CPUID leaf and sub-leaf.
type Leaf struct {
	Leaf    uint32
	Subleaf uint32
}

// Fixture is a [Querier] replaying captured CPUID registers. Leaves not in the
// Fixture return all-zero registers.
type Fixture map[Leaf]Registers

var _ Querier = Fixture(nil)

// CPUID returns the captured registers for the specified leaf and sub-leaf.
func (f Fixture) CPUID(leaf, subleaf uint32) Registers {
	return f[Leaf{Leaf: leaf, Subleaf: subleaf}]
}

type fixtureEntry struct {
	Leaf      uint32 `yaml:"leaf"`
	Subleaf   uint32 `yaml:"subleaf"`
	Registers `yaml:",inline"`
}

type fixtureDocument struct {
	Vendor string         `yaml:"vendor,omitempty"`
	Leaves []fixtureEntry `yaml:"leaves"`
}

// LoadFixture reads a Fixture in YAML format, as written by [Fixture.Write].
func LoadFixture(r io.Reader) (Fixture, error) {
	var doc fixtureDocument
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("cannot decode CPUID fixture: %w", err)
	}
	f := make(Fixture, len(doc.Leaves))
	for _, entry := range doc.Leaves {
		key := Leaf{Leaf: entry.Leaf, Subleaf: entry.Subleaf}
		if _, ok := f[key]; ok {
			return nil, fmt.Errorf("duplicate CPUID fixture leaf %#x, sub-leaf %d",
				entry.Leaf, entry.Subleaf)
		}
		f[key] = entry.Registers
	}
	return f, nil
}

// Write the Fixture in YAML format, ordered by leaf and sub-leaf.
func (f Fixture) Write(w io.Writer) error {
	keys := slices.SortedFunc(maps.Keys(f), func(a, b Leaf) int {
		if a.Leaf != b.Leaf {
			return cmp.Compare(a.Leaf, b.Leaf)
		}
		return cmp.Compare(a.Subleaf, b.Subleaf)
	})
	doc := fixtureDocument{
		Vendor: New(f).Vendor(),
		Leaves: make([]fixtureEntry, 0, len(keys)),
	}
	for _, key := range keys {
		doc.Leaves = append(doc.Leaves, fixtureEntry{
			Leaf:      key.Leaf,
			Subleaf:   key.Subleaf,
			Registers: f[key],
		})
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

// Capture queries all basic and extended leaves supported by q and returns
// them as a Fixture. Sub-leaf enumerations of the cache parameters and
// extended topology leaves include their terminating sub-leaf.
func Capture(q Querier) Fixture {
	f := Fixture{}
	get := func(leaf, subleaf uint32) Registers {
		regs := q.CPUID(leaf, subleaf)
		f[Leaf{Leaf: leaf, Subleaf: subleaf}] = regs
		return regs
	}
	maxLeaf := min(get(LeafVendor, 0).EAX, 0xff)
	for leaf := uint32(1); leaf <= maxLeaf; leaf++ {
		switch leaf {
		case LeafCacheParameters:
			for subleaf := uint32(0); subleaf < maxSubleaves; subleaf++ {
				if CacheType(bits(get(leaf, subleaf).EAX, 0, 4)) == CacheNull {
					break
				}
			}
		case LeafExtendedTopology:
			for subleaf := uint32(0); subleaf < maxSubleaves; subleaf++ {
				if LevelType(bits(get(leaf, subleaf).ECX, 8, 15)) == levelInvalid {
					break
				}
			}
		default:
			get(leaf, 0)
		}
	}
	maxExtLeaf := get(LeafExtendedMax, 0).EAX
	if maxExtLeaf < LeafExtendedMax {
		return f
	}
	maxExtLeaf = min(maxExtLeaf, LeafExtendedMax+0xff)
	for leaf := LeafExtendedMax + 1; leaf <= maxExtLeaf; leaf++ {
		get(leaf, 0)
	}
	return f
}

// NewFixture returns a Fixture for a CPU of the specified vendor, supporting
// basic leaves up to maxLeaf and extended leaves up to maxExtLeaf. Pass zero
// for maxExtLeaf if there should be no extended leaves.
func NewFixture(vendor string, maxLeaf, maxExtLeaf uint32) Fixture {
	var v [12]byte
	copy(v[:], vendor)
	f := Fixture{}
	f.Set(LeafVendor, 0, Registers{
		EAX: maxLeaf,
		EBX: fromLE32(v[0:4]),
		EDX: fromLE32(v[4:8]),
		ECX: fromLE32(v[8:12]),
	})
	if maxExtLeaf != 0 {
		f.Set(LeafExtendedMax, 0, Registers{EAX: maxExtLeaf})
	}
	return f
}

// Set the registers for the specified leaf and sub-leaf, returning the
// Fixture for chaining.
func (f Fixture) Set(leaf, subleaf uint32, regs Registers) Fixture {
	f[Leaf{Leaf: leaf, Subleaf: subleaf}] = regs
	return f
}

// SetBrandString sets the brand string leaves, truncating the brand to 47
// characters.
func (f Fixture) SetBrandString(brand string) Fixture {
	var b [48]byte
	copy(b[:47], brand)
	for idx := 0; idx < 3; idx++ {
		chunk := b[idx*16:]
		f.Set(LeafBrandString+uint32(idx), 0, Registers{
			EAX: fromLE32(chunk[0:4]),
			EBX: fromLE32(chunk[4:8]),
			ECX: fromLE32(chunk[8:12]),
			EDX: fromLE32(chunk[12:16]),
		})
	}
	return f
}

func fromLE32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
