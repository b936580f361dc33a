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

package affinity

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/thediveo/faf"
)

// List is a list of CPU [from...to] ranges in canonical form: ranges are
// ordered from lowest to highest and never overlap. CPU numbers start from
// zero.
type List [][2]uint

// String returns the CPU list in the kernel's textual format, such as used in
// “/sys/devices/system/cpu/online”: ranges “x-y” separated by “,”, with
// single CPU ranges collapsed into “x”.
func (l List) String() string {
	var b strings.Builder
	for idx, cpurange := range l {
		if idx > 0 {
			b.WriteByte(',')
		}
		if cpurange[0] == cpurange[1] {
			fmt.Fprintf(&b, "%d", cpurange[0])
			continue
		}
		fmt.Fprintf(&b, "%d-%d", cpurange[0], cpurange[1])
	}
	return b.String()
}

// Parse returns the CPU List for the given textual list format, ignoring a
// trailing newline. Otherwise, it returns an error.
func Parse(b []byte) (List, error) {
	bs := faf.NewBytestring(trimNewline(b))
	l := List{}
	for {
		if bs.EOL() {
			return l, nil
		}
		from, ok := bs.Uint64()
		if !ok {
			return nil, errors.New("expected unsigned integer number")
		}
		if bs.EOL() {
			return append(l, [2]uint{uint(from), uint(from)}), nil
		}
		switch ch, _ := bs.Next(); ch {
		case '-':
			to, ok := bs.Uint64()
			if !ok {
				return nil, errors.New("expected unsigned integer number")
			}
			if to < from {
				return nil, fmt.Errorf("invalid range %d-%d", from, to)
			}
			l = append(l, [2]uint{uint(from), uint(to)})
			if bs.EOL() {
				return l, nil
			}
			if ch, _ = bs.Next(); ch != ',' {
				return nil, errors.New("expected ','")
			}
		case ',':
			l = append(l, [2]uint{uint(from), uint(from)})
		default:
			return nil, errors.New("expected '-' or ','")
		}
	}
}

func trimNewline(b []byte) []byte {
	if len(b) > 0 && b[len(b)-1] == '\n' {
		return b[:len(b)-1]
	}
	return b
}

// Len returns the number of CPUs in this List.
func (l List) Len() int {
	n := 0
	for _, cpurange := range l {
		n += int(cpurange[1]-cpurange[0]) + 1
	}
	return n
}

// CPUs returns the individual CPU numbers in this List, in ascending order.
func (l List) CPUs() []uint {
	cpus := make([]uint, 0, l.Len())
	for _, cpurange := range l {
		for cpu := cpurange[0]; cpu <= cpurange[1]; cpu++ {
			cpus = append(cpus, cpu)
		}
	}
	return cpus
}

// Set returns the CPU Set corresponding with this list.
func (l List) Set() Set {
	if len(l) == 0 {
		return Set{}
	}
	// Do last range first to allocate only once.
	var s Set
	for i := range l {
		r := l[len(l)-i-1]
		s = s.AddRange(r[0], r[1])
	}
	return s
}

// Overlap returns the overlap of this List with another List as a new List.
// If the lists do not overlap, then an empty List is returned.
func (l List) Overlap(another List) List {
	overlaps := List{}
	r2idx := 0
	for _, r1 := range l {
		for {
			if r2idx >= len(another) {
				return overlaps
			}
			if r1[1] >= another[r2idx][0] && r1[0] <= another[r2idx][1] {
				from := max(r1[0], another[r2idx][0])
				to := min(r1[1], another[r2idx][1])
				overlaps = append(overlaps, [2]uint{from, to})
			}
			// Either advance to the next range of the first list when the
			// second list's range extends beyond the current first range, or
			// otherwise advance within the second list.
			if another[r2idx][1] > r1[1] {
				break
			}
			r2idx++
		}
	}
	return overlaps
}

// Remove the lowest CPU from the specified List, returning the CPU number
// together with a new List of remaining CPUs.
func (l List) Remove() (cpu uint, remaining List) {
	if len(l) == 0 {
		panic("cannot remove from empty List")
	}
	lowestRange := l[0]
	if lowestRange[0] < lowestRange[1] {
		cpu = lowestRange[0]
		return cpu, append(List{[2]uint{cpu + 1, lowestRange[1]}}, l[1:]...)
	}
	return lowestRange[0], slices.Clone(l[1:])
}
