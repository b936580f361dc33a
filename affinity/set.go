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
	"fmt"
	"math/bits"
	"slices"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Set is a CPU bit string, as used for CPU affinity masks. See also
// [sched_getaffinity(2)].
//
// [sched_getaffinity(2)]: https://man7.org/linux/man-pages/man2/sched_getaffinity.2.html
type Set []uint64

// setsize caches the dynamically determined size of CPU sets on this system
// (in uint64 words); it only ever grows.
var setsize atomic.Uint64
var wordbytesize = uint64(unsafe.Sizeof(Set{0}[0]))
var bitsperword = uint(wordbytesize * 8)

func init() {
	setsize.Store(1)
}

func setBitIndex(cpu uint) int {
	return int(cpu / bitsperword)
}

func setBitMask(cpu uint) uint64 {
	return uint64(1) << (cpu % bitsperword)
}

// IsSet reports whether cpu is in this CPU set.
func (s Set) IsSet(cpu uint) bool {
	if cpu >= uint(len(s))*bitsperword {
		return false
	}
	return s[setBitIndex(cpu)]&setBitMask(cpu) != 0
}

// AddRange adds the CPUs from the specified range, returning an updated Set.
// This updated Set may or may not be the original Set.
func (s Set) AddRange(from, to uint) Set {
	if from > to {
		panic(fmt.Sprintf("invalid range %d-%d", from, to))
	}
	if to >= uint(len(s))*bitsperword {
		s = slices.Grow(s, setBitIndex(to)-len(s)+1)
		s = s[:cap(s)]
	}
	for cpu := from; cpu <= to; cpu++ {
		s[setBitIndex(cpu)] |= setBitMask(cpu)
	}
	return s
}

// Single returns the only CPU in this Set and true, otherwise false if the
// Set is empty or contains more than a single CPU.
func (s Set) Single() (cpu uint, ok bool) {
	for idx, word := range s {
		if word == 0 {
			continue
		}
		if ok || word&(word-1) != 0 {
			return 0, false
		}
		cpu, ok = uint(idx)*bitsperword+uint(bits.TrailingZeros64(word)), true
	}
	return cpu, ok
}

// String returns the CPUs in this set in textual list format.
func (s Set) String() string {
	return s.List().String()
}

// List returns the list of CPU ranges corresponding with this CPU Set.
func (s Set) List() List {
	l := List{}
	for idx, word := range s {
		for word != 0 {
			cpu := uint(idx)*bitsperword + uint(bits.TrailingZeros64(word))
			if n := len(l); n > 0 && l[n-1][1]+1 == cpu {
				l[n-1][1] = cpu
			} else {
				l = append(l, [2]uint{cpu, cpu})
			}
			word &= word - 1
		}
	}
	return l
}

// Get returns the affinity Set of the task with the passed TID. If tid is
// zero, then the affinity of the calling thread is returned; make sure to have
// the OS-level thread locked to the calling go routine in this case.
//
// Get doesn't use [unix.SchedGetaffinity] as this is tied to the fixed size
// [unix.CPUSet] type; instead, it dynamically figures out the size needed and
// caches it.
func Get(tid int) (Set, error) {
	setlenStart := setsize.Load()
	setlen := setlenStart
	for {
		set := make(Set, setlen)
		// SYS_SCHED_GETAFFINITY does not block, so RawSyscall it is, following
		// Go's stdlib implementation.
		_, _, e := unix.RawSyscall(unix.SYS_SCHED_GETAFFINITY,
			uintptr(tid), uintptr(setlen*wordbytesize), uintptr(unsafe.Pointer(&set[0])))
		if e != 0 {
			if e == unix.EINVAL {
				setlen *= 2
				continue
			}
			return nil, e
		}
		// Publish the larger set size, unless some other go routine beat us
		// to it with an even larger size.
		for setlenStart < setlen && !setsize.CompareAndSwap(setlenStart, setlen) {
			setlenStart = setsize.Load()
		}
		return set, nil
	}
}

// Apply sets the CPU affinity of the task with the passed TID to the
// specified Set. A tid of zero refers to the calling thread. It is an error
// trying to set no affinities.
func Apply(tid int, cpus Set) error {
	if len(cpus) == 0 {
		return unix.EINVAL
	}
	_, _, e := unix.RawSyscall(unix.SYS_SCHED_SETAFFINITY,
		uintptr(tid), uintptr(uint64(len(cpus))*wordbytesize), uintptr(unsafe.Pointer(&cpus[0])))
	if e != 0 {
		return e
	}
	return nil
}
