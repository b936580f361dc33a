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
	"os"
	"path/filepath"
)

// PinCurrent pins the calling OS thread to the specified CPU. The caller must
// have locked its go routine to the OS thread using [runtime.LockOSThread] and
// should never unlock it again, so that the Go runtime throws away the tainted
// thread when the go routine terminates.
func PinCurrent(cpu uint) error {
	if err := Apply(0, Set{}.AddRange(cpu, cpu)); err != nil {
		return fmt.Errorf("cannot pin thread to CPU %d: %w", cpu, err)
	}
	return nil
}

// Online returns the List of online CPUs, as listed in
// “devices/system/cpu/online” relative to the specified sysfs root.
func Online(sysRoot string) (List, error) {
	b, err := os.ReadFile(filepath.Join(sysRoot, "devices/system/cpu/online"))
	if err != nil {
		return nil, err
	}
	l, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("malformed online CPU list %q: %w", string(b), err)
	}
	return l, nil
}

// System gives access to the CPUs this process is allowed to run on and pins
// threads to individual CPUs.
type System struct {
	// SysRoot is the sysfs mount point; defaults to “/sys” if empty.
	SysRoot string
}

// CPUs returns the online CPUs this process is allowed to run on. If the list
// of online CPUs cannot be read, then the process affinity alone is returned.
func (s System) CPUs() (List, error) {
	allowed, err := Get(os.Getpid())
	if err != nil {
		return nil, fmt.Errorf("cannot determine CPU affinity: %w", err)
	}
	sysRoot := s.SysRoot
	if sysRoot == "" {
		sysRoot = "/sys"
	}
	online, err := Online(sysRoot)
	if err != nil {
		return allowed.List(), nil
	}
	return allowed.List().Overlap(online), nil
}

// Pin the calling OS thread to the specified CPU; see [PinCurrent].
func (System) Pin(cpu uint) error {
	return PinCurrent(cpu)
}
