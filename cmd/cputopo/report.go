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

package main

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	kcpuid "github.com/klauspost/cpuid/v2"
	"gopkg.in/yaml.v3"

	"github.com/thediveo/cputopo"
	"github.com/thediveo/cputopo/cpuid"
)

const notAvailable = "n/a"

type report struct {
	Info         *cpuInfo      `yaml:"info,omitempty"`
	Levels       []levelReport `yaml:"levels,omitempty"`
	Enumerations []enumeration `yaml:"enumerations,omitempty"`
}

// cpuInfo is the CPU identification; missing leaves render as "n/a".
type cpuInfo struct {
	Vendor         string    `yaml:"vendor"`
	Brand          string    `yaml:"brand"`
	Family         string    `yaml:"family"`
	ExtendedFamily string    `yaml:"extended-family"`
	Model          string    `yaml:"model"`
	ExtendedModel  string    `yaml:"extended-model"`
	Stepping       string    `yaml:"stepping"`
	BrandIndex     string    `yaml:"brand-index"`
	Flags          []string  `yaml:"flags"`
	Host           *hostInfo `yaml:"host,omitempty"`
}

// hostInfo is what the Go runtime side of CPU detection thinks of the CPU
// the process currently runs on.
type hostInfo struct {
	Brand          string   `yaml:"brand"`
	PhysicalCores  int      `yaml:"physical-cores"`
	ThreadsPerCore int      `yaml:"threads-per-core"`
	LogicalCores   int      `yaml:"logical-cores"`
	Features       []string `yaml:"features"`
}

type levelReport struct {
	Level      uint8  `yaml:"level"`
	Processors uint16 `yaml:"processors"`
	Type       string `yaml:"type"`
}

type enumeration struct {
	Mode       string            `yaml:"mode"`
	Masks      string            `yaml:"masks"`
	Processors []processorReport `yaml:"processors,omitempty"`
	Failed     []failedReport    `yaml:"failed,omitempty"`
	probed     bool
}

type processorReport struct {
	CPU     uint   `yaml:"cpu"`
	APICID  uint32 `yaml:"apic-id"`
	Package uint32 `yaml:"pkg"`
	Core    uint32 `yaml:"core"`
	SMT     uint32 `yaml:"smt"`
}

type failedReport struct {
	CPU   uint   `yaml:"cpu"`
	Error string `yaml:"error"`
}

func infoOf(id *cpuid.Identification) cpuInfo {
	info := cpuInfo{
		Vendor:         id.Vendor(),
		Brand:          notAvailable,
		Family:         notAvailable,
		ExtendedFamily: notAvailable,
		Model:          notAvailable,
		ExtendedModel:  notAvailable,
		Stepping:       notAvailable,
		BrandIndex:     notAvailable,
		Flags:          []string{},
	}
	if info.Vendor == "" {
		info.Vendor = "unknown"
	}
	if brand, ok := id.BrandString(); ok {
		info.Brand = brand
	}
	if fi, ok := id.FeatureInfo(); ok {
		info.Family = strconv.Itoa(int(fi.Family))
		info.ExtendedFamily = strconv.Itoa(int(fi.ExtendedFamily))
		info.Model = strconv.Itoa(int(fi.Model))
		info.ExtendedModel = strconv.Itoa(int(fi.ExtendedModel))
		info.Stepping = strconv.Itoa(int(fi.Stepping))
		info.BrandIndex = strconv.Itoa(int(fi.BrandIndex))
		info.Flags = fi.Flags()
	}
	return info
}

func hostCPU() *hostInfo {
	features := kcpuid.CPU.FeatureSet()
	slices.Sort(features)
	return &hostInfo{
		Brand:          kcpuid.CPU.BrandName,
		PhysicalCores:  kcpuid.CPU.PhysicalCores,
		ThreadsPerCore: kcpuid.CPU.ThreadsPerCore,
		LogicalCores:   kcpuid.CPU.LogicalCores,
		Features:       features,
	}
}

// levelsOf returns the extended topology levels, highest level first.
func levelsOf(id *cpuid.Identification) ([]levelReport, error) {
	levels, ok := id.ExtendedTopology()
	if !ok {
		return nil, nil
	}
	reports := make([]levelReport, 0, len(levels))
	for _, level := range slices.Backward(levels) {
		var typ string
		switch level.Type {
		case cpuid.LevelSMT:
			typ = "SMT-threads"
		case cpuid.LevelCore:
			typ = "cores"
		default:
			return nil, fmt.Errorf("%w: level %d",
				cputopo.ErrUnsupportedTopologyCategory, level.LevelNumber)
		}
		reports = append(reports, levelReport{
			Level:      level.LevelNumber,
			Processors: level.Processors,
			Type:       typ,
		})
	}
	return reports, nil
}

func enumerationOf(topo *cputopo.Topology, probed bool) enumeration {
	e := enumeration{
		Mode:   topo.Mode.String(),
		Masks:  topo.Masks.String(),
		probed: probed,
	}
	for _, p := range topo.Processors {
		e.Processors = append(e.Processors, processorReport{
			CPU:     p.CPU,
			APICID:  p.RawID,
			Package: p.Package,
			Core:    p.Core,
			SMT:     p.SMT,
		})
	}
	for _, probe := range topo.Failed {
		e.Failed = append(e.Failed, failedReport{CPU: probe.CPU, Error: probe.Err.Error()})
	}
	return e
}

func (r *report) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}

func (r *report) WriteText(w io.Writer) error {
	var b strings.Builder
	if info := r.Info; info != nil {
		fmt.Fprintf(&b, "Vendor is: %s\n", info.Vendor)
		fmt.Fprintf(&b, "CPU Model is: %s\n", info.Brand)
		fmt.Fprintf(&b, "Family: %s\nExtended Family: %s\nModel: %s\nExtended Model: %s\nStepping: %s\nBrand Index: %s\n",
			info.Family, info.ExtendedFamily, info.Model, info.ExtendedModel, info.Stepping, info.BrandIndex)
		fmt.Fprintf(&b, "CPU Features: %s\n", strings.Join(info.Flags, " "))
		if host := info.Host; host != nil {
			fmt.Fprintf(&b, "Host CPU: %s, %d physical cores, %d threads per core, %d logical cores\n",
				host.Brand, host.PhysicalCores, host.ThreadsPerCore, host.LogicalCores)
			fmt.Fprintf(&b, "Host Features: %s\n", strings.Join(host.Features, " "))
		}
		b.WriteString("\n")
	}

	if len(r.Levels) == 0 {
		b.WriteString("No topology information available.\n")
	}
	for _, level := range r.Levels {
		fmt.Fprintf(&b, "At level %d the CPU has: %d %s\n",
			level.Level, level.Processors, level.Type)
	}

	for _, e := range r.Enumerations {
		b.WriteString("\n")
		idName := "APIC"
		if e.Mode == cputopo.ModeExtended.String() {
			idName = "x2APIC"
		}
		if !e.probed {
			fmt.Fprintf(&b, "Topology masks for %s IDs: %s\n", idName, e.Masks)
			continue
		}
		fmt.Fprintf(&b, "Enumeration of all cores in the system (with %s IDs):\n", idName)
		for _, p := range e.Processors {
			fmt.Fprintf(&b, "%s#%d (pkg: %d, core: %d, smt: %d)\n",
				idName, p.APICID, p.Package, p.Core, p.SMT)
		}
		for _, f := range e.Failed {
			fmt.Fprintf(&b, "CPU %d failed: %s\n", f.CPU, f.Error)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
