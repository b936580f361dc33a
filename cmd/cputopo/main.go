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

// cputopo reports the CPU identification and the package, core, and SMT
// thread topology of the machine it runs on. It probes every logical CPU it
// is allowed to run on for its APIC ID, unless it decodes a captured CPUID
// dump given with --fixture.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/thediveo/cputopo"
	"github.com/thediveo/cputopo/cpuid"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	mode     string
	timeout  time.Duration
	output   string
	fixture  string
	dump     string
	info     bool
	logLevel string
}

func (o *options) addFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVarP(&o.mode, "mode", "m", "auto",
		"APIC ID mode: auto, x2apic, xapic, or both")
	flagSet.DurationVar(&o.timeout, "timeout", cputopo.DefaultProbeTimeout,
		"maximum time to probe a single logical CPU")
	flagSet.StringVarP(&o.output, "output", "o", "text", "output format: text or yaml")
	flagSet.StringVar(&o.fixture, "fixture", "",
		"decode a captured CPUID dump instead of this machine's CPU (no enumeration)")
	flagSet.StringVar(&o.dump, "dump", "",
		`capture this machine's CPUID leaves into the specified file ("-" for stdout) and exit`)
	flagSet.BoolVar(&o.info, "info", false, "include the CPU identification and features")
	flagSet.StringVar(&o.logLevel, "log-level", "warn", "log level: debug, info, warn, or error")
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var opts options
	flagSet := pflag.NewFlagSet("cputopo", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	opts.addFlags(flagSet)
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if flagSet.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(opts.logLevel)); err != nil {
		return fmt.Errorf("invalid --log-level: %w", err)
	}
	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	modes, err := parseModes(opts.mode)
	if err != nil {
		return err
	}
	switch opts.output {
	case "text", "yaml":
	default:
		return fmt.Errorf("invalid --output %q, must be text or yaml", opts.output)
	}

	if opts.dump != "" {
		return dump(opts.dump, stdout)
	}

	var id *cpuid.Identification
	native := opts.fixture == ""
	if native {
		q, err := cpuid.Native()
		if err != nil {
			return err
		}
		id = cpuid.New(q)
	} else {
		f, err := loadFixture(opts.fixture)
		if err != nil {
			return err
		}
		log.Debug("loaded CPUID fixture",
			slog.String("path", opts.fixture),
			slog.Int("leaves", len(f)))
		id = cpuid.New(f)
	}

	r := &report{}
	if opts.info {
		info := infoOf(id)
		if native {
			info.Host = hostCPU()
		}
		r.Info = &info
	}
	if r.Levels, err = levelsOf(id); err != nil {
		return err
	}
	for _, mode := range modes {
		var topo *cputopo.Topology
		if native {
			topo, err = cputopo.Enumerate(ctx,
				cputopo.WithMode(mode),
				cputopo.WithIdentification(id),
				cputopo.WithProbeTimeout(opts.timeout),
				cputopo.WithLogger(log))
		} else {
			topo, err = cputopo.Layout(id, mode)
		}
		if err != nil {
			if len(modes) > 1 && errors.Is(err, cputopo.ErrUnsupportedCPU) {
				log.Warn("skipping unsupported enumeration",
					slog.String("mode", mode.String()),
					slog.String("err", err.Error()))
				continue
			}
			return err
		}
		r.Enumerations = append(r.Enumerations, enumerationOf(topo, native))
	}

	if opts.output == "yaml" {
		return r.WriteYAML(stdout)
	}
	return r.WriteText(stdout)
}

// parseModes returns the enumeration modes for the specified --mode, where
// "both" enumerates xAPIC IDs first and x2APIC IDs second.
func parseModes(name string) ([]cputopo.Mode, error) {
	if strings.EqualFold(name, "both") {
		return []cputopo.Mode{cputopo.ModeLegacy, cputopo.ModeExtended}, nil
	}
	mode, err := cputopo.ParseMode(strings.ToLower(name))
	if err != nil {
		return nil, fmt.Errorf("invalid --mode: %w", err)
	}
	return []cputopo.Mode{mode}, nil
}

func loadFixture(path string) (cpuid.Fixture, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return cpuid.LoadFixture(file)
}

// dump captures the CPUID leaves of the CPU this thread currently runs on.
func dump(path string, stdout io.Writer) error {
	q, err := cpuid.Native()
	if err != nil {
		return err
	}
	fixture := cpuid.Capture(q)
	if path == "-" {
		return fixture.Write(stdout)
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fixture.Write(file); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}
