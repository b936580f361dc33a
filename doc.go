/*
Package cputopo determines the physical topology of the x86 machine it runs
on: which package, core, and hardware thread (SMT) each logical CPU belongs to.

The topology is encoded in the APIC IDs of the logical CPUs. Each APIC ID is
split into three bit fields: the low order bits identify the SMT thread within
a core, the next bits the core within a package, and the remaining high order
bits the package. The widths of these fields come from either:

  - the extended topology leaf 0x0b (“x2APIC” mode, 32 bit IDs), see
    [ExtendedShifts] and [NewMaskSet32], or
  - the vendor-specific limits of logical processors and cores per package
    (“xAPIC” mode, 8 bit IDs), see [ResolveLimits], [LegacyWidths], and
    [NewMaskSet8].

As CPUID only ever reports the APIC ID of the logical CPU executing it, a
[Collector] runs one probe per logical CPU, each one pinned to its CPU before
reading the APIC ID.

[Enumerate] puts it all together and returns the [Topology] with the decoded
package, core, and SMT IDs of all logical CPUs.
*/
package cputopo
