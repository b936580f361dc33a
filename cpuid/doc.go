/*
Package cpuid reads x86 processor identification leaves and decodes those
leaves cputopo needs into plain records.

A [Querier] executes the CPUID instruction for a given leaf and sub-leaf. The
[Native] querier runs the instruction on whichever logical CPU the calling OS
thread currently executes on; this is what makes per-CPU APIC ID probing work
after pinning a thread. A [Fixture] querier instead replays registers from a
captured dump, so that decoding can be tested and done offline.

[Identification] wraps a Querier and decodes individual leaves:

  - leaf 0x01: [FeatureInfo] (family, model, stepping, initial APIC ID,
    maximum addressable logical processor IDs, feature flags)
  - leaf 0x04: [CacheParameters] (deterministic cache parameters)
  - leaf 0x0b: [TopologyLevel] (extended topology enumeration, x2APIC ID)
  - leaf 0x8000_0008: [ProcessorCapacity] (AMD core count and APIC ID size)
  - leaves 0x8000_0002-0x8000_0004: processor brand string

Optional leaves that are not supported are reported as (zero value, false)
rather than as errors.
*/
package cpuid
