/*
Package affinity enumerates the logical CPUs a process may run on and pins OS
threads to individual CPUs.

[List] and [Set] both represent sets of logical CPUs, identified by their
0-based CPU numbers, mirroring the representations used by Linux:

  - [List] stores CPU numbers as ranges, such as 1-4,8-15, as found in sysfs.
  - [Set] stores CPU numbers as bits, such as used by sched_setaffinity(2).

[System] combines the process affinity with the online CPUs and pins the
calling thread to a single CPU.
*/
package affinity
