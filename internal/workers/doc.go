/*
Package workers sizes the worker pools used while building mosaics.

Sizes are derived from runtime.GOMAXPROCS rather than runtime.NumCPU, so a
container limited to 2 CPUs on a 64 core node gets 2-CPU sized pools (Go
1.19+ sets GOMAXPROCS from the cgroup limit).

Two pools exist:

	// frames decoded concurrently inside one job (2 per CPU, max 32)
	n := workers.ForExtraction()

	// jobs running concurrently in a batch (1 per CPU, max 8)
	n := workers.ForJobs()

Both can be pinned by operators:

	env:
	- name: MOSAIC_EXTRACT_WORKERS
	  value: "8"
	- name: MOSAIC_JOB_WORKERS
	  value: "2"

An override is still capped by the pool maximum. Invalid or non-positive
values are ignored.
*/
package workers
