//go:build linux
// +build linux

// File: affinity/affinity_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux implementation of thread pinning via sched_setaffinity(2), reached
// through golang.org/x/sys/unix rather than cgo: the rest of this
// repository's Linux-specific code (the epoll reactor) already depends on
// x/sys/unix, and a non-cgo build keeps cross-compilation and static
// linking simple for something that is a pure tuning knob.

package affinity

import "golang.org/x/sys/unix"

func pinCurrentThread(cpuID int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpuID)
	return unix.SchedSetaffinity(0, &set)
}

func unpinCurrentThread() {
	// Nothing to restore: the OS thread is being unlocked right after
	// this call and will be returned to the scheduler's idle pool.
}
