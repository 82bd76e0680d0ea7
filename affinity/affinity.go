// Package affinity implements the optional CPU/NUMA pinning of loop
// threads described in section 4.7: a loop's run goroutine may lock itself
// to an OS thread and request affinity to a CPU core. Pinning is always an
// optimization, never a correctness requirement — failure to pin is
// logged and the loop continues unpinned.
//
// Platform-specific implementations of pinCurrentThread/unpinCurrentThread
// live in affinity_linux.go, affinity_windows.go, and affinity_stub.go,
// selected by build tags exactly as the rest of this repository's
// platform-straddling packages do.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package affinity

import (
	"log"
	"runtime"
)

// Pin locks the calling goroutine's OS thread and attempts to bind it to
// cpuID. cpuID < 0 means "lock the OS thread but leave scheduling to the
// OS" (still useful: it stops the Go runtime from migrating the loop
// across threads mid-flight). Failures are logged, never returned, since
// callers must never fail loop construction over a tuning knob.
func Pin(cpuID int) {
	runtime.LockOSThread()
	if cpuID < 0 {
		return
	}
	if err := pinCurrentThread(cpuID); err != nil {
		log.Printf("reactorcore/affinity: pin to cpu %d failed: %v", cpuID, err)
	}
}

// Unpin releases any OS-thread lock taken by Pin. Safe to call even if
// Pin was never called.
func Unpin() {
	unpinCurrentThread()
	runtime.UnlockOSThread()
}

// NumCPU is a thin re-export for callers choosing a pinning policy (e.g.
// round-robin loop index modulo NumCPU) without importing runtime
// themselves.
func NumCPU() int { return runtime.NumCPU() }
