// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// PinningThreadFactory is the opt-in hook named in section 4.7: wrapping
// a plain ThreadFactory so that each loop's owned goroutine pins its OS
// thread before entering the run body. Kept here, not in executor/ or
// reactor/, so that neither package needs to import affinity — pinning
// stays strictly a group-construction-time decision gated on
// config.Snapshot.AffinityEnabled.

package group

import (
	"github.com/momentics/reactorcore/affinity"
	"github.com/momentics/reactorcore/executor"
)

// PinningThreadFactory wraps next so that member idx's owned goroutine
// pins itself to CPU idx%NumCPU() before running body, unpinning once
// body returns. next defaults to executor.DefaultThreadFactory if nil.
func PinningThreadFactory(next executor.ThreadFactory) executor.ThreadFactory {
	if next == nil {
		next = executor.DefaultThreadFactory
	}
	ncpu := affinity.NumCPU()
	return func(idx int, body func()) {
		next(idx, func() {
			cpu := -1
			if ncpu > 0 {
				cpu = idx % ncpu
			}
			affinity.Pin(cpu)
			defer affinity.Unpin()
			body()
		})
	}
}
