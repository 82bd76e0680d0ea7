// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Reactor is the registration/interest-ops surface named in section 9's
// flattening note ("Executor: submit/schedule/lifecycle; Reactor:
// register/interest-ops"). Registration binds one selectable resource to
// one loop for life, per section 3's Registration data model.

package reactor

import (
	"sync/atomic"

	"github.com/momentics/reactorcore/errs"
)

// FDEventType is the interest/readiness bitmask a Registration carries.
type FDEventType uint32

const (
	EventRead FDEventType = 1 << iota
	EventWrite
	EventConnect
	EventAccept
	EventError
)

// Handler is the "internal channel" attachment kind of section 4.5.1: a
// richer collaborator that receives a distinct callback per readiness
// bit, dispatched in the fixed order finish-connect, flush, read/accept.
// Concrete channel/pipeline implementations are an external collaborator
// per this repository's scope; Handler is the seam they attach through.
type Handler interface {
	OnConnectReady()
	OnWriteReady()
	OnReadReady()
}

// ReadinessTask is the "user-supplied readiness task" attachment kind: a
// plain function invoked once per dispatch with the computed ready-ops
// mask. Returning a non-nil error cancels the registration and reports
// the cause to OnUnregistered, if set.
type ReadinessTask func(ready FDEventType) error

// Reactor is the interface a loop exposes for binding selectable
// resources. All mutation of a Registration's interest mask, attachment,
// and validity happens on the owning loop's thread; calls from other
// goroutines are funnelled through the loop's executor and awaited.
type Reactor interface {
	// Register binds fd with the given non-zero interest mask and
	// attachment (a Handler or a ReadinessTask). Fails with
	// errs.InvalidArgument if interestOps == 0, or errs.IllegalState if
	// the loop is shutting down or shut down.
	Register(fd uintptr, interestOps FDEventType, attachment any) (*Registration, error)
	// Unregister cancels reg. Idempotent.
	Unregister(reg *Registration) error
}

// Registration is the binding of one selectable resource to one loop.
type Registration struct {
	FD   uintptr
	loop *Loop

	interest atomic.Uint32
	cancelled atomic.Bool

	attachment any

	// OnUnregistered, if set, is invoked (on the owning loop's thread)
	// when this registration is cancelled, with the cause if any.
	OnUnregistered func(cause error)
}

// Interest returns the registration's current interest mask.
func (r *Registration) Interest() FDEventType { return FDEventType(r.interest.Load()) }

// Cancelled reports whether this registration has been unregistered.
func (r *Registration) Cancelled() bool { return r.cancelled.Load() }

// SetInterest updates reg's interest mask, taking effect on or before
// the owning loop's next notifier iteration. Safe to call from any
// goroutine; funnelled through the loop when called off-thread.
func (r *Registration) SetInterest(ops FDEventType) error {
	if ops == 0 {
		return errs.Invalidf("registration: interest mask must be non-zero")
	}
	if r.loop.InEventLoop() {
		return r.loop.setInterestNow(r, ops)
	}
	f := r.loop.Submit(func() { _ = r.loop.setInterestNow(r, ops) })
	return f.Sync()
}
