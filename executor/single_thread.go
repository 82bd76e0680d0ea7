// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// SingleThreadExecutor is the plain (non-reactor) loop named in section
// 4.4: it owns one goroutine (locked to an OS thread only when its
// ThreadFactory does so, e.g. group.PinningThreadFactory), alternating
// scheduled-task promotion, bounded task drain,
// and a parked wait for new work. The reactor package's Loop follows
// the same shape but replaces the parked wait with an OS readiness
// notifier (section 4.5).

package executor

import "time"

const drainBudget = 1024

// SingleThreadExecutor implements Executor without any I/O notifier.
type SingleThreadExecutor struct {
	*Base
	wake chan struct{}
}

// NewSingleThreadExecutor constructs a lazily-started executor. idx
// identifies this loop for thread-factory/affinity purposes (see
// affinity.Pin); capacity <= 0 gives the task queue an unbounded
// backing.
func NewSingleThreadExecutor(idx int, capacity int, factory ThreadFactory) *SingleThreadExecutor {
	e := &SingleThreadExecutor{wake: make(chan struct{}, 1)}
	e.Base = NewBase(idx, capacity, factory, e.signalWake, e.run)
	return e
}

func (e *SingleThreadExecutor) signalWake() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *SingleThreadExecutor) run() {
	e.setOwner()
	defer e.clearOwner()

	idleSince := time.Time{}
	for {
		e.popDueScheduled()
		drainedAny := e.drainOnce()

		if quiet, deadline, shuttingDown := e.shuttingDown(); shuttingDown {
			if monotonicNow() >= deadline {
				e.markShutdown()
				e.drainOnce()
				e.markTerminated()
				return
			}
			empty := e.tasks.Len() == 0
			if _, hasSched := e.nextScheduledDeadline(); empty && !hasSched {
				if idleSince.IsZero() {
					idleSince = time.Now()
				}
				if time.Since(idleSince) >= quiet {
					e.markShutdown()
					e.drainOnce()
					e.markTerminated()
					return
				}
			} else {
				idleSince = time.Time{}
			}
		}

		if drainedAny {
			continue
		}
		e.park()
	}
}

// drainOnce runs every task currently queued, up to drainBudget, and
// reports whether it ran anything.
func (e *SingleThreadExecutor) drainOnce() bool {
	ran := false
	for i := 0; i < drainBudget; i++ {
		task, ok := e.tasks.Poll()
		if !ok {
			break
		}
		e.safeRun(task)
		ran = true
	}
	return ran
}

func (e *SingleThreadExecutor) safeRun(task func()) {
	defer func() { recover() }()
	task()
}

// park blocks until a foreign submission wakes the loop or the earliest
// scheduled-task deadline elapses, arming and disarming the wakeup word
// exactly as section 5's protocol requires.
func (e *SingleThreadExecutor) park() {
	deadline, hasDeadline := e.nextScheduledDeadline()
	if quiet, shutdownDeadline, shuttingDown := e.shuttingDown(); shuttingDown {
		// Bound the wait by the quiet period too, so a parked loop
		// wakes up on its own to notice it has been idle long enough,
		// rather than waiting forever for a submission that (by
		// definition, during a graceful drain) may never arrive.
		recheckBy := monotonicNow() + int64(quiet) + 1
		if recheckBy > shutdownDeadline {
			recheckBy = shutdownDeadline
		}
		if !hasDeadline || recheckBy < deadline {
			deadline, hasDeadline = recheckBy, true
		}
	}
	if !hasDeadline {
		deadline = noDeadlineSentinel
	}
	e.armWakeup(deadline)
	defer e.disarmWakeup()

	// Re-check after arming: a producer may have enqueued between the
	// drain above and this point, in which case wakeupIfIdle already
	// fired (or is about to) and we must not block past it.
	if e.tasks.Len() > 0 {
		return
	}

	if !hasDeadline {
		<-e.wake
		return
	}
	wait := time.Duration(deadline - monotonicNow())
	if wait <= 0 {
		return
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-e.wake:
	case <-timer.C:
	}
}
