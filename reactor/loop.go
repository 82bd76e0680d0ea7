// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Loop is the reactor specialization of section 4.4's single-thread
// executor: it composes executor.Base for submission/scheduling/lifecycle
// and replaces the parked channel-wait of executor.SingleThreadExecutor
// with the OS readiness notifier, per section 4.5.

package reactor

import (
	"errors"
	"log"
	"time"

	"github.com/momentics/reactorcore/config"
	"github.com/momentics/reactorcore/errs"
	"github.com/momentics/reactorcore/executor"
)

const drainBudget = 1024

// cleanupInterval is the cancelled-registration threshold (section 4.5.1)
// at which the loop flushes stale notifier entries before its next wait.
const cleanupInterval = 256

// Loop binds one OS readiness notifier and its registrations to one
// owned thread. Construct with NewLoop; the thread starts lazily on
// first Execute/Submit/Schedule/Register, exactly like
// executor.SingleThreadExecutor.
type Loop struct {
	*executor.Base

	notifier notifier
	snapshot config.Snapshot
	probes   *config.Probes
	probeTag string

	// Everything below is touched only on the loop's own thread: foreign
	// callers funnel Register/Unregister/setInterestNow through Submit.
	regs          map[uintptr]*Registration
	cancelledKeys int
	selectAgain   bool
	selectCnt     int
	rebuildCount  int
}

// NewLoop constructs and wires a Loop. idx identifies this loop for
// thread-factory/affinity purposes. probes may be nil; when non-nil, the
// loop registers a probe reporting its queue depth, registration count,
// and rebuild count under probeTag.
func NewLoop(idx int, snapshot config.Snapshot, factory executor.ThreadFactory, probes *config.Probes, probeTag string) (*Loop, error) {
	n, err := newNotifier()
	if err != nil {
		return nil, errs.New(errs.KindIO, "reactor: opening notifier failed", err)
	}
	l := &Loop{
		notifier: n,
		snapshot: snapshot,
		probes:   probes,
		probeTag: probeTag,
		regs:     make(map[uintptr]*Registration),
	}
	l.Base = executor.NewBase(idx, snapshot.DefaultMaxPendingTasks, factory, l.notifier.wakeup, l.run)
	if probes != nil && probeTag != "" {
		probes.Register(probeTag, l.probeSnapshot)
	}
	return l, nil
}

func (l *Loop) probeSnapshot() any {
	return map[string]int{
		"queue_len":     l.QueueLen(),
		"registrations": len(l.regs),
		"rebuild_count": l.rebuildCount,
	}
}

// Register implements Reactor.
func (l *Loop) Register(fd uintptr, interestOps FDEventType, attachment any) (*Registration, error) {
	if interestOps == 0 {
		return nil, errs.Invalidf("reactor: interest mask must be non-zero")
	}
	if l.State() >= executor.ShuttingDown {
		return nil, errs.IllegalStatef("reactor: register on a loop that is shutting down or shut down")
	}
	if l.InEventLoop() {
		return l.registerNow(fd, interestOps, attachment)
	}
	var reg *Registration
	var regErr error
	f := l.Submit(func() {
		reg, regErr = l.registerNow(fd, interestOps, attachment)
	})
	if err := f.Sync(); err != nil {
		return nil, err
	}
	return reg, regErr
}

func (l *Loop) registerNow(fd uintptr, interestOps FDEventType, attachment any) (*Registration, error) {
	if err := l.notifier.registerFD(fd, interestOps); err != nil {
		return nil, errs.New(errs.KindIO, "reactor: registerFD failed", err)
	}
	reg := &Registration{FD: fd, loop: l, attachment: attachment}
	reg.interest.Store(uint32(interestOps))
	l.regs[fd] = reg
	return reg, nil
}

// Unregister implements Reactor. Idempotent.
func (l *Loop) Unregister(reg *Registration) error {
	if l.InEventLoop() {
		l.unregisterNow(reg, nil)
		return nil
	}
	f := l.Submit(func() { l.unregisterNow(reg, nil) })
	return f.Sync()
}

func (l *Loop) unregisterNow(reg *Registration, cause error) {
	if reg.cancelled.Swap(true) {
		return
	}
	delete(l.regs, reg.FD)
	if err := l.notifier.cancelFD(reg.FD); err != nil {
		log.Printf("reactorcore/reactor: cancelFD(%d) failed: %v", reg.FD, err)
	}
	l.cancelledKeys++
	if l.cancelledKeys >= cleanupInterval {
		l.selectAgain = true
		l.cancelledKeys = 0
	}
	if reg.OnUnregistered != nil {
		reg.OnUnregistered(cause)
	}
}

// setInterestNow updates reg's interest mask and the notifier's mask for
// its fd. Must run on the loop's own thread; Registration.SetInterest
// funnels foreign calls here via Submit.
func (l *Loop) setInterestNow(reg *Registration, ops FDEventType) error {
	if reg.Cancelled() {
		return errs.IllegalStatef("reactor: registration already cancelled")
	}
	if err := l.notifier.modifyFD(reg.FD, ops); err != nil {
		return errs.New(errs.KindIO, "reactor: modifyFD failed", err)
	}
	reg.interest.Store(uint32(ops))
	return nil
}

func (l *Loop) run() {
	l.SetOwner()
	defer l.ClearOwner()

	idleSince := time.Time{}
	for {
		if l.runIteration(&idleSince) {
			return
		}
	}
}

// runIteration runs one pass of the loop body: select/dispatch, drain, then
// the rebuild/shutdown bookkeeping. It reports whether run should return.
//
// The whole body is wrapped in a recover the way NioEventLoop.run() wraps
// each iteration in a catch around processSelectedKeys/runAllTasks: a
// Handler or ReadinessTask callback reached through dispatchOne that panics
// must not take the owning thread down with it. The recovery logs and
// sleeps a second before the next iteration, the same pause Netty's
// handleLoopException uses to avoid spinning a CPU core against a
// repeatedly-panicking callback.
func (l *Loop) runIteration(idleSince *time.Time) (shouldReturn bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("reactorcore/reactor: loop iteration panicked: %v", r)
			time.Sleep(time.Second)
		}
	}()

	entries, tIO, interrupted := l.selectAndDispatch()
	didDispatch := len(entries) > 0

	didDrain := l.drainWithBudget(didDispatch, tIO)

	switch {
	case interrupted:
		// A signal interruption resets the counter the same way a
		// rebuild would, without counting toward the threshold itself.
		l.selectCnt = 0
	case !didDispatch && !didDrain:
		l.selectCnt++
		if l.snapshot.SelectorAutoRebuildThreshold > 0 && l.selectCnt >= l.snapshot.SelectorAutoRebuildThreshold {
			l.rebuild()
			l.selectCnt = 0
		}
	default:
		l.selectCnt = 0
	}

	if quiet, deadline, shuttingDown := l.ShuttingDownState(); shuttingDown {
		// Per the loop's shutdown step: tear down remaining
		// registrations as soon as shutdown is observed, rather than
		// waiting for them to go idle on their own — a registration
		// with an open interest mask would otherwise never let the
		// loop reach quiet-period confirmation.
		for _, reg := range l.regs {
			l.unregisterNow(reg, errs.IllegalStatef("reactor: loop shutting down"))
		}
		if executor.NowNanos() >= deadline {
			l.finishShutdown()
			return true
		}
		_, hasSched := l.NextScheduledDeadline()
		if l.QueueLen() == 0 && !hasSched {
			if idleSince.IsZero() {
				*idleSince = time.Now()
			}
			if time.Since(*idleSince) >= quiet {
				l.finishShutdown()
				return true
			}
		} else {
			*idleSince = time.Time{}
		}
	}
	return false
}

// selectAndDispatch performs steps 1-3 of section 4.5: arm the wakeup at
// the earliest scheduled deadline, block in the notifier only when the
// task queue is already empty, then dispatch whatever came back ready.
// The duration returned is the wall time spent dispatching (step 3), the
// t_io of step 4's budget. The third return value reports a signal
// interruption of the blocking wait, which runIteration must treat as a
// forced counter reset, not a spurious empty return.
func (l *Loop) selectAndDispatch() ([]readyEntry, time.Duration, bool) {
	deadline, hasDeadline := l.NextScheduledDeadline()
	if quiet, shutdownDeadline, shuttingDown := l.ShuttingDownState(); shuttingDown {
		// Bound the wait so a loop with nothing left to dispatch still
		// wakes on its own to re-check quiet-period/timeout expiry,
		// mirroring executor.SingleThreadExecutor.park's recheck bound.
		recheckBy := executor.NowNanos() + int64(quiet) + 1
		if recheckBy > shutdownDeadline {
			recheckBy = shutdownDeadline
		}
		if !hasDeadline || recheckBy < deadline {
			deadline, hasDeadline = recheckBy, true
		}
	}
	armAt := executor.NoDeadline
	if hasDeadline {
		armAt = deadline
	}
	l.ArmWakeup(armAt)

	// Strategy select (step 1): a non-empty task queue still gets a
	// non-blocking poll of the notifier rather than skipping it — the
	// spec folds "busy-wait" into "select" with a zero timeout, so ready
	// connections are never starved by a continuously busy task queue.
	var wait time.Duration
	switch {
	case l.QueueLen() > 0:
		wait = 0
	case !hasDeadline:
		wait = -1
	default:
		wait = time.Duration(deadline - executor.NowNanos())
		if wait < 0 {
			wait = 0
		}
	}

	entries, err := l.notifier.wait(wait)
	l.DisarmWakeup()
	if err != nil {
		if errors.Is(err, errInterrupted) {
			return nil, 0, true
		}
		log.Printf("reactorcore/reactor: notifier wait failed: %v", err)
		return nil, 0, false
	}
	if l.snapshot.DisableKeySetOptimization {
		entries = l.toKeyedReadySet(entries)
	}
	t0 := time.Now()
	l.dispatchReady(entries)
	return entries, time.Since(t0), false
}

// toKeyedReadySet rebuilds entries through an intermediate map, the §4.6
// fallback opted into via DisableKeySetOptimization: it discards the dense
// array the notifier already handed back and re-derives an equivalent, but
// unordered and non-reused, slice — the behavior the spec's knob exists to
// select even though the Linux notifier never needs it for correctness.
func (l *Loop) toKeyedReadySet(entries []readyEntry) []readyEntry {
	keyed := make(map[uintptr]FDEventType, len(entries))
	for _, e := range entries {
		keyed[e.fd] |= e.ops
	}
	out := make([]readyEntry, 0, len(keyed))
	for fd, ops := range keyed {
		out = append(out, readyEntry{fd: fd, ops: ops})
	}
	return out
}

// dispatchReady implements section 4.5.1's readiness dispatch.
func (l *Loop) dispatchReady(entries []readyEntry) {
	for i := 0; i < len(entries); i++ {
		entries[i] = l.dispatchOne(entries[i])
		if l.selectAgain {
			l.selectAgain = false
			more, err := l.notifier.wait(0)
			if err == nil && len(more) > 0 {
				entries = append(entries[:i+1:i+1], more...)
			}
		}
	}
}

func (l *Loop) dispatchOne(entry readyEntry) readyEntry {
	reg, ok := l.regs[entry.fd]
	if !ok {
		return readyEntry{}
	}
	readyOps := entry.ops & reg.Interest()

	switch att := reg.attachment.(type) {
	case Handler:
		if readyOps&EventConnect != 0 && !reg.Cancelled() {
			_ = l.setInterestNow(reg, reg.Interest()&^EventConnect)
			att.OnConnectReady()
		}
		if readyOps&EventWrite != 0 && !reg.Cancelled() {
			att.OnWriteReady()
		}
		if (readyOps&(EventRead|EventAccept) != 0 || readyOps == 0) && !reg.Cancelled() {
			att.OnReadReady()
		}
	case ReadinessTask:
		if err := att(readyOps); err != nil {
			l.unregisterNow(reg, err)
		}
	}
	return readyEntry{}
}

// drainWithBudget implements step 4: when io_ratio == 100, drain
// unconditionally; otherwise drain batches until tIO*(100-io_ratio)/io_ratio
// has elapsed, checking the budget after each batch, so at least one batch
// runs even when dispatch took almost no time. When
// dispatch found nothing, run at most one batch so timers are never
// starved by an otherwise-idle loop.
//
// Due scheduled tasks are folded into the task queue here, not before
// selectAndDispatch's wait: a wait that returns purely because an armed
// scheduled-task deadline elapsed must still register as "the notifier
// genuinely had nothing ready" for step 5's spurious-wakeup detector, and
// the corresponding task has to actually reach the queue in the same
// iteration that deadline was the reason for waking, which only happens
// once the wait itself has returned — not before it, when the deadline
// may still be in the future.
func (l *Loop) drainWithBudget(didDispatch bool, tIO time.Duration) bool {
	l.PopDueScheduled()

	ratio := l.snapshot.IORatio
	if ratio <= 0 {
		ratio = config.DefaultIORatio
	}
	if !didDispatch {
		return l.drainOnce()
	}
	if ratio >= 100 {
		ran := false
		for l.drainOnce() {
			ran = true
		}
		return ran
	}
	budget := tIO * time.Duration(100-ratio) / time.Duration(ratio)
	deadline := time.Now().Add(budget)
	ran := false
	for l.drainOnce() {
		ran = true
		if !time.Now().Before(deadline) {
			break
		}
	}
	return ran
}

func (l *Loop) drainOnce() bool {
	ran := false
	for i := 0; i < drainBudget; i++ {
		task, ok := l.PollTask()
		if !ok {
			break
		}
		l.SafeRunTask(task)
		ran = true
	}
	return ran
}

func (l *Loop) finishShutdown() {
	l.MarkShutdown()
	for _, reg := range l.regs {
		l.unregisterNow(reg, errs.IllegalStatef("reactor: loop shutting down"))
	}
	l.drainOnce()
	if err := l.notifier.close(); err != nil {
		log.Printf("reactorcore/reactor: notifier close failed: %v", err)
	}
	if l.probes != nil && l.probeTag != "" {
		l.probes.Unregister(l.probeTag)
	}
	l.MarkTerminated()
}

// rebuild implements section 4.5.2: open a fresh notifier, migrate every
// still-valid registration across preserving attachment and interest,
// then close the old one. Per-entry failures are logged and that
// registration is cancelled; rebuild never aborts partway.
func (l *Loop) rebuild() {
	fresh, err := newNotifier()
	if err != nil {
		log.Printf("reactorcore/reactor: notifier rebuild failed to open replacement: %v", err)
		return
	}
	old := l.notifier
	for fd, reg := range l.regs {
		ops := reg.Interest()
		if err := fresh.registerFD(fd, ops); err != nil {
			log.Printf("reactorcore/reactor: rebuild: migrating fd %d failed: %v", fd, err)
			l.unregisterNow(reg, err)
			continue
		}
	}
	l.notifier = fresh
	if err := old.close(); err != nil {
		log.Printf("reactorcore/reactor: rebuild: closing old notifier failed: %v", err)
	}
	l.rebuildCount++
}
