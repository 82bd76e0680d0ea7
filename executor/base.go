// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Base is the "executor struct" section 9 calls for: the shared
// submission, scheduling, wakeup and lifecycle machinery that both the
// plain SingleThreadExecutor and the reactor Loop compose. Everything a
// foreign thread may touch — the task queue, the scheduled-task heap,
// the wakeup-state word, and the lifecycle flag — lives here with its
// own synchronization; everything else is the owning type's business.

package executor

import (
	"container/heap"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/reactorcore/errs"
	"github.com/momentics/reactorcore/future"
	"github.com/momentics/reactorcore/queue"
)

// awakeSentinel marks the wakeup word as "no one needs to wake me",
// mirroring the teacher's nextWakeupNanos AWAKE sentinel: any value other
// than awakeSentinel means the loop is parked until that deadline (or,
// for noDeadlineSentinel, parked indefinitely) and a foreign producer
// must invoke wakeFn after winning the swap.
const awakeSentinel int64 = -1

// noDeadlineSentinel means "parked with no scheduled-task deadline".
const noDeadlineSentinel int64 = 1<<63 - 1

// Base implements everything in the Executor interface except the run
// loop body itself, which the owning type supplies via runBody.
type Base struct {
	idx           int
	threadFactory ThreadFactory
	runBody       func()
	wakeFn        func()

	startOnce sync.Once
	state     atomic.Int32
	ownerID   atomic.Uint64

	tasks queue.TaskQueue

	schedMu sync.Mutex
	sched   taskHeap
	schedSeq uint64

	nextWakeupNanos atomic.Int64

	quietPeriodNanos atomic.Int64
	shutdownAt       atomic.Int64 // monotonic nanos after which quiet period may end; 0 = not shutting down

	terminated *future.Promise[any]
}

// NewBase constructs the shared executor machinery. capacity <= 0 gives
// the task queue an effectively unbounded backing (see package queue).
func NewBase(idx int, capacity int, factory ThreadFactory, wakeFn func(), runBody func()) *Base {
	if factory == nil {
		factory = DefaultThreadFactory
	}
	b := &Base{
		idx:           idx,
		threadFactory: factory,
		runBody:       runBody,
		wakeFn:        wakeFn,
		tasks:         queue.New(capacity),
	}
	b.terminated = future.NewPromise[any](b.executorAdapter())
	b.nextWakeupNanos.Store(awakeSentinel)
	return b
}

func (b *Base) ensureStarted() {
	b.startOnce.Do(func() {
		b.state.Store(int32(Started))
		b.threadFactory(b.idx, b.runBody)
	})
}

// Execute enqueues task and wakes the loop if necessary.
func (b *Base) Execute(task func()) {
	if State(b.state.Load()) == NotStarted {
		b.ensureStarted()
	}
	if State(b.state.Load()) >= Shutdown {
		return
	}
	for !b.tasks.Offer(task) {
		// Bounded queue at capacity: yield and retry. A configured
		// capacity is a backpressure knob, not a drop policy.
		time.Sleep(time.Microsecond)
	}
	if !b.InEventLoop() {
		b.wakeupIfIdle()
	}
}

// Submit wraps task in a promise resolved with a nil success value once
// task has run (or, if task panics, failed with a KindEventLoop error; the
// recovered panic value itself is not kept). A
// submission arriving after the loop has reached the Shutdown stage fails
// fast with an illegal-state error rather than enqueueing a task the run
// loop will never drain.
func (b *Base) Submit(task func()) future.Future[any] {
	p := future.NewPromise[any](b.executorAdapter())
	if State(b.state.Load()) >= Shutdown {
		p.TryFailure(errs.IllegalStatef("executor: submit after shutdown"))
		return p
	}
	b.Execute(func() {
		defer func() {
			if r := recover(); r != nil {
				p.TryFailure(errs.New(errs.KindEventLoop, "submitted task panicked", nil))
				return
			}
		}()
		task()
		p.TrySuccess(nil)
	})
	return p
}

// Schedule arranges for task to run once after delay elapses. Like
// Submit, it fails fast after the loop has reached the Shutdown stage.
// Cancelling the returned future marks the heap entry cancelled in place
// (per section 5: "best-effort" removal) — popDueScheduled and peekDeadline
// already skip cancelled entries, and the heap.Pop that eventually removes
// the dead entry from the backing slice happens lazily, the same way a
// late cancel after popping is already documented as a no-op.
func (b *Base) Schedule(task func(), delay time.Duration) future.Future[any] {
	p := future.NewPromise[any](b.executorAdapter())
	if State(b.state.Load()) >= Shutdown {
		p.TryFailure(errs.IllegalStatef("executor: schedule after shutdown"))
		return p
	}
	deadline := monotonicNow() + int64(delay)
	b.schedMu.Lock()
	b.schedSeq++
	seq := b.schedSeq
	entry := &scheduledTask{deadline: deadline, seq: seq}
	entry.task = func() {
		defer func() {
			if r := recover(); r != nil {
				p.TryFailure(errs.New(errs.KindEventLoop, "scheduled task panicked", nil))
			}
		}()
		if entry.cancelled {
			return
		}
		task()
		p.TrySuccess(nil)
	}
	heap.Push(&b.sched, entry)
	b.schedMu.Unlock()
	p.SetCancelHook(func() {
		b.schedMu.Lock()
		entry.cancelled = true
		b.schedMu.Unlock()
	})
	b.ensureStarted()
	// Only a deadline earlier than the one the loop is parked until needs
	// a wakeup; a later one is picked up when the loop next re-arms.
	if !b.InEventLoop() && deadline < b.nextWakeupNanos.Load() {
		b.wakeupIfIdle()
	}
	return p
}

// setOwner and clearOwner bracket the owning type's run body, recording
// which goroutine InEventLoop compares against.
func (b *Base) setOwner()   { b.ownerID.Store(currentGoroutineID()) }
func (b *Base) clearOwner() { b.ownerID.Store(0) }

// SetOwner exports setOwner for a composing loop's run body.
func (b *Base) SetOwner() { b.setOwner() }

// ClearOwner exports clearOwner for a composing loop's run body.
func (b *Base) ClearOwner() { b.clearOwner() }

// markShutdown transitions the loop to the terminal Shutdown stage,
// refusing further submissions; the caller (run body) still owns
// draining whatever made it into the queue before exiting.
func (b *Base) markShutdown() { b.state.Store(int32(Shutdown)) }

// markTerminated transitions to Terminated and completes the
// termination future; called exactly once by the run body just before
// it returns.
func (b *Base) markTerminated() {
	b.state.Store(int32(Terminated))
	b.terminated.TrySuccess(nil)
}

// shuttingDown reports whether ShutdownGracefully has been requested
// and, if so, the deadline after which the quiet period may end
// regardless of continued submissions.
func (b *Base) shuttingDown() (quietPeriod time.Duration, timeoutDeadline int64, active bool) {
	if State(b.state.Load()) < ShuttingDown {
		return 0, 0, false
	}
	return time.Duration(b.quietPeriodNanos.Load()), b.shutdownAt.Load(), true
}

// InEventLoop reports whether the calling goroutine owns this loop.
func (b *Base) InEventLoop() bool {
	owner := b.ownerID.Load()
	return owner != 0 && owner == currentGoroutineID()
}

// State returns the loop's current lifecycle stage.
func (b *Base) State() State { return State(b.state.Load()) }

// Terminated returns the loop's termination future.
func (b *Base) Terminated() future.Future[any] { return b.terminated }

// ShutdownGracefully marks the loop as shutting down; the run loop is
// responsible for observing quietPeriod/timeout and completing
// terminated once its thread exits.
func (b *Base) ShutdownGracefully(quietPeriod, timeout time.Duration) future.Future[any] {
	b.ensureStarted()
	b.quietPeriodNanos.Store(int64(quietPeriod))
	b.shutdownAt.Store(monotonicNow() + int64(timeout))
	for {
		cur := State(b.state.Load())
		if cur >= ShuttingDown {
			break
		}
		if b.state.CompareAndSwap(int32(cur), int32(ShuttingDown)) {
			break
		}
	}
	if !b.InEventLoop() {
		b.wakeupIfIdle()
	}
	return b.terminated
}

// wakeupIfIdle implements the CAS-swap-then-conditionally-wakeup wakeup
// protocol of section 5: a foreign thread swaps the wakeup word to
// awakeSentinel and only calls wakeFn if it observed a non-awake prior
// value, keeping wakeups amortized O(1).
func (b *Base) wakeupIfIdle() {
	old := b.nextWakeupNanos.Swap(awakeSentinel)
	if old != awakeSentinel && b.wakeFn != nil {
		b.wakeFn()
	}
}

// armWakeup records the deadline the loop is about to park until (or
// noDeadlineSentinel for an indefinite wait), per the "before arming,
// write IDLE-UNTIL(deadline)" rule.
func (b *Base) armWakeup(deadline int64) {
	b.nextWakeupNanos.Store(deadline)
}

// disarmWakeup records that the loop is running and does not need a
// wakeup call; a stray extra wakeup afterwards is harmless.
func (b *Base) disarmWakeup() {
	b.nextWakeupNanos.Store(awakeSentinel)
}

// popDueScheduled moves every due scheduled task into the task queue, as
// required by the first step of the single-thread executor's run body.
func (b *Base) popDueScheduled() {
	now := monotonicNow()
	b.schedMu.Lock()
	due := popDue(&b.sched, now)
	b.schedMu.Unlock()
	for _, t := range due {
		task := t.task
		for !b.tasks.Offer(task) {
			time.Sleep(time.Microsecond)
		}
	}
}

// nextScheduledDeadline reports the earliest still-armed deadline, if any.
func (b *Base) nextScheduledDeadline() (int64, bool) {
	b.schedMu.Lock()
	defer b.schedMu.Unlock()
	return b.sched.peekDeadline()
}

func monotonicNow() int64 { return time.Now().UnixNano() }

// NowNanos exposes the same monotonic clock Base schedules against, so a
// composing loop (e.g. reactor.Loop) can compare its own deadlines against
// Base's without drifting onto a different time source.
func NowNanos() int64 { return monotonicNow() }

// NoDeadline is the sentinel a composing loop passes to ArmWakeup to mean
// "parked with no scheduled-task deadline".
const NoDeadline = noDeadlineSentinel

// ArmWakeup exports armWakeup for a composing loop's own blocking-wait step.
func (b *Base) ArmWakeup(deadlineNanos int64) { b.armWakeup(deadlineNanos) }

// DisarmWakeup exports disarmWakeup for a composing loop's own blocking-wait step.
func (b *Base) DisarmWakeup() { b.disarmWakeup() }

// QueueLen reports the number of tasks currently queued.
func (b *Base) QueueLen() int { return b.tasks.Len() }

// PollTask removes and returns the next queued task, if any.
func (b *Base) PollTask() (func(), bool) { return b.tasks.Poll() }

// SafeRunTask runs task, recovering any panic so one bad task cannot kill
// the owning loop's thread.
func (b *Base) SafeRunTask(task func()) {
	defer func() { recover() }()
	task()
}

// NextScheduledDeadline exports nextScheduledDeadline for a composing loop.
func (b *Base) NextScheduledDeadline() (int64, bool) { return b.nextScheduledDeadline() }

// PopDueScheduled exports popDueScheduled for a composing loop.
func (b *Base) PopDueScheduled() { b.popDueScheduled() }

// ShuttingDownState exports shuttingDown for a composing loop.
func (b *Base) ShuttingDownState() (quietPeriod time.Duration, timeoutDeadline int64, active bool) {
	return b.shuttingDown()
}

// MarkShutdown exports markShutdown for a composing loop's run body.
func (b *Base) MarkShutdown() { b.markShutdown() }

// MarkTerminated exports markTerminated for a composing loop's run body.
func (b *Base) MarkTerminated() { b.markTerminated() }

// executorAdapter exposes Base as a future.NotifyExecutor so promises
// created for this loop's submissions dispatch listeners inline when
// completed from the loop's own thread.
func (b *Base) executorAdapter() future.NotifyExecutor { return (*baseNotifyAdapter)(b) }

type baseNotifyAdapter Base

func (a *baseNotifyAdapter) InEventLoop() bool { return (*Base)(a).InEventLoop() }
func (a *baseNotifyAdapter) Execute(task func()) { (*Base)(a).Execute(task) }
