// Package executor implements the single-threaded task executor that
// every loop in this repository is built from: a lazily-started owned
// thread draining an MPSC task queue and a scheduled-task heap. The
// reactor package specializes the blocking-wait step with an OS
// readiness notifier; everything else — submission, scheduling,
// lifecycle, wakeup bookkeeping — lives here and is shared.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package executor

import (
	"time"

	"github.com/momentics/reactorcore/future"
)

// State is a loop's lifecycle stage. Transitions are monotonic:
// NotStarted -> Started -> ShuttingDown -> Shutdown -> Terminated.
type State int32

const (
	NotStarted State = iota
	Started
	ShuttingDown
	Shutdown
	Terminated
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not-started"
	case Started:
		return "started"
	case ShuttingDown:
		return "shutting-down"
	case Shutdown:
		return "shutdown"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// ThreadFactory starts body as the owned thread for loop index idx. The
// default factory runs body on a bare goroutine; group.PinningThreadFactory
// wraps a factory to pin the goroutine's OS thread to a CPU target first.
type ThreadFactory func(idx int, body func())

// DefaultThreadFactory starts body on a plain goroutine.
func DefaultThreadFactory(_ int, body func()) {
	go body()
}

// Executor is the submission and lifecycle surface every loop exposes.
type Executor interface {
	// Execute enqueues task on the loop's MPSC queue, starting the
	// owned thread lazily on first call. Execute does not wait for task
	// to run; when the queue is bounded and full it retries until space
	// frees up.
	Execute(task func())
	// Submit wraps task in a promise fulfilled once it runs.
	Submit(task func()) future.Future[any]
	// Schedule runs task once after delay elapses, relative to the
	// call. A delay <= 0 behaves like Submit.
	Schedule(task func(), delay time.Duration) future.Future[any]
	// InEventLoop reports whether the calling goroutine is the loop's
	// owned thread.
	InEventLoop() bool
	// State returns the loop's current lifecycle stage.
	State() State
	// ShutdownGracefully requests termination: no new work is accepted
	// after timeout elapses, and the loop exits once idle for at least
	// quietPeriod with nothing newly submitted. The returned future
	// completes when the loop thread has exited.
	ShutdownGracefully(quietPeriod, timeout time.Duration) future.Future[any]
	// Terminated returns the future completed when the loop thread
	// has exited, regardless of who requested shutdown.
	Terminated() future.Future[any]
}
