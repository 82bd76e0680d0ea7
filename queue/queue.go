// Package queue implements the multi-producer/single-consumer task queues
// that back every executor in reactorcore. Two backing structures are
// provided behind the same TaskQueue interface:
//
//   - RingQueue: a fixed-capacity, lock-free Vyukov-style MPMC ring,
//     used whenever the caller supplies an explicit positive capacity.
//   - GrowableQueue: a mutex-guarded, dynamically resizing FIFO built on
//     github.com/eapache/queue, used for the default "effectively
//     unlimited" capacity.
//
// Both satisfy linearizability with respect to the single consumer and
// Offer returning false only when a configured bound is exhausted.
// Neither enqueue is wait-free: RingQueue producers retry a CAS on the
// shared tail counter under contention (lock-free, never taking a lock),
// and GrowableQueue producers take a short mutex hold.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package queue

// Task is an opaque unit of work consumed strictly by one loop's thread.
type Task = func()

// TaskQueue is the consumer-facing contract every loop drains from.
type TaskQueue interface {
	// Offer enqueues task. Returns false if the queue is at (or the
	// caller-supplied bound has been reached at) capacity.
	Offer(task Task) bool
	// Poll removes and returns the oldest task, or ok=false if empty.
	Poll() (task Task, ok bool)
	// Len returns the approximate number of queued tasks.
	Len() int
}

// New constructs the MPSC task queue appropriate for capacity. A capacity
// <= 0 selects the growable, effectively-unbounded backing; a positive
// capacity selects the fixed-size lock-free ring, rounded up internally to
// the next power of two.
func New(capacity int) TaskQueue {
	if capacity <= 0 {
		return newGrowableQueue()
	}
	return newRingQueue(capacity)
}
