// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// RingQueue is a bounded, lock-free MPSC queue using the Vyukov
// sequence-number scheme: each slot is tagged with the turn number that
// is allowed to write or read it, so producers racing for the same slot
// detect the loser via a CAS on the shared tail counter without ever
// blocking on a mutex.

package queue

import "sync/atomic"

const cacheLinePad = 64

type ringCell struct {
	sequence atomic.Uint64
	task     Task
}

type ringQueue struct {
	head uint64
	_    [cacheLinePad]byte
	tail uint64
	_    [cacheLinePad]byte
	mask uint64
	cells []ringCell
}

func newRingQueue(capacity int) *ringQueue {
	size := 2
	for size < capacity {
		size <<= 1
	}
	q := &ringQueue{
		mask:  uint64(size - 1),
		cells: make([]ringCell, size),
	}
	for i := range q.cells {
		q.cells[i].sequence.Store(uint64(i))
	}
	return q
}

func (q *ringQueue) Offer(task Task) bool {
	for {
		tail := atomic.LoadUint64(&q.tail)
		index := tail & q.mask
		cell := &q.cells[index]
		seq := cell.sequence.Load()
		diff := int64(seq) - int64(tail)

		switch {
		case diff == 0:
			if atomic.CompareAndSwapUint64(&q.tail, tail, tail+1) {
				cell.task = task
				cell.sequence.Store(tail + 1)
				return true
			}
		case diff < 0:
			return false // full
		default:
			// another producer has already advanced tail; retry
		}
	}
}

func (q *ringQueue) Poll() (Task, bool) {
	for {
		head := atomic.LoadUint64(&q.head)
		index := head & q.mask
		cell := &q.cells[index]
		seq := cell.sequence.Load()
		diff := int64(seq) - int64(head+1)

		switch {
		case diff == 0:
			if atomic.CompareAndSwapUint64(&q.head, head, head+1) {
				task := cell.task
				cell.task = nil
				cell.sequence.Store(head + q.mask + 1)
				return task, true
			}
		case diff < 0:
			return nil, false // empty
		default:
			// consumer is single-threaded in practice, but tolerate races
		}
	}
}

func (q *ringQueue) Len() int {
	head := atomic.LoadUint64(&q.head)
	tail := atomic.LoadUint64(&q.tail)
	return int(tail - head)
}
