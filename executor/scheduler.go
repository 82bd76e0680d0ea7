// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// scheduledTask and taskHeap implement the min-heap-by-deadline named in
// section 3 ("Scheduled task"), ties broken by insertion sequence.

package executor

import "container/heap"

type scheduledTask struct {
	deadline  int64 // monotonic nanoseconds, comparable only to other values from the same clock read
	seq       uint64
	task      func()
	index     int
	cancelled bool
}

type taskHeap []*scheduledTask

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].deadline != h[j].deadline {
		return h[i].deadline < h[j].deadline
	}
	return h[i].seq < h[j].seq
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x any) {
	t := x.(*scheduledTask)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	t.index = -1
	return t
}

// peekDeadline returns the deadline of the earliest non-cancelled entry.
func (h taskHeap) peekDeadline() (int64, bool) {
	var best int64
	found := false
	for _, t := range h {
		if !t.cancelled && (!found || t.deadline < best) {
			best, found = t.deadline, true
		}
	}
	return best, found
}

// popDue removes and returns every non-cancelled entry whose deadline is
// <= now, in deadline order, skipping cancelled entries it encounters.
func popDue(h *taskHeap, now int64) []*scheduledTask {
	var due []*scheduledTask
	for h.Len() > 0 {
		next := (*h)[0]
		if next.cancelled {
			heap.Pop(h)
			continue
		}
		if next.deadline > now {
			break
		}
		heap.Pop(h)
		due = append(due, next)
	}
	return due
}
