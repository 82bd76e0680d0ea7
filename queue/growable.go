// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// GrowableQueue backs the "effectively unlimited" default capacity named
// in section 4.2: a dynamically growing ring buffer (github.com/eapache/
// queue, the same data structure Sarama uses for its internal broker
// queues) guarded by a mutex. Enqueue/dequeue hold the lock only for a
// slice-append or index bump, so contention is brief even though the
// structure is not lock-free like RingQueue.

package queue

import (
	"sync"

	equeue "github.com/eapache/queue"
)

type growableQueue struct {
	mu sync.Mutex
	q  *equeue.Queue
}

func newGrowableQueue() *growableQueue {
	return &growableQueue{q: equeue.New()}
}

func (g *growableQueue) Offer(task Task) bool {
	g.mu.Lock()
	g.q.Add(task)
	g.mu.Unlock()
	return true
}

func (g *growableQueue) Poll() (Task, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.q.Length() == 0 {
		return nil, false
	}
	v := g.q.Remove()
	task, _ := v.(Task)
	return task, true
}

func (g *growableQueue) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.q.Length()
}
