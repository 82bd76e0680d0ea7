// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package queue

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRingQueue_OfferPollFIFO(t *testing.T) {
	q := newRingQueue(4)
	order := []int{}
	for i := 0; i < 4; i++ {
		i := i
		if !q.Offer(func() { order = append(order, i) }) {
			t.Fatalf("Offer %d failed unexpectedly", i)
		}
	}
	if q.Offer(func() {}) {
		t.Fatal("Offer on a full ring should fail")
	}
	for i := 0; i < 4; i++ {
		task, ok := q.Poll()
		if !ok {
			t.Fatalf("Poll %d should have succeeded", i)
		}
		task()
	}
	if _, ok := q.Poll(); ok {
		t.Fatal("Poll on an empty ring should fail")
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("FIFO order violated: order=%v", order)
		}
	}
}

func TestRingQueue_MPSC(t *testing.T) {
	q := newRingQueue(1024)
	producers := 8
	perProducer := 5000
	var wg sync.WaitGroup
	var sent, received int64

	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(pid int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				val := int64(pid*perProducer + i + 1)
				for !q.Offer(func() { atomic.AddInt64(&received, val) }) {
					runtime.Gosched()
				}
				atomic.AddInt64(&sent, val)
			}
		}(p)
	}

	done := make(chan struct{})
	go func() {
		total := int64(producers * perProducer)
		var drained int64
		for drained < total {
			if task, ok := q.Poll(); ok {
				task()
				drained++
			} else {
				runtime.Gosched()
			}
		}
		close(done)
	}()

	wg.Wait()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out draining ring queue")
	}
	if sent != received {
		t.Fatalf("checksum mismatch: sent=%d received=%d", sent, received)
	}
}

func TestGrowableQueue_FIFO(t *testing.T) {
	q := newGrowableQueue()
	order := []int{}
	for i := 0; i < 100; i++ {
		i := i
		if !q.Offer(func() { order = append(order, i) }) {
			t.Fatal("growable Offer should never report full")
		}
	}
	if q.Len() != 100 {
		t.Fatalf("Len = %d, want 100", q.Len())
	}
	for i := 0; i < 100; i++ {
		task, ok := q.Poll()
		if !ok {
			t.Fatalf("Poll %d should have succeeded", i)
		}
		task()
	}
	if _, ok := q.Poll(); ok {
		t.Fatal("Poll on an empty growable queue should fail")
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("FIFO order violated: order=%v", order)
		}
	}
}

func TestNew_SelectsBackingByCapacity(t *testing.T) {
	if _, ok := New(0).(*growableQueue); !ok {
		t.Fatal("capacity<=0 should select the growable queue")
	}
	if _, ok := New(16).(*ringQueue); !ok {
		t.Fatal("positive capacity should select the ring queue")
	}
}
