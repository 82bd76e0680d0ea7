//go:build linux
// +build linux

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/momentics/reactorcore/config"
	"github.com/momentics/reactorcore/executor"
)

func newTestLoop(t *testing.T) *Loop {
	t.Helper()
	snap, err := config.NewKnobs().Freeze()
	if err != nil {
		t.Fatalf("freeze knobs: %v", err)
	}
	l, err := NewLoop(0, snap, executor.DefaultThreadFactory, nil, "")
	if err != nil {
		t.Fatalf("NewLoop: %v", err)
	}
	t.Cleanup(func() {
		term := l.ShutdownGracefully(0, 2*time.Second)
		term.Await(2 * time.Second)
	})
	return l
}

type countingTask struct {
	reads, writes, connects int
	done                    chan struct{}
}

func (c *countingTask) OnConnectReady() { c.connects++ }
func (c *countingTask) OnWriteReady()   { c.writes++ }
func (c *countingTask) OnReadReady() {
	c.reads++
	if c.done != nil {
		close(c.done)
		c.done = nil
	}
}

func TestLoop_RegisterDispatchesReadReady(t *testing.T) {
	l := newTestLoop(t)
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()

	done := make(chan struct{})
	h := &countingTask{done: done}

	var reg *Registration
	f := l.Submit(func() {
		var regErr error
		reg, regErr = l.Register(r.Fd(), EventRead, h)
		if regErr != nil {
			t.Errorf("register: %v", regErr)
		}
	})
	if err := f.Sync(); err != nil {
		t.Fatalf("submit register: %v", err)
	}

	if _, err := w.Write([]byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for read-ready dispatch")
	}

	if err := l.Unregister(reg); err != nil {
		t.Fatalf("unregister: %v", err)
	}
}

func TestLoop_ReadinessTaskCancelsOnError(t *testing.T) {
	l := newTestLoop(t)
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()

	failed := make(chan error, 1)
	task := ReadinessTask(func(ready FDEventType) error {
		return errFromTest
	})

	f := l.Submit(func() {
		reg, err := l.Register(r.Fd(), EventRead, task)
		if err != nil {
			t.Errorf("register: %v", err)
			return
		}
		reg.OnUnregistered = func(cause error) { failed <- cause }
	})
	if err := f.Sync(); err != nil {
		t.Fatalf("submit register: %v", err)
	}

	if _, err := w.Write([]byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case cause := <-failed:
		if cause != errFromTest {
			t.Fatalf("unexpected cause: %v", cause)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for readiness task cancellation")
	}
}

func TestLoop_ShutdownGracefullyClosesRegistrations(t *testing.T) {
	snap, err := config.NewKnobs().Freeze()
	if err != nil {
		t.Fatalf("freeze knobs: %v", err)
	}
	l, err := NewLoop(0, snap, executor.DefaultThreadFactory, nil, "")
	if err != nil {
		t.Fatalf("NewLoop: %v", err)
	}
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()

	unregistered := make(chan struct{})
	h := &countingTask{}
	f := l.Submit(func() {
		reg, regErr := l.Register(r.Fd(), EventRead, h)
		if regErr != nil {
			t.Errorf("register: %v", regErr)
			return
		}
		reg.OnUnregistered = func(error) { close(unregistered) }
	})
	if err := f.Sync(); err != nil {
		t.Fatalf("submit register: %v", err)
	}

	term := l.ShutdownGracefully(0, 2*time.Second)
	if err := term.Sync(); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	select {
	case <-unregistered:
	case <-time.After(time.Second):
		t.Fatal("registration was never unregistered during shutdown")
	}
}

type panicOnceTask struct {
	mu       sync.Mutex
	panicked bool
	done     chan struct{}
}

func (p *panicOnceTask) OnConnectReady() {}
func (p *panicOnceTask) OnWriteReady()   {}
func (p *panicOnceTask) OnReadReady() {
	p.mu.Lock()
	first := !p.panicked
	p.panicked = true
	done := p.done
	if !first {
		p.done = nil
	}
	p.mu.Unlock()
	if first {
		panic("panicOnceTask: synthetic handler panic")
	}
	if done != nil {
		close(done)
	}
}

// TestLoop_SurvivesHandlerPanicAndKeepsDispatching asserts the run loop's
// per-iteration recover keeps the owning goroutine alive after a Handler
// callback panics, and that it resumes dispatching readiness afterward. The
// pipe is never drained by the handler, so epoll's level-triggered EPOLLIN
// keeps the fd ready across the panic's recovery sleep without a second
// write.
func TestLoop_SurvivesHandlerPanicAndKeepsDispatching(t *testing.T) {
	l := newTestLoop(t)
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()

	done := make(chan struct{})
	h := &panicOnceTask{done: done}

	var reg *Registration
	f := l.Submit(func() {
		var regErr error
		reg, regErr = l.Register(r.Fd(), EventRead, h)
		if regErr != nil {
			t.Errorf("register: %v", regErr)
		}
	})
	if err := f.Sync(); err != nil {
		t.Fatalf("submit register: %v", err)
	}

	if _, err := w.Write([]byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("loop never resumed dispatching after the handler panic")
	}

	if err := l.Unregister(reg); err != nil {
		t.Fatalf("unregister: %v", err)
	}
}

var errFromTest = &testCancelError{}

type testCancelError struct{}

func (*testCancelError) Error() string { return "reactor_test: synthetic readiness-task failure" }
